package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"leadomation/metrics"
	"leadomation/models"
	"leadomation/utils"
)

const (
	SequenceJobName = "execute-sequences"
	sequenceLockKey = "lock:execute-sequences"

	DefaultSequenceBatchSize = 50
	DefaultClaimTTL          = 10 * time.Minute
)

// ExecutorConfig tunes a SequenceExecutor
type ExecutorConfig struct {
	BatchSize   int
	ClaimTTL    time.Duration
	LockTTL     time.Duration
	Sender      models.SenderIdentity // used when the owner has no sender settings
	TrackingURL string                // empty disables open tracking
}

// SequenceExecutor advances due enrollments one step per run
type SequenceExecutor struct {
	DB     *gorm.DB
	Mailer utils.Mailer
	Locker utils.Locker
	Config ExecutorConfig
	Now    func() time.Time
}

func NewSequenceExecutor(db *gorm.DB, mailer utils.Mailer, locker utils.Locker, cfg ExecutorConfig) *SequenceExecutor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSequenceBatchSize
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultClaimTTL
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.ClaimTTL
	}
	return &SequenceExecutor{
		DB:     db,
		Mailer: mailer,
		Locker: locker,
		Config: cfg,
		Now:    time.Now,
	}
}

// stepOutcome is what happened to one claimed enrollment
type stepOutcome int

const (
	outcomeAdvanced  stepOutcome = iota // step ran and the pointer moved
	outcomeFailed                       // send failed, pointer still moved
	outcomeSwept                        // sequence or lead gone, or steps exhausted
	outcomeUnclaimed                    // owned by another run
)

// Run processes up to BatchSize due enrollments and returns how many
// were advanced after a successful step.
func (e *SequenceExecutor) Run(ctx context.Context) (processed int, err error) {
	start := time.Now()
	defer func() { observeRun(SequenceJobName, start, err) }()

	release, err := e.Locker.Acquire(ctx, sequenceLockKey, e.Config.LockTTL)
	if err != nil {
		return 0, err
	}
	defer release()

	now := e.Now().UTC()

	var due []models.Enrollment
	if err := e.DB.WithContext(ctx).
		Where("status = ? AND next_step_at IS NOT NULL AND next_step_at <= ?", models.EnrollmentStatusActive, now).
		Order("next_step_at ASC").
		Limit(e.Config.BatchSize).
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch due enrollments: %w", err)
	}

	for _, enrollment := range due {
		if err := ctx.Err(); err != nil {
			return processed, fmt.Errorf("run interrupted after %d enrollments: %w", processed, err)
		}

		outcome, err := e.processEnrollment(ctx, enrollment, now)
		if err != nil {
			utils.LogError("sequence_step_failed", err, map[string]interface{}{
				"enrollment_id": enrollment.ID,
				"sequence_id":   enrollment.SequenceID,
				"step":          enrollment.CurrentStep,
			})
			continue
		}
		if outcome == outcomeAdvanced {
			processed++
		}
	}

	utils.LogEvent("sequence_run_completed", map[string]interface{}{
		"due":       len(due),
		"processed": processed,
	})

	return processed, nil
}

func (e *SequenceExecutor) processEnrollment(ctx context.Context, enrollment models.Enrollment, now time.Time) (stepOutcome, error) {
	db := e.DB.WithContext(ctx)

	token, claimed, err := e.claim(db, enrollment.ID, now)
	if err != nil {
		return outcomeUnclaimed, err
	}
	if !claimed {
		logrus.WithField("enrollment_id", enrollment.ID).Debug("Enrollment claimed by another run")
		return outcomeUnclaimed, nil
	}

	var sequence models.Sequence
	err = db.Preload("Steps", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	}).First(&sequence, enrollment.SequenceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return outcomeSwept, e.sweep(db, enrollment, token, now, "sequence not found")
	}
	if err != nil {
		e.releaseClaim(db, enrollment.ID, token)
		return outcomeUnclaimed, fmt.Errorf("failed to load sequence: %w", err)
	}

	var lead models.Lead
	err = db.First(&lead, enrollment.LeadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return outcomeSwept, e.sweep(db, enrollment, token, now, "lead not found")
	}
	if err != nil {
		e.releaseClaim(db, enrollment.ID, token)
		return outcomeUnclaimed, fmt.Errorf("failed to load lead: %w", err)
	}

	if enrollment.CurrentStep < 0 || enrollment.CurrentStep >= len(sequence.Steps) {
		return outcomeSwept, e.sweep(db, enrollment, token, now, "steps exhausted")
	}

	step := sequence.Steps[enrollment.CurrentStep]
	outcome, stepErr := e.executeStep(ctx, enrollment, step, lead, now)

	if err := e.advance(db, enrollment, sequence.Steps, token, now); err != nil {
		return outcomeFailed, err
	}
	if stepErr != nil {
		return outcomeFailed, stepErr
	}
	return outcome, nil
}

// executeStep renders and dispatches one step and appends its log row.
func (e *SequenceExecutor) executeStep(ctx context.Context, enrollment models.Enrollment, step models.SequenceStep, lead models.Lead, now time.Time) (stepOutcome, error) {
	fields := lead.MergeFields()
	entry := models.StepLog{
		EnrollmentID: enrollment.ID,
		SequenceID:   enrollment.SequenceID,
		LeadID:       enrollment.LeadID,
		UserID:       enrollment.UserID,
		StepIndex:    enrollment.CurrentStep,
		Channel:      step.Channel,
		Subject:      utils.RenderMergeTags(step.Subject, fields),
		Body:         utils.RenderMergeTags(step.Body, fields),
		ExecutedAt:   now,
	}

	if err := step.Channel.Executable(); err != nil {
		entry.Status = models.StepStatusSkipped
		entry.Error = err.Error()
		metrics.RecordSequenceStep(string(step.Channel), entry.Status)
		if err := e.DB.WithContext(ctx).Create(&entry).Error; err != nil {
			return outcomeFailed, fmt.Errorf("failed to write step log: %w", err)
		}
		return outcomeAdvanced, nil
	}

	if err := utils.ValidateRecipient(lead.Email); errors.Is(err, utils.ErrNoRecipient) {
		logrus.WithFields(logrus.Fields{
			"enrollment_id": enrollment.ID,
			"lead_id":       lead.ID,
		}).Debug("Lead has no email address, skipping send")
		return outcomeAdvanced, nil
	}

	messageID, sendErr := e.sendStep(ctx, enrollment, lead, &entry)
	if sendErr != nil {
		entry.Status = models.StepStatusFailed
		entry.Error = sendErr.Error()
	} else {
		entry.Status = models.StepStatusSent
		entry.MessageID = messageID
	}
	metrics.RecordSequenceStep(string(step.Channel), entry.Status)

	if err := e.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		return outcomeFailed, fmt.Errorf("failed to write step log: %w", err)
	}
	if sendErr != nil {
		return outcomeFailed, fmt.Errorf("failed to send step %d: %w", enrollment.CurrentStep, sendErr)
	}
	return outcomeAdvanced, nil
}

func (e *SequenceExecutor) sendStep(ctx context.Context, enrollment models.Enrollment, lead models.Lead, entry *models.StepLog) (string, error) {
	if err := utils.ValidateRecipient(lead.Email); err != nil {
		return "", fmt.Errorf("invalid lead email %q: %w", lead.Email, err)
	}

	var owner *models.Profile
	var profile models.Profile
	err := e.DB.WithContext(ctx).First(&profile, enrollment.UserID).Error
	switch {
	case err == nil:
		owner = &profile
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", fmt.Errorf("failed to load sender profile: %w", err)
	}
	sender := owner.SenderIdentity(e.Config.Sender)

	html := utils.BuildHTMLBody(entry.Body, sender.Signature)
	if e.Config.TrackingURL != "" {
		entry.TrackingID = uuid.New().String()
		html = utils.InjectOpenTracking(html, e.Config.TrackingURL, entry.TrackingID)
	}

	return e.Mailer.Send(ctx, utils.Email{
		FromName:  sender.FromName,
		FromEmail: sender.FromEmail,
		To:        lead.Email,
		ReplyTo:   sender.ReplyTo,
		Subject:   entry.Subject,
		HTML:      html,
	})
}

// claim marks the enrollment as owned by this run. It fails when the row
// is no longer due or another run holds a fresh claim.
func (e *SequenceExecutor) claim(db *gorm.DB, id uint, now time.Time) (string, bool, error) {
	token := uuid.New().String()
	result := db.Model(&models.Enrollment{}).
		Where("id = ? AND status = ? AND next_step_at <= ?", id, models.EnrollmentStatusActive, now).
		Where("(claim_token = '' OR claim_token IS NULL OR claimed_at IS NULL OR claimed_at < ?)", now.Add(-e.Config.ClaimTTL)).
		Updates(map[string]interface{}{
			"claim_token": token,
			"claimed_at":  now,
		})
	if result.Error != nil {
		return "", false, fmt.Errorf("failed to claim enrollment %d: %w", id, result.Error)
	}
	return token, result.RowsAffected == 1, nil
}

func (e *SequenceExecutor) releaseClaim(db *gorm.DB, id uint, token string) {
	if err := db.Model(&models.Enrollment{}).
		Where("id = ? AND claim_token = ?", id, token).
		Updates(map[string]interface{}{"claim_token": "", "claimed_at": nil}).Error; err != nil {
		utils.LogError("enrollment_release_failed", err, map[string]interface{}{"enrollment_id": id})
	}
}

// advance moves the pointer to the next step, or completes the enrollment
// when the current step was the last one.
func (e *SequenceExecutor) advance(db *gorm.DB, enrollment models.Enrollment, steps []models.SequenceStep, token string, now time.Time) error {
	next := enrollment.CurrentStep + 1
	if next >= len(steps) {
		return e.complete(db, enrollment.ID, next, token, now)
	}

	nextStepAt := now.Add(steps[next].Wait())
	return e.persist(db, enrollment.ID, token, map[string]interface{}{
		"current_step": next,
		"next_step_at": nextStepAt,
		"status":       models.EnrollmentStatusActive,
	})
}

func (e *SequenceExecutor) sweep(db *gorm.DB, enrollment models.Enrollment, token string, now time.Time, reason string) error {
	logrus.WithFields(logrus.Fields{
		"enrollment_id": enrollment.ID,
		"current_step":  enrollment.CurrentStep,
		"reason":        reason,
	}).Info("Sweeping enrollment to completed")
	return e.complete(db, enrollment.ID, enrollment.CurrentStep, token, now)
}

func (e *SequenceExecutor) complete(db *gorm.DB, id uint, currentStep int, token string, now time.Time) error {
	if err := e.persist(db, id, token, map[string]interface{}{
		"current_step": currentStep,
		"next_step_at": nil,
		"status":       models.EnrollmentStatusCompleted,
		"completed_at": now,
	}); err != nil {
		return err
	}
	metrics.RecordEnrollmentCompleted()
	return nil
}

// persist writes the enrollment update and drops the claim in one statement.
func (e *SequenceExecutor) persist(db *gorm.DB, id uint, token string, updates map[string]interface{}) error {
	updates["claim_token"] = ""
	updates["claimed_at"] = nil

	result := db.Model(&models.Enrollment{}).
		Where("id = ? AND claim_token = ?", id, token).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update enrollment %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("enrollment %d: claim lost before update", id)
	}
	return nil
}
