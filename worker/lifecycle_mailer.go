package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leadomation/metrics"
	"leadomation/models"
	"leadomation/utils"
)

const (
	LifecycleJobName = "daily-emails"
	lifecycleLockKey = "lock:daily-emails"

	profilePageSize = 500
)

// Lifecycle template names
const (
	TemplateNudge        = "nudge"
	TemplateTips         = "tips"
	TemplateTrialEnding  = "trial_ending"
	TemplateTrialExpired = "trial_expired"
	TemplateWinBack      = "win_back"
)

var ErrUnknownTemplate = errors.New("unknown lifecycle template")

// LifecycleTemplate is one fixed lifecycle email
type LifecycleTemplate struct {
	Name    string
	Subject string
	Body    string
}

var lifecycleTemplates = map[string]LifecycleTemplate{
	TemplateNudge: {
		Name:    TemplateNudge,
		Subject: "Have you launched your first campaign yet? 👀",
		Body: "Hi {{first_name}},\n\n" +
			"You signed up for Leadomation a couple of days ago. Have you launched your first campaign yet?\n\n" +
			"Pick an industry and a city, let us find the leads, then start a sequence. It takes about five minutes.\n\n" +
			"The Leadomation team",
	},
	TemplateTips: {
		Name:    TemplateTips,
		Subject: "3 ways to fill your pipeline this week",
		Body: "Hi {{first_name}},\n\n" +
			"1. Search a niche you already know well.\n" +
			"2. Keep your first email under 100 words.\n" +
			"3. Add a follow-up step three days later.\n\n" +
			"The Leadomation team",
	},
	TemplateTrialEnding: {
		Name:    TemplateTrialEnding,
		Subject: "Your Leadomation trial ends soon",
		Body: "Hi {{first_name}},\n\n" +
			"Your free trial ends in a few days. Upgrade now to keep your sequences running and your leads warm.\n\n" +
			"The Leadomation team",
	},
	TemplateTrialExpired: {
		Name:    TemplateTrialExpired,
		Subject: "Your leads are still waiting for you",
		Body: "Hi {{first_name}},\n\n" +
			"Your trial has ended, but your leads and sequences are still saved. Pick a plan to pick up where you left off.\n\n" +
			"The Leadomation team",
	},
	TemplateWinBack: {
		Name:    TemplateWinBack,
		Subject: "We'd love to have you back, {{first_name}}",
		Body: "Hi {{first_name}},\n\n" +
			"We've shipped a lot since you left. Come back and your account will be exactly as you left it.\n\n" +
			"The Leadomation team",
	},
}

// LookupTemplate returns the lifecycle template with the given name.
func LookupTemplate(name string) (LifecycleTemplate, error) {
	tmpl, ok := lifecycleTemplates[name]
	if !ok {
		return LifecycleTemplate{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	return tmpl, nil
}

// Render fills in the first_name merge tag.
func (t LifecycleTemplate) Render(firstName string) (subject, html string) {
	fields := map[string]string{"first_name": firstName}
	return utils.RenderMergeTags(t.Subject, fields), utils.BuildHTMLBody(utils.RenderMergeTags(t.Body, fields), "")
}

// lifecycleTrigger fires a template when a profile's basis timestamp is
// exactly one of offsets days old.
type lifecycleTrigger struct {
	template string
	offsets  []int
	plans    []string
	basis    func(p models.Profile) *time.Time
}

func signedUpAt(p models.Profile) *time.Time   { return &p.CreatedAt }
func trialEndedAt(p models.Profile) *time.Time { return p.TrialEndsAt }
func cancelledAt(p models.Profile) *time.Time  { return p.CancelledAt }

var lifecycleTriggers = []lifecycleTrigger{
	{template: TemplateNudge, offsets: []int{2}, plans: []string{models.PlanTrial}, basis: signedUpAt},
	{template: TemplateTips, offsets: []int{5}, plans: []string{models.PlanTrial}, basis: signedUpAt},
	{template: TemplateTrialEnding, offsets: []int{10}, plans: []string{models.PlanTrial}, basis: signedUpAt},
	{template: TemplateTrialExpired, offsets: []int{7, 21}, plans: []string{models.PlanTrial, models.PlanExpired}, basis: trialEndedAt},
	{template: TemplateWinBack, offsets: []int{14, 30}, plans: []string{models.PlanCancelled}, basis: cancelledAt},
}

// lifecycleMatch is one email a profile is due today
type lifecycleMatch struct {
	template string
	offset   int
}

// LifecycleMailer sends the fixed lifecycle emails once per profile and offset
type LifecycleMailer struct {
	DB          *gorm.DB
	Mailer      utils.Mailer
	Locker      utils.Locker
	Sender      models.SenderIdentity
	CatchupDays int
	LockTTL     time.Duration
	Now         func() time.Time
}

func NewLifecycleMailer(db *gorm.DB, mailer utils.Mailer, locker utils.Locker, sender models.SenderIdentity, catchupDays int) *LifecycleMailer {
	if catchupDays < 0 {
		catchupDays = 0
	}
	return &LifecycleMailer{
		DB:          db,
		Mailer:      mailer,
		Locker:      locker,
		Sender:      sender,
		CatchupDays: catchupDays,
		LockTTL:     30 * time.Minute,
		Now:         time.Now,
	}
}

// Run scans every profile and returns how many lifecycle emails were sent.
func (m *LifecycleMailer) Run(ctx context.Context) (sent int, err error) {
	start := time.Now()
	defer func() { observeRun(LifecycleJobName, start, err) }()

	release, err := m.Locker.Acquire(ctx, lifecycleLockKey, m.LockTTL)
	if err != nil {
		return 0, err
	}
	defer release()

	now := m.Now().UTC()
	scanned := 0

	var lastID uint
	for {
		if err := ctx.Err(); err != nil {
			return sent, fmt.Errorf("scan interrupted after %d profiles: %w", scanned, err)
		}

		var page []models.Profile
		if err := m.DB.WithContext(ctx).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(profilePageSize).
			Find(&page).Error; err != nil {
			return sent, fmt.Errorf("failed to fetch profiles: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, profile := range page {
			for _, match := range m.matches(profile, now) {
				ok, err := m.deliver(ctx, profile, match, now)
				if err != nil {
					utils.LogError("lifecycle_email_failed", err, map[string]interface{}{
						"profile_id": profile.ID,
						"template":   match.template,
						"offset":     match.offset,
					})
					continue
				}
				if ok {
					sent++
				}
			}
		}

		scanned += len(page)
		lastID = page[len(page)-1].ID
		if len(page) < profilePageSize {
			break
		}
	}

	utils.LogEvent("lifecycle_run_completed", map[string]interface{}{
		"profiles": scanned,
		"sent":     sent,
	})

	return sent, nil
}

// matches lists the emails due for profile at now.
func (m *LifecycleMailer) matches(profile models.Profile, now time.Time) []lifecycleMatch {
	var out []lifecycleMatch
	for _, trigger := range lifecycleTriggers {
		if !slices.Contains(trigger.plans, profile.Plan) {
			continue
		}
		at := trigger.basis(profile)
		if at == nil || at.IsZero() || at.After(now) {
			continue
		}
		days := daysBetween(*at, now)
		// offsets ascend; only the latest one inside the window fires
		for i := len(trigger.offsets) - 1; i >= 0; i-- {
			offset := trigger.offsets[i]
			if days >= offset && days <= offset+m.CatchupDays {
				out = append(out, lifecycleMatch{template: trigger.template, offset: offset})
				break
			}
		}
	}
	return out
}

// deliver reserves the (profile, template, offset) slot and sends the
// email. A reservation that already exists means the email went out on an
// earlier run. Failed sends drop the reservation so a later run may retry.
func (m *LifecycleMailer) deliver(ctx context.Context, profile models.Profile, match lifecycleMatch, now time.Time) (bool, error) {
	if err := utils.ValidateRecipient(profile.Email); err != nil {
		return false, fmt.Errorf("invalid profile email: %w", err)
	}

	tmpl, err := LookupTemplate(match.template)
	if err != nil {
		return false, err
	}

	db := m.DB.WithContext(ctx)
	entry := models.LifecycleEmailLog{
		ProfileID:  profile.ID,
		Template:   match.template,
		OffsetDays: match.offset,
		Status:     models.LifecycleStatusPending,
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return false, fmt.Errorf("failed to reserve lifecycle email: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	subject, html := tmpl.Render(profile.FirstName)
	messageID, err := m.Mailer.Send(ctx, utils.Email{
		FromName:  m.Sender.FromName,
		FromEmail: m.Sender.FromEmail,
		To:        profile.Email,
		ReplyTo:   m.Sender.ReplyTo,
		Subject:   subject,
		HTML:      html,
	})
	if err != nil {
		metrics.RecordLifecycleEmail(match.template, "failed")
		if delErr := db.Unscoped().Delete(&entry).Error; delErr != nil {
			logrus.WithError(delErr).WithField("profile_id", profile.ID).Error("Failed to drop lifecycle reservation")
		}
		return false, fmt.Errorf("failed to send %s email: %w", match.template, err)
	}

	metrics.RecordLifecycleEmail(match.template, models.LifecycleStatusSent)
	if err := db.Model(&entry).Updates(map[string]interface{}{
		"status":     models.LifecycleStatusSent,
		"message_id": messageID,
		"sent_at":    now,
	}).Error; err != nil {
		// The email is out; a pending row still blocks a second send.
		logrus.WithError(err).WithField("profile_id", profile.ID).Warn("Failed to mark lifecycle email sent")
	}

	logrus.WithFields(logrus.Fields{
		"profile_id": profile.ID,
		"template":   match.template,
		"offset":     match.offset,
	}).Info("📧 Lifecycle email sent")

	return true, nil
}

// daysBetween returns the whole days elapsed from then to now.
func daysBetween(then, now time.Time) int {
	return int(now.Sub(then) / (24 * time.Hour))
}
