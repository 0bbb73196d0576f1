package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"leadomation/models"
	"leadomation/utils"
)

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	db, err := gorm.Open(dsn, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// fakeMailer records sent emails and fails when err is set
type fakeMailer struct {
	mu   sync.Mutex
	sent []utils.Email
	err  error
}

func (f *fakeMailer) Send(_ context.Context, email utils.Email) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, email)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func (f *fakeMailer) Sent() []utils.Email {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]utils.Email(nil), f.sent...)
}

var defaultSender = models.SenderIdentity{
	FromName:  "Leadomation",
	FromEmail: "hello@leadomation.co.uk",
}

func createSequence(t *testing.T, db *gorm.DB, userID uint, steps ...models.SequenceStep) models.Sequence {
	t.Helper()
	for i := range steps {
		steps[i].Position = i + 1
		if steps[i].Channel == "" {
			steps[i].Channel = models.ChannelEmail
		}
	}
	sequence := models.Sequence{
		UserID: userID,
		Name:   "Spa outreach",
		Status: models.SequenceStatusActive,
		Steps:  steps,
	}
	require.NoError(t, db.Create(&sequence).Error)
	return sequence
}

func createLead(t *testing.T, db *gorm.DB, userID uint, email string) models.Lead {
	t.Helper()
	lead := models.Lead{
		UserID:    userID,
		Email:     email,
		FirstName: "Hans",
		Company:   "Wellness Spa",
		Location:  "Berlin",
	}
	require.NoError(t, db.Create(&lead).Error)
	return lead
}

func createEnrollment(t *testing.T, db *gorm.DB, sequence models.Sequence, lead models.Lead, currentStep int, nextStepAt time.Time) models.Enrollment {
	t.Helper()
	enrollment := models.Enrollment{
		UserID:      sequence.UserID,
		SequenceID:  sequence.ID,
		LeadID:      lead.ID,
		Status:      models.EnrollmentStatusActive,
		CurrentStep: currentStep,
		NextStepAt:  utils.Pointer(nextStepAt),
	}
	require.NoError(t, db.Create(&enrollment).Error)
	return enrollment
}

func reloadEnrollment(t *testing.T, db *gorm.DB, id uint) models.Enrollment {
	t.Helper()
	var enrollment models.Enrollment
	require.NoError(t, db.First(&enrollment, id).Error)
	return enrollment
}

func stepLogs(t *testing.T, db *gorm.DB) []models.StepLog {
	t.Helper()
	var logs []models.StepLog
	require.NoError(t, db.Order("id ASC").Find(&logs).Error)
	return logs
}
