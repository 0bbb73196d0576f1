package controller

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"leadomation/utils"
)

const (
	ErrRunInProgress = "a run is already in progress"
	ErrRunFailed     = "run failed"
)

// Runner is a batch job that can be triggered over HTTP
type Runner interface {
	Run(ctx context.Context) (int, error)
}

type JobController struct {
	Sequences Runner
	Lifecycle Runner
	Timeout   time.Duration
}

func NewJobController(sequences, lifecycle Runner, timeout time.Duration) *JobController {
	return &JobController{
		Sequences: sequences,
		Lifecycle: lifecycle,
		Timeout:   timeout,
	}
}

// ExecuteSequences advances every due enrollment by one step
func (jc *JobController) ExecuteSequences(c *fiber.Ctx) error {
	return jc.trigger(c, "execute-sequences", jc.Sequences, "processed")
}

// SendDailyEmails sends the lifecycle emails due today
func (jc *JobController) SendDailyEmails(c *fiber.Ctx) error {
	return jc.trigger(c, "daily-emails", jc.Lifecycle, "sent")
}

func (jc *JobController) trigger(c *fiber.Ctx, job string, runner Runner, countKey string) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), jc.Timeout)
	defer cancel()

	n, err := runner.Run(ctx)
	if errors.Is(err, utils.ErrRunInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": ErrRunInProgress,
		})
	}
	if err != nil {
		utils.LogError("job_trigger_failed", err, map[string]interface{}{
			"job":   job,
			"count": n,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, ErrRunFailed, err)
	}

	logrus.WithFields(logrus.Fields{
		"job":    job,
		countKey: n,
		"caller": c.Locals("caller"),
	}).Info("Job triggered over HTTP")

	return c.JSON(fiber.Map{countKey: n})
}
