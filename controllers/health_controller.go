package controller

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type HealthController struct {
	DB      *gorm.DB
	Version string
}

func NewHealthController(db *gorm.DB, version string) *HealthController {
	return &HealthController{DB: db, Version: version}
}

// Health reports whether the service can reach its database
func (hc *HealthController) Health(c *fiber.Ctx) error {
	status := "running"
	code := fiber.StatusOK

	sqlDB, err := hc.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.UserContext())
	}
	if err != nil {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"version": hc.Version,
	})
}
