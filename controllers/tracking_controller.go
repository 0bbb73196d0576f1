package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadomation/models"
	"leadomation/utils"
)

type TrackingController struct {
	DB *gorm.DB
}

func NewTrackingController(db *gorm.DB) *TrackingController {
	return &TrackingController{DB: db}
}

// HandleOpenTracking records the first open of a sequence email. The pixel
// is returned even for unknown ids so mail clients never see an error.
func (tc *TrackingController) HandleOpenTracking(c *fiber.Ctx) error {
	trackingID := c.Params("trackingID")

	if trackingID != "" {
		if err := tc.DB.WithContext(c.UserContext()).
			Model(&models.StepLog{}).
			Where("tracking_id = ? AND opened_at IS NULL", trackingID).
			Update("opened_at", time.Now().UTC()).Error; err != nil {
			utils.LogError("open_tracking_failed", err, map[string]interface{}{"tracking_id": trackingID})
		}
	}

	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
	return c.Type("gif").Send(transparentPixel())
}

func transparentPixel() []byte {
	// 1x1 transparent GIF
	return []byte{
		0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
		0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21,
		0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
		0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
		0x01, 0x00, 0x3b,
	}
}
