package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// GenerateTrackingPixelURL generates a tracking pixel URL for email opens
func GenerateTrackingPixelURL(baseURL, messageID string) string {
	return fmt.Sprintf("%s/track/open/%s", strings.TrimRight(baseURL, "/"), url.PathEscape(messageID))
}

// InjectOpenTracking appends an open-tracking pixel to the email content.
// An empty baseURL disables tracking.
func InjectOpenTracking(htmlContent, baseURL, messageID string) string {
	if baseURL == "" || messageID == "" {
		return htmlContent
	}
	pixelURL := GenerateTrackingPixelURL(baseURL, messageID)
	trackingPixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`, pixelURL)
	return htmlContent + trackingPixel
}
