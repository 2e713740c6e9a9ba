package utils

import (
	"fmt"
	"time"

	"dappbridge/internal/constants"
)

func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours == 0 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	if minutes == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	if hours == 1 {
		return fmt.Sprintf("1 hour %d minutes", minutes)
	}
	return fmt.Sprintf("%d hours %d minutes", hours, minutes)
}

// FormatResponse renders one response frame for the terminal. The marker
// follows the outcome encoded in the channel name.
func FormatResponse(channel string, payload any) string {
	color, emoji := constants.ColorCyan, "📨"
	switch {
	case containsMarker(channel, constants.ChannelSuccess):
		color, emoji = constants.ColorGreen, "✅"
	case containsMarker(channel, constants.ChannelFailure):
		color, emoji = constants.ColorRed, "❌"
	}
	return fmt.Sprintf("  %s %s%s%s %v\n", emoji, color, channel, constants.ColorReset, payload)
}

func containsMarker(channel, marker string) bool {
	for i := 0; i+len(marker)+2 <= len(channel); i++ {
		if channel[i] == '-' && channel[i+1:i+1+len(marker)] == marker && channel[i+1+len(marker)] == '-' {
			return true
		}
	}
	return false
}
