package client

import (
	"fmt"
	"time"
)

// FormatRelativeTime renders a timestamp the way dashboard cards display
// last-used times.
func FormatRelativeTime(t time.Time, now time.Time) string {
	delta := now.Sub(t)
	switch {
	case delta < time.Minute:
		return "Just now"
	case delta < time.Hour:
		return fmt.Sprintf("%dm ago", int(delta.Minutes()))
	case delta < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(delta.Hours()))
	case delta < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(delta.Hours()/24))
	default:
		return t.Format("1/2/2006")
	}
}

// FormatTokenExpiry renders the token countdown shown for oauth2 connections.
// A nil expiry yields an empty string.
func FormatTokenExpiry(expiresAt *time.Time, now time.Time) string {
	if expiresAt == nil {
		return ""
	}

	delta := expiresAt.Sub(now)
	switch {
	case delta <= 0:
		return "Expired"
	case delta < time.Hour:
		return fmt.Sprintf("Expires in %dm", int(delta.Minutes()))
	case delta < 24*time.Hour:
		return fmt.Sprintf("Expires in %dh", int(delta.Hours()))
	default:
		return "Valid"
	}
}
