package handlers

import (
	"strings"
	"unicode/utf8"
)

// Validation limits for editor identities.
const (
	maxUserIDLen   = 64
	maxUsernameLen = 100
	maxAvatarLen   = 2_000
)

// validateIdentity checks a dev-login identity and returns the first error found.
func validateIdentity(userID, username, avatar string) string {
	if strings.TrimSpace(userID) == "" {
		return "User ID is required."
	}
	if utf8.RuneCountInString(userID) > maxUserIDLen {
		return "User ID is too long (max 64 characters)."
	}
	if strings.TrimSpace(username) == "" {
		return "Username is required."
	}
	if utf8.RuneCountInString(username) > maxUsernameLen {
		return "Username is too long (max 100 characters)."
	}
	if utf8.RuneCountInString(avatar) > maxAvatarLen {
		return "Avatar URL is too long (max 2,000 characters)."
	}
	return ""
}
