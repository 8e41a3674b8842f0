package entities

import "strings"

// SystemMode gates auto-dosing and alerting.
type SystemMode string

const (
	ModeNutrition SystemMode = "NUTRITION"
	ModeCleaner   SystemMode = "CLEANER"
)

// ParseSystemMode is case-insensitive and ignores surrounding blanks.
func ParseSystemMode(s string) (SystemMode, bool) {
	switch SystemMode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeNutrition:
		return ModeNutrition, true
	case ModeCleaner:
		return ModeCleaner, true
	}
	return "", false
}
