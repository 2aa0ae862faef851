package utils

import (
	"regexp"
	"strings"
)

var (
	phoneRegex     = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	tenDigitRegex  = regexp.MustCompile(`^\d{10}$`)
	nonDigitRegex  = regexp.MustCompile(`[^\d]`)
	nonDigitOrPlus = regexp.MustCompile(`[^\d+]`)
)

func IsValidPhone(phone string) bool {
	cleaned := nonDigitOrPlus.ReplaceAllString(phone, "")

	// Basic E.164 format validation
	return phoneRegex.MatchString(cleaned)
}

// IsTenDigitPhone reports whether phone is exactly ten ASCII digits.
func IsTenDigitPhone(phone string) bool {
	return tenDigitRegex.MatchString(phone)
}

// FormatPhone turns a local number into E.164 using countryCode when the
// number does not already carry it.
func FormatPhone(phone, countryCode string) string {
	if strings.HasPrefix(strings.TrimSpace(phone), "+") {
		return "+" + nonDigitRegex.ReplaceAllString(phone, "")
	}

	cleaned := nonDigitRegex.ReplaceAllString(phone, "")
	code := strings.TrimPrefix(countryCode, "+")

	if len(cleaned) <= PhoneDigits || !strings.HasPrefix(cleaned, code) {
		cleaned = code + cleaned
	}

	return "+" + cleaned
}

func MaskPhone(phone string) string {
	if len(phone) < 4 {
		return phone
	}

	// Show last 4 digits
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
