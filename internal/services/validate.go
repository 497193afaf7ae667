package services

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tinRE      = regexp.MustCompile(`^\d{10}$`)
	phoneRE    = regexp.MustCompile(`^\+\d{11}$`)
	vkRE       = regexp.MustCompile(`^https://vk\.com/`)
	okRE       = regexp.MustCompile(`^https://ok\.ru/`)
	telegramRE = regexp.MustCompile(`^https://t\.me/`)
	numericRE  = regexp.MustCompile(`^\d+$`)
	slugRE     = regexp.MustCompile(`^[a-z0-9_-]+$`)
	usernameRE = regexp.MustCompile(`^[\p{L}\p{N}.@+_-]+$`)
)

func maxRunes(f fieldErrors, field, v string, n int) {
	if utf8.RuneCountInString(v) > n {
		f.add(field, "too long")
	}
}

func required(f fieldErrors, field, v string) bool {
	if strings.TrimSpace(v) == "" {
		f.add(field, "required")
		return false
	}
	return true
}

func matches(f fieldErrors, field, v string, re *regexp.Regexp, msg string) {
	if v != "" && !re.MatchString(v) {
		f.add(field, msg)
	}
}

func validEmail(v string) bool {
	a, err := mail.ParseAddress(v)
	return err == nil && a.Address == v
}

func normalizeEmail(v string) string { return strings.ToLower(strings.TrimSpace(v)) }

func validPassword(f fieldErrors, field, pw string) {
	switch n := utf8.RuneCountInString(pw); {
	case n < 8:
		f.add(field, "must be at least 8 characters")
	case n > 72:
		f.add(field, "must be at most 72 characters")
	case numericRE.MatchString(pw):
		f.add(field, "must not be entirely numeric")
	}
}
