// Package validation holds input checks shared by the HTTP-facing services.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)
)

// Error is a rejected field with a human readable reason.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Fail builds an *Error.
func Fail(field, message string) error {
	return &Error{Field: field, Message: message}
}

// Email checks that email is present and well formed.
func Email(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return Fail("email", "email is required")
	}
	if !emailRegex.MatchString(email) {
		return Fail("email", "invalid email format")
	}
	return nil
}

// Password checks the minimum password length.
func Password(password string) error {
	if password == "" {
		return Fail("password", "password is required")
	}
	if utf8.RuneCountInString(password) < 6 {
		return Fail("password", "password must be at least 6 characters")
	}
	return nil
}

// Username checks length and allowed characters. An "@" is never allowed
// because login treats identifiers containing one as email addresses.
func Username(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return Fail("username", "username is required")
	}
	n := utf8.RuneCountInString(username)
	if n < 3 || n > 80 {
		return Fail("username", "username must be between 3 and 80 characters")
	}
	if !usernameRegex.MatchString(username) {
		return Fail("username", "username may only contain letters, digits, '.', '-' and '_'")
	}
	return nil
}
