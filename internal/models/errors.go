package models

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnauthorized        = errors.New("Login required")
	ErrNotFound            = errors.New("Not found")
	ErrInvalidReference    = errors.New("Referenced entity does not exist")
	ErrTooManyTags         = errors.New("Too many tags")
	ErrDuplicateTag        = errors.New("Tag already exists")
	ErrBadDirection        = errors.New("Vote direction must be -1 or 1")
	ErrBadVotableKind      = errors.New("Unknown votable item type")
	ErrEmailAlreadyUsed    = errors.New("User with this email is already registered.")
	ErrUsernameAlreadyUsed = errors.New("A user with that username already exists.")
	ErrInvalidFormat       = errors.New("Invalid format")
	ErrWeakPasswd          = errors.New("Weak password")
	ErrBadCredentials      = errors.New("Please enter a correct username and password.")
	ErrPermDenied          = errors.New("Missing permissions to execute action")
)

// TooManyTagsError carries the configured maximum so it can be shown to the user.
type TooManyTagsError struct {
	Max int
}

func (e TooManyTagsError) Error() string {
	return fmt.Sprintf("Maximum number of tags: %d", e.Max)
}
func (e TooManyTagsError) Is(target error) bool {
	return target == ErrTooManyTags
}

// FieldErrors maps a form field name to its validation messages.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}
func (fe FieldErrors) Has(field string) bool {
	return len(fe[field]) > 0
}
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	s := "invalid fields:"
	for _, f := range fields {
		s += fmt.Sprintf(" %s=%q", f, fe[f])
	}
	return s
}

// Err returns nil when there are no errors, so callers can return it directly.
func (fe FieldErrors) Err() error {
	if fe.Empty() {
		return nil
	}
	return fe
}
