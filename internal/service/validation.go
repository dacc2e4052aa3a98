package service

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/notes-app/internal/apperror"
)

// Validation constants.
const (
	MinNameLength = 2
	MaxNameLength = 100

	MinAge = 13
	MaxAge = 120

	MaxNoteTitleLength   = 100
	MaxNoteContentLength = 10000

	DefaultListLimit = 20
	MaxListLimit     = 100

	dobLayout = "2006-01-02"
)

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves the whole package.
var validate = validator.New()

// normalizeEmail trims and lower-cases an address and checks its syntax.
// The normalized form is the natural key of an account and of its code.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed("email", "Email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", apperror.ValidationFailed("email", "Please enter a valid email address")
	}
	return email, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		return "", apperror.ValidationFailed("name", "Name is required")
	case n < MinNameLength:
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("Name must be at least %d characters long", MinNameLength))
	case n > MaxNameLength:
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("Name must be %d characters or less", MaxNameLength))
	}
	return name, nil
}

// parseDateOfBirth parses a YYYY-MM-DD date and checks the holder is between
// MinAge and MaxAge full years old on now's date.
func parseDateOfBirth(dob string, now time.Time) (time.Time, error) {
	dob = strings.TrimSpace(dob)
	if dob == "" {
		return time.Time{}, apperror.ValidationFailed("dob", "Date of birth is required")
	}

	d, err := time.Parse(dobLayout, dob)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed("dob", "Date of birth must be in YYYY-MM-DD format")
	}

	age := ageOn(d, now)
	switch {
	case age < 0 || age > MaxAge:
		return time.Time{}, apperror.ValidationFailed("dob", "Please enter a valid date of birth")
	case age < MinAge:
		return time.Time{}, apperror.ValidationFailed("dob",
			fmt.Sprintf("You must be at least %d years old", MinAge))
	}
	return d, nil
}

// ageOn returns the number of completed years between dob and now.
func ageOn(dob, now time.Time) int {
	now = now.UTC()
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func validateCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", apperror.ValidationFailed("otp", "OTP is required")
	}
	if err := validate.Var(code, "len=6,number"); err != nil {
		return "", apperror.ValidationFailed("otp", "OTP must be 6 digits")
	}
	return code, nil
}

// noteInput is validated with struct tags; the messages below mirror the
// tags one-to-one.
type noteInput struct {
	Title   string `validate:"required,max=100"`
	Content string `validate:"required,max=10000"`
}

func validateNote(title, content string) (noteInput, error) {
	in := noteInput{
		Title:   strings.TrimSpace(title),
		Content: strings.TrimSpace(content),
	}

	// validator's max counts runes for strings.
	if err := validate.Struct(in); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok || len(verrs) == 0 {
			return noteInput{}, fmt.Errorf("validating note: %w", err)
		}
		fe := verrs[0]
		switch fe.Field() + "." + fe.Tag() {
		case "Title.required":
			return noteInput{}, apperror.ValidationFailed("title", "Note title is required")
		case "Title.max":
			return noteInput{}, apperror.ValidationFailed("title",
				fmt.Sprintf("Title must be %d characters or less", MaxNoteTitleLength))
		case "Content.required":
			return noteInput{}, apperror.ValidationFailed("content", "Note content is required")
		default:
			return noteInput{}, apperror.ValidationFailed("content",
				fmt.Sprintf("Content must be %d characters or less", MaxNoteContentLength))
		}
	}
	return in, nil
}

// clampPage applies the list defaults: limit in 1..MaxListLimit (0 means
// DefaultListLimit), offset never negative.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
