package core

import (
	"errors"
	"strconv"
	"strings"
)

// MinimumAge is the youngest age accepted by ValidAge.
const MinimumAge = 18

var (
	// ErrInvalidAge reports input that does not parse as an integer.
	ErrInvalidAge = errors.New("age must be a valid integer")
	// ErrNegativeAge reports an integer below zero.
	ErrNegativeAge = errors.New("age must be a natural number")
)

// ParseAge coerces raw into a natural number. It returns ErrInvalidAge when
// raw is not an integer and ErrNegativeAge when it parses below zero.
func ParseAge(raw string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrInvalidAge
	}
	if age < 0 {
		return 0, ErrNegativeAge
	}
	return age, nil
}

// ValidAge reports whether raw parses to an age of at least MinimumAge.
func ValidAge(raw string) (bool, error) {
	age, err := ParseAge(raw)
	if err != nil {
		return false, err
	}
	return age >= MinimumAge, nil
}
