package core

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func FuzzParseAge(f *testing.F) {
	f.Add("18")
	f.Add("0")
	f.Add("-1")
	f.Add("not-a-number")
	f.Add(" 42 ")
	f.Add("")
	f.Add("18.5")
	f.Add("+17")

	f.Fuzz(func(t *testing.T, raw string) {
		age, err := ParseAge(raw)

		parsed, convErr := strconv.Atoi(strings.TrimSpace(raw))
		switch {
		case convErr != nil:
			if !errors.Is(err, ErrInvalidAge) {
				t.Fatalf("ParseAge(%q) error = %v, want ErrInvalidAge", raw, err)
			}
		case parsed < 0:
			if !errors.Is(err, ErrNegativeAge) {
				t.Fatalf("ParseAge(%q) error = %v, want ErrNegativeAge", raw, err)
			}
		default:
			if err != nil {
				t.Fatalf("ParseAge(%q) error = %v, want nil", raw, err)
			}
			if age != parsed {
				t.Fatalf("ParseAge(%q) = %d, want %d", raw, age, parsed)
			}
		}

		ok, validErr := ValidAge(raw)
		if (err == nil) != (validErr == nil) {
			t.Fatalf("ValidAge(%q) error = %v disagrees with ParseAge error = %v", raw, validErr, err)
		}
		if err == nil && ok != (age >= MinimumAge) {
			t.Fatalf("ValidAge(%q) = %t for age %d with minimum %d", raw, ok, age, MinimumAge)
		}
	})
}
