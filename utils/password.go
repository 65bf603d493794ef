package utils

import (
	"fmt"
	"regexp"
)

var (
	upperRe  = regexp.MustCompile(`[A-Z]`)
	lowerRe  = regexp.MustCompile(`[a-z]`)
	numberRe = regexp.MustCompile(`[0-9]`)
	symbolRe = regexp.MustCompile(`[\W_]`)
)

// VerifyPasswordComplexity checks that the password meets complexity requirements.
func VerifyPasswordComplexity(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	if !upperRe.MatchString(pw) {
		return fmt.Errorf("password must include at least one uppercase letter")
	}
	if !lowerRe.MatchString(pw) {
		return fmt.Errorf("password must include at least one lowercase letter")
	}
	if !numberRe.MatchString(pw) {
		return fmt.Errorf("password must include at least one number")
	}
	if !symbolRe.MatchString(pw) {
		return fmt.Errorf("password must include at least one symbol")
	}
	return nil
}
