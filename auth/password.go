package auth

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

// Registration field limits
const (
	MinFullNameLength = 2
	MinUsernameLength = 3
	MinPasswordLength = 6

	// AcceptableStrength is the score the registration page shows as a success state
	AcceptableStrength = 2
)

// ErrPasswordTooShort is returned before scoring when the length gate fails
var ErrPasswordTooShort = errors.New("password must be at least 6 characters")

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

	hasUpper  = regexp.MustCompile(`[A-Z]`)
	hasLower  = regexp.MustCompile(`[a-z]`)
	hasDigit  = regexp.MustCompile(`[0-9]`)
	hasSymbol = regexp.MustCompile(`[^A-Za-z0-9]`)

	strengthLabels = []string{"Çok zayıf", "Zayıf", "Orta", "İyi", "Çok güçlü"}
)

// PasswordStrength is the informational score shown while typing a password.
type PasswordStrength struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}

// Acceptable reports whether the score reaches the visual success threshold.
// It never blocks registration; only the length gate does.
func (p PasswordStrength) Acceptable() bool {
	return p.Score >= AcceptableStrength
}

// EvaluatePassword scores a password from 0 to 5, one point each for length
// of at least 8, an uppercase letter, a lowercase letter, a digit and a symbol.
// Passwords shorter than MinPasswordLength are rejected without a score.
func EvaluatePassword(password string) (PasswordStrength, error) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return PasswordStrength{}, ErrPasswordTooShort
	}

	score := 0
	if utf8.RuneCountInString(password) >= 8 {
		score++
	}
	for _, re := range []*regexp.Regexp{hasUpper, hasLower, hasDigit, hasSymbol} {
		if re.MatchString(password) {
			score++
		}
	}

	// five labels for six scores: the top two share the strongest label
	label := strengthLabels[min(score, len(strengthLabels)-1)]
	return PasswordStrength{Score: score, Label: label}, nil
}

// ValidEmail reports whether email has the local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidUsernameChars reports whether username uses only letters, digits and underscore.
func ValidUsernameChars(username string) bool {
	return usernamePattern.MatchString(username)
}
