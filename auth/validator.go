package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"evalgo.org/muxsite/internal/domain"
)

// ErrInvalidCredentials is the only detail a failed login exposes
var ErrInvalidCredentials = errors.New("invalid username or password")

// Registration rejection reasons, in the order they are checked
const (
	ReasonFullNameTooShort     = "fullname-too-short"
	ReasonEmailInvalid         = "email-invalid"
	ReasonUsernameTooShort     = "username-too-short"
	ReasonUsernameInvalidChars = "username-invalid-chars"
	ReasonUsernameTaken        = "username-taken"
	ReasonPasswordTooShort     = "password-too-short"
	ReasonPasswordMismatch     = "password-mismatch"
	ReasonTermsNotAccepted     = "terms-not-accepted"
	ReasonEmailTaken           = "email-taken"
)

// Validator checks credentials against the demo and registered directories.
type Validator struct {
	directory *UserDirectory
	now       func() time.Time
}

// NewValidator creates a validator over a registered-user directory.
// A nil clock defaults to time.Now.
func NewValidator(directory *UserDirectory, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{directory: directory, now: now}
}

// Validate returns the account matching username and password.
// The demo directory is consulted first and wins on a name collision.
func (v *Validator) Validate(ctx context.Context, username, password string) (*Account, error) {
	username = strings.TrimSpace(username)
	key := strings.ToLower(username)

	if demo, ok := demoDirectory[key]; ok {
		if demo.password != password {
			return nil, ErrInvalidCredentials
		}
		return &Account{Username: username, Name: demo.name, Email: demo.email, Role: demo.role}, nil
	}

	user, err := v.directory.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || user.Password != password {
		return nil, ErrInvalidCredentials
	}

	role := user.Role
	if role == "" {
		role = RoleUser
	}
	return &Account{Username: username, Name: user.Name, Email: user.Email, Role: role}, nil
}

// UsernameTaken reports whether username exists in either directory, ignoring case.
func (v *Validator) UsernameTaken(ctx context.Context, username string) (bool, error) {
	key := strings.ToLower(strings.TrimSpace(username))
	if _, ok := demoDirectory[key]; ok {
		return true, nil
	}
	user, err := v.directory.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// EmailTaken reports whether email belongs to a demo or registered account.
func (v *Validator) EmailTaken(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	for _, demo := range demoDirectory {
		if demo.email == email {
			return true, nil
		}
	}

	users, err := v.directory.Load(ctx)
	if err != nil {
		return false, err
	}
	for _, user := range users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// ValidateRegistration checks the form rule by rule and reports the first
// failure as a *domain.ValidationError.
func (v *Validator) ValidateRegistration(ctx context.Context, form RegistrationForm) error {
	form = form.normalized()

	if utf8.RuneCountInString(form.FullName) < MinFullNameLength {
		return domain.NewValidationError("fullname", ReasonFullNameTooShort, "Full name must be at least 2 characters.")
	}
	if !ValidEmail(form.Email) {
		return domain.NewValidationError("email", ReasonEmailInvalid, "Please enter a valid email address.")
	}
	if utf8.RuneCountInString(form.Username) < MinUsernameLength {
		return domain.NewValidationError("username", ReasonUsernameTooShort, "Username must be at least 3 characters.")
	}
	if !ValidUsernameChars(form.Username) {
		return domain.NewValidationError("username", ReasonUsernameInvalidChars, "Username may only contain letters, digits and _.")
	}

	taken, err := v.UsernameTaken(ctx, form.Username)
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return domain.NewValidationError("username", ReasonUsernameTaken, "This username is already taken.")
	}

	if utf8.RuneCountInString(form.Password) < MinPasswordLength {
		return domain.NewValidationError("password", ReasonPasswordTooShort, "Password must be at least 6 characters.")
	}
	if form.Password != form.ConfirmPassword {
		return domain.NewValidationError("confirmPassword", ReasonPasswordMismatch, "Passwords do not match.")
	}
	if !form.AcceptTerms {
		return domain.NewValidationError("terms", ReasonTermsNotAccepted, "You must accept the terms of use.")
	}

	taken, err = v.EmailTaken(ctx, form.Email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return domain.NewValidationError("email", ReasonEmailTaken, "This email address is already registered.")
	}

	return nil
}

// Register validates the form and appends the new user to the directory.
func (v *Validator) Register(ctx context.Context, form RegistrationForm) (*RegisteredUser, error) {
	if err := v.ValidateRegistration(ctx, form); err != nil {
		return nil, err
	}
	form = form.normalized()

	user := RegisteredUser{
		Name:         form.FullName,
		Email:        form.Email,
		Password:     form.Password,
		Role:         RoleUser,
		RegisteredAt: v.now(),
	}
	if err := v.directory.Add(ctx, form.Username, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, domain.NewValidationError("username", ReasonUsernameTaken, "This username is already taken.")
		}
		return nil, err
	}
	return &user, nil
}

// ValidationReason extracts the rejection reason from err, or "".
func ValidationReason(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}

func (f RegistrationForm) normalized() RegistrationForm {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.TrimSpace(f.Email)
	f.Username = strings.TrimSpace(f.Username)
	return f
}
