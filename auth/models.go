package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the authorization tier of a session
type Role string

// Role constants
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// LoginMethod records how a session was created. It is informational only.
type LoginMethod string

const (
	LoginMethodPassword      LoginMethod = "password"
	LoginMethodExternalOAuth LoginMethod = "external-oauth"
)

// Storage keys inside a scope
const (
	SessionKey   = "muxAuth"
	DirectoryKey = "muxUsers"
)

// SessionLifetime is how long a session stays valid after login
const SessionLifetime = 24 * time.Hour

// Session is the single record describing who is logged in.
// The JSON layout is what gets persisted under SessionKey.
type Session struct {
	SubjectID   string      `json:"username"`
	Role        Role        `json:"role"`
	DisplayName string      `json:"name"`
	Email       string      `json:"email"`
	LoginTime   time.Time   `json:"loginTime"`
	LoginMethod LoginMethod `json:"loginMethod"`
}

// ValidAt reports whether the session is still inside its lifetime at now.
func (s Session) ValidAt(now time.Time) bool {
	return now.Sub(s.LoginTime) < SessionLifetime
}

// ExpiresAt returns the first instant at which the session is no longer valid.
func (s Session) ExpiresAt() time.Time {
	return s.LoginTime.Add(SessionLifetime)
}

// RegisteredUser is one entry of the registered-user directory
type RegisteredUser struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Password     string    `json:"password"`
	Role         Role      `json:"role"`
	RegisteredAt time.Time `json:"registerDate"`
}

// Account is a successfully validated identity, password stripped.
type Account struct {
	Username string
	Name     string
	Email    string
	Role     Role
}

// Identity is what an external identity provider vouches for.
type Identity struct {
	SubjectID   string
	DisplayName string
	Email       string
	Role        Role
}

// RegistrationForm carries the fields of the registration page.
type RegistrationForm struct {
	FullName        string `json:"fullname" form:"fullname"`
	Email           string `json:"email" form:"email"`
	Username        string `json:"username" form:"username"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
	AcceptTerms     bool   `json:"terms" form:"terms"`
}

// demoAccount is a built-in account available without registration
type demoAccount struct {
	password string
	role     Role
	name     string
	email    string
}

// demoDirectory holds the fixed demo accounts, keyed by lowercase username.
var demoDirectory = map[string]demoAccount{
	"admin": {
		password: "admin123",
		role:     RoleAdmin,
		name:     "Admin",
		email:    "admin@muxeditor.com",
	},
	"user": {
		password: "user123",
		role:     RoleUser,
		name:     "Test User",
		email:    "user@muxeditor.com",
	},
}

// ScopeClaims is the signed payload of the scope cookie.
// It names the storage scope that plays the part of the browser's local storage.
type ScopeClaims struct {
	ScopeID string `json:"sid"`
	jwt.RegisteredClaims
}

// DemoCredentials returns the username and password of the demo account name,
// for the login page fill helpers.
func DemoCredentials(name string) (username, password string, ok bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	demo, ok := demoDirectory[key]
	if !ok {
		return "", "", false
	}
	return key, demo.password, true
}
