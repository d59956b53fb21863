package cmd

// This file contains Swagger/OpenAPI documentation annotations for the JSON API.
// The actual handler implementations are in api_handlers.go.

// @title MUX Site API
// @version 1.0
// @description Session, registration and admin catalog API of the MUX site.
// @BasePath /

// Health endpoint
// @Summary Health check
// @Description Returns the health status of the service
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "status: healthy"
// @Router /health [get]
func swaggerHealthCheck() {}

// Session state
// @Summary Current session state
// @Description Reports anonymous, authenticated or expired. An expired session is erased by this call.
// @Tags Session
// @Produce json
// @Success 200 {object} SessionResponse
// @Router /api/session [get]
func swaggerSession() {}

// Password login
// @Summary Password login
// @Description Authenticate against the demo and registered accounts of this browser scope
// @Tags Session
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login credentials"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} ErrorResponse "Missing credentials"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Router /api/login [post]
func swaggerLogin() {}

// Logout
// @Summary Logout
// @Description Erase the session whether or not it is still valid
// @Tags Session
// @Produce json
// @Success 200 {object} SessionResponse
// @Router /api/logout [post]
func swaggerLogout() {}

// Registration
// @Summary Register a user
// @Description Validate the form rule by rule and store the user in this browser scope
// @Tags Session
// @Accept json
// @Produce json
// @Param form body auth.RegistrationForm true "Registration form"
// @Success 201 {object} RegisterResponse
// @Failure 422 {object} ErrorResponse "First failing rule"
// @Router /api/register [post]
func swaggerRegister() {}

// Password strength
// @Summary Score a password
// @Description Score 0-5 with a label; passwords shorter than 6 characters are rejected before scoring
// @Tags Session
// @Accept json
// @Produce json
// @Param password body StrengthRequest true "Password"
// @Success 200 {object} StrengthResponse
// @Failure 422 {object} ErrorResponse "Password too short"
// @Router /api/password-strength [post]
func swaggerPasswordStrength() {}

// Discord authorization URL
// @Summary Discord authorization URL
// @Description The URL the viewer is sent to for Discord login, redirecting back to the login page
// @Tags Session
// @Produce json
// @Success 200 {object} map[string]string "url"
// @Router /api/oauth/url [get]
func swaggerOAuthURL() {}

// Record a sale
// @Summary Record a sale
// @Description Append a sale to the ledger of this browser scope
// @Tags Catalog
// @Accept json
// @Produce json
// @Param sale body catalog.Sale true "Sale"
// @Success 201 {object} catalog.Sale
// @Failure 401 {object} ErrorResponse "Not logged in"
// @Failure 422 {object} ErrorResponse "Invalid sale"
// @Router /api/sales [post]
func swaggerSales() {}

// Search audit log
// @Summary Search the audit log
// @Description Lifecycle events of every scope, most recent first. Admin only.
// @Tags Audit
// @Produce json
// @Param start_date query string false "First day (YYYY-MM-DD), default 7 days ago"
// @Param end_date query string false "Last day (YYYY-MM-DD), default today"
// @Param username query string false "Username"
// @Param action query string false "Action, e.g. login or login_failed"
// @Param scope query string false "Storage scope id"
// @Param success query bool false "Outcome"
// @Success 200 {object} AuditResponse
// @Failure 400 {object} ErrorResponse "Invalid date"
// @Failure 401 {object} ErrorResponse "Not logged in"
// @Failure 403 {object} ErrorResponse "Not an admin"
// @Router /api/audit [get]
func swaggerAudit() {}

// Rotate audit log
// @Summary Archive and prune the audit log
// @Description Compress old daily logs into weekly archives and delete what is past retention
// @Tags Audit
// @Produce json
// @Success 200 {object} RotationResponse
// @Failure 401 {object} ErrorResponse "Not logged in"
// @Failure 403 {object} ErrorResponse "Not an admin"
// @Router /api/audit/rotate [post]
func swaggerAuditRotate() {}
