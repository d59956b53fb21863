package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"evalgo.org/muxsite/auth"
	"evalgo.org/muxsite/internal/notify"
	"evalgo.org/muxsite/internal/storage"
)

// cliScope is the storage scope of the local profile
const cliScope = "cli"

// profile is a local session profile used by the session commands
type profile struct {
	backend  storage.Backend
	manager  *auth.Manager
	oauth    *auth.OAuthFlow
	pages    auth.Pages
	notices  notify.Presenter
	audit    *auth.AuditLogger
	oauthURL string
}

// openProfile opens the file backed profile in profile.dir
func openProfile(cfg Config, out io.Writer, logger logrus.FieldLogger) (*profile, error) {
	backend, err := storage.NewFileBackend(cfg.Profile.Dir, storage.WithFileLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open profile %s: %w", cfg.Profile.Dir, err)
	}
	store, err := backend.Scope(cliScope)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	audit, err := auth.NewAuditLogger(cfg.Profile.Dir, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	manager := auth.NewManager(store, auth.WithLogger(logger), auth.WithObserver(audit))
	return &profile{
		backend:  backend,
		manager:  manager,
		oauth:    auth.NewOAuthFlow(cfg.stubProvider(), manager),
		pages:    cfg.Pages,
		notices:  notify.Writer{W: out},
		audit:    audit,
		oauthURL: cfg.Server.PublicURL,
	}, nil
}

func (p *profile) Close() error {
	return p.backend.Close()
}

// withProfile loads the configuration, opens the profile and runs fn
func withProfile(cmd *cobra.Command, fn func(ctx context.Context, p *profile) error) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := log.WithField("profile", cfg.Profile.Dir)

	p, err := openProfile(cfg, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	ctx := auth.WithRequestInfo(cmd.Context(), auth.RequestInfo{Scope: cliScope, UserAgent: "muxsite-cli/" + version})
	return fn(ctx, p)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the local session profile",
	Long: `Log in, log out and inspect a session stored in a local profile directory.

The profile behaves like one browser: it keeps the session, registered users
and the audit trail of the commands run against it.

Examples:
  # Log in as the demo admin
  muxsite session login --username admin

  # Show the session as YAML
  muxsite session status --output yaml

  # Complete a Discord login with a callback URL
  muxsite session oauth-callback "http://localhost:8080/auth/login?code=abc"`,
}

var sessionLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with a username and password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		return withProfile(cmd, func(ctx context.Context, p *profile) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			var err error
			if username == "" {
				if username, err = promptText(reader, "Username", cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = promptPassword(reader, "Password", cmd.ErrOrStderr()); err != nil {
					return err
				}
			}

			session, err := p.manager.Login(ctx, username, password)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidCredentials) {
					_ = p.notices.Present(ctx, notify.Error(msgInvalidCredentials))
				}
				return err
			}
			return p.notices.Present(ctx, notify.Success(fmt.Sprintf("Logged in as %s (%s), landing page %s", session.DisplayName, session.Role, p.pages.LandingFor(session.Role))))
		})
	},
}

var sessionLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Erase the session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withProfile(cmd, func(ctx context.Context, p *profile) error {
			if err := p.manager.Logout(ctx); err != nil {
				return err
			}
			return p.notices.Present(ctx, notify.Success(msgLoggedOut))
		})
	},
}

// statusView is the printable session status
type statusView struct {
	State       string     `json:"state" yaml:"state"`
	Username    string     `json:"username,omitempty" yaml:"username,omitempty"`
	Name        string     `json:"name,omitempty" yaml:"name,omitempty"`
	Email       string     `json:"email,omitempty" yaml:"email,omitempty"`
	Role        string     `json:"role,omitempty" yaml:"role,omitempty"`
	LoginMethod string     `json:"login_method,omitempty" yaml:"login_method,omitempty"`
	LoginTime   *time.Time `json:"login_time,omitempty" yaml:"login_time,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

func newStatusView(state auth.State, s *auth.Session) statusView {
	v := statusView{State: state.String()}
	if s != nil {
		expires := s.ExpiresAt()
		login := s.LoginTime
		v.Username = s.SubjectID
		v.Name = s.DisplayName
		v.Email = s.Email
		v.Role = string(s.Role)
		v.LoginMethod = string(s.LoginMethod)
		v.LoginTime = &login
		v.ExpiresAt = &expires
	}
	return v
}

// writeStatus prints v as json, yaml or a short text line
func writeStatus(w io.Writer, v statusView, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	case "", "text":
		if v.Username == "" {
			_, err := fmt.Fprintln(w, v.State)
			return err
		}
		_, err := fmt.Fprintf(w, "%s: %s (%s) via %s, expires %s\n", v.State, v.Username, v.Role, v.LoginMethod, v.ExpiresAt.Format(time.RFC3339))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("output")
		return withProfile(cmd, func(ctx context.Context, p *profile) error {
			state, session := p.manager.Inspect(ctx)
			if state == auth.StateExpired {
				_ = p.notices.Present(ctx, notify.Warning(auth.MessageSessionExpired))
			}
			return writeStatus(cmd.OutOrStdout(), newStatusView(state, session), format)
		})
	},
}

var sessionRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a user in the profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		form := auth.RegistrationForm{}
		form.FullName, _ = cmd.Flags().GetString("fullname")
		form.Email, _ = cmd.Flags().GetString("email")
		form.Username, _ = cmd.Flags().GetString("username")
		form.AcceptTerms, _ = cmd.Flags().GetBool("accept-terms")

		return withProfile(cmd, func(ctx context.Context, p *profile) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			var err error
			if form.Password, err = promptPassword(reader, "Password", cmd.ErrOrStderr()); err != nil {
				return err
			}
			if form.ConfirmPassword, err = promptPassword(reader, "Confirm password", cmd.ErrOrStderr()); err != nil {
				return err
			}
			if strength, err := auth.EvaluatePassword(form.Password); err == nil {
				_ = p.notices.Present(ctx, notify.Info(fmt.Sprintf("Password strength: %s (%d/5)", strength.Label, strength.Score)))
			}

			if _, err := p.manager.Register(ctx, form); err != nil {
				if msg := validationMessage(err); msg != "" {
					_ = p.notices.Present(ctx, notify.Error(msg))
				}
				return err
			}
			return p.notices.Present(ctx, notify.Success(msgRegistered))
		})
	},
}

var sessionOAuthURLCmd = &cobra.Command{
	Use:   "oauth-url",
	Short: "Print the Discord authorization URL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		origin, _ := cmd.Flags().GetString("origin")
		return withProfile(cmd, func(_ context.Context, p *profile) error {
			if origin == "" {
				origin = p.oauthURL
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), p.oauth.AuthorizationURL(origin))
			return err
		})
	},
}

var sessionOAuthCallbackCmd = &cobra.Command{
	Use:   "oauth-callback <callback-url>",
	Short: "Complete a Discord login from its callback URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		callback, err := url.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid callback URL: %w", err)
		}
		return withProfile(cmd, func(ctx context.Context, p *profile) error {
			session, _, err := p.oauth.HandleCallback(ctx, callback)
			if err != nil {
				_ = p.notices.Present(ctx, notify.Error(msgDiscordFailed))
				return err
			}
			if session == nil {
				return fmt.Errorf("callback URL has no code parameter")
			}
			return p.notices.Present(ctx, notify.Success(fmt.Sprintf("Logged in as %s via Discord", session.DisplayName)))
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLoginCmd, sessionLogoutCmd, sessionStatusCmd, sessionRegisterCmd, sessionOAuthURLCmd, sessionOAuthCallbackCmd)

	sessionCmd.PersistentFlags().String("profile", "", "profile directory (default is $HOME/.muxsite)")
	_ = viper.BindPFlag("profile.dir", sessionCmd.PersistentFlags().Lookup("profile"))

	sessionLoginCmd.Flags().StringP("username", "u", "", "username (prompted when empty)")
	sessionLoginCmd.Flags().String("password", "", "password (prompted without echo when empty)")

	sessionStatusCmd.Flags().StringP("output", "o", "text", "Output format. One of 'text', 'yaml' or 'json'.")

	sessionRegisterCmd.Flags().String("fullname", "", "full name")
	sessionRegisterCmd.Flags().String("email", "", "email address")
	sessionRegisterCmd.Flags().String("username", "", "username")
	sessionRegisterCmd.Flags().Bool("accept-terms", false, "accept the terms of use")

	sessionOAuthURLCmd.Flags().String("origin", "", "origin of the callback (default is server.public_url)")
}

