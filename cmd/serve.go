package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	echoSwagger "github.com/swaggo/echo-swagger"

	"evalgo.org/muxsite/auth"
	_ "evalgo.org/muxsite/docs"
	"evalgo.org/muxsite/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MUX site web server",
	Long: `Start the web server with the login, registration, main menu and admin pages,
the JSON API, Prometheus metrics and Swagger documentation.

Every browser gets its own storage scope, named by a signed cookie. Sessions,
registered users, sales and XML file lists live in that scope.

Environment Variables (all configuration keys are accepted with the MUXSITE_ prefix):
  - MUXSITE_SERVER_PORT: Port to listen on (default: 8080)
  - MUXSITE_AUTH_SECRET: Scope cookie signing secret
  - MUXSITE_STORAGE_DRIVER: memory, file, badger, redis or sqlite
  - MUXSITE_TELEMETRY_ENABLED: Export traces over OTLP/HTTP`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("public-url", "", "Public URL of this site")
	serveCmd.Flags().Bool("telemetry", false, "Export traces over OTLP/HTTP")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.public_url", serveCmd.Flags().Lookup("public-url"))
	_ = viper.BindPFlag("telemetry.enabled", serveCmd.Flags().Lookup("telemetry"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"port":       cfg.Server.Port,
		"public_url": cfg.Server.PublicURL,
		"storage":    cfg.Storage.Driver,
		"telemetry":  cfg.Telemetry.Enabled,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, "muxsite", version, log)
		if err != nil {
			log.WithError(err).Warn("Tracing disabled")
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	app, err := InitializeApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	scheduler, err := app.startAuditRotation()
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	e := app.NewServer()

	go func() {
		log.WithField("addr", fmt.Sprintf(":%d", cfg.Server.Port)).Info("Starting HTTP server")
		if err := e.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// NewServer builds the echo server with every route registered.
func (a *App) NewServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(a.metrics.Middleware())
	e.Use(a.requestLogger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
	e.GET("/metrics", a.metrics.Handler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	site := e.Group("", a.ScopeMiddleware())
	pages := a.cfg.Pages

	site.GET("/", a.homeHandler, GuardMiddleware(auth.RequirePublic))
	site.GET(pages.Login, a.loginPageHandler)
	site.POST(pages.Login, a.loginHandler)
	site.GET(pages.Logout, a.logoutHandler)
	site.POST(pages.Logout, a.logoutHandler)
	site.GET("/auth/discord", a.discordLoginHandler)
	site.GET(pages.Register, a.registerPageHandler, GuardMiddleware(auth.AuthEntry))
	site.POST(pages.Register, a.registerHandler)
	site.GET(pages.Register+"/discord", a.discordRegisterHandler)

	site.GET(pages.Landing, a.mainMenuHandler, GuardMiddleware(auth.RequireAuthenticated))

	admin := site.Group(pages.Admin, GuardMiddleware(auth.RequireAdmin))
	admin.GET("", a.adminHandler)
	admin.POST("/xml", a.xmlUploadHandler)
	admin.POST("/xml/delete", a.xmlDeleteHandler)
	admin.POST("/sales/clear", a.salesClearHandler)
	admin.GET("/audit", a.auditPageHandler)
	admin.GET("/audit/archives/:name", a.auditArchiveHandler)

	api := site.Group("/api")
	api.GET("/session", a.apiSessionHandler)
	api.POST("/login", a.apiLoginHandler)
	api.POST("/logout", a.apiLogoutHandler)
	api.POST("/register", a.apiRegisterHandler)
	api.POST("/password-strength", a.apiPasswordStrengthHandler)
	api.GET("/oauth/url", a.apiOAuthURLHandler)
	api.POST("/sales", a.apiSalesHandler, APIAuthMiddleware(""))
	api.GET("/audit", a.apiAuditHandler, APIAuthMiddleware(auth.RoleAdmin))
	api.POST("/audit/rotate", a.apiAuditRotateHandler, APIAuthMiddleware(auth.RoleAdmin))

	return e
}

// requestLogger logs one line per request through logrus
func (a *App) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			entry := a.logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"remote_ip":  v.RemoteIP,
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("Request failed")
				return nil
			}
			entry.Debug("Request served")
			return nil
		},
	})
}

// startAuditRotation schedules archiving and pruning of the audit trail
func (a *App) startAuditRotation() (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(a.cfg.Audit.RotateSchedule, a.rotateAudit)
	if err != nil {
		return nil, fmt.Errorf("invalid audit.rotate_schedule %q: %w", a.cfg.Audit.RotateSchedule, err)
	}
	c.Start()
	return c, nil
}

func (a *App) rotateAudit() {
	if _, err := a.rotateAuditNow(); err != nil {
		a.logger.WithError(err).Error("Audit rotation failed")
	}
}

// rotateAuditNow archives daily logs older than audit.compress_after_days and
// deletes logs and archives older than audit.retention_days.
func (a *App) rotateAuditNow() (RotationResponse, error) {
	result, err := a.audit.ArchiveOldLogs(a.cfg.Audit.CompressAfter, a.cfg.Audit.RetentionDays)
	if err != nil {
		return RotationResponse{}, err
	}
	removed, err := a.audit.RotateOldLogs(a.cfg.Audit.RetentionDays)
	if err != nil {
		return RotationResponse{}, err
	}

	resp := RotationResponse{
		Compressed:      result.Compressed,
		ArchivesWritten: result.ArchivesWritten,
		ArchivesRemoved: result.ArchivesRemoved,
		LogsRemoved:     removed,
	}
	a.logger.WithFields(logrus.Fields{
		"compressed":       resp.Compressed,
		"archives_written": resp.ArchivesWritten,
		"archives_removed": resp.ArchivesRemoved,
		"logs_removed":     resp.LogsRemoved,
	}).Info("Audit trail rotated")
	return resp, nil
}
