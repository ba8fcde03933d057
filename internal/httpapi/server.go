// Package httpapi exposes the engine as a JSON API on echo. Every workflow
// answers with its Result envelope; the envelope code is the HTTP status.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/authkit"
	"github.com/MrEthical07/authkit/captcha"
	authprom "github.com/MrEthical07/authkit/metrics/export/prometheus"
	authmw "github.com/MrEthical07/authkit/middleware"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nrednav/cuid2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TokenHeader carries the anti-forgery token of mutating requests.
const TokenHeader = "X-Authkit-Token"

type Options struct {
	Logger *zap.Logger
	// Captcha issues challenges for the captcha endpoint. Nil disables it.
	Captcha *captcha.SessionValidator
	// RateLimit is the per-IP request rate. Zero disables the limiter.
	RateLimit rate.Limit
	RateBurst int
	BodyLimit string
}

type Server struct {
	engine  *authkit.Engine
	captcha *captcha.SessionValidator
	logger  *zap.Logger
	echo    *echo.Echo
}

// New builds the server and registers every route.
func New(engine *authkit.Engine, opts Options) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bodyLimit := opts.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "1M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := prometheus.NewRegistry()
	httpMetrics, err := echoprometheus.MiddlewareConfig{
		Subsystem:  "authkit_http",
		Registerer: registry,
	}.ToMiddleware()
	if err != nil {
		return nil, err
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	e.Use(httpMetrics)
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = int(opts.RateLimit) + 1
		}
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics" || c.Path() == "/metrics/http"
			},
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      opts.RateLimit,
				Burst:     burst,
				ExpiresIn: 3 * time.Minute,
			}),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return c.RealIP(), nil
			},
			DenyHandler: func(c echo.Context, _ string, _ error) error {
				return c.JSON(http.StatusTooManyRequests, authkit.NewResult().Fail(http.StatusTooManyRequests, "too many requests"))
			},
		}))
	}

	s := &Server{
		engine:  engine,
		captcha: opts.Captcha,
		logger:  logger.Named("httpapi"),
		echo:    e,
	}
	e.HTTPErrorHandler = s.handleError

	e.GET("/metrics", echo.WrapHandler(authprom.New(engine).Handler()))
	e.GET("/metrics/http", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: registry}))
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	session := echo.WrapMiddleware(authmw.Session(s.engine, s.logger))
	loggedIn := echo.WrapMiddleware(authmw.RequireSession(s.engine))
	admin := echo.WrapMiddleware(authmw.RequireAdmin(s.engine))

	api := s.echo.Group("/api", session)

	api.GET("/token/:scope", s.issueToken)
	api.GET("/captcha/:scope", s.issueCaptcha)
	api.GET("/session", s.checkSession)
	api.POST("/login", s.login)
	api.POST("/login/cookie", s.loginWithCookie)
	api.POST("/logout", s.logout)

	api.POST("/register", s.register)
	api.GET("/register/verify/:id/:hash", s.verifyRegistration)
	api.GET("/invitation/:id/:hash", s.verifyInvitation)
	api.POST("/invitation/complete", s.completeRegistration)
	api.POST("/recovery", s.requestRecovery)
	api.GET("/recovery/:name/:hash", s.verifyResetLink)
	api.POST("/recovery/reset", s.resetPassword)

	account := api.Group("/account", loggedIn)
	account.PUT("/name", s.editName)
	account.PUT("/email", s.editEmail)
	account.PUT("/password", s.changePassword)
	account.PUT("/avatar", s.setAvatar)
	account.DELETE("/avatar", s.deleteAvatar)

	settings := api.Group("/users/:id/settings", loggedIn)
	settings.GET("", s.listSettings)
	settings.POST("/reset", s.resetSettings)
	settings.GET("/:key", s.getSetting)
	settings.PUT("/:key", s.putSetting)
	settings.DELETE("/:key", s.deleteSetting)

	adm := api.Group("/admin", loggedIn, admin)
	adm.GET("/users", s.listUsers)
	adm.POST("/users", s.createUser)
	adm.POST("/invitations", s.inviteUser)
	adm.PUT("/users/:id/suspension", s.suspendUser)
	adm.PUT("/users/:id/type", s.changeAccountType)
	adm.DELETE("/users/:id", s.deleteUser)
	adm.POST("/users/:id/restore", s.restoreUser)
}

// ServeHTTP lets the server be mounted or driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// respond writes res. Infrastructure errors go to handleError.
func (s *Server) respond(c echo.Context, res *authkit.Result, err error) error {
	if err != nil {
		return err
	}
	return c.JSON(res.Code, res)
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)
	}
	if err := c.JSON(code, authkit.NewResult().Fail(code, msg)); err != nil {
		s.logger.Warn("write error response", zap.Error(err))
	}
}

// client returns the engine client loaded by the session middleware.
func client(c echo.Context) (*authkit.Client, error) {
	cl, ok := authmw.ClientFromContext(c.Request().Context())
	if !ok {
		return nil, errors.New("session middleware not installed")
	}
	return cl, nil
}

func token(c echo.Context) string {
	return c.Request().Header.Get(TokenHeader)
}
