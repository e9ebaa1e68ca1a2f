package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"narrative-timeline/backend/internal/auth"
	"narrative-timeline/backend/internal/logging"
)

// RouterOptions configures the HTTP surface around the timeline handlers.
type RouterOptions struct {
	CORSOrigins []string
	// Auth guards /api. Nil means every request is anonymous.
	Auth         *auth.Auth
	OIDCIssuer   string
	OIDCClientID string
	// MCP, when set, is mounted under /mcp/*.
	MCP http.Handler
}

// NewRouter builds the echo instance serving the REST API, docs and MCP.
func NewRouter(s *Server, opts RouterOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = problemErrorHandler(s.logger)

	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(serviceName))
	e.Use(requestLogger(s.logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	e.GET("/health", s.HandleHealth)

	e.GET("/openapi.yaml", echo.WrapHandler(SpecHandler(opts.OIDCIssuer)))
	e.GET("/docs", echo.WrapHandler(SwaggerHandler(opts.OIDCClientID)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(http.HandlerFunc(OAuthRedirectHandler)))

	apiGroup := e.Group("/api/timelines")
	var readScope, writeScope []echo.MiddlewareFunc
	if opts.Auth != nil {
		apiGroup.Use(echo.WrapMiddleware(opts.Auth.RequireAuth))
		readScope = append(readScope, echo.WrapMiddleware(opts.Auth.RequireScope(auth.ScopeTimelinesRead)))
		writeScope = append(writeScope, echo.WrapMiddleware(opts.Auth.RequireScope(auth.ScopeTimelinesWrite)))
		if opts.Auth.Enabled() {
			e.GET("/login", echo.WrapHandler(http.HandlerFunc(opts.Auth.LoginHandler)))
			e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(opts.Auth.CallbackHandler)))
			e.GET("/logout", echo.WrapHandler(http.HandlerFunc(opts.Auth.LogoutHandler)))
		}
	}
	apiGroup.POST("/create", s.CreateTimeline, writeScope...)
	apiGroup.GET("/:id", s.GetTimeline, readScope...)
	apiGroup.GET("/:id/status", s.GetTimelineStatus, readScope...)

	if opts.MCP != nil {
		e.Any("/mcp", echo.WrapHandler(opts.MCP))
		e.Any("/mcp/*", echo.WrapHandler(opts.MCP))
	}

	return e
}

func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				level = slog.LevelWarn
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
