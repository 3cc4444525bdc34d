package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/repocerti-api/pkg/config"
	"github.com/noah-isme/repocerti-api/pkg/middleware/requestid"
)

// New builds the service logger from configuration.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("store", cfg.Store.Driver)), nil
}

// Option customises GinMiddleware.
type Option func(*middlewareOptions)

type middlewareOptions struct {
	skip   map[string]struct{}
	fields []func(*gin.Context) []zap.Field
}

// WithSkipPaths suppresses access lines for routes such as health checks that
// would otherwise dominate the log.
func WithSkipPaths(paths ...string) Option {
	return func(o *middlewareOptions) {
		for _, p := range paths {
			if p = strings.TrimSpace(p); p != "" {
				o.skip[p] = struct{}{}
			}
		}
	}
}

// WithFields appends request-scoped fields computed after the handler ran.
func WithFields(fn func(*gin.Context) []zap.Field) Option {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.fields = append(o.fields, fn)
		}
	}
}

// GinMiddleware logs one line per request. 4xx responses are logged at warn
// level and 5xx responses at error level.
func GinMiddleware(l *zap.Logger, opts ...Option) gin.HandlerFunc {
	o := &middlewareOptions{skip: make(map[string]struct{})}
	for _, opt := range opts {
		opt(o)
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if _, ok := o.skip[c.Request.URL.Path]; ok && status < http.StatusInternalServerError {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		for _, fn := range o.fields {
			fields = append(fields, fn(c)...)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			l.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			l.Warn("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}
