package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DataTypeKey is the gin context key handlers set to the report they served.
	DataTypeKey = "data_type"
	// ReportSourceHeader tells clients whether a report came from the cache or disk.
	ReportSourceHeader = "X-Report-Source"
)

// Logger logs one line per request with the matched route and, for report
// requests, which report was served and where it came from.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		event := levelFor(status)
		event = event.
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("path", c.Request.URL.Path).
			Str("ip", c.ClientIP()).
			Int("status", status).
			Dur("latency", time.Since(start))

		if dataType := c.GetString(DataTypeKey); dataType != "" {
			event = event.Str("data_type", dataType)
		}
		if source := c.Writer.Header().Get(ReportSourceHeader); source != "" {
			event = event.Str("source", source)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("request served")
	}
}

func levelFor(status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest:
		return log.Warn()
	default:
		return log.Info()
	}
}

// Recovery recovers from panics and logs the error
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("path", c.Request.URL.Path).
					Msg("Recovered from panic")
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}
