// Package middleware предоставляет Gin middleware общего назначения:
// восстановление после паники, структурированное логирование запросов и
// распространение trace_id/correlation_id через контекст.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/orderfulfillment/pkg/logger"
)

const (
	// HeaderTraceID — заголовок с идентификатором трейса запроса.
	HeaderTraceID = "X-Trace-Id"
	// HeaderCorrelationID — заголовок, связывающий несколько запросов одной
	// бизнес-операции.
	HeaderCorrelationID = "X-Correlation-Id"
)

// Recovery перехватывает панику в HTTP handler, логирует stack trace и
// отвечает 500, не раскрывая деталей паники клиенту.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log := logger.FromContext(c.Request.Context())
				log.Error().
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Str("path", c.Request.URL.Path).
					Msg("Перехвачена паника в HTTP handler")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "internal_error",
					"message": "Внутренняя ошибка сервера",
				})
			}
		}()
		c.Next()
	}
}

// TraceContext извлекает trace_id/correlation_id из заголовков запроса (или
// генерирует новые UUID), кладёт их в context.Context и отражает их в
// заголовках ответа.
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		ctx := logger.NewContextWithIDs(c.Request.Context(), traceID, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set(HeaderTraceID, traceID)
		c.Writer.Header().Set(HeaderCorrelationID, correlationID)

		c.Next()
	}
}

// RequestLogging логирует каждый HTTP-запрос с длительностью и статусом.
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log := logger.FromContext(c.Request.Context())

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Получен HTTP запрос")

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("HTTP запрос обработан")
	}
}
