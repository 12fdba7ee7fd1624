package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/pkg/logger"
)

// ErrorResponse is the JSON body returned for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// kindStatus maps an apperr.Kind to the HTTP status this system's external
// interface assigns it.
var kindStatus = map[apperr.Kind]int{
	apperr.KindValidationFailure:       http.StatusBadRequest,
	apperr.KindNotFound:                http.StatusNotFound,
	apperr.KindInsufficientInventory:   http.StatusBadRequest,
	apperr.KindConcurrencyConflict:     http.StatusConflict,
	apperr.KindDuplicateOperation:      http.StatusConflict,
	apperr.KindPaymentVerificationFail: http.StatusUnprocessableEntity,
	apperr.KindExternalServiceError:    http.StatusBadGateway,
	apperr.KindSignatureFailure:        http.StatusBadRequest,
	apperr.KindFatalInternal:           http.StatusInternalServerError,
}

// HandleError writes the HTTP response for err, logging 5xx-class failures
// as errors and everything else as a warning — a nil err is a caller bug,
// logged loudly and mapped to 500 rather than silently producing a 200.
func HandleError(c *gin.Context, err error, method string) {
	if err == nil {
		logger.FromContext(c.Request.Context()).Error().
			Str("method", method).
			Msg("HandleError вызван с nil ошибкой — ошибка в коде вызывающего")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "внутренняя ошибка сервера"})
		return
	}

	kind := apperr.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	log := logger.FromContext(c.Request.Context())
	event := log.Warn()
	if status >= 500 {
		event = log.Error()
	}
	event.Err(err).Str("method", method).Str("kind", string(kind)).Msg("Запрос завершился ошибкой")

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "внутренняя ошибка сервера"
	}
	c.JSON(status, ErrorResponse{Error: string(kind), Message: message})
}
