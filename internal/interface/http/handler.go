package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/oaracle/oaracle/internal/domain/conditions"
)

const healthServiceName = "Oaracle Conditions API"

// Handler wires the HTTP transport to the conditions service.
type Handler struct {
	svc    conditions.Service
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(svc conditions.Service, clock clockwork.Clock, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		clock:  clock,
		logger: logger.With("component", "http.handler"),
	}
}

// Conditions returns the current conditions, forecast and score for a coordinate pair.
func (h *Handler) Conditions(c *gin.Context) {
	var req conditions.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", bindingMessage(err), err))
		return
	}

	resp, err := h.svc.Conditions(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, serviceError(err, "conditions_failed"))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Score computes a rowability score from readings supplied in the body.
func (h *Handler) Score(c *gin.Context) {
	var req conditions.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", bindingMessage(err), err))
		return
	}

	result, err := h.svc.Score(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, serviceError(err, "score_failed"))
		return
	}

	c.JSON(http.StatusOK, result)
}

// Location returns a stored location with its history.
func (h *Handler) Location(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "location id must be a positive integer", err))
		return
	}

	detail, err := h.svc.Location(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, serviceError(err, "location_failed"))
		return
	}

	c.JSON(http.StatusOK, detail)
}

// Health reports liveness with the service name.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": h.clock.Now().UTC(),
		"service":   healthServiceName,
	})
}

// Ready reports whether the repository is reachable.
func (h *Handler) Ready(c *gin.Context) {
	if err := h.svc.Ready(c.Request.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		abortWithError(c, NewHTTPError(http.StatusServiceUnavailable, "not_ready", "storage unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func bindingMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		messages := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			messages = append(messages, fieldMessage(fe))
		}
		return strings.Join(messages, "; ")
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("%s must be a %s", typeErr.Field, expectedType(typeErr))
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "request body is not valid JSON"
	}
	return errMessage(err)
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "latitude":
		return field + " must be between -90 and 90"
	case "longitude":
		return field + " must be between -180 and 180"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// jsonFieldName maps a Go field name such as DaysAhead to days_ahead.
func jsonFieldName(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func expectedType(err *json.UnmarshalTypeError) string {
	switch err.Type.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return "number"
	case reflect.Bool:
		return "boolean"
	}
	return err.Type.String()
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
