package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
)

// QueryParamValidator checks query parameters against validator tags.
type QueryParamValidator struct {
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewQueryParamValidator creates a validator writing failures through
// errorHandler.
func NewQueryParamValidator(logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *QueryParamValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryParamValidator{
		validate:     validator.New(),
		logger:       logger.With(slog.String("component", "query_validator")),
		errorHandler: errorHandler,
	}
}

// ValidateEnum returns the parameter value, or defaultValue when absent. It
// writes a 400 problem and returns false when the value is not allowed.
func (v *QueryParamValidator) ValidateEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		return defaultValue, true
	}
	if err := v.validate.Var(value, "oneof="+strings.Join(allowed, " ")); err != nil {
		v.logger.DebugContext(r.Context(), "query parameter rejected",
			slog.String("param", param),
			slog.String("value", value))
		v.errorHandler.HandleError(w, r, apperrors.InvalidParameterError(param,
			param+" must be one of: "+strings.Join(allowed, ", ")))
		return "", false
	}
	return value, true
}
