package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Problem types served in ProblemDetails.Type.
const (
	TypeValidation  = "/errors/validation"
	TypeNotFound    = "/errors/not-found"
	TypeConflict    = "/errors/conflict"
	TypeRateLimited = "/errors/rate-limit-exceeded"
	TypeInternal    = "/errors/internal"
	TypeUpstream    = "/errors/upstream-unavailable"
	TypeTimeout     = "/errors/timeout"
	TypeContract    = "/errors/contract"
)

var (
	ErrReportNotFound = &APIError{Status: http.StatusNotFound, Code: "REPORT_NOT_FOUND", Message: "No report has been generated yet"}
	ErrScanRunning    = &APIError{Status: http.StatusConflict, Code: "SCAN_RUNNING", Message: "A scan is already in progress"}
)

// InvalidParameterError reports a rejected query parameter.
func InvalidParameterError(field, reason string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "INVALID_PARAMETER",
		Message: fmt.Sprintf("Invalid value for %s", field),
		Details: map[string]string{"field": field, "reason": reason},
	}
}

// ProblemDetails is an RFC 7807 error body.
type ProblemDetails struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Status    int               `json:"status"`
	Detail    string            `json:"detail,omitempty"`
	Instance  string            `json:"instance,omitempty"`
	ErrorCode string            `json:"error_code,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
}

// NewProblemDetails creates a problem body titled after the status code.
func NewProblemDetails(status int, problemType, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     problemType,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

// Render implements render.Renderer.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// appErrorProblems maps AppError types to responses. Types not listed are
// internal errors whose message is not exposed.
var appErrorProblems = map[ErrorType]struct {
	status int
	kind   string
}{
	ErrTypeContract:   {http.StatusInternalServerError, TypeContract},
	ErrTypeNetwork:    {http.StatusBadGateway, TypeUpstream},
	ErrTypeMarketData: {http.StatusBadGateway, TypeUpstream},
	ErrTypeParsing:    {http.StatusBadGateway, TypeUpstream},
}

var apiErrorProblems = map[int]string{
	http.StatusBadRequest:         TypeValidation,
	http.StatusNotFound:           TypeNotFound,
	http.StatusConflict:           TypeConflict,
	http.StatusTooManyRequests:    TypeRateLimited,
	http.StatusServiceUnavailable: TypeUpstream,
}
