package gateway

import (
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// APIError is the JSON error envelope the gateway returns for any
// failed request.
type APIError struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails carries the machine-readable code and human-readable
// message, plus request correlation fields.
type ErrorDetails struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId"`
	Timestamp string         `json:"timestamp"`
	Path      string         `json:"path"`
}

// convertGRPCError maps a planner-service gRPC error onto an HTTP status
// and the JSON error envelope. Only the codes the planner service
// actually emits get their own mapping; everything else is a 500.
func convertGRPCError(err error, requestID, path string) (int, *APIError) {
	httpStatus := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.InvalidArgument:
			httpStatus = http.StatusBadRequest
			code = "INVALID_PARAMETERS"
			message = describeValidation(s.Message())
		case codes.DeadlineExceeded:
			httpStatus = http.StatusGatewayTimeout
			code = "REQUEST_TIMEOUT"
			message = "planning run timed out"
		case codes.Canceled:
			httpStatus = http.StatusRequestTimeout
			code = "REQUEST_CANCELLED"
			message = "planning run was cancelled"
		case codes.Unavailable:
			httpStatus = http.StatusServiceUnavailable
			code = "SERVICE_UNAVAILABLE"
			message = "planner service is temporarily unavailable"
		default:
			message = s.Message()
		}
	}

	return httpStatus, &APIError{
		Error: ErrorDetails{
			Code:      code,
			Message:   message,
			RequestID: requestID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Path:      path,
		},
	}
}

// describeValidation points the caller at which request field failed,
// when the upstream message names one.
func describeValidation(original string) string {
	lower := strings.ToLower(original)
	switch {
	case strings.Contains(lower, "programs_csv"):
		return "programs_csv must be a non-empty CSV table with a header row"
	case strings.Contains(lower, "schedule_csv"):
		return "schedule_csv must be a non-empty CSV table with a header row"
	case strings.Contains(lower, "obs_csv"):
		return "obs_csv must be a non-empty CSV table with a header row"
	case strings.Contains(lower, "weights_yaml"):
		return "weights_yaml must be valid YAML matching the weights/limits schema"
	default:
		return original
	}
}
