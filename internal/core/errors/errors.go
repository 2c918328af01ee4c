package errors

const (
	HttpInternalError       = "internal_error"
	HttpInvalidJsonError    = "invalid_json"
	HttpMalformedQueryError = "malformed_query"
	HttpExecutionError      = "execution_failed"
)

// ErrorResponse is the error response body for query API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
