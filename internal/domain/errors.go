package domain

// Problem types carried in APIError.Type
const (
	ErrorTypeBadRequest        = "bad_request"
	ErrorTypeValidation        = "validation_error"
	ErrorTypeUnauthorized      = "unauthorized"
	ErrorTypeForbidden         = "forbidden"
	ErrorTypeNotFound          = "not_found"
	ErrorTypeConflict          = "conflict"
	ErrorTypeInvalidTransition = "invalid_transition"
	ErrorTypeRateLimited       = "rate_limited"
	ErrorTypeInternal          = "internal_error"
)

// APIError is the problem document (RFC 7807) every failing endpoint returns.
// Errors is only set for validation failures and is keyed by JSON field name.
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return e.Title
	}
	return e.Detail
}

var validationMessages = map[string]string{
	"required": "This field is required",
	"email":    "Must be a valid email address",
	"min":      "Below minimum length",
	"max":      "Exceeds maximum length",
	"gt":       "Must be greater than minimum value",
	"gte":      "Must not be below the minimum value",
	"url":      "Must be a valid URL",
	"oneof":    "Must be one of the allowed values",
	"numeric":  "Must be a numeric value",
	"dive":     "Contains an invalid entry",
}

// GetValidationMessage returns the message shown for a failed validator tag
func GetValidationMessage(tag string) string {
	if msg, ok := validationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}
