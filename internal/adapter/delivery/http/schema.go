package http

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const statusError = "error"

// shortenRequest represents the structure for a request to shorten a URL.
type shortenRequest struct {
	URL string `json:"url" validate:"required,absurl"`
}

// shortenResponse represents the structure for a response to a shorten request.
type shortenResponse struct {
	ShortURL  string `json:"shortUrl"`
	ShortCode string `json:"shortCode"`
}

// urlResponse represents a stored URL together with its click count.
type urlResponse struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
}

// toURLResponse converts an entity.URL to a urlResponse.
func toURLResponse(url *entity.URL) urlResponse {
	return urlResponse{
		ID:          url.ID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		Clicks:      url.AccessCount,
		CreatedAt:   url.CreatedAt,
	}
}

func toURLResponses(urls []*entity.URL) []urlResponse {
	resp := make([]urlResponse, 0, len(urls))
	for _, url := range urls {
		resp = append(resp, toURLResponse(url))
	}
	return resp
}

type messageResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	OK bool `json:"ok"`
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	invalidURLResponse = errorResponse{
		Status:  statusError,
		Message: "Invalid URL provided",
	}

	urlNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "URL not found",
	}

	notFoundResponse = errorResponse{
		Status:  statusError,
		Message: "not found",
	}

	allocationFailedResponse = errorResponse{
		Status:  statusError,
		Message: "could not allocate a short code, try again later",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "absurl":
		return "must be an absolute url with a scheme and a host"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: invalidURLResponse.Message,
		Errors:  getValidationErrors(err),
	}
}
