// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// IDResponse is returned on entity creation.
type IDResponse struct {
	ID string `json:"id"`
}

// ErrorResponse documents the body rendered by the error middleware.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
