package models

// ErrorResponse is the standard error envelope returned by the API.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
