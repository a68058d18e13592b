// Package types holds the JSON envelopes every API response is wrapped in.
package types

// SuccessEnvelope wraps successful response payloads under a "data" key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Code is a stable machine string
// (for example "validation_error"); Details carries field-level context when
// input validation fails.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError under an "error" key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
