package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ActionResult is the body returned by reserve/release style operations.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}
