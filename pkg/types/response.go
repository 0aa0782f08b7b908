package types

// SuccessEnvelope wraps every 2xx storefront payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public face of a storefront error. RequestID mirrors the
// X-Request-Id response header so shoppers can quote it to support.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

