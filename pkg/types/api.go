package types

// StatusResponse is returned by GET /status on the operator endpoint.
type StatusResponse struct {
	// Identifier of the active session, empty when none is open.
	// example: 3f1c2a9e-8d7b-4c1e-9a55-0b6f1e2d3c4b
	SessionID string `json:"session_id,omitempty"`
	// Persona bound to the active session.
	// example: ai-engineer
	Persona string `json:"persona,omitempty"`
	// Controller phase: idle or streaming.
	// example: idle
	Phase string `json:"phase"`
	// Number of committed turns in the active session.
	// example: 4
	Turns int `json:"turns"`
	// Tokens pulled so far by the running generation.
	// example: 17
	TokensEmitted int `json:"tokens_emitted"`
	// Stop reason of the most recent generation.
	// example: end_marker
	LastStopReason string `json:"last_stop_reason,omitempty"`
	// Configured token budget per response.
	// example: 2000
	TokenBudget int `json:"token_budget"`
	// Uptime of the process in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
