// Package protocol defines the message types exchanged with status clients.
// It is importable without pulling in server dependencies.
package protocol

// WebSocket message type constants
const (
	WSTypeScanResult   = "scanResult"
	WSTypeScanError    = "scanError"
	WSTypeDeviceStatus = "deviceStatus"
	WSTypeAgentState   = "agentState"
	WSTypeError        = "error"
)

// Error codes carried in error responses.
const (
	ErrCodeParse       = "PARSE_ERROR"
	ErrCodeUnknownType = "UNKNOWN_TYPE"
	ErrCodeInternal    = "INTERNAL_ERROR"
)

// WebSocketMessage is the generic message envelope for WebSocket communication.
type WebSocketMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WebSocketRequest is for incoming requests from WebSocket clients.
type WebSocketRequest struct {
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// WebSocketResponse is for responses to WebSocket requests.
type WebSocketResponse struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ScanResultPayload is broadcast after every successful scan, including the
// already-checked-in case.
type ScanResultPayload struct {
	Status    string `json:"status"` // "completed" or "already in state"
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
	Tag       string `json:"tag"`
	CheckedIn bool   `json:"checkedIn"`
	ScannedAt string `json:"scannedAt"` // RFC3339 format
}

// ScanErrorPayload is broadcast when a scan fails.
type ScanErrorPayload struct {
	Code      string `json:"code"` // taxonomy code, e.g. "unknown user"
	Message   string `json:"message"`
	ScannedAt string `json:"scannedAt"` // RFC3339 format
}

// DeviceStatusPayload reports reader availability.
type DeviceStatusPayload struct {
	Connected bool   `json:"connected"`
	Reader    string `json:"reader,omitempty"`
	Message   string `json:"message,omitempty"`
}

// AgentStatePayload reports the orchestrator's lifecycle state, broadcast on
// every transition so status UIs can animate the scan.
type AgentStatePayload struct {
	State string `json:"state"`
	Tag   string `json:"tag"`
}
