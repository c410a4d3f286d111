package model

// WebSocket message types
const (
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSJobMessage carries the final envelope of a job to its subscribers
type WSJobMessage struct {
	Type     string    `json:"type"`
	JobID    string    `json:"jobId"`
	Envelope *Envelope `json:"envelope"`
}
