package model

// WebSocket message types
const (
	WSMessageTypeJob  = "job"
	WSMessageTypePing = "ping"
	WSMessageTypePong = "pong"
)

// WSMessage is the envelope for all websocket traffic.
type WSMessage struct {
	Type string `json:"type"`
}

// WSJobMessage carries a full job snapshot to subscribers. The same
// message is sent for progress, completion and failure; clients read
// the embedded status.
type WSJobMessage struct {
	Type string `json:"type"`
	Job  Job    `json:"job"`
}
