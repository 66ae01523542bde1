package model

import "time"

// NodeInfo captures the identity a peer declared in its register_node
// envelope. It lives only as long as the owning connection.
type NodeInfo struct {
	ID           string         `json:"id"`
	Domain       string         `json:"domain,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	RegisteredAt time.Time      `json:"registered_at"`
}
