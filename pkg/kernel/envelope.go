package kernel

import "encoding/json"

// Envelope is the subset of a frame the router interprets. Payload stays
// raw: the router forwards it verbatim and never looks inside.
type Envelope struct {
	Type         string          `json:"type,omitempty"`
	To           string          `json:"to,omitempty"`
	NodeID       string          `json:"node_id,omitempty"`
	Domain       string          `json:"domain,omitempty"`
	Capabilities []string        `json:"capabilities,omitempty"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Envelope types the router consumes. Everything else is routed opaquely
// by presence or absence of "to".
const (
	TypeRegisterNode = "register_node"
	TypeRegisterAck  = "register_ack"
	TypeError        = "error"
)

// Error reasons shared by the router and node agents.
const (
	ReasonBadRequest        = "bad_request"
	ReasonNotFound          = "not_found"
	ReasonNodeNotRegistered = "node_not_registered"
	ReasonForwardFailed     = "forward_failed"
	ReasonInternalError     = "internal_error"
	ReasonUnsupported       = "unsupported"
	ReasonMissingNodeID     = "missing_node_id"
)

// RegisterAck acknowledges a successful register_node.
type RegisterAck struct {
	Type   string `json:"type"`
	NodeID string `json:"node_id"`
}

// ErrorEnvelope is the common error reply shape. RequestID, when the
// failing request carried one, is echoed so the requester can correlate;
// it is never interpreted.
type ErrorEnvelope struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	NodeID    string         `json:"node_id,omitempty"`
	Status    string         `json:"status"`
	Reason    string         `json:"reason"`
	Details   map[string]any `json:"details,omitempty"`
}

func errorEnvelope(reason string, details map[string]any) ErrorEnvelope {
	return ErrorEnvelope{Type: TypeError, Status: "error", Reason: reason, Details: details}
}
