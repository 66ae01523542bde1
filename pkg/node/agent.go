package node

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"deltanet/pkg/kernel"
	"deltanet/pkg/store"
)

// Signer issues time-limited URLs for binary assets.
type Signer interface {
	SignedURL(bucket, path string) (url string, expiresIn int, err error)
}

// Agent is one domain participant: it registers under a node id and
// answers directed requests against its record store. The agent is
// transport-agnostic; the reconnect supervisor binds it to a live
// connection via SetSend.
type Agent struct {
	nodeID  string
	domain  string
	store   store.RecordStore
	signer  Signer
	cache   *ResponseCache
	journal *Journal

	sendMu sync.RWMutex
	send   func(v any) error
}

type Option func(*Agent)

func WithDomain(domain string) Option { return func(a *Agent) { a.domain = domain } }
func WithSigner(s Signer) Option { return func(a *Agent) { a.signer = s } }
func WithCache(c *ResponseCache) Option { return func(a *Agent) { a.cache = c } }
func WithJournal(j *Journal) Option { return func(a *Agent) { a.journal = j } }

func New(nodeID string, st store.RecordStore, opts ...Option) *Agent {
	a := &Agent{
		nodeID: nodeID,
		domain: "heritage.culture",
		store:  st,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) NodeID() string { return a.nodeID }

func (a *Agent) Capabilities() []string {
	return []string{
		"query_artifact",
		"ingest_artifact",
		"list_collections",
		"list_artifacts",
		"get_presigned_asset",
	}
}

// RegisterEnvelope builds the register_node message sent on every
// (re)connect. Registration is fire and forget; the agent starts handling
// inbound envelopes without waiting for the ack.
func (a *Agent) RegisterEnvelope() kernel.Envelope {
	return kernel.Envelope{
		Type:         kernel.TypeRegisterNode,
		NodeID:       a.nodeID,
		Domain:       a.domain,
		Capabilities: a.Capabilities(),
		Metadata: map[string]any{
			"name":       "Heritage Node",
			"maintainer": a.nodeID,
			"version":    "0.2",
		},
	}
}

// SetSend binds (or with nil, unbinds) the agent's outbound path.
func (a *Agent) SetSend(fn func(v any) error) {
	a.sendMu.Lock()
	a.send = fn
	a.sendMu.Unlock()
}

// reply delivers v on the current connection. A reply to a connection that
// is already gone is discarded; the in-flight work that produced it is not
// worth crashing over.
func (a *Agent) reply(v any) {
	a.sendMu.RLock()
	fn := a.send
	a.sendMu.RUnlock()
	if fn == nil {
		log.Printf("reply dropped: no connection")
		return
	}
	if err := fn(v); err != nil {
		log.Printf("reply dropped: %v", err)
	}
}

func (a *Agent) errorReply(requestID, reason string, details map[string]any) {
	a.reply(kernel.ErrorEnvelope{
		Type:      kernel.TypeError,
		RequestID: requestID,
		NodeID:    a.nodeID,
		Status:    "error",
		Reason:    reason,
		Details:   details,
	})
}

// request is the inbound envelope shape a node understands.
type request struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Q         query           `json:"q"`
	Artifact  artifactPayload `json:"artifact"`
	Consent   consentPayload  `json:"consent"`
}

type query struct {
	ID         string `json:"id"`
	ArtifactID string `json:"artifact_id"`
	AssetID    string `json:"asset_id"`
	Text       string `json:"text"`
}

// Handle processes one raw frame synchronously. The supervisor invokes it
// in its own goroutine per envelope so a slow store call never stalls the
// read loop; tests call it directly for determinism.
func (a *Agent) Handle(raw []byte) {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		log.Printf("non-json message dropped")
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("handler panic type=%s: %v", req.Type, rec)
			if req.RequestID != "" {
				a.errorReply(req.RequestID, kernel.ReasonInternalError, map[string]any{"error": "handler panic"})
			}
		}
	}()

	ctx := context.Background()
	switch req.Type {
	case "query_artifact":
		a.handleQueryArtifact(ctx, req)
	case "ingest_artifact":
		a.handleIngestArtifact(ctx, req)
	case "list_collections":
		a.handleListCollections(ctx, req)
	case "list_artifacts":
		a.handleListArtifacts(ctx, req)
	case "get_presigned_asset":
		a.handleGetPresignedAsset(ctx, req)
	case "ping":
		a.handlePing(req)
	default:
		if req.RequestID != "" {
			a.errorReply(req.RequestID, kernel.ReasonUnsupported, map[string]any{
				"message": "unsupported message type: " + req.Type,
			})
			return
		}
		log.Printf("ignored message type=%q", req.Type)
	}
}

// newID mirrors the store's id convention: prefix plus a short hex tail.
func newID(prefix string, n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(hex) {
		n = len(hex)
	}
	return prefix + hex[:n]
}
