package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltanet/pkg/model"
	"deltanet/pkg/store"
)

// recorder captures the agent's outbound replies as decoded JSON.
type recorder struct {
	mu   sync.Mutex
	msgs []map[string]any
}

func (r *recorder) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func (r *recorder) last(t *testing.T) map[string]any {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.msgs, "expected at least one reply")
	return r.msgs[len(r.msgs)-1]
}

type stubSigner struct {
	err error
}

func (s stubSigner) SignedURL(bucket, path string) (string, int, error) {
	if s.err != nil {
		return "", 0, s.err
	}
	return fmt.Sprintf("http://assets.local/assets/%s/%s?token=x", bucket, path), 3600, nil
}

func newTestAgent(t *testing.T, opts ...Option) (*Agent, *store.MemoryStore, *recorder) {
	t.Helper()
	st := store.NewMemoryStore()
	rec := &recorder{}
	a := New("heritage-node-1", st, opts...)
	a.SetSend(rec.send)
	return a, st, rec
}

func handleJSON(t *testing.T, a *Agent, v map[string]any) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	a.Handle(raw)
}

func TestQueryArtifactNotFound(t *testing.T) {
	a, _, rec := newTestAgent(t)
	handleJSON(t, a, map[string]any{
		"type": "query_artifact", "request_id": "r1", "q": map[string]any{"id": "a1"},
	})

	assert.Equal(t, map[string]any{
		"type":       "error",
		"request_id": "r1",
		"node_id":    "heritage-node-1",
		"status":     "error",
		"reason":     "not_found",
		"details":    map[string]any{"artifact_id": "a1"},
	}, rec.last(t))
}

func TestQueryArtifactMissingID(t *testing.T) {
	a, _, rec := newTestAgent(t)
	handleJSON(t, a, map[string]any{"type": "query_artifact", "request_id": "r2"})

	reply := rec.last(t)
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, "bad_request", reply["reason"])
	assert.Equal(t, "r2", reply["request_id"])
}

func TestQueryArtifactAttachesAssets(t *testing.T) {
	a, st, rec := newTestAgent(t)
	ctx := context.Background()
	require.NoError(t, st.InsertArtifact(ctx, model.Artifact{ID: "artifact_ab12", Title: "Talking Drum", Language: "yoruba"}))
	require.NoError(t, st.InsertAsset(ctx, model.Asset{ID: "asset_01", ArtifactID: "artifact_ab12", Bucket: "media", Path: "drum.ogg"}))
	require.NoError(t, st.InsertAsset(ctx, model.Asset{ID: "asset_02", ArtifactID: "artifact_ab12", Bucket: "media", Path: "drum.jpg"}))

	handleJSON(t, a, map[string]any{
		"type": "query_artifact", "request_id": "r3", "q": map[string]any{"id": "artifact_ab12"},
	})

	reply := rec.last(t)
	require.Equal(t, "query_response", reply["type"])
	assert.Equal(t, "ok", reply["status"])
	assert.Equal(t, "r3", reply["request_id"])
	artifact := reply["artifact"].(map[string]any)
	assert.Equal(t, "Talking Drum", artifact["title"])
	assert.Len(t, artifact["assets"], 2)
}

func TestIngestArtifactGeneratesIDs(t *testing.T) {
	a, st, rec := newTestAgent(t)
	handleJSON(t, a, map[string]any{
		"type":       "ingest_artifact",
		"request_id": "r4",
		"artifact": map[string]any{
			"title":  "Gelede Mask",
			"assets": []map[string]any{{"bucket": "media", "path": "mask.jpg", "type": "image"}},
		},
	})

	reply := rec.last(t)
	require.Equal(t, "ingest_response", reply["type"])
	assert.Equal(t, "ok", reply["status"])

	artifactID := reply["artifact_id"].(string)
	assert.True(t, strings.HasPrefix(artifactID, "artifact_"))
	assert.Len(t, artifactID, len("artifact_")+12)

	stored, ok, err := st.GetArtifact(context.Background(), artifactID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Gelede Mask", stored.Title)
	assert.Equal(t, "yoruba", stored.Language, "language defaults when omitted")

	assets, err := st.ListAssets(context.Background(), artifactID)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.True(t, strings.HasPrefix(assets[0].ID, "asset_"))
	assert.Len(t, assets[0].ID, len("asset_")+10)

	audit := st.Audit()
	require.Len(t, audit, 1)
	assert.Equal(t, "ingest_artifact", audit[0].Action)
	assert.Equal(t, artifactID, audit[0].Target)
	assert.Equal(t, "heritage-node-1", audit[0].Actor)
}

func TestIngestArtifactExplicitIDOverwrites(t *testing.T) {
	a, st, _ := newTestAgent(t)
	handleJSON(t, a, map[string]any{
		"type": "ingest_artifact", "artifact": map[string]any{"id": "artifact_fixed", "title": "First"},
	})
	handleJSON(t, a, map[string]any{
		"type": "ingest_artifact", "artifact": map[string]any{"id": "artifact_fixed", "title": "Second"},
	})

	stored, ok, err := st.GetArtifact(context.Background(), "artifact_fixed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Second", stored.Title)
}

func TestIngestArtifactRecordsConsent(t *testing.T) {
	a, st, rec := newTestAgent(t)
	handleJSON(t, a, map[string]any{
		"type":     "ingest_artifact",
		"artifact": map[string]any{"title": "Oriki Recording"},
		"consent":  map[string]any{"consented_by": "elder-ade", "consent_record_url": "http://consent.local/42"},
	})

	artifactID := rec.last(t)["artifact_id"].(string)
	consents := st.Consents(artifactID)
	require.Len(t, consents, 1)
	assert.Equal(t, "elder-ade", consents[0].ConsentedBy)
	assert.True(t, strings.HasPrefix(consents[0].ID, "consent_"))
}

func TestListArtifactsFiltersByTitle(t *testing.T) {
	a, st, rec := newTestAgent(t)
	ctx := context.Background()
	require.NoError(t, st.InsertArtifact(ctx, model.Artifact{ID: "a1", Title: "Talking Drum"}))
	require.NoError(t, st.InsertArtifact(ctx, model.Artifact{ID: "a2", Title: "Gelede Mask"}))
	require.NoError(t, st.InsertArtifact(ctx, model.Artifact{ID: "a3", Title: "Drumming Chant"}))

	handleJSON(t, a, map[string]any{
		"type": "list_artifacts", "request_id": "r5", "q": map[string]any{"text": "DRUM"},
	})

	reply := rec.last(t)
	require.Equal(t, "list_artifacts_response", reply["type"])
	assert.Equal(t, float64(2), reply["count"])
	assert.Len(t, reply["artifacts"], 2)
}

func TestListCollections(t *testing.T) {
	a, st, rec := newTestAgent(t)
	ctx := context.Background()
	require.NoError(t, st.InsertCollection(ctx, model.Collection{ID: "c1", Title: "Oral Histories"}))
	require.NoError(t, st.InsertCollection(ctx, model.Collection{ID: "c2", Title: "Festival Masks"}))

	handleJSON(t, a, map[string]any{"type": "list_collections", "request_id": "r6"})

	reply := rec.last(t)
	require.Equal(t, "list_collections_response", reply["type"])
	assert.Equal(t, float64(2), reply["count"])
}

func TestGetPresignedAsset(t *testing.T) {
	a, st, rec := newTestAgent(t, WithSigner(stubSigner{}))
	ctx := context.Background()
	require.NoError(t, st.InsertAsset(ctx, model.Asset{ID: "asset_01", ArtifactID: "a1", Bucket: "media", Path: "mask.jpg"}))

	handleJSON(t, a, map[string]any{
		"type": "get_presigned_asset", "request_id": "r7", "q": map[string]any{"asset_id": "asset_01"},
	})

	reply := rec.last(t)
	require.Equal(t, "get_presigned_asset_response", reply["type"])
	assert.Equal(t, "ok", reply["status"])
	assert.Contains(t, reply["signed_url"], "media/mask.jpg")
	assert.Equal(t, float64(3600), reply["expires_in"])
}

func TestGetPresignedAssetErrors(t *testing.T) {
	a, st, rec := newTestAgent(t, WithSigner(stubSigner{}))
	ctx := context.Background()
	require.NoError(t, st.InsertAsset(ctx, model.Asset{ID: "asset_nopath", ArtifactID: "a1"}))

	handleJSON(t, a, map[string]any{"type": "get_presigned_asset", "request_id": "r8"})
	assert.Equal(t, "bad_request", rec.last(t)["reason"])

	handleJSON(t, a, map[string]any{
		"type": "get_presigned_asset", "request_id": "r9", "q": map[string]any{"asset_id": "ghost"},
	})
	reply := rec.last(t)
	assert.Equal(t, "not_found", reply["reason"])
	assert.Equal(t, map[string]any{"asset_id": "ghost"}, reply["details"])

	handleJSON(t, a, map[string]any{
		"type": "get_presigned_asset", "request_id": "r10", "q": map[string]any{"asset_id": "asset_nopath"},
	})
	assert.Equal(t, "bad_request", rec.last(t)["reason"])
}

func TestGetPresignedAssetSignerFailure(t *testing.T) {
	a, st, rec := newTestAgent(t, WithSigner(stubSigner{err: errors.New("hmac broken")}))
	ctx := context.Background()
	require.NoError(t, st.InsertAsset(ctx, model.Asset{ID: "asset_01", ArtifactID: "a1", Bucket: "media", Path: "x"}))

	handleJSON(t, a, map[string]any{
		"type": "get_presigned_asset", "request_id": "r11", "q": map[string]any{"asset_id": "asset_01"},
	})
	assert.Equal(t, "internal_error", rec.last(t)["reason"])
}

func TestPing(t *testing.T) {
	a, _, rec := newTestAgent(t)
	handleJSON(t, a, map[string]any{"type": "ping"})

	reply := rec.last(t)
	require.Equal(t, "pong", reply["type"])
	assert.Equal(t, "heritage-node-1", reply["node_id"])
	_, err := time.Parse(time.RFC3339Nano, reply["ts"].(string))
	assert.NoError(t, err)
}

func TestUnsupportedType(t *testing.T) {
	a, _, rec := newTestAgent(t)
	handleJSON(t, a, map[string]any{"type": "summon_spirits", "request_id": "r12"})

	reply := rec.last(t)
	assert.Equal(t, "unsupported", reply["reason"])
	assert.Equal(t, "r12", reply["request_id"])

	// Without a request_id there is nothing to correlate, so no reply.
	before := rec.count()
	handleJSON(t, a, map[string]any{"type": "summon_spirits"})
	assert.Equal(t, before, rec.count())
}

func TestHandleWithoutConnectionDoesNotPanic(t *testing.T) {
	st := store.NewMemoryStore()
	a := New("heritage-node-1", st)
	handleJSON(t, a, map[string]any{"type": "ping"})
	a.Handle([]byte("{not json"))
}

func TestRegisterEnvelope(t *testing.T) {
	a, _, _ := newTestAgent(t, WithDomain("heritage.language"))
	env := a.RegisterEnvelope()
	assert.Equal(t, "register_node", env.Type)
	assert.Equal(t, "heritage-node-1", env.NodeID)
	assert.Equal(t, "heritage.language", env.Domain)
	assert.Contains(t, env.Capabilities, "query_artifact")
	assert.Contains(t, env.Capabilities, "get_presigned_asset")
}
