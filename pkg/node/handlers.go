package node

import (
	"context"
	"log"
	"time"

	"deltanet/pkg/kernel"
	"deltanet/pkg/model"
	"deltanet/pkg/store"
)

type artifactPayload struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Language     string         `json:"language"`
	Summary      string         `json:"summary"`
	CollectionID string         `json:"collection_id"`
	Metadata     map[string]any `json:"metadata"`
	Provenance   map[string]any `json:"provenance"`
	Assets       []assetPayload `json:"assets"`
}

type assetPayload struct {
	ID     string `json:"id"`
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	Type   string `json:"type"`
	Label  string `json:"label"`
}

type consentPayload struct {
	ID               string `json:"id"`
	ConsentedBy      string `json:"consented_by"`
	ConsentRecordURL string `json:"consent_record_url"`
}

type queryResponse struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	NodeID    string         `json:"node_id"`
	Status    string         `json:"status"`
	Artifact  model.Artifact `json:"artifact"`
}

type ingestResponse struct {
	Type       string        `json:"type"`
	RequestID  string        `json:"request_id,omitempty"`
	NodeID     string        `json:"node_id"`
	Status     string        `json:"status"`
	ArtifactID string        `json:"artifact_id"`
	Assets     []model.Asset `json:"assets"`
}

type listCollectionsResponse struct {
	Type        string             `json:"type"`
	RequestID   string             `json:"request_id,omitempty"`
	NodeID      string             `json:"node_id"`
	Status      string             `json:"status"`
	Collections []model.Collection `json:"collections"`
	Count       int                `json:"count"`
}

type listArtifactsResponse struct {
	Type      string           `json:"type"`
	RequestID string           `json:"request_id,omitempty"`
	NodeID    string           `json:"node_id"`
	Status    string           `json:"status"`
	Artifacts []model.Artifact `json:"artifacts"`
	Count     int              `json:"count"`
}

type presignedAssetResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	NodeID    string `json:"node_id"`
	Status    string `json:"status"`
	SignedURL string `json:"signed_url"`
	ExpiresIn int    `json:"expires_in"`
}

type pongResponse struct {
	Type   string `json:"type"`
	NodeID string `json:"node_id"`
	TS     string `json:"ts"`
}

func (a *Agent) handleQueryArtifact(ctx context.Context, req request) {
	artifactID := req.Q.ID
	if artifactID == "" {
		a.errorReply(req.RequestID, kernel.ReasonBadRequest, map[string]any{"message": "artifact id required"})
		return
	}
	if cached, ok := a.cache.GetArtifact(ctx, artifactID); ok {
		a.journal.Record("query_artifact", artifactID, "ok")
		a.reply(queryResponse{Type: "query_response", RequestID: req.RequestID, NodeID: a.nodeID, Status: "ok", Artifact: *cached})
		return
	}
	artifact, ok, err := a.store.GetArtifact(ctx, artifactID)
	if err != nil {
		a.journal.Record("query_artifact", artifactID, "internal_error")
		a.errorReply(req.RequestID, kernel.ReasonInternalError, map[string]any{"error": err.Error()})
		return
	}
	if !ok {
		a.journal.Record("query_artifact", artifactID, "not_found")
		a.errorReply(req.RequestID, kernel.ReasonNotFound, map[string]any{"artifact_id": artifactID})
		return
	}
	assets, err := a.store.ListAssets(ctx, artifactID)
	if err != nil {
		a.errorReply(req.RequestID, kernel.ReasonInternalError, map[string]any{"error": err.Error()})
		return
	}
	artifact.Assets = assets
	a.cache.PutArtifact(ctx, artifact)
	a.journal.Record("query_artifact", artifactID, "ok")
	a.reply(queryResponse{Type: "query_response", RequestID: req.RequestID, NodeID: a.nodeID, Status: "ok", Artifact: artifact})
}

func (a *Agent) handleIngestArtifact(ctx context.Context, req request) {
	payload := req.Artifact
	artifactID := payload.ID
	if artifactID == "" {
		artifactID = newID("artifact_", 12)
	}
	now := time.Now().UTC()
	language := payload.Language
	if language == "" {
		language = "yoruba"
	}
	artifact := model.Artifact{
		ID:           artifactID,
		Title:        payload.Title,
		Language:     language,
		Summary:      payload.Summary,
		CollectionID: payload.CollectionID,
		Metadata:     payload.Metadata,
		Provenance:   payload.Provenance,
		CreatedAt:    now,
	}
	if err := a.store.InsertArtifact(ctx, artifact); err != nil {
		a.journal.Record("ingest_artifact", artifactID, "internal_error")
		a.errorReply(req.RequestID, kernel.ReasonInternalError, map[string]any{"error": err.Error()})
		return
	}

	inserted := make([]model.Asset, 0, len(payload.Assets))
	for _, ap := range payload.Assets {
		asset := model.Asset{
			ID:         ap.ID,
			ArtifactID: artifactID,
			Bucket:     ap.Bucket,
			Path:       ap.Path,
			Type:       ap.Type,
			Label:      ap.Label,
			CreatedAt:  now,
		}
		if asset.ID == "" {
			asset.ID = newID("asset_", 10)
		}
		if err := a.store.InsertAsset(ctx, asset); err != nil {
			a.errorReply(req.RequestID, kernel.ReasonInternalError, map[string]any{"error": err.Error()})
			return
		}
		inserted = append(inserted, asset)
	}

	if req.Consent != (consentPayload{}) {
		consent := model.Consent{
			ID:               req.Consent.ID,
			ArtifactID:       artifactID,
			ConsentedBy:      req.Consent.ConsentedBy,
			ConsentRecordURL: req.Consent.ConsentRecordURL,
			CreatedAt:        now,
		}
		if consent.ID == "" {
			consent.ID = newID("consent_", 10)
		}
		if err := a.store.InsertConsent(ctx, consent); err != nil {
			a.errorReply(req.RequestID, kernel.ReasonInternalError, map[string]any{"error": err.Error()})
			return
		}
	}

	if err := a.store.AppendAudit(ctx, model.AuditEntry{
		Actor:     a.nodeID,
		Action:    "ingest_artifact",
		Target:    artifactID,
		Timestamp: now,
	}); err != nil {
		log.Printf("audit append failed artifact=%s: %v", artifactID, err)
	}
	a.cache.InvalidateArtifact(ctx, artifactID)
	a.journal.Record("ingest_artifact", artifactID, "ok")
	a.reply(ingestResponse{Type: "ingest_response", RequestID: req.RequestID, NodeID: a.nodeID, Status: "ok", ArtifactID: artifactID, Assets: inserted})
}

func (a *Agent) handleListCollections(ctx context.Context, req request) {
	collections, err := a.store.ListCollections(ctx, store.MaxListLimit)
	if err != nil {
		a.errorReply(req.RequestID, kernel.ReasonInternalError, map[string]any{"error": err.Error()})
		return
	}
	a.reply(listCollectionsResponse{Type: "list_collections_response", RequestID: req.RequestID, NodeID: a.nodeID, Status: "ok", Collections: collections, Count: len(collections)})
}

func (a *Agent) handleListArtifacts(ctx context.Context, req request) {
	artifacts, err := a.store.ListArtifacts(ctx, req.Q.Text, store.MaxListLimit)
	if err != nil {
		a.errorReply(req.RequestID, kernel.ReasonInternalError, map[string]any{"error": err.Error()})
		return
	}
	a.reply(listArtifactsResponse{Type: "list_artifacts_response", RequestID: req.RequestID, NodeID: a.nodeID, Status: "ok", Artifacts: artifacts, Count: len(artifacts)})
}

func (a *Agent) handleGetPresignedAsset(ctx context.Context, req request) {
	assetID := req.Q.AssetID
	if assetID == "" {
		a.errorReply(req.RequestID, kernel.ReasonBadRequest, map[string]any{"message": "asset_id required"})
		return
	}
	asset, ok, err := a.store.GetAsset(ctx, assetID)
	if err != nil {
		a.errorReply(req.RequestID, kernel.ReasonInternalError, map[string]any{"error": err.Error()})
		return
	}
	if !ok {
		a.errorReply(req.RequestID, kernel.ReasonNotFound, map[string]any{"asset_id": assetID})
		return
	}
	if asset.Bucket == "" || asset.Path == "" {
		a.errorReply(req.RequestID, kernel.ReasonBadRequest, map[string]any{"message": "asset missing bucket/path"})
		return
	}
	if a.signer == nil {
		a.errorReply(req.RequestID, kernel.ReasonInternalError, map[string]any{"message": "asset signer not configured"})
		return
	}
	signedURL, expiresIn, err := a.signer.SignedURL(asset.Bucket, asset.Path)
	if err != nil {
		a.errorReply(req.RequestID, kernel.ReasonInternalError, map[string]any{"message": "failed to create signed URL", "error": err.Error()})
		return
	}
	a.journal.Record("get_presigned_asset", assetID, "ok")
	a.reply(presignedAssetResponse{Type: "get_presigned_asset_response", RequestID: req.RequestID, NodeID: a.nodeID, Status: "ok", SignedURL: signedURL, ExpiresIn: expiresIn})
}

func (a *Agent) handlePing(req request) {
	a.reply(pongResponse{Type: "pong", NodeID: a.nodeID, TS: time.Now().UTC().Format(time.RFC3339Nano)})
}
