package store

import (
	"context"

	"deltanet/pkg/model"
)

// MaxListLimit caps every list operation regardless of what the caller
// asks for.
const MaxListLimit = 200

// RecordStore is the adapter boundary in front of the external keyed
// store. Lookups return (value, ok, error) so callers never branch on a
// collaborator's response shape: ok=false with a nil error means the
// record simply is not there.
type RecordStore interface {
	GetArtifact(ctx context.Context, id string) (model.Artifact, bool, error)
	ListArtifacts(ctx context.Context, titleFilter string, limit int) ([]model.Artifact, error)
	InsertArtifact(ctx context.Context, a model.Artifact) error

	GetAsset(ctx context.Context, id string) (model.Asset, bool, error)
	ListAssets(ctx context.Context, artifactID string) ([]model.Asset, error)
	InsertAsset(ctx context.Context, a model.Asset) error

	ListCollections(ctx context.Context, limit int) ([]model.Collection, error)
	InsertConsent(ctx context.Context, c model.Consent) error

	AppendAudit(ctx context.Context, e model.AuditEntry) error
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
