package model

import "time"

// Artifact is one heritage record. Assets are attached at query time, not
// mapped as a gorm association, so the memory and mysql stores stay in sync
// on ownership: asset rows are always fetched/inserted explicitly.
type Artifact struct {
	ID           string         `gorm:"primaryKey;size:64" json:"id"`
	Title        string         `gorm:"size:255;index" json:"title"`
	Language     string         `gorm:"size:64" json:"language"`
	Summary      string         `gorm:"type:text" json:"summary"`
	CollectionID string         `gorm:"size:64;index" json:"collection_id,omitempty"`
	Metadata     map[string]any `gorm:"serializer:json;type:json" json:"metadata,omitempty"`
	Provenance   map[string]any `gorm:"serializer:json;type:json" json:"provenance,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Assets       []Asset        `gorm:"-" json:"assets,omitempty"`
}

// Asset is a binary object belonging to an artifact, addressed by
// bucket/path in the external object store.
type Asset struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	ArtifactID string    `gorm:"size:64;index" json:"artifact_id"`
	Bucket     string    `gorm:"size:128" json:"bucket"`
	Path       string    `gorm:"size:512" json:"path"`
	Type       string    `gorm:"size:64" json:"type,omitempty"`
	Label      string    `gorm:"size:255" json:"label,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Collection struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Title       string    `gorm:"size:255" json:"title"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Consent records who approved publication of an artifact.
type Consent struct {
	ID               string    `gorm:"primaryKey;size:64" json:"id"`
	ArtifactID       string    `gorm:"size:64;index" json:"artifact_id"`
	ConsentedBy      string    `gorm:"size:255" json:"consented_by"`
	ConsentRecordURL string    `gorm:"size:512" json:"consent_record_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
