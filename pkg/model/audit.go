package model

import "time"

// AuditEntry captures one operation against the kernel or a node's store.
type AuditEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Actor     string    `gorm:"size:128" json:"actor"`
	Action    string    `gorm:"size:64" json:"action"`
	Target    string    `gorm:"size:255" json:"target"`
	Detail    string    `gorm:"size:512" json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
