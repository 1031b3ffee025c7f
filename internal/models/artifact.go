package models

import "time"

// Artifact is the metadata row for a rendered report document. The bytes live
// on disk under the artifact store's directory; rows and files are reclaimed
// together by the expiry sweep.
type Artifact struct {
	FileName      string    `gorm:"column:file_name;primaryKey;size:255" json:"file_name"`
	TenantID      string    `gorm:"column:tenant_id;size:36;index:idx_artifacts_tenant" json:"tenant_id"`
	Format        string    `gorm:"column:format;size:10" json:"format"`
	SizeBytes     int64     `gorm:"column:size_bytes;default:0" json:"size_bytes"`
	GeneratedAt   time.Time `gorm:"column:generated_at" json:"generated_at"`
	ExpiresAt     time.Time `gorm:"column:expires_at;index:idx_artifacts_expires" json:"expires_at"`
	DownloadToken string    `gorm:"column:download_token;size:64;index:idx_artifacts_token" json:"download_token"`
}

func (Artifact) TableName() string {
	return "artifacts"
}

// Expired reports whether the artifact's TTL has passed at the given instant.
func (a *Artifact) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
