package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"reportflow/internal/models"
	"reportflow/internal/report"
)

// ArtifactRepository handles artifact metadata rows. The bytes themselves
// live in the artifact store's directory.
type ArtifactRepository struct {
	db *gorm.DB
}

func NewArtifactRepository(db *gorm.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

func (r *ArtifactRepository) Create(a *models.Artifact) error {
	return r.db.Create(a).Error
}

func (r *ArtifactRepository) FindByName(fileName string) (*models.Artifact, error) {
	var a models.Artifact
	err := r.db.Where("file_name = ?", fileName).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, report.ErrArtifactNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListExpired returns artifacts past their TTL at the given instant.
func (r *ArtifactRepository) ListExpired(now time.Time) ([]models.Artifact, error) {
	var artifacts []models.Artifact
	err := r.db.Where("expires_at <= ?", now).Find(&artifacts).Error
	return artifacts, err
}

func (r *ArtifactRepository) Delete(fileName string) error {
	return r.db.Where("file_name = ?", fileName).Delete(&models.Artifact{}).Error
}
