package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"reportflow/internal/models"
	"reportflow/internal/pkg/utils"
	"reportflow/internal/report"
	"reportflow/internal/repository"
)

// Stored file names are opaque UUIDs plus an extension; anything outside this
// alphabet is rejected before any filesystem access.
var safeFileName = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Store keeps rendered report documents on disk with a metadata row per file.
// Files and rows are reclaimed together by Sweep once the TTL passes.
type Store struct {
	dir       string
	ttl       time.Duration
	baseURL   string
	artifacts *repository.ArtifactRepository
	logger    *zap.Logger
}

func NewStore(dir string, ttl time.Duration, baseURL string, artifacts *repository.ArtifactRepository, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		dir:       dir,
		ttl:       ttl,
		baseURL:   strings.TrimRight(baseURL, "/"),
		artifacts: artifacts,
		logger:    logger,
	}, nil
}

// Save writes rendered content under a fresh opaque name and records its
// metadata. The returned artifact carries the download token for link
// issuance.
func (s *Store) Save(tenantID string, format report.Format, content []byte) (*models.Artifact, error) {
	fileName := utils.GenerateUUID() + format.Ext()
	path := filepath.Join(s.dir, fileName)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, &report.ExecutionError{Stage: "store", Err: err}
	}

	now := time.Now()
	a := &models.Artifact{
		FileName:      fileName,
		TenantID:      tenantID,
		Format:        string(format),
		SizeBytes:     int64(len(content)),
		GeneratedAt:   now,
		ExpiresAt:     now.Add(s.ttl),
		DownloadToken: utils.RandomHex(32),
	}
	if err := s.artifacts.Create(a); err != nil {
		// Orphan the file rather than serve an unrecorded one.
		_ = os.Remove(path)
		return nil, &report.ExecutionError{Stage: "store", Err: err}
	}
	return a, nil
}

// Open resolves a stored artifact for download. Traversal attempts, unknown
// names and expired artifacts all come back as ErrArtifactNotFound.
func (s *Store) Open(tenantID, fileName string) (*models.Artifact, string, error) {
	if !safeFileName.MatchString(fileName) || strings.Contains(fileName, "..") {
		return nil, "", report.ErrArtifactNotFound
	}

	a, err := s.artifacts.FindByName(fileName)
	if err != nil {
		return nil, "", err
	}
	if a.TenantID != tenantID {
		return nil, "", report.ErrArtifactNotFound
	}
	if a.Expired(time.Now()) {
		return nil, "", report.ErrArtifactNotFound
	}

	path := filepath.Join(s.dir, fileName)
	if _, err := os.Stat(path); err != nil {
		return nil, "", report.ErrArtifactNotFound
	}
	return a, path, nil
}

// DownloadLink builds the tokenized download URL for an artifact.
func (s *Store) DownloadLink(a *models.Artifact) string {
	return fmt.Sprintf("%s/api/v1/reports/download/%s?token=%s", s.baseURL, a.FileName, a.DownloadToken)
}

// Sweep removes expired artifacts, file and metadata row together. Row
// deletion failures leave the file for the next pass.
func (s *Store) Sweep() {
	expired, err := s.artifacts.ListExpired(time.Now())
	if err != nil {
		s.logger.Error("artifact sweep query failed", zap.Error(err))
		return
	}

	removed := 0
	for _, a := range expired {
		if !safeFileName.MatchString(a.FileName) {
			continue
		}
		path := filepath.Join(s.dir, a.FileName)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("artifact file removal failed", zap.String("file", a.FileName), zap.Error(err))
			continue
		}
		if err := s.artifacts.Delete(a.FileName); err != nil {
			s.logger.Warn("artifact row removal failed", zap.String("file", a.FileName), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("artifact sweep", zap.Int("removed", removed))
	}
}
