package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"reportflow/internal/models"
	"reportflow/internal/pkg/utils"
	"reportflow/internal/report"
	"reportflow/internal/repository"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *repository.ArtifactRepository, string) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", utils.RandomHex(8))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Artifact{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := repository.NewArtifactRepository(db)
	dir := t.TempDir()
	store, err := NewStore(dir, ttl, "http://localhost:8080", repo, zap.NewNop())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return store, repo, dir
}

func TestSaveAndOpen(t *testing.T) {
	store, _, dir := newTestStore(t, time.Hour)

	content := []byte("label,value\nTotal Orders,42\n")
	a, err := store.Save("tenant-1", report.FormatCSV, content)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(a.FileName, ".csv") {
		t.Errorf("file name %q missing extension", a.FileName)
	}
	if a.DownloadToken == "" {
		t.Error("missing download token")
	}
	if a.SizeBytes != int64(len(content)) {
		t.Errorf("size = %d, want %d", a.SizeBytes, len(content))
	}

	got, path, err := store.Open("tenant-1", a.FileName)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got.FileName != a.FileName {
		t.Errorf("opened %q, want %q", got.FileName, a.FileName)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("path %q escapes store dir %q", path, dir)
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(onDisk) != string(content) {
		t.Error("artifact content mismatch")
	}

	link := store.DownloadLink(a)
	if !strings.Contains(link, a.FileName) || !strings.Contains(link, a.DownloadToken) {
		t.Errorf("link %q missing file name or token", link)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store, _, _ := newTestStore(t, time.Hour)

	for _, name := range []string{
		"../../etc/passwd",
		"..%2Fsecret",
		"reports/../../config.yaml",
		"a b.csv",
		"",
	} {
		if _, _, err := store.Open("tenant-1", name); !errors.Is(err, report.ErrArtifactNotFound) {
			t.Errorf("Open(%q) err = %v, want ErrArtifactNotFound", name, err)
		}
	}
}

func TestOpenScopesTenant(t *testing.T) {
	store, _, _ := newTestStore(t, time.Hour)

	a, err := store.Save("tenant-1", report.FormatCSV, []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, _, err := store.Open("tenant-2", a.FileName); !errors.Is(err, report.ErrArtifactNotFound) {
		t.Errorf("cross-tenant open err = %v, want ErrArtifactNotFound", err)
	}
}

func TestExpiredArtifactNotServed(t *testing.T) {
	store, repo, _ := newTestStore(t, time.Hour)

	a, err := store.Save("tenant-1", report.FormatCSV, []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Age the row past its TTL.
	if err := repo.Delete(a.FileName); err != nil {
		t.Fatalf("delete row: %v", err)
	}
	expired := *a
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	if err := repo.Create(&expired); err != nil {
		t.Fatalf("recreate row: %v", err)
	}

	if _, _, err := store.Open("tenant-1", a.FileName); !errors.Is(err, report.ErrArtifactNotFound) {
		t.Errorf("expired open err = %v, want ErrArtifactNotFound", err)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	store, repo, dir := newTestStore(t, time.Hour)

	fresh, err := store.Save("tenant-1", report.FormatCSV, []byte("fresh"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	old, err := store.Save("tenant-1", report.FormatCSV, []byte("old"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Delete(old.FileName); err != nil {
		t.Fatalf("delete row: %v", err)
	}
	aged := *old
	aged.ExpiresAt = time.Now().Add(-time.Minute)
	if err := repo.Create(&aged); err != nil {
		t.Fatalf("recreate row: %v", err)
	}

	store.Sweep()

	if _, err := os.Stat(filepath.Join(dir, old.FileName)); !os.IsNotExist(err) {
		t.Error("expired file still on disk")
	}
	if _, err := repo.FindByName(old.FileName); !errors.Is(err, report.ErrArtifactNotFound) {
		t.Error("expired row still present")
	}
	if _, _, err := store.Open("tenant-1", fresh.FileName); err != nil {
		t.Errorf("fresh artifact swept: %v", err)
	}
}
