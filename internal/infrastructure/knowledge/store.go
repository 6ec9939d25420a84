// Package knowledge is the file-backed document store. The whole
// collection lives in one JSON snapshot mirrored in memory; every
// mutation rewrites the snapshot to a temporary file and renames it into
// place, so readers always observe a complete state.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kvolkov/docsense/internal/core/domain"
	"github.com/kvolkov/docsense/internal/infrastructure/textclean"
)

const snapshotFile = "documents.json"

type snapshotMeta struct {
	CreatedAt      time.Time `json:"created_at"`
	Version        string    `json:"version"`
	TotalDocuments int       `json:"total_documents"`
}

type snapshot struct {
	Documents []domain.Document `json:"documents"`
	Metadata  snapshotMeta      `json:"metadata"`
}

type Store struct {
	path string
	log  *slog.Logger

	mu   sync.RWMutex
	snap snapshot
}

// Open loads the snapshot from dir, creating an empty one when the file
// is missing. A corrupt snapshot is reinitialized rather than treated as
// fatal, matching the recover-and-continue behavior of the service.
func Open(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "create store dir", err)
	}
	s := &Store{
		path: filepath.Join(dir, snapshotFile),
		log:  log,
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		s.snap = emptySnapshot()
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, domain.WrapError(domain.ErrStorage, "read snapshot", err)
	default:
		if err := json.Unmarshal(raw, &s.snap); err != nil {
			log.Warn("snapshot_corrupt_reinitializing", "path", s.path, "error", err)
			s.snap = emptySnapshot()
			if err := s.persistLocked(); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func emptySnapshot() snapshot {
	return snapshot{
		Documents: []domain.Document{},
		Metadata: snapshotMeta{
			CreatedAt: time.Now().UTC(),
			Version:   "1.1",
		},
	}
}

// Create computes the derived fields, assigns identity, and persists the
// new document. The snapshot on disk is replaced atomically; on write
// failure no document is added.
func (s *Store) Create(ctx context.Context, blocks []domain.TextBlock, filename string, source domain.SourceType, processingSeconds float64) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized := make([]domain.TextBlock, 0, len(blocks))
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		b.Confidence = domain.ClampConfidence(b.Confidence)
		normalized = append(normalized, b)
		lines = append(lines, b.Text)
	}

	doc := domain.Document{
		ID:             uuid.NewString(),
		Filename:       filename,
		SourceType:     source,
		Blocks:         normalized,
		ExtractedText:  textclean.Clean(strings.Join(lines, "\n")),
		BlockCount:     len(normalized),
		OCRConfidence:  domain.MeanConfidence(normalized),
		ProcessingTime: processingSeconds,
		CreatedAt:      time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Documents = append(s.snap.Documents, doc)
	if err := s.persistLocked(); err != nil {
		s.snap.Documents = s.snap.Documents[:len(s.snap.Documents)-1]
		return nil, err
	}

	s.log.Info("document_stored", "document_id", doc.ID, "filename", filename, "blocks", doc.BlockCount)
	return &doc, nil
}

func (s *Store) Get(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.snap.Documents {
		if s.snap.Documents[i].ID == id {
			doc := s.snap.Documents[i]
			return &doc, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
}

// List returns all documents most-recent-first along with statistics
// computed fresh from the collection.
func (s *Store) List(_ context.Context) ([]domain.Document, domain.KnowledgeBaseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, len(s.snap.Documents))
	copy(docs, s.snap.Documents)
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, statsOf(docs), nil
}

func (s *Store) Stats(_ context.Context) (domain.KnowledgeBaseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return statsOf(s.snap.Documents), nil
}

// Delete removes the document and persists the shrunk snapshot. Deleting
// an unknown id reports ErrDocumentNotFound without touching the state.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.snap.Documents {
		if s.snap.Documents[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id %s", id))
	}

	removed := s.snap.Documents[idx]
	s.snap.Documents = append(s.snap.Documents[:idx], s.snap.Documents[idx+1:]...)
	if err := s.persistLocked(); err != nil {
		s.snap.Documents = append(s.snap.Documents, removed)
		return err
	}

	s.log.Info("document_deleted", "document_id", id)
	return nil
}

// persistLocked rewrites the snapshot via temp-file-then-rename. Callers
// must hold the write lock.
func (s *Store) persistLocked() error {
	s.snap.Metadata.TotalDocuments = len(s.snap.Documents)

	raw, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "encode snapshot", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "create snapshot temp file", err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		os.Remove(tmp)
		return domain.WrapError(domain.ErrStorage, "write snapshot", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return domain.WrapError(domain.ErrStorage, "sync snapshot", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return domain.WrapError(domain.ErrStorage, "close snapshot", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return domain.WrapError(domain.ErrStorage, "commit snapshot", err)
	}
	return nil
}

func statsOf(docs []domain.Document) domain.KnowledgeBaseStats {
	stats := domain.KnowledgeBaseStats{TotalDocuments: len(docs)}
	if len(docs) == 0 {
		return stats
	}
	confSum := 0.0
	for _, d := range docs {
		stats.TotalBlocks += d.BlockCount
		stats.TotalCharacters += len(d.ExtractedText)
		confSum += d.OCRConfidence
	}
	stats.AvgConfidence = confSum / float64(len(docs))
	return stats
}
