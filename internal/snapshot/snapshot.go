// Package snapshot exports every platform document to object storage as one
// JSON object per document plus a manifest listing them.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/edusync/platform-sync/internal/projection"
	"github.com/edusync/platform-sync/internal/projection/repository"
	"github.com/edusync/platform-sync/pkg/logger"
)

const contentType = "application/json"

// Source is the read side of the document store.
type Source interface {
	Get(ctx context.Context, id string) (*projection.PlatformDocument, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// Uploader writes one object.
type Uploader interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
}

// Manifest describes one export run. It is stored last, so a manifest only
// exists for runs whose documents were all uploaded.
type Manifest struct {
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"createdAt"`
	Documents []string  `json:"documents"`
	// Skipped lists ids that disappeared between listing and reading.
	Skipped []string `json:"skipped,omitempty"`
}

// Exporter copies the document store into an Uploader.
type Exporter struct {
	src  Source
	dst  Uploader
	root string
	now  func() time.Time
}

// NewExporter returns an exporter writing under root (for example "snapshots").
func NewExporter(src Source, dst Uploader, root string) *Exporter {
	return &Exporter{src: src, dst: dst, root: root, now: time.Now}
}

// ManifestKey returns the object key of a run's manifest.
func ManifestKey(prefix string) string {
	return path.Join(prefix, "manifest.json")
}

// Export uploads every document under <root>/<UTC timestamp>/ and then the manifest.
func (e *Exporter) Export(ctx context.Context) (Manifest, error) {
	created := e.now().UTC()
	m := Manifest{
		Prefix:    path.Join(e.root, created.Format("20060102T150405Z")),
		CreatedAt: created,
		Documents: []string{},
	}

	ids, err := e.src.ListIDs(ctx)
	if err != nil {
		return m, fmt.Errorf("list documents: %w", err)
	}
	for _, id := range ids {
		doc, err := e.src.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warnf("snapshot: document %s vanished during export", id)
			m.Skipped = append(m.Skipped, id)
			continue
		}
		if err != nil {
			return m, fmt.Errorf("read document %s: %w", id, err)
		}
		if err := e.put(ctx, path.Join(m.Prefix, "platforms", id+".json"), doc); err != nil {
			return m, err
		}
		m.Documents = append(m.Documents, id)
	}

	if err := e.put(ctx, ManifestKey(m.Prefix), m); err != nil {
		return m, err
	}
	logger.Infof("snapshot: exported %d documents to %s (%d skipped)", len(m.Documents), m.Prefix, len(m.Skipped))
	return m, nil
}

func (e *Exporter) put(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := e.dst.UploadFile(ctx, key, bytes.NewReader(b), int64(len(b)), contentType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
