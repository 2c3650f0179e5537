// Package storefs keeps exported notebook artifacts on the local filesystem.
package storefs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/peter-gy/marimo/export"
)

const metaSuffix = ".meta.json"

// Store writes artifacts under a root directory. Keys are slash-separated
// relative paths; a key that escapes the root is rejected.
type Store struct {
	Root   string
	Logger export.Logger
	Now    func() time.Time
}

// New creates a filesystem artifact store rooted at dir.
func New(dir string) *Store {
	return &Store{Root: dir, Now: time.Now}
}

var _ export.ArtifactStore = (*Store)(nil)

// Put writes the artifact atomically: content goes to a temp file first and
// is renamed into place, then the metadata sidecar follows.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta export.ArtifactMeta) (export.ArtifactRef, error) {
	_ = ctx
	target, err := s.resolve(key)
	if err != nil {
		return export.ArtifactRef{}, err
	}
	if r == nil {
		return export.ArtifactRef{}, export.NewError(export.KindValidation, "artifact content is required", nil)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return export.ArtifactRef{}, err
	}

	size, err := writeAtomic(target, func(w io.Writer) (int64, error) {
		return io.Copy(w, r)
	})
	if err != nil {
		return export.ArtifactRef{}, err
	}

	meta.Size = size
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = contentTypeFor(target)
	}
	if meta.Filename == "" {
		meta.Filename = filepath.Base(target)
	}

	if err := s.writeMeta(target, meta); err != nil {
		return export.ArtifactRef{}, err
	}

	s.logger().Debugf("stored artifact %s (%d bytes)", key, size)
	return export.ArtifactRef{Key: key, Meta: meta}, nil
}

// Open returns the artifact content and its metadata. Missing sidecar
// metadata is reconstructed from the file itself.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, export.ArtifactMeta, error) {
	_ = ctx
	target, err := s.resolve(key)
	if err != nil {
		return nil, export.ArtifactMeta{}, err
	}

	file, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, export.ArtifactMeta{}, export.NewError(export.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, export.ArtifactMeta{}, err
	}

	meta := s.readMeta(target)
	if meta.ContentType == "" {
		meta.ContentType = contentTypeFor(target)
	}
	if meta.Size == 0 {
		if info, statErr := file.Stat(); statErr == nil {
			meta.Size = info.Size()
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = info.ModTime()
			}
		}
	}
	if meta.Filename == "" {
		meta.Filename = filepath.Base(target)
	}

	return file, meta, nil
}

// Delete removes the artifact and its metadata sidecar. Deleting an absent
// key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_ = ctx
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	_ = os.Remove(target)
	_ = os.Remove(target + metaSuffix)
	return nil
}

func (s *Store) resolve(key string) (string, error) {
	if s == nil {
		return "", export.NewError(export.KindInternal, "artifact store is nil", nil)
	}
	if s.Root == "" {
		return "", export.NewError(export.KindValidation, "artifact store root is required", nil)
	}
	if key == "" {
		return "", export.NewError(export.KindValidation, "artifact key is required", nil)
	}

	rel := strings.TrimPrefix(path.Clean("/"+key), "/")
	if rel == "" || rel == "." {
		return "", export.NewError(export.KindValidation, "invalid artifact key", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", export.NewError(export.KindValidation, "artifact key escapes store root", nil)
	}
	return target, nil
}

func (s *Store) writeMeta(target string, meta export.ArtifactMeta) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = writeAtomic(target+metaSuffix, func(w io.Writer) (int64, error) {
		n, writeErr := w.Write(payload)
		return int64(n), writeErr
	})
	return err
}

// writeAtomic writes through a temp file in the target directory and renames
// it into place so readers never see partial content.
func writeAtomic(target string, write func(io.Writer) (int64, error)) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".artifact-*")
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := write(tmp)
	if err != nil {
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, err
	}
	return size, nil
}

func (s *Store) readMeta(target string) export.ArtifactMeta {
	data, err := os.ReadFile(target + metaSuffix)
	if err != nil {
		return export.ArtifactMeta{}
	}
	var meta export.ArtifactMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return export.ArtifactMeta{}
	}
	return meta
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Store) logger() export.Logger {
	if s == nil || s.Logger == nil {
		return export.NopLogger{}
	}
	return s.Logger
}

func contentTypeFor(target string) string {
	if strings.EqualFold(filepath.Ext(target), ".pdf") {
		return "application/pdf"
	}
	return mime.TypeByExtension(filepath.Ext(target))
}
