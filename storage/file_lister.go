package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kfimusic/beatstore/models"
)

// PageSize is the number of entries requested per listing call.
const PageSize = 100

// FileLister walks a folder prefix and signs every leaf object under it.
type FileLister struct {
	store    ObjectStore
	pageSize int
}

func NewFileLister(store ObjectStore) *FileLister {
	return &FileLister{store: store, pageSize: PageSize}
}

// ListSignedFiles returns every leaf under prefix with a URL valid for expiry.
// The folder's own files come first in listing order, then each sub-folder's
// files depth-first. An empty prefix lists the bucket root. A folder whose
// first page is empty does not exist and yields no files. Any list or sign
// error aborts the walk.
func (l *FileLister) ListSignedFiles(ctx context.Context, prefix string, expiry time.Duration) ([]models.DeliverableFile, error) {
	if l == nil || l.store == nil {
		return nil, ErrNotConfigured
	}

	var (
		files   []models.DeliverableFile
		folders []string
	)

	for offset := 0; ; offset += l.pageSize {
		entries, err := l.store.List(ctx, prefix, l.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list %q at offset %d: %w", prefix, offset, err)
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			path := joinPath(prefix, entry.Name)
			if entry.IsFolder() {
				folders = append(folders, path)
				continue
			}

			url, err := l.store.SignURL(ctx, path, expiry)
			if err != nil {
				return nil, fmt.Errorf("failed to sign %q: %w", path, err)
			}
			files = append(files, models.DeliverableFile{
				Name:   entry.Name,
				Path:   path,
				URL:    url,
				Expiry: expiry,
			})
		}

		if len(entries) < l.pageSize {
			break
		}
	}

	for _, folder := range folders {
		nested, err := l.ListSignedFiles(ctx, folder, expiry)
		if err != nil {
			return nil, err
		}
		files = append(files, nested...)
	}
	return files, nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
