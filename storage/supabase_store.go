package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	storagego "github.com/supabase-community/storage-go"

	"github.com/kfimusic/beatstore/models"
)

const (
	storageAPIPath        = "/storage/v1"
	defaultRequestTimeout = 15 * time.Second
)

// ObjectStore is the slice of an object storage service fulfillment relies on.
type ObjectStore interface {
	// List returns up to limit entries directly under prefix, ordered by name.
	List(ctx context.Context, prefix string, limit, offset int) ([]models.ObjectEntry, error)
	// SignURL returns a time-limited URL for the object at path.
	SignURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// SupabaseStore talks to the Supabase Storage REST API for one bucket.
// Requests go through storage-go's client; paths are escaped here and every
// call carries the caller's context.
type SupabaseStore struct {
	baseURL string
	bucket  string
	client  *storagego.Client
}

func NewSupabaseStore(baseURL, apiKey, bucket string) *SupabaseStore {
	base := strings.TrimRight(baseURL, "/")
	return &SupabaseStore{
		baseURL: base,
		bucket:  bucket,
		client:  storagego.NewClient(base+storageAPIPath, apiKey, map[string]string{"apikey": apiKey}),
	}
}

func (s *SupabaseStore) Bucket() string { return s.bucket }

type listedObject struct {
	Name     string `json:"name"`
	Metadata *struct {
		MimeType string `json:"mimetype"`
		Size     int64  `json:"size"`
	} `json:"metadata"`
}

func (s *SupabaseStore) List(ctx context.Context, prefix string, limit, offset int) ([]models.ObjectEntry, error) {
	payload := storagego.ListFileRequestBody{
		Prefix:        prefix,
		Limit:         limit,
		Offset:        offset,
		SortByOptions: storagego.SortBy{Column: "name", Order: "asc"},
	}

	var listed []listedObject
	endpoint := fmt.Sprintf("%s%s/object/list/%s", s.baseURL, storageAPIPath, url.PathEscape(s.bucket))
	if err := s.post(ctx, "list", endpoint, payload, &listed); err != nil {
		return nil, err
	}

	entries := make([]models.ObjectEntry, 0, len(listed))
	for _, o := range listed {
		entry := models.ObjectEntry{Name: o.Name}
		if o.Metadata != nil {
			entry.MimeType = o.Metadata.MimeType
			entry.Size = o.Metadata.Size
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

func (s *SupabaseStore) SignURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	endpoint := fmt.Sprintf("%s%s/object/sign/%s/%s", s.baseURL, storageAPIPath, url.PathEscape(s.bucket), escapePath(path))

	var signed storagego.SignedUrlResponse
	if err := s.post(ctx, "sign", endpoint, signRequest{ExpiresIn: int(expiry / time.Second)}, &signed); err != nil {
		return "", err
	}
	if signed.SignedURL == "" {
		return "", &Error{Op: "sign", Status: http.StatusOK, Body: "empty signedURL for " + path}
	}
	if strings.HasPrefix(signed.SignedURL, "http") {
		return signed.SignedURL, nil
	}
	return s.baseURL + storageAPIPath + signed.SignedURL, nil
}

func (s *SupabaseStore) post(ctx context.Context, op, endpoint string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	req, err := s.client.NewRequest(http.MethodPost, endpoint, payload)
	if err != nil {
		return fmt.Errorf("failed to create storage %s request: %w", op, err)
	}

	resp, err := s.client.Do(req.WithContext(ctx), out)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err == nil {
		return nil
	}

	var apiErr *storagego.StorageError
	switch {
	case resp == nil:
		return &Error{Op: op, cause: err}
	case errors.As(err, &apiErr):
		se := &Error{Op: op, Status: resp.StatusCode, Body: apiErr.Message}
		if isNotFound(resp.StatusCode, apiErr.Message) {
			se.cause = ErrNotFound
		}
		return se
	default:
		return fmt.Errorf("failed to decode storage %s response: %w", op, err)
	}
}

// Supabase reports missing objects as 400 with a "not found" style message.
func isNotFound(status int, message string) bool {
	if status == http.StatusNotFound {
		return true
	}
	if status != http.StatusBadRequest {
		return false
	}
	lower := strings.ToLower(message)
	return strings.Contains(lower, "not found") || strings.Contains(lower, "not_found")
}

func escapePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
