package models

import "time"

// DeliverableFile is one object-storage entry paired with a signed access URL.
type DeliverableFile struct {
	Name   string        `json:"name"`
	Path   string        `json:"path"`
	URL    string        `json:"url"`
	Expiry time.Duration `json:"-"`
}

// ObjectEntry is a single row of a storage listing. An empty MimeType marks a folder.
type ObjectEntry struct {
	Name     string
	MimeType string
	Size     int64
}

func (e ObjectEntry) IsFolder() bool {
	return e.MimeType == ""
}
