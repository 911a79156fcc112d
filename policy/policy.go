// Package policy decides which stored files a customer receives and in what order.
package policy

import (
	"sort"
	"strings"

	"github.com/kfimusic/beatstore/models"
)

const (
	rankBundle = iota
	rankMaster
	rankArchive
	rankOther
)

// Policy is the download allow-list. Suffixes are matched against the
// lowercased file name; BundleName is compared case-insensitively.
type Policy struct {
	Suffixes   []string
	MasterExt  string
	ArchiveExt string
	BundleName string
}

// Default delivers lossless masters and zip archives. The .mp3 previews used
// for in-browser audition never qualify.
func Default() Policy {
	return Policy{
		Suffixes:   []string{".wav", ".zip"},
		MasterExt:  ".wav",
		ArchiveExt: ".zip",
		BundleName: "stems.zip",
	}
}

// Allowed reports whether name is customer-facing.
func (p Policy) Allowed(name string) bool {
	n := strings.ToLower(name)
	for _, s := range p.Suffixes {
		if strings.HasSuffix(n, s) {
			return true
		}
	}
	return false
}

// Rank orders names for display: bundle, masters, other archives, the rest.
func (p Policy) Rank(name string) int {
	n := strings.ToLower(name)
	switch {
	case n == strings.ToLower(p.BundleName):
		return rankBundle
	case strings.HasSuffix(n, p.MasterExt):
		return rankMaster
	case strings.HasSuffix(n, p.ArchiveExt):
		return rankArchive
	default:
		return rankOther
	}
}

// FilterNames returns the allowed names sorted by rank. Ties keep input order.
func (p Policy) FilterNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if p.Allowed(n) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return p.Rank(out[i]) < p.Rank(out[j]) })
	return out
}

// Deliverable drops unusable and disallowed entries and sorts the rest.
func (p Policy) Deliverable(files []models.DeliverableFile) []models.DeliverableFile {
	out := make([]models.DeliverableFile, 0, len(files))
	for _, f := range files {
		if !usable(f) || !p.Allowed(f.Name) {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return p.Rank(out[i].Name) < p.Rank(out[j].Name) })
	return out
}

// Excluded lists the names Deliverable would drop.
func (p Policy) Excluded(files []models.DeliverableFile) []string {
	var out []string
	for _, f := range files {
		if !usable(f) || !p.Allowed(f.Name) {
			out = append(out, f.Name)
		}
	}
	return out
}

// HasBundle reports whether the files include the stems bundle.
func (p Policy) HasBundle(files []models.DeliverableFile) bool {
	for _, f := range files {
		if p.Rank(f.Name) == rankBundle {
			return true
		}
	}
	return false
}

// dot-files are storage placeholders, never products
func usable(f models.DeliverableFile) bool {
	return f.Name != "" && f.URL != "" && !strings.HasPrefix(f.Name, ".")
}
