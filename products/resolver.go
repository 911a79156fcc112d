// Package products maps payment events onto canonical product keys and the
// storage folders that hold their files.
package products

import (
	"strings"

	"github.com/kfimusic/beatstore/config"
	"github.com/kfimusic/beatstore/models"
)

// Metadata keys checked, in order, for an explicit product tag.
var metadataKeys = []string{"beat", "product"}

// Hint carries everything an inbound trigger knows about the purchase.
type Hint struct {
	Metadata        map[string]string
	ClientReference string
	PriceID         string
	ProductID       string
	ProductName     string
}

// FolderPlan is the ordered list of storage folders to try.
type FolderPlan struct {
	Primary  string
	Fallback string
}

// Empty reports whether there is nothing to list at all.
func (p FolderPlan) Empty() bool { return p.Primary == "" }

// BestEffort names the folder to report when nothing was found.
func (p FolderPlan) BestEffort() string {
	if p.Fallback != "" {
		return p.Fallback
	}
	return p.Primary
}

// Resolver is built once from the catalog and is safe for concurrent use.
type Resolver struct {
	byProcessorID map[string]string
	names         map[string]string
}

func NewResolver(cat config.Catalog) *Resolver {
	r := &Resolver{
		byProcessorID: make(map[string]string),
		names:         make(map[string]string),
	}
	for _, p := range cat.Products {
		for _, id := range p.PriceIDs {
			if id = strings.TrimSpace(id); id != "" {
				r.byProcessorID[id] = p.Key
			}
		}
		for _, id := range p.ProductIDs {
			if id = strings.TrimSpace(id); id != "" {
				r.byProcessorID[id] = p.Key
			}
		}
		r.names[p.Key] = p.Name
	}
	return r
}

// Resolve applies the resolution chain: explicit tag, processor id table,
// display name. The boolean is false when nothing matched.
func (r *Resolver) Resolve(h Hint) (models.ProductReference, bool) {
	ref := models.ProductReference{
		PriceID:     h.PriceID,
		ProductID:   h.ProductID,
		DisplayName: strings.TrimSpace(h.ProductName),
	}

	if key := explicitKey(h); key != "" {
		ref.Key, ref.Source = key, models.ResolvedFromMetadata
	} else if key := r.lookup(h.PriceID); key != "" {
		ref.Key, ref.Source = key, models.ResolvedFromPriceID
	} else if key := r.lookup(h.ProductID); key != "" {
		ref.Key, ref.Source = key, models.ResolvedFromProductID
	} else if key := Slugify(h.ProductName); key != "" {
		ref.Key, ref.Source = key, models.ResolvedFromDisplayName
	} else {
		return models.ProductReference{}, false
	}

	if ref.DisplayName == "" {
		ref.DisplayName = r.names[ref.Key]
	}
	return ref, true
}

// Plan picks the folders to list. The display-name folder goes first since it
// tends to match the storage layout exactly; the tag or table key is the fallback.
func (r *Resolver) Plan(h Hint) FolderPlan {
	key := explicitKey(h)
	if key == "" {
		key = r.lookup(h.PriceID)
	}
	if key == "" {
		key = r.lookup(h.ProductID)
	}

	plan := FolderPlan{Primary: Slugify(h.ProductName)}
	if plan.Primary == "" {
		plan.Primary = key
		return plan
	}
	if key != "" && key != plan.Primary {
		plan.Fallback = key
	}
	return plan
}

func (r *Resolver) lookup(id string) string {
	if id == "" {
		return ""
	}
	return r.byProcessorID[id]
}

func explicitKey(h Hint) string {
	for _, k := range metadataKeys {
		if v := normalizeKey(h.Metadata[k]); v != "" {
			return v
		}
	}
	return normalizeKey(h.ClientReference)
}

func normalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Slugify turns a processor display name into a folder name.
func Slugify(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
