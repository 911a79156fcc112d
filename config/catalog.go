package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Product is one catalog entry. Key is the canonical slug and also the
// storage folder name.
type Product struct {
	Key        string   `mapstructure:"key" yaml:"key"`
	Name       string   `mapstructure:"name" yaml:"name,omitempty"`
	PriceIDs   []string `mapstructure:"price_ids" yaml:"price_ids,omitempty"`
	ProductIDs []string `mapstructure:"product_ids" yaml:"product_ids,omitempty"`
	Preview    string   `mapstructure:"preview" yaml:"preview,omitempty"`
}

type Catalog struct {
	Products []Product `mapstructure:"products" yaml:"products"`
}

// LoadCatalog reads the catalog file at path. A missing file yields an error
// wrapping os.ErrNotExist.
func LoadCatalog(path string) (Catalog, error) {
	var cat Catalog
	if path == "" {
		return cat, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cat, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cat, err
	}
	if err := v.Unmarshal(&cat); err != nil {
		return cat, err
	}

	for i := range cat.Products {
		p := &cat.Products[i]
		p.Key = strings.ToLower(strings.TrimSpace(p.Key))
		p.Name = strings.TrimSpace(p.Name)
		p.Preview = strings.Trim(p.Preview, "/ ")
	}
	return cat, cat.Validate()
}

// Validate checks that keys are usable folder names and that no processor ID
// points at two different products.
func (c Catalog) Validate() error {
	keys := make(map[string]struct{}, len(c.Products))
	owners := make(map[string]string)

	for i, p := range c.Products {
		if p.Key == "" {
			return fmt.Errorf("catalog product #%d has an empty key", i)
		}
		if strings.ContainsAny(p.Key, "/ ") || p.Key != strings.ToLower(p.Key) {
			return fmt.Errorf("catalog key %q must be a lowercase slug", p.Key)
		}
		if _, dup := keys[p.Key]; dup {
			return fmt.Errorf("catalog key %q is listed twice", p.Key)
		}
		keys[p.Key] = struct{}{}

		ids := append(append([]string{}, p.PriceIDs...), p.ProductIDs...)
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if owner, ok := owners[id]; ok && owner != p.Key {
				return fmt.Errorf("processor id %q maps to both %q and %q", id, owner, p.Key)
			}
			owners[id] = p.Key
		}
	}
	return nil
}

// Find returns the product with the given canonical key.
func (c Catalog) Find(key string) (Product, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, p := range c.Products {
		if p.Key == key {
			return p, true
		}
	}
	return Product{}, false
}
