package models

// ResolutionSource records which strategy produced a ProductReference.
type ResolutionSource string

const (
	ResolvedFromMetadata    ResolutionSource = "metadata"
	ResolvedFromPriceID     ResolutionSource = "price_id"
	ResolvedFromProductID   ResolutionSource = "product_id"
	ResolvedFromDisplayName ResolutionSource = "display_name"
)

// ProductReference is the resolved identity of a purchased product.
type ProductReference struct {
	Key         string           `json:"key"`
	PriceID     string           `json:"price_id,omitempty"`
	ProductID   string           `json:"product_id,omitempty"`
	DisplayName string           `json:"display_name,omitempty"`
	Source      ResolutionSource `json:"source"`
}
