package products

import (
	"testing"

	"github.com/kfimusic/beatstore/config"
	"github.com/kfimusic/beatstore/models"
)

func testResolver() *Resolver {
	return NewResolver(config.Catalog{Products: []config.Product{
		{Key: "lucid", Name: "Lucid", PriceIDs: []string{"price_lucid"}, ProductIDs: []string{"prod_lucid"}},
		{Key: "sunset", Name: "Sunset Drive", PriceIDs: []string{"price_sunset"}},
	}})
}

func TestResolve_MetadataWins(t *testing.T) {
	ref, ok := testResolver().Resolve(Hint{
		Metadata:    map[string]string{"beat": " Lucid "},
		PriceID:     "price_sunset",
		ProductName: "Something Else",
	})
	if !ok {
		t.Fatalf("expected resolution")
	}
	if ref.Key != "lucid" || ref.Source != models.ResolvedFromMetadata {
		t.Fatalf("unexpected reference: %+v", ref)
	}
	if ref.DisplayName != "Something Else" {
		t.Fatalf("expected processor display name to be kept, got %q", ref.DisplayName)
	}
}

func TestResolve_ClientReference(t *testing.T) {
	ref, ok := testResolver().Resolve(Hint{ClientReference: "sunset"})
	if !ok || ref.Key != "sunset" || ref.Source != models.ResolvedFromMetadata {
		t.Fatalf("unexpected reference: %+v ok=%v", ref, ok)
	}
	if ref.DisplayName != "Sunset Drive" {
		t.Fatalf("expected catalog display name, got %q", ref.DisplayName)
	}
}

func TestResolve_PriceThenProductTable(t *testing.T) {
	r := testResolver()

	ref, ok := r.Resolve(Hint{PriceID: "price_sunset", ProductID: "prod_lucid"})
	if !ok || ref.Key != "sunset" || ref.Source != models.ResolvedFromPriceID {
		t.Fatalf("expected price id to win, got %+v", ref)
	}

	ref, ok = r.Resolve(Hint{PriceID: "price_unknown", ProductID: "prod_lucid"})
	if !ok || ref.Key != "lucid" || ref.Source != models.ResolvedFromProductID {
		t.Fatalf("expected product id match, got %+v", ref)
	}
}

func TestResolve_DisplayNameSlug(t *testing.T) {
	ref, ok := testResolver().Resolve(Hint{ProductName: "  Midnight Run "})
	if !ok || ref.Key != "midnight run" || ref.Source != models.ResolvedFromDisplayName {
		t.Fatalf("unexpected reference: %+v", ref)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	if _, ok := testResolver().Resolve(Hint{PriceID: "price_nope"}); ok {
		t.Fatalf("expected unresolved")
	}
}

func TestPlan_DisplayNameFirstThenKey(t *testing.T) {
	plan := testResolver().Plan(Hint{
		Metadata:    map[string]string{"beat": "lucid"},
		ProductName: "Lucid (Exclusive)",
	})
	if plan.Primary != "lucid (exclusive)" || plan.Fallback != "lucid" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.BestEffort() != "lucid" {
		t.Fatalf("expected best effort to be the key, got %q", plan.BestEffort())
	}
}

func TestPlan_SameFolderHasNoFallback(t *testing.T) {
	plan := testResolver().Plan(Hint{Metadata: map[string]string{"beat": "lucid"}, ProductName: "Lucid"})
	if plan.Primary != "lucid" || plan.Fallback != "" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestPlan_KeyOnly(t *testing.T) {
	plan := testResolver().Plan(Hint{PriceID: "price_lucid"})
	if plan.Primary != "lucid" || plan.Fallback != "" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if !testResolver().Plan(Hint{}).Empty() {
		t.Fatalf("expected empty plan")
	}
}
