package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kfimusic/beatstore/config"
	"github.com/kfimusic/beatstore/datastore"
	"github.com/kfimusic/beatstore/delivery"
	"github.com/kfimusic/beatstore/models"
	"github.com/kfimusic/beatstore/policy"
	"github.com/kfimusic/beatstore/products"
	"github.com/kfimusic/beatstore/storage"
)

type fakeSessions struct {
	RetrieveFn func(ctx context.Context, id string) (models.CheckoutSession, error)
}

func (f *fakeSessions) RetrieveSession(ctx context.Context, id string) (models.CheckoutSession, error) {
	return f.RetrieveFn(ctx, id)
}

func paidSession(id, email, priceID, productName string) *fakeSessions {
	return &fakeSessions{RetrieveFn: func(_ context.Context, got string) (models.CheckoutSession, error) {
		return models.CheckoutSession{
			ID:            got,
			PaymentStatus: "paid",
			Status:        "complete",
			CustomerEmail: email,
			PriceID:       priceID,
			ProductName:   productName,
		}, nil
	}}
}

// bucket is an in-memory ObjectStore keyed by folder prefix.
type bucket struct {
	mu      sync.Mutex
	folders map[string][]models.ObjectEntry
	signed  []time.Duration
}

func newBucket(paths ...string) *bucket {
	b := &bucket{folders: make(map[string][]models.ObjectEntry)}
	for _, p := range paths {
		folder, name := "", p
		if i := strings.LastIndex(p, "/"); i >= 0 {
			folder, name = p[:i], p[i+1:]
		}
		b.folders[folder] = append(b.folders[folder], models.ObjectEntry{Name: name, MimeType: "application/octet-stream"})
	}
	return b
}

func (b *bucket) List(_ context.Context, prefix string, limit, offset int) ([]models.ObjectEntry, error) {
	entries := b.folders[prefix]
	if offset >= len(entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end], nil
}

func (b *bucket) SignURL(_ context.Context, path string, expiry time.Duration) (string, error) {
	b.mu.Lock()
	b.signed = append(b.signed, expiry)
	b.mu.Unlock()
	return fmt.Sprintf("https://cdn.test/%s?expires=%d", path, int(expiry.Seconds())), nil
}

// scriptedLister returns queued results per folder, then falls back to next.
type scriptedLister struct {
	mu      sync.Mutex
	results map[string][]listResult
	calls   map[string]int
	next    FileLister
}

type listResult struct {
	files []models.DeliverableFile
	err   error
}

func (s *scriptedLister) ListSignedFiles(ctx context.Context, prefix string, expiry time.Duration) ([]models.DeliverableFile, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[prefix]++
	queue := s.results[prefix]
	if len(queue) > 0 {
		r := queue[0]
		s.results[prefix] = queue[1:]
		s.mu.Unlock()
		return r.files, r.err
	}
	s.mu.Unlock()
	if s.next != nil {
		return s.next.ListSignedFiles(ctx, prefix, expiry)
	}
	return nil, nil
}

type captureTransport struct {
	mu     sync.Mutex
	sent   []delivery.Message
	failN  int
	failed int
}

func (c *captureTransport) Name() string { return "resend" }

func (c *captureTransport) Send(_ context.Context, msg delivery.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed < c.failN {
		c.failed++
		return "", fmt.Errorf("provider unavailable")
	}
	c.sent = append(c.sent, msg)
	return fmt.Sprintf("email_%d", len(c.sent)), nil
}

func (c *captureTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type soldCall struct{ key, title string }

type fakeSold struct {
	mu    sync.Mutex
	calls []soldCall
	err   error
}

func (f *fakeSold) MarkSold(_ context.Context, key, title string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, soldCall{key, title})
	return 1, f.err
}

var testCatalog = config.Catalog{Products: []config.Product{
	{Key: "lucid", Name: "Lucid", PriceIDs: []string{"price_123"}, ProductIDs: []string{"prod_123"}},
	{Key: "midnight-run", Name: "Midnight Run", PriceIDs: []string{"price_mr"}},
}}

type harness struct {
	orch      *Orchestrator
	transport *captureTransport
	store     *datastore.MemoryFulfillmentStore
	sold      *fakeSold
	sleeps    []time.Duration
}

func newHarness(sessions *fakeSessions, lister FileLister) *harness {
	h := &harness{
		transport: &captureTransport{},
		store:     datastore.NewMemoryFulfillmentStore(),
		sold:      &fakeSold{},
	}
	notifier := delivery.NewNotifier(delivery.NotifierOptions{
		Renderer:   delivery.NewRenderer(delivery.Brand{FrontendURL: "https://kfimusic.com"}, policy.Default()),
		Identities: delivery.SenderIdentities{Branded: "KFI Music <hello@kfimusic.com>", Onboarding: "KFI Music <onboarding@resend.dev>"},
		Primary:    h.transport,
	})
	opts := Options{
		Resolver:   products.NewResolver(testCatalog),
		Lister:     lister,
		Notifier:   notifier,
		Store:      h.store,
		SoldMarker: h.sold,
		Sleep: func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
	}
	if sessions != nil {
		opts.Sessions = sessions
	}
	h.orch = NewOrchestrator(opts)
	return h
}

func completedEvent(sessionID string, metadata map[string]string) models.PurchaseEvent {
	return models.PurchaseEvent{
		ID:            "evt_" + sessionID,
		Type:          models.EventTypeCheckoutCompleted,
		Kind:          models.PurchaseEventCompleted,
		SessionID:     sessionID,
		CustomerEmail: "buyer@example.com",
		Metadata:      metadata,
	}
}

func lucidBucket() *bucket {
	return newBucket("lucid/Lucid.mp3", "lucid/Lucid.wav", "lucid/stems.zip")
}

func fileNames(files []models.DeliverableFile) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

func transientErr() error { return &storage.Error{Op: "list", Status: 503, Body: "upstream"} }
