// Package fulfillment turns a verified payment into a delivered download email.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/kfimusic/beatstore/config"
	"github.com/kfimusic/beatstore/delivery"
	"github.com/kfimusic/beatstore/metrics"
	"github.com/kfimusic/beatstore/models"
	"github.com/kfimusic/beatstore/payments"
	"github.com/kfimusic/beatstore/policy"
	"github.com/kfimusic/beatstore/products"
	"github.com/kfimusic/beatstore/storage"
)

const (
	// EmailLinkExpiry is the lifetime of links sent by email.
	EmailLinkExpiry = 24 * time.Hour
	// PollingLinkExpiry is the lifetime of links returned to the browser.
	PollingLinkExpiry = time.Hour

	soldMarkTimeout = 5 * time.Second
)

// FileLister enumerates signed files under a storage folder.
type FileLister interface {
	ListSignedFiles(ctx context.Context, prefix string, expiry time.Duration) ([]models.DeliverableFile, error)
}

// Notifier emails download links.
type Notifier interface {
	Configured() bool
	Send(ctx context.Context, req delivery.DownloadRequest) ([]models.DeliveryAttempt, error)
}

// FulfillmentStore guards each session against duplicate notification.
type FulfillmentStore interface {
	Claim(ctx context.Context, sessionID string) (token string, ok bool, err error)
	Complete(ctx context.Context, sessionID string) error
	Release(ctx context.Context, sessionID, token string) error
}

// SoldMarker flags a catalog item as sold.
type SoldMarker interface {
	MarkSold(ctx context.Context, key, title string) (int64, error)
}

// Options wires an Orchestrator. Sessions, Lister and Notifier may be nil when
// the corresponding service is not configured; SoldMarker is optional.
type Options struct {
	Sessions    payments.SessionRetriever
	Resolver    *products.Resolver
	Lister      FileLister
	Policy      policy.Policy
	Notifier    Notifier
	Store       FulfillmentStore
	SoldMarker  SoldMarker
	Retry       RetryPolicy
	Fingerprint func(string) string
	// Sleep replaces the backoff wait in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator runs the fulfillment state machine for both entry points.
type Orchestrator struct {
	sessions    payments.SessionRetriever
	resolver    *products.Resolver
	lister      FileLister
	policy      policy.Policy
	notifier    Notifier
	store       FulfillmentStore
	sold        SoldMarker
	retry       RetryPolicy
	fingerprint func(string) string
	sleep       func(ctx context.Context, d time.Duration) error
	rng         *lockedRand
}

func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		sessions:    opts.Sessions,
		resolver:    opts.Resolver,
		lister:      opts.Lister,
		policy:      opts.Policy,
		notifier:    opts.Notifier,
		store:       opts.Store,
		sold:        opts.SoldMarker,
		retry:       opts.Retry,
		fingerprint: opts.Fingerprint,
		sleep:       opts.Sleep,
		rng:         newLockedRand(time.Now().UnixNano()),
	}
	if o.resolver == nil {
		o.resolver = products.NewResolver(config.Catalog{})
	}
	if len(o.policy.Suffixes) == 0 {
		o.policy = policy.Default()
	}
	if o.retry.Attempts < 1 {
		o.retry = DefaultRetryPolicy()
	}
	if o.fingerprint == nil {
		o.fingerprint = func(s string) string { return s }
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	return o
}

// HandleEvent runs the webhook path for an authenticated event. Failures are
// reported in the Outcome and never returned to the processor.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev models.PurchaseEvent) Outcome {
	start := time.Now()
	out := o.handleEvent(ctx, ev)
	o.report(EntryWebhook, out, time.Since(start))
	return out
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev models.PurchaseEvent) Outcome {
	out := Outcome{State: StateAuthenticated, SessionID: ev.SessionID}
	if !ev.TriggersFulfillment() {
		out.State = StateIgnored
		out.Skipped = "event type " + ev.Type
		return out
	}
	if ev.SessionID == "" {
		out.State = StateIgnored
		out.Skipped = "event carries no session id"
		return out
	}

	hint := products.Hint{
		Metadata:        ev.Metadata,
		ClientReference: ev.ClientReference,
	}
	email := strings.TrimSpace(ev.CustomerEmail)

	if o.sessions != nil {
		session, err := o.sessions.RetrieveSession(ctx, ev.SessionID)
		if err != nil {
			log.Printf("WARN (Orchestrator): session %s lookup failed, continuing with event data: %v", ev.SessionID, err)
		} else {
			hint.PriceID = session.PriceID
			hint.ProductID = session.ProductID
			hint.ProductName = session.ProductName
			if len(hint.Metadata) == 0 {
				hint.Metadata = session.Metadata
			}
			if hint.ClientReference == "" {
				hint.ClientReference = session.ClientReference
			}
			if email == "" {
				email = strings.TrimSpace(session.CustomerEmail)
			}
		}
	}

	ref, resolved := o.resolver.Resolve(hint)
	plan := o.resolver.Plan(hint)
	if !resolved || plan.Empty() {
		out.State = StateUnresolved
		out.Skipped = "no product matched the event"
		return out
	}
	out.State = StateResolved
	out.Product = ref.Key

	o.markSold(ctx, ref, hint.ProductName)

	files, folder, err := o.listWithFallback(ctx, plan, EmailLinkExpiry)
	out.Folder = folder
	if err != nil {
		out.State = StateFailed
		out.Err = err
		return out
	}
	out.State = StateListed
	out.Files = files

	productName := firstNonEmpty(hint.ProductName, ref.DisplayName)
	notified, skipped, err := o.notify(ctx, notifyRequest{
		SessionID:   ev.SessionID,
		To:          email,
		ProductName: productName,
		Files:       files,
		Expiry:      EmailLinkExpiry,
	})
	out.Notified = notified
	out.Skipped = skipped
	out.Err = err
	out.State = finalState(notified)
	return out
}

// ConfirmDownloads runs the polling path: verify payment, list files with
// short-lived links and opportunistically email long-lived ones.
func (o *Orchestrator) ConfirmDownloads(ctx context.Context, productKey, sessionID string) (*DownloadConfirmation, error) {
	start := time.Now()
	out := Outcome{State: StateReceived, SessionID: sessionID, Product: productKey}
	defer func() { o.report(EntryPolling, out, time.Since(start)) }()

	if o.sessions == nil {
		out.State, out.Err = StateFailed, fmt.Errorf("%w: payment processor", ErrNotConfigured)
		return nil, out.Err
	}
	if o.lister == nil {
		out.State, out.Err = StateFailed, fmt.Errorf("%w: object storage", ErrNotConfigured)
		return nil, out.Err
	}

	session, err := o.sessions.RetrieveSession(ctx, sessionID)
	if err != nil {
		out.State, out.Err = StateFailed, fmt.Errorf("%w: %v", ErrProcessor, err)
		return nil, out.Err
	}
	if !session.Paid() {
		out.State, out.Err = StateRejected, ErrPaymentNotVerified
		return nil, out.Err
	}
	out.State = StateAuthenticated

	hint := products.Hint{
		ClientReference: productKey,
		PriceID:         session.PriceID,
		ProductID:       session.ProductID,
		ProductName:     session.ProductName,
	}
	plan := o.resolver.Plan(hint)
	if plan.Empty() {
		out.State, out.Err = StateUnresolved, fmt.Errorf("%w for %s", ErrNoFiles, productKey)
		return nil, out.Err
	}
	out.State = StateResolved

	files, folder, err := o.listWithFallback(ctx, plan, PollingLinkExpiry)
	out.Folder = folder
	if err != nil {
		out.State, out.Err = StateFailed, fmt.Errorf("%w: %v", ErrStorage, err)
		return nil, out.Err
	}
	if len(files) == 0 {
		out.State, out.Err = StateFailed, fmt.Errorf("%w for %s", ErrNoFiles, plan.BestEffort())
		return nil, out.Err
	}
	out.State = StateListed
	out.Files = files

	notified, skipped, sendErr := o.notify(ctx, notifyRequest{
		SessionID:   sessionID,
		To:          strings.TrimSpace(session.CustomerEmail),
		ProductName: firstNonEmpty(session.ProductName, folder),
		Folder:      folder,
		Expiry:      EmailLinkExpiry,
	})
	out.Notified, out.Skipped = notified, skipped
	if sendErr != nil {
		log.Printf("WARN (Orchestrator): opportunistic email for session %s failed: %v", sessionID, sendErr)
	}
	out.State = finalState(notified)

	links := make([]DownloadLink, 0, len(files))
	for _, f := range files {
		links = append(links, DownloadLink{Name: f.Name, URL: f.URL})
	}
	return &DownloadConfirmation{
		Product:   folder,
		SessionID: sessionID,
		Count:     len(links),
		Files:     links,
	}, nil
}

// TestSendResult reports an operator-triggered test email.
type TestSendResult struct {
	To        string                   `json:"to"`
	Folder    string                   `json:"folder"`
	Count     int                      `json:"count"`
	Transport string                   `json:"transport"`
	Attempts  []models.DeliveryAttempt `json:"attempts"`
}

// SendTestDownload emails an arbitrary folder's files with one-hour links.
// It bypasses the session claim.
func (o *Orchestrator) SendTestDownload(ctx context.Context, to, folder, transport string) (*TestSendResult, error) {
	if o.notifier == nil || !o.notifier.Configured() {
		return nil, fmt.Errorf("%w: email transport", ErrNotConfigured)
	}
	if o.lister == nil {
		return nil, fmt.Errorf("%w: object storage", ErrNotConfigured)
	}

	files, err := o.listFolder(ctx, folder, PollingLinkExpiry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	attempts, err := o.notifier.Send(ctx, delivery.DownloadRequest{
		To:          to,
		ProductName: folder,
		Files:       files,
		Expiry:      PollingLinkExpiry,
		Transport:   transport,
	})
	countAttempts(attempts)
	if err != nil {
		return nil, err
	}
	return &TestSendResult{
		To:        to,
		Folder:    folder,
		Count:     len(files),
		Transport: lastTransport(attempts),
		Attempts:  attempts,
	}, nil
}

type notifyRequest struct {
	SessionID   string
	To          string
	ProductName string
	// Files are sent as-is when set; otherwise Folder is listed afresh.
	Files  []models.DeliverableFile
	Folder string
	Expiry time.Duration
}

// notify sends at most one email per session. It returns whether an email was
// sent, the reason when it was skipped, and any send error.
func (o *Orchestrator) notify(ctx context.Context, req notifyRequest) (bool, string, error) {
	switch {
	case req.To == "":
		log.Printf("WARN (Orchestrator): no customer email for session %s", req.SessionID)
		return false, "no customer email", nil
	case len(req.Files) == 0 && req.Folder == "":
		return false, "no deliverable files", nil
	case o.notifier == nil || !o.notifier.Configured():
		return false, "email not configured", nil
	case o.store == nil:
		return false, "fulfillment store not configured", nil
	}

	token, claimed, err := o.store.Claim(ctx, req.SessionID)
	if err != nil {
		return false, "", fmt.Errorf("claim session %s: %w", req.SessionID, err)
	}
	if !claimed {
		return false, "already notified", nil
	}

	files := req.Files
	if len(files) == 0 {
		files, err = o.listFolder(ctx, req.Folder, req.Expiry)
		if err == nil && len(files) == 0 {
			err = fmt.Errorf("%w for %s", ErrNoFiles, req.Folder)
		}
		if err != nil {
			o.release(ctx, req.SessionID, token)
			return false, "", fmt.Errorf("refresh links for %s: %w", req.Folder, err)
		}
	}

	attempts, err := o.notifier.Send(ctx, delivery.DownloadRequest{
		SessionID:   req.SessionID,
		To:          req.To,
		ProductName: req.ProductName,
		Files:       files,
		Expiry:      req.Expiry,
	})
	countAttempts(attempts)
	if err != nil {
		o.release(ctx, req.SessionID, token)
		return false, "", err
	}

	if err := o.store.Complete(context.WithoutCancel(ctx), req.SessionID); err != nil {
		log.Printf("ERROR (Orchestrator): email sent for session %s but completion was not recorded: %v", req.SessionID, err)
	}
	log.Printf("INFO (Orchestrator): download email for session %s sent to %s (%d files)", req.SessionID, o.fingerprint(req.To), len(files))
	return true, "", nil
}

// finalState separates runs that sent the download email from runs that
// finished without sending one.
func finalState(notified bool) State {
	if notified {
		return StateNotified
	}
	return StateDone
}

func (o *Orchestrator) release(ctx context.Context, sessionID, token string) {
	if err := o.store.Release(context.WithoutCancel(ctx), sessionID, token); err != nil {
		log.Printf("WARN (Orchestrator): failed to release claim for session %s: %v", sessionID, err)
	}
}

// listWithFallback lists plan.Primary, switching to plan.Fallback when the
// primary folder errors or yields nothing deliverable. The returned folder is
// the one the files came from, or the last one tried.
func (o *Orchestrator) listWithFallback(ctx context.Context, plan products.FolderPlan, expiry time.Duration) ([]models.DeliverableFile, string, error) {
	if o.lister == nil {
		return nil, plan.Primary, fmt.Errorf("%w: object storage", ErrNotConfigured)
	}

	files, err := o.listFolder(ctx, plan.Primary, expiry)
	if err == nil && (len(files) > 0 || plan.Fallback == "") {
		return files, plan.Primary, nil
	}
	if plan.Fallback == "" {
		return nil, plan.Primary, err
	}
	if err != nil {
		log.Printf("WARN (Orchestrator): listing %q failed, trying %q: %v", plan.Primary, plan.Fallback, err)
	}

	files, err = o.listFolder(ctx, plan.Fallback, expiry)
	if err != nil {
		return nil, plan.Fallback, err
	}
	return files, plan.Fallback, nil
}

// listFolder lists one folder with transient-error retries and applies the
// download policy.
func (o *Orchestrator) listFolder(ctx context.Context, folder string, expiry time.Duration) ([]models.DeliverableFile, error) {
	var (
		raw []models.DeliverableFile
		err error
	)
	for attempt := 1; attempt <= o.retry.Attempts; attempt++ {
		raw, err = o.lister.ListSignedFiles(ctx, folder, expiry)
		if err == nil || !storage.IsTransient(err) || attempt == o.retry.Attempts {
			break
		}
		metrics.StorageRetriesTotal.Inc()
		delay := o.rng.delay(attempt, o.retry)
		log.Printf("WARN (Orchestrator): transient storage error listing %q (attempt %d/%d), retrying in %s: %v",
			folder, attempt, o.retry.Attempts, delay, err)
		if sleepErr := o.sleep(ctx, delay); sleepErr != nil {
			return nil, errors.Join(err, sleepErr)
		}
	}
	if err != nil {
		return nil, err
	}

	files := o.policy.Deliverable(raw)
	if excluded := o.policy.Excluded(raw); len(excluded) > 0 {
		slog.Warn("files excluded by download policy", "folder", folder, "excluded", excluded, "kept", len(files))
	}
	if len(files) > 0 && !o.policy.HasBundle(files) {
		slog.Warn("folder has no stems bundle", "folder", folder, "bundle", o.policy.BundleName)
	}
	return files, nil
}

// markSold flags the product as sold without delaying or failing the run.
func (o *Orchestrator) markSold(ctx context.Context, ref models.ProductReference, title string) {
	if o.sold == nil {
		return
	}
	key := ""
	if ref.Source != models.ResolvedFromDisplayName {
		key = ref.Key
	}
	if key == "" && strings.TrimSpace(title) == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), soldMarkTimeout)
	defer cancel()
	n, err := o.sold.MarkSold(ctx, key, title)
	if err != nil {
		log.Printf("WARN (Orchestrator): failed to mark %q sold: %v", firstNonEmpty(key, title), err)
		return
	}
	if n == 0 {
		log.Printf("INFO (Orchestrator): no catalog row matched %q when marking sold", firstNonEmpty(key, title))
	}
}

func (o *Orchestrator) report(entry string, out Outcome, elapsed time.Duration) {
	metrics.FulfillmentOutcomesTotal.WithLabelValues(entry, string(out.State)).Inc()
	metrics.FulfillmentDuration.WithLabelValues(entry).Observe(elapsed.Seconds())

	attrs := []any{
		"entry", entry,
		"state", string(out.State),
		"session_id", out.SessionID,
		"product", out.Product,
		"folder", out.Folder,
		"files", len(out.Files),
		"notified", out.Notified,
		"duration_ms", elapsed.Milliseconds(),
	}
	if out.Skipped != "" {
		attrs = append(attrs, "skipped", out.Skipped)
	}
	if out.Err != nil {
		attrs = append(attrs, "error", out.Err.Error())
		slog.Error("fulfillment outcome", attrs...)
		return
	}
	slog.Info("fulfillment outcome", attrs...)
}

func countAttempts(attempts []models.DeliveryAttempt) {
	for _, a := range attempts {
		metrics.EmailAttemptsTotal.WithLabelValues(a.Transport, string(a.Status)).Inc()
	}
}

func lastTransport(attempts []models.DeliveryAttempt) string {
	if len(attempts) == 0 {
		return ""
	}
	return attempts[len(attempts)-1].Transport
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
