package webhook

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/inkwellhq/inkwell/idgen"
	"github.com/inkwellhq/inkwell/syndication/internal/store"
)

// Result describes one delivery attempt.
type Result struct {
	Success    bool
	StatusCode int // 0 on transport failure
	Err        error
}

// Deliverer performs signed HTTP deliveries and records every attempt in the
// delivery log before returning.
type Deliverer struct {
	store   *store.Store
	client  *http.Client
	newID   idgen.Generator
	logger  *slog.Logger
	timeout time.Duration
}

// NewDeliverer creates a Deliverer. A zero timeout defaults to 5s; a hung
// subscriber must not stall the job processor.
func NewDeliverer(st *store.Store, timeout time.Duration, logger *slog.Logger) *Deliverer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deliverer{
		store:   st,
		client:  &http.Client{Timeout: timeout},
		newID:   idgen.Prefixed("dlv_", idgen.Default),
		logger:  logger,
		timeout: timeout,
	}
}

// Deliver serializes the event, signs it with the subscription secret, POSTs
// it to targetURL, and appends the outcome to the delivery log. The log write
// happens for every attempt, success or failure, before Deliver returns.
func (d *Deliverer) Deliver(ctx context.Context, subscriptionID, targetURL, secret string, event Event, attempt int) Result {
	body, err := event.Canonical()
	if err != nil {
		res := Result{Err: fmt.Errorf("serialize event: %w", err)}
		d.record(ctx, subscriptionID, event, attempt, res, 0)
		return res
	}

	deliveryID := d.newID()
	start := time.Now()
	res := d.post(ctx, targetURL, secret, event.Event, deliveryID, body)
	elapsed := time.Since(start)

	d.record(ctx, subscriptionID, event, attempt, res, elapsed.Milliseconds())

	if res.Success {
		d.logger.Debug("webhook: delivered",
			"subscription_id", subscriptionID, "event", event.Event,
			"status", res.StatusCode, "attempt", attempt, "delivery_id", deliveryID)
	} else {
		d.logger.Warn("webhook: delivery failed",
			"subscription_id", subscriptionID, "event", event.Event,
			"status", res.StatusCode, "attempt", attempt, "error", res.Err)
	}
	return res
}

func (d *Deliverer) post(ctx context.Context, targetURL, secret, eventType, deliveryID string, body []byte) Result {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, eventType)
	req.Header.Set(SignatureHeader, Sign(body, secret))
	req.Header.Set(DeliveryIDHeader, deliveryID)

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Success: true, StatusCode: resp.StatusCode}
	}
	return Result{
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("subscriber returned %d", resp.StatusCode),
	}
}

func (d *Deliverer) record(ctx context.Context, subscriptionID string, event Event, attempt int, res Result, durationMs int64) {
	attemptRow := &store.DeliveryAttempt{
		ID:             d.newID(),
		SubscriptionID: subscriptionID,
		PostID:         event.PostID,
		Event:          event.Event,
		Attempt:        attempt,
		DurationMs:     durationMs,
	}
	if res.StatusCode != 0 {
		code := res.StatusCode
		attemptRow.StatusCode = &code
	}
	if res.Err != nil {
		attemptRow.ErrorMessage = res.Err.Error()
	}
	if err := d.store.InsertDelivery(ctx, attemptRow); err != nil {
		d.logger.Error("webhook: delivery log write failed",
			"subscription_id", subscriptionID, "error", err)
	}
}
