package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"token-vesting-service/ledger"
	"token-vesting-service/metrics"
	"token-vesting-service/models"
	"token-vesting-service/utils"
)

// SettlementDispatcher delivers claim events from the outbox to the settlement service.
// Delivery is at-least-once; the receiver dedupes on the event id.
type SettlementDispatcher struct {
	Outbox     ledger.Outbox
	BaseURL    string
	Token      string
	BatchSize  int
	HTTPClient *http.Client
	Now        func() time.Time
}

func NewSettlementDispatcher(outbox ledger.Outbox, baseURL, token string) *SettlementDispatcher {
	return &SettlementDispatcher{
		Outbox:     outbox,
		BaseURL:    baseURL,
		Token:      token,
		BatchSize:  100,
		HTTPClient: utils.HTTPClient,
		Now:        time.Now,
	}
}

// PollSettlements dispatches pending events every pollInterval until ctx is done.
func PollSettlements(ctx context.Context, d *SettlementDispatcher, pollInterval time.Duration) {
	log.Println("Starting settlement dispatch (outbox-backed)...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Settlement dispatch stopped.")
			return
		case <-ticker.C:
			delivered, failed, err := d.DispatchPending(ctx)
			if err != nil {
				log.Printf("❌ [SETTLEMENT] Error reading outbox: %v", err)
				continue
			}
			if delivered+failed > 0 {
				log.Printf("📤 [SETTLEMENT] Delivered %d claim event(s), %d failed and will retry.", delivered, failed)
			}
		}
	}
}

// DispatchPending sends one batch of undelivered events. A failed delivery is recorded
// on the event and retried on a later call, behind events with fewer attempts.
func (d *SettlementDispatcher) DispatchPending(ctx context.Context) (delivered, failed int, err error) {
	events, err := d.Outbox.PendingEvents(ctx, d.BatchSize)
	if err != nil {
		return 0, 0, err
	}

	for i := range events {
		ev := &events[i]
		if sendErr := d.send(ctx, ev); sendErr != nil {
			failed++
			metrics.SettlementDeliveriesTotal.WithLabelValues("failed").Inc()
			log.Printf("⚠️ [SETTLEMENT] Event %s (grant %s, attempt %d) failed: %v", ev.ID, ev.GrantID, ev.Attempts+1, sendErr)
			if markErr := d.Outbox.MarkFailed(ctx, ev.ID, sendErr.Error()); markErr != nil {
				log.Printf("❌ [SETTLEMENT] Could not record failure for %s: %v", ev.ID, markErr)
			}
			continue
		}

		if markErr := d.Outbox.MarkDelivered(ctx, ev.ID, d.Now()); markErr != nil {
			// The receiver dedupes, so a redelivery after this is harmless
			log.Printf("❌ [SETTLEMENT] Delivered %s but could not mark it: %v", ev.ID, markErr)
			continue
		}
		delivered++
		metrics.SettlementDeliveriesTotal.WithLabelValues("delivered").Inc()
	}
	return delivered, failed, nil
}

func (d *SettlementDispatcher) send(ctx context.Context, ev *models.ClaimEvent) error {
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse base URL: %w", err)
	}
	endpoint := u.JoinPath("/api/v1/settlements").String()

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode claim event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", d.Token)
	req.Header.Set("Idempotency-Key", ev.ID)

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call settlement service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("settlement service returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
