// workers/issuance_worker.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"token-vesting-service/ledger"
	"token-vesting-service/models"
	"token-vesting-service/services"
	"token-vesting-service/utils"
	"token-vesting-service/vesting"
)

// RewardEvent matches one entry of the issuance service's reward-events feed.
type RewardEvent struct {
	ID                   string                `json:"id"`
	UserID               string                `json:"user_id"`
	Campaign             string                `json:"campaign"` // campaign id or slug
	Amount               string                `json:"amount,omitempty"`
	AmountUnits          string                `json:"amount_units,omitempty"`
	InstantUnlockPercent *int                  `json:"instant_unlock_percent,omitempty"`
	Vesting              *models.VestingPolicy `json:"vesting,omitempty"`
	OccurredAt           time.Time             `json:"occurred_at"`
}

type rewardEventsResponse struct {
	Events []RewardEvent `json:"events"`
}

type IssuanceIntakeWorker struct {
	grants       *services.GrantService
	interval     time.Duration
	baseURL      string // e.g., "http://issuance:8600"
	endpointPath string
	serviceToken string
	httpClient   *http.Client
	now          func() time.Time

	since time.Time
}

func NewIssuanceIntakeWorker(grants *services.GrantService, issuanceBaseURL, serviceToken string, interval time.Duration) *IssuanceIntakeWorker {
	return &IssuanceIntakeWorker{
		grants:       grants,
		interval:     interval,
		baseURL:      issuanceBaseURL,
		endpointPath: "/api/v1/public/reward-events",
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
		now:          time.Now,
	}
}

func (w *IssuanceIntakeWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Issuance Intake Worker (reward events → grants)…")
	go w.run(ctx)
}

func (w *IssuanceIntakeWorker) run(ctx context.Context) {
	// Initial pass replays from the beginning; source_ref makes it idempotent
	if _, err := w.syncBatch(ctx); err != nil {
		log.Printf("⚠️ [INTAKE] Initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.syncBatch(ctx); err != nil {
				log.Printf("❌ [INTAKE] Sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Issuance Intake Worker stopped")
			return
		}
	}
}

// syncBatch fetches reward events newer than the cursor and issues a grant for each.
// It returns the number of new grants. The cursor only moves once the whole batch has
// been handled; a transient failure replays the same window next tick.
func (w *IssuanceIntakeWorker) syncBatch(ctx context.Context) (int, error) {
	events, err := w.fetch(ctx, w.since)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		log.Printf("[INTAKE] ✅ No reward events since %s", w.since.UTC().Format(time.RFC3339))
		return 0, nil
	}

	var created, duplicates, rejected int
	latest := w.since
	for _, ev := range events {
		err := w.ingest(ctx, ev)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ledger.ErrDuplicateGrant):
			duplicates++
		case rejectedEvent(err):
			rejected++
			log.Printf("[INTAKE] ⚠️ Rejected reward event %s for %s: %v", ev.ID, ev.UserID, err)
		default:
			return created, fmt.Errorf("ingest reward event %s: %w", ev.ID, err)
		}
		if ev.OccurredAt.After(latest) {
			latest = ev.OccurredAt
		}
	}
	w.since = latest

	log.Printf("[INTAKE] 📥 Processed %d event(s): %d granted, %d already ingested, %d rejected. Cursor=%s",
		len(events), created, duplicates, rejected, w.since.UTC().Format(time.RFC3339))
	return created, nil
}

func (w *IssuanceIntakeWorker) ingest(ctx context.Context, ev RewardEvent) error {
	req := services.CreateGrantRequest{
		Beneficiary:          ev.UserID,
		CampaignID:           ev.Campaign,
		SourceRef:            ev.ID,
		Amount:               ev.Amount,
		AmountUnits:          ev.AmountUnits,
		InstantUnlockPercent: ev.InstantUnlockPercent,
		Vesting:              ev.Vesting,
	}
	if !ev.OccurredAt.IsZero() {
		occurred := ev.OccurredAt
		req.GrantedAt = &occurred
	}
	_, err := w.grants.Create(ctx, req, w.now())
	return err
}

// rejectedEvent reports whether err is a property of the event itself, so retrying it
// can never succeed.
func rejectedEvent(err error) bool {
	for _, target := range []error{
		vesting.ErrInvalidPolicy,
		vesting.ErrInvalidPercent,
		services.ErrInvalidAmount,
		services.ErrInvalidGrant,
		services.ErrPoolExhausted,
		services.ErrCampaignNotOpen,
		ledger.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (w *IssuanceIntakeWorker) fetch(ctx context.Context, since time.Time) ([]RewardEvent, error) {
	sinceStr := since.UTC().Format(time.RFC3339Nano)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid issuance service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to issuance service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("issuance service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response rewardEventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode issuance service response: %w", err)
	}
	return response.Events, nil
}
