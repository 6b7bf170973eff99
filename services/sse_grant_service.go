package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

// GrantStream pushes a beneficiary's summary over SSE whenever it changes: a claim,
// a new grant or a monthly release.
type GrantStream struct {
	Summaries *SummaryService
	Now       func() time.Time
	Interval  time.Duration
}

func NewGrantStream(summaries *SummaryService, now func() time.Time, interval time.Duration) *GrantStream {
	return &GrantStream{Summaries: summaries, Now: now, Interval: interval}
}

// StreamUserGrantsSSE streams summary updates for the authenticated user
func (s *GrantStream) StreamUserGrantsSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User ID not found in context", "code": "unauthorized"})
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		var last []byte

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		push := func() bool {
			summary, err := s.Summaries.ForBeneficiary(context.Background(), userID, s.Now())
			if err != nil {
				log.Printf("[SSE] Summary error for user %s: %v", userID, err)
				return true
			}
			fingerprint, _ := json.Marshal([]interface{}{summary.Totals, summary.ByCampaign, summary.NextUnlockAt, summary.NextUnlockAmount})
			if bytes.Equal(fingerprint, last) {
				return true
			}
			last = fingerprint

			payload, _ := json.Marshal(summary)
			fmt.Fprintf(w, "event: summary\ndata: %s\n\n", payload)
			// Client disconnected
			return w.Flush() == nil
		}

		if !push() {
			return
		}
		for {
			select {
			case <-ticker.C:
				if !push() {
					return
				}
			case <-done:
				return
			}
		}
	})

	return nil
}
