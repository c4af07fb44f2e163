package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StreamMemberSubmissionsSSE streams the member's submission list over SSE,
// re-fetched whenever the store publishes a change for that member. One
// subscription hub feeds every connected stream — no per-view pollers
// racing to reconcile the same state.
func (s *SubmissionStore) StreamMemberSubmissionsSSE(c *fiber.Ctx) error {
	address := strings.ToLower(c.Locals("member_address").(string))

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	events, cancel := s.Subscribe()
	ctx := c.Context()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		emit := func() bool {
			subs, err := s.ListByAddress(address)
			if err != nil {
				log.Printf("SSE fetch error for %s: %v", address, err)
				return true
			}
			payload, _ := json.Marshal(subs)
			fmt.Fprintf(w, "event: submissions\ndata: %s\n\n", payload)
			return w.Flush() == nil
		}

		// Initial snapshot so the client doesn't wait for the first change.
		if !emit() {
			return
		}

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.MemberAddress != address {
					continue
				}
				if !emit() {
					return
				}

			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}
