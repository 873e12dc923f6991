// ABOUTME: SSE consumer for the bridge change feed
// ABOUTME: Parses event/data frames into Change values on a channel

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Change is one store mutation received from the change feed.
type Change struct {
	Store  string    `json:"store"`
	Key    string    `json:"key"`
	Value  any       `json:"value"`
	Origin string    `json:"origin"`
	Time   time.Time `json:"time"`
}

// Watch opens the change feed and delivers changes until ctx is done or
// the server closes the stream. When store is non-empty only that store's
// changes are delivered. The channel is closed when the stream ends.
func (c *Client) Watch(ctx context.Context, store string) (<-chan Change, error) {
	target := c.baseURL + "/api/events"
	if store != "" {
		target += "?store=" + url.QueryEscape(store)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// Streaming request: the client timeout would cut the feed off, so use
	// the transport directly and rely on ctx for cancellation.
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode}
	}

	changes := make(chan Change)
	go func() {
		defer close(changes)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var eventType, data string

		for scanner.Scan() {
			line := scanner.Text()

			// Empty line signals end of event
			if line == "" {
				if eventType == "change" && data != "" {
					var change Change
					if err := json.Unmarshal([]byte(data), &change); err == nil {
						select {
						case changes <- change:
						case <-ctx.Done():
							return
						}
					}
				}
				eventType, data = "", ""
				continue
			}

			if strings.HasPrefix(line, ":") {
				continue // heartbeat comment
			}
			if after, ok := strings.CutPrefix(line, "event:"); ok {
				eventType = strings.TrimSpace(after)
				continue
			}
			if after, ok := strings.CutPrefix(line, "data:"); ok {
				data = strings.TrimSpace(after)
				continue
			}
		}
	}()

	return changes, nil
}
