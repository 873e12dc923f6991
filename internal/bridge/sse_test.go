// ABOUTME: Tests for the SSE change feed
// ABOUTME: Streams real bus changes through an httptest server and parses frames

package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstate/arcstate/internal/bus"
)

// readEvent scans SSE frames until one complete event has been read.
func readEvent(t *testing.T, scanner *bufio.Scanner) (event, data string) {
	t.Helper()

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if event != "" {
				return event, data
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // comment frame
		}
		if after, ok := strings.CutPrefix(line, "event: "); ok {
			event = after
		}
		if after, ok := strings.CutPrefix(line, "data: "); ok {
			data = after
		}
	}
	t.Fatalf("stream ended before a complete event: %v", scanner.Err())
	return "", ""
}

func TestEvents_StreamsChanges(t *testing.T) {
	f := newFixture(t)

	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)

	// A preference write through the bridge must surface on the feed.
	setReq, err := http.NewRequestWithContext(ctx, http.MethodPut, srv.URL+"/api/preferences",
		strings.NewReader(`{"name":"theme","value":"dark"}`))
	require.NoError(t, err)
	setResp, err := http.DefaultClient.Do(setReq)
	require.NoError(t, err)
	setResp.Body.Close()
	require.Equal(t, http.StatusOK, setResp.StatusCode)

	event, data := readEvent(t, scanner)
	assert.Equal(t, "change", event)

	var change bus.Change
	require.NoError(t, json.Unmarshal([]byte(data), &change))
	assert.Equal(t, "preferences", change.Store)
	assert.Equal(t, "theme", change.Key)
	assert.Equal(t, "dark", change.Value)
	assert.Equal(t, bus.OriginLocal, change.Origin)
}

func TestEvents_TopicFilter(t *testing.T) {
	f := newFixture(t)

	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events?store=workspace", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)

	// Preferences changes are filtered out; a workspace-topic publish lands.
	f.events.Publish("preferences", &bus.Change{Store: "preferences", Key: "skip"}, "")
	f.events.Publish("workspace", &bus.Change{Store: "workspace", Key: "panel"}, "")

	event, data := readEvent(t, scanner)
	assert.Equal(t, "change", event)

	var change bus.Change
	require.NoError(t, json.Unmarshal([]byte(data), &change))
	assert.Equal(t, "panel", change.Key)
}
