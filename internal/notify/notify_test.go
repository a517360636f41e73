package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"meshinv/internal/service"
)

func testNotification() service.Notification {
	return service.Notification{
		ID:      "n-1",
		Kind:    service.NotificationDuplicate,
		Message: "two links share UISP id X",
		Objects: []service.ObjectRef{
			{Type: "link", ID: "l-1", Label: "link l-1"},
			{Type: "link", ID: "l-2", Label: "link l-2"},
		},
	}
}

func TestSlackSinkDeliver(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		attempts     int
		wantAttempts int
		wantStatus   int
		wantOK       bool
	}{
		{name: "accepted", statuses: []int{200}, attempts: 3, wantAttempts: 1, wantStatus: 200, wantOK: true},
		{name: "retries server errors", statuses: []int{500, 503, 200}, attempts: 3, wantAttempts: 3, wantStatus: 200, wantOK: true},
		{name: "retries rate limit", statuses: []int{429, 200}, attempts: 3, wantAttempts: 2, wantStatus: 200, wantOK: true},
		{name: "gives up after attempts", statuses: []int{500, 500, 500, 500}, attempts: 2, wantAttempts: 2, wantStatus: 500},
		{name: "client error is final", statuses: []int{404, 200}, attempts: 3, wantAttempts: 1, wantStatus: 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			var lastText atomic.Value
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1)) - 1
				var msg slackMessage
				if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
					lastText.Store(msg.Text)
				}
				w.WriteHeader(tt.statuses[n])
			}))
			defer srv.Close()

			sink, err := NewSlackSink(SlackConfig{WebhookURL: srv.URL, Attempts: tt.attempts}, nil)
			require.NoError(t, err)
			sink.backoff = 0

			result := sink.Deliver(context.Background(), testNotification())
			assert.Equal(t, tt.wantAttempts, result.Attempts)
			assert.Equal(t, tt.wantStatus, result.StatusCode)
			assert.Equal(t, tt.wantOK, result.OK())
			assert.Equal(t, int32(tt.wantAttempts), calls.Load())
			assert.Contains(t, lastText.Load(), "Possible duplicate objects detected")
		})
	}
}

func TestSlackSinkNotifyReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	sink, err := NewSlackSink(SlackConfig{WebhookURL: srv.URL}, nil)
	require.NoError(t, err)

	err = sink.Notify(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestSlackSinkRequiresURL(t *testing.T) {
	_, err := NewSlackSink(SlackConfig{}, nil)
	assert.Error(t, err)
}

func TestFormatSlackText(t *testing.T) {
	text := FormatSlackText(testNotification())
	assert.Contains(t, text, "*Possible duplicate objects detected*")
	assert.Contains(t, text, "two links share UISP id X")
	assert.Contains(t, text, "`l-1`")
	assert.Contains(t, text, "`l-2`")
}

func TestSlackTitleIsSourceNeutral(t *testing.T) {
	tests := []struct {
		name string
		kind service.NotificationKind
		want string
	}{
		{name: "allocation", kind: service.NotificationCreated, want: "New object created"},
		{name: "donor reassignment", kind: service.NotificationUpdated, want: "Object updated"},
		{name: "deactivation", kind: service.NotificationDeactivated, want: "Object deactivated"},
		{name: "unknown kind", kind: "other", want: "Inventory change"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := service.Notification{Kind: tt.kind, Message: "install #150 gave up its number 150"}
			got := slackTitle(n)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "UISP")
			assert.Contains(t, FormatSlackText(n), "*"+tt.want+"*")
		})
	}
}

func TestLogSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Notify(context.Background(), testNotification()))
	require.NoError(t, sink.Notify(context.Background(), service.Notification{Kind: service.NotificationCreated, Message: "created"}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, zap.InfoLevel, entries[1].Level)
	assert.Equal(t, "l-2", entries[0].ContextMap()["link"])
}
