package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/ranking"
)

func TestWebhookPostsTransitions(t *testing.T) {
	var (
		got  WebhookPayload
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	at := time.Date(2025, time.November, 5, 18, 0, 0, 0, time.UTC)
	hook := NewWebhook(srv.URL+"/", "push-token", time.Second)
	err := hook.NotifyTransition(context.Background(), domain.TierTransition{
		RunnerID:   "runner-1",
		Role:       ranking.RoleMarathoner,
		Kind:       ranking.Promotion,
		From:       ranking.Placement{Tier: ranking.Iron, Grade: 1},
		To:         ranking.Placement{Tier: ranking.Bronze, Grade: 4},
		LP:         800,
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer push-token", auth)
	require.Equal(t, "runner-1", got.RunnerID)
	require.Equal(t, "Iron 1", got.From)
	require.Equal(t, "Bronze 4", got.To)
	require.Equal(t, 800, got.LP)
	require.True(t, at.Equal(got.OccurredAt))
}

func TestWebhookReportsFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, "", time.Second)
	err := hook.NotifyTransition(context.Background(), domain.TierTransition{RunnerID: "runner-1", Role: ranking.RoleSprinter})

	var hookErr *WebhookError
	require.ErrorAs(t, err, &hookErr)
	require.Equal(t, http.StatusBadGateway, hookErr.Status)

	require.NoError(t, hook.NotifyRunScored(context.Background(), domain.Run{}, domain.TierRecord{}))
}
