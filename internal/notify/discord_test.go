package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discordWebhook(t *testing.T, got *map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestDiscordSend_BoldsTitle(t *testing.T) {
	var got map[string]string
	srv := discordWebhook(t, &got)
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "Trade Executed", "bought AAA")
	require.NoError(t, err)
	assert.Equal(t, "**Trade Executed**\nbought AAA", got["content"])
}

func TestDiscordSend_EmptyTitle(t *testing.T) {
	var got map[string]string
	srv := discordWebhook(t, &got)
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "", "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", got["content"])
}

func TestDiscordSend_TruncatesLongContent(t *testing.T) {
	var got map[string]string
	srv := discordWebhook(t, &got)
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "", strings.Repeat("x", 3000))
	require.NoError(t, err)
	assert.Len(t, got["content"], discordMaxContent)
}

func TestDiscordSend_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid webhook", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
