package jupiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mirrorbot/internal/domain"
)

func TestQuote_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "InMint", q.Get("inputMint"))
		assert.Equal(t, "OutMint", q.Get("outputMint"))
		assert.Equal(t, "10000000", q.Get("amount"))
		assert.Equal(t, "300", q.Get("slippageBps"))

		w.Write([]byte(`{"outAmount":"123456","routePlan":[{"percent":100}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	quote, err := c.Quote(context.Background(), "InMint", "OutMint", 10_000_000, 300)
	require.NoError(t, err)
	assert.Equal(t, "123456", quote.OutAmount)
	assert.Contains(t, string(quote.Raw), "routePlan")
}

func TestQuote_NoRoute(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"error code", `{"error":"Could not find any route","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`},
		{"error text", `{"error":"no route found for this trade"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Quote(context.Background(), "In", "Out", 1, 100)
			assert.ErrorIs(t, err, domain.ErrNoRoute)
		})
	}
}

func TestQuote_GenericAPIErrorIsNotNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid amount"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Quote(context.Background(), "In", "Out", 1, 100)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoRoute)
}

func TestQuote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Quote(context.Background(), "In", "Out", 1, 100)
	assert.Error(t, err)
}

func TestSwap_PassesQuoteVerbatim(t *testing.T) {
	raw := json.RawMessage(`{"outAmount":"42","custom":"field"}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var payload struct {
			QuoteResponse    json.RawMessage `json:"quoteResponse"`
			UserPublicKey    string          `json:"userPublicKey"`
			WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.JSONEq(t, string(raw), string(payload.QuoteResponse))
		assert.Equal(t, "PubKey111", payload.UserPublicKey)
		assert.True(t, payload.WrapAndUnwrapSol)

		w.Write([]byte(`{"swapTransaction":"AQID"}`))
	}))
	defer srv.Close()

	tx, err := NewClient(srv.URL).Swap(context.Background(), QuoteResponse{OutAmount: "42", Raw: raw}, "PubKey111")
	require.NoError(t, err)
	assert.Equal(t, "AQID", tx)
}

func TestSwap_MissingTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Swap(context.Background(), QuoteResponse{Raw: json.RawMessage(`{}`)}, "pk")
	assert.Error(t, err)
}
