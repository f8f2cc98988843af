package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func externalTestOrder() Order {
	return Order{
		MarketID:  "match-1",
		Selection: "home",
		Stake:     decimal.NewFromInt(100),
		Odds:      2.10,
	}
}

func TestExternalPlaceConfirms(t *testing.T) {
	t.Parallel()

	placedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/bets", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		var req placeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "100", req.Stake)

		json.NewEncoder(w).Encode(placeResponse{ConfirmationID: "conf-1", PlacedAt: placedAt})
	}))
	defer srv.Close()

	ext := NewExternal(srv.URL, "sekrit", time.Second)
	conf, err := ext.Place(context.Background(), externalTestOrder())
	require.NoError(t, err)
	assert.Equal(t, "conf-1", conf.ID)
	assert.True(t, conf.PlacedAt.Equal(placedAt))
}

func TestExternalPlaceStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		code      int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"rejected", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				json.NewEncoder(w).Encode(placeResponse{Error: "nope"})
			}))
			defer srv.Close()

			_, err := NewExternal(srv.URL, "", time.Second).Place(context.Background(), externalTestOrder())
			require.Error(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, !tt.transient, IsPermanent(err))
		})
	}
}

func TestExternalTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewExternal(srv.URL, "", 20*time.Millisecond).Place(context.Background(), externalTestOrder())
	require.Error(t, err)
	assert.True(t, IsTransient(err), "a timed-out placement may have gone through")
}

func TestExternalGetStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/bets/conf-1":
			json.NewEncoder(w).Encode(map[string]string{"status": string(StatusOpen)})
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	defer srv.Close()

	ext := NewExternal(srv.URL, "", time.Second)

	st, err := ext.GetStatus(context.Background(), "conf-1")
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, st)

	_, err = ext.GetStatus(context.Background(), "conf-2")
	assert.ErrorIs(t, err, ErrUnsupported)
}
