package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "finchart/test", r.Header.Get("User-Agent"))
			assert.Equal(t, "1h", r.URL.Query().Get("timeframe"))
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			_ = json.NewEncoder(w).Encode(map[string]string{"pair": in["pair"]})
		case "/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("try later\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(time.Second), WithUserAgent("finchart/test"))
	ctx := context.Background()

	var out map[string]string
	err := c.SendAndParse(ctx, &RequestOptions{
		Method:      MethodPost,
		URL:         srv.URL + "/echo",
		QueryParams: map[string][]string{"timeframe": {"1h"}},
		Body:        map[string]string{"pair": "EURUSD"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", out["pair"])

	var se *StatusError
	err = c.SendAndParse(ctx, &RequestOptions{Method: MethodGet, URL: srv.URL + "/busy"}, nil)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "try later", se.Body)
	assert.True(t, se.Retryable())

	err = c.SendAndParse(ctx, &RequestOptions{Method: MethodGet, URL: srv.URL + "/nope"}, nil)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.False(t, se.Retryable())
}
