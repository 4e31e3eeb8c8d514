package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHTTPClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"` + r.URL.Query().Get("name") + `"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPClientConfig{Timeout: time.Second, XApiKey: "secret"}, zaptest.NewLogger(t))

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.Get(context.Background(), srv.URL+"/ok", map[string]string{"name": "usdc"}, nil, &out))
	assert.Equal(t, "usdc", out.Name)

	err := c.Get(context.Background(), srv.URL+"/missing", nil, nil, &out)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}
