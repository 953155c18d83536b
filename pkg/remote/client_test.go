package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/quelldemo/pkg/models"
)

func TestExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/graphql", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Write([]byte(`{"queryResponse":{"data":{"x":1},"cached":true}}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/graphql", srv.URL+"/api/clearCache", time.Second)
	resp, err := c.Execute(context.Background(), "{ x }", models.DefaultLimits())
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.JSONEq(t, `{"x":1}`, string(resp.Data))
	assert.Equal(t, srv.URL+"/api/graphql", c.GraphQLURL())
}

func serveStatic(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, srv.URL, time.Second)
}

func TestExecuteErrors(t *testing.T) {
	ctx := context.Background()
	var se *StatusError

	c := serveStatic(t, http.StatusBadRequest, `{"error":{"message":"cost limit exceeded","type":"quell_error","code":400}}`)
	_, err := c.Execute(ctx, "{ x }", models.DefaultLimits())
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "cost limit exceeded", se.Message)

	c = serveStatic(t, http.StatusBadGateway, `{"message":"origin down"}`)
	_, err = c.Execute(ctx, "{ x }", models.DefaultLimits())
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "origin down", se.Message)

	c = serveStatic(t, http.StatusOK, `{}`)
	_, err = c.Execute(ctx, "{ x }", models.DefaultLimits())
	assert.ErrorIs(t, err, ErrMalformedResponse)

	c = serveStatic(t, http.StatusOK, `<html>`)
	_, err = c.Execute(ctx, "{ x }", models.DefaultLimits())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClearCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/clearCache", r.URL.Path)
		calls.Add(1)
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/graphql", srv.URL+"/api/clearCache", time.Second)
	require.NoError(t, c.ClearCache(context.Background()))
	require.NoError(t, c.ClearCache(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClearCacheStatus(t *testing.T) {
	c := serveStatic(t, http.StatusInternalServerError, "")
	var se *StatusError
	require.ErrorAs(t, c.ClearCache(context.Background()), &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
}
