package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func TestGetDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products/1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = io.WriteString(w, `{"id":1,"title":"Backpack"}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	var out payload
	require.NoError(t, c.Get(context.Background(), "products/1", &out))
	assert.Equal(t, payload{ID: 1, Title: "Backpack"}, out)
	assert.Equal(t, srv.URL, c.BaseURL())
}

func TestPostAndPutSendJSONBody(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = 7
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	var out payload
	require.NoError(t, c.Post(context.Background(), "/users", payload{Title: "x"}, &out))
	assert.Equal(t, 7, out.ID)
	require.NoError(t, c.Put(context.Background(), "/users/1", payload{Title: "y"}, &out))
	assert.Equal(t, "y", out.Title)
	assert.Equal(t, []string{http.MethodPost, http.MethodPut}, methods)
}

func TestNon2xxBecomesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, "username or password is incorrect")
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).Post(context.Background(), "/auth/login", map[string]string{}, nil)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "username or password is incorrect", apiErr.UserMessage())
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
}

func TestEmptyBodyIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var out payload
	err := New(srv.URL, time.Second).Get(context.Background(), "/products/999", &out)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestTransportFailureHasGenericMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url, time.Second).Get(context.Background(), "/products", nil)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.Status)
	assert.Equal(t, "Something went wrong", apiErr.UserMessage())
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(srv.URL, time.Second).Get(ctx, "/products", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
