package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambda-microservice/controller/pkg/lambdaerr"
)

func TestJSONHTTPAdapterCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"result":{"ok":true},"execution_time_ms":7}`))
	}))
	defer srv.Close()

	a := NewJSONHTTPAdapter()
	resp, err := a.Call(context.Background(), srv.URL, []byte(`{"request_id":"r1"}`), time.Second)

	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{"ok":true},"execution_time_ms":7}`, string(resp))
}

func TestJSONHTTPAdapterCallNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad script"}`))
	}))
	defer srv.Close()

	a := NewJSONHTTPAdapter()
	_, err := a.Call(context.Background(), srv.URL, []byte(`{}`), time.Second)

	require.Error(t, err)
	assert.Equal(t, lambdaerr.KindRuntime, lambdaerr.KindOf(err))
	assert.False(t, lambdaerr.IsRetryable(err))
}

func TestJSONHTTPAdapterCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewJSONHTTPAdapter()
	_, err := a.Call(context.Background(), srv.URL, []byte(`{}`), 5*time.Millisecond)

	require.Error(t, err)
	assert.True(t, lambdaerr.IsRetryable(err))
}

func TestJSONHTTPAdapterTruncatesErrorBody(t *testing.T) {
	longBody := make([]byte, maxErrorBodyBytes*2)
	for i := range longBody {
		longBody[i] = 'x'
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(longBody)
	}))
	defer srv.Close()

	a := NewJSONHTTPAdapter()
	_, err := a.Call(context.Background(), srv.URL, []byte(`{}`), time.Second)

	require.Error(t, err)
	assert.LessOrEqual(t, len(err.Error()), maxErrorBodyBytes+100)
}
