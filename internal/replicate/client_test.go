package replicate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image-transform-backend/internal/replicate"
)

func fastClient(baseURL string, opts ...replicate.Option) *replicate.Client {
	opts = append([]replicate.Option{
		replicate.WithPolling(5, time.Millisecond, time.Millisecond, 5*time.Millisecond),
		replicate.WithRetryDelays(time.Millisecond, time.Millisecond, time.Millisecond),
	}, opts...)
	return replicate.NewClient(baseURL, "r8_test", opts...)
}

func TestClient_RetryWithBackoff(t *testing.T) {
	client := fastClient("https://api.test.com/v1")

	callCount := 0
	err := client.RetryWithBackoff(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return assert.AnError
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestClient_RetryWithBackoff_Exhausted(t *testing.T) {
	client := fastClient("https://api.test.com/v1")

	callCount := 0
	err := client.RetryWithBackoff(context.Background(), func() error {
		callCount++
		return assert.AnError
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
	assert.Equal(t, 4, callCount)
}

func TestClient_InvokeResolvesVersionAndPolls(t *testing.T) {
	var polls int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/files/") {
			// delivery URLs are fetched without the API token
			assert.Empty(t, r.Header.Get("Authorization"))
		} else {
			assert.Equal(t, "Token r8_test", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/models/acme/restyle":
			_, _ = w.Write([]byte(`{"latest_version":{"id":"ver123"}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/predictions":
			var body struct {
				Version string                 `json:"version"`
				Input   map[string]interface{} `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ver123", body.Version)
			assert.Equal(t, "make it blue", body.Input["prompt"])
			assert.Equal(t, []interface{}{"https://cdn.test/in.png"}, body.Input["image_input"])
			_, _ = w.Write([]byte(`{"id":"p1","status":"starting"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/predictions/p1":
			if atomic.AddInt32(&polls, 1) < 2 {
				_, _ = w.Write([]byte(`{"id":"p1","status":"processing"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":"` + server.URL + `/files/out.png"}`))
		case r.URL.Path == "/files/out.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("PNGDATA"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	data, err := fastClient(server.URL).Invoke(context.Background(), "acme/restyle", "make it blue", "https://cdn.test/in.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), data)
	assert.Equal(t, int32(2), atomic.LoadInt32(&polls))
}

func TestClient_OfficialModelUsesModelEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/models/google/nano-banana":
			_, _ = w.Write([]byte(`{"latest_version":null}`))
		case r.Method == http.MethodPost && r.URL.Path == "/models/google/nano-banana/predictions":
			_, _ = w.Write([]byte(`{"id":"p2","status":"succeeded","output":[[1,2],[3]]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	data, err := fastClient(server.URL).Invoke(context.Background(), "google/nano-banana", "p", "https://cdn.test/in.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestClient_PredictionFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/predictions":
			_, _ = w.Write([]byte(`{"id":"p3","status":"starting"}`))
		default:
			_, _ = w.Write([]byte(`{"id":"p3","status":"failed","error":"NSFW content detected"}`))
		}
	}))
	defer server.Close()

	_, err := fastClient(server.URL).Invoke(context.Background(), "ver999", "p", "https://cdn.test/in.png")
	assert.ErrorIs(t, err, replicate.ErrPredictionFailed)
	assert.Contains(t, err.Error(), "NSFW")
}

func TestClient_PollingIsBounded(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/predictions/p4" {
			atomic.AddInt32(&polls, 1)
		}
		_, _ = w.Write([]byte(`{"id":"p4","status":"processing"}`))
	}))
	defer server.Close()

	client := fastClient(server.URL, replicate.WithPolling(3, time.Millisecond, 0, time.Millisecond))
	_, err := client.Invoke(context.Background(), "ver999", "p", "https://cdn.test/in.png")
	assert.ErrorIs(t, err, replicate.ErrPollTimeout)
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"invalid input"}`))
	}))
	defer server.Close()

	_, err := fastClient(server.URL).Invoke(context.Background(), "ver999", "p", "https://cdn.test/in.png")
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMockInvoker_ReturnsPNG(t *testing.T) {
	data, err := (&replicate.MockInvoker{}).Invoke(context.Background(), "any", "prompt", "https://cdn.test/in.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data[:8])
}

func TestMockInvoker_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&replicate.MockInvoker{Delay: time.Minute}).Invoke(ctx, "any", "prompt", "")
	assert.ErrorIs(t, err, context.Canceled)
}
