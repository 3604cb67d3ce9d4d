package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bananaslides/internal/config"
	"bananaslides/internal/provider"
	"bananaslides/internal/retry"
)

func TestPostJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["msg"]})
	}))
	defer srv.Close()

	c := provider.NewClient("layout", &config.EndpointConfig{URL: srv.URL, APIKey: "k"})
	var out map[string]string
	require.NoError(t, c.PostJSON(context.Background(), "/detect", map[string]string{"msg": "hi"}, &out))
	assert.Equal(t, "hi", out["echo"])
}

func TestPostJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := provider.NewClient("ocr", &config.EndpointConfig{URL: srv.URL})
	err := c.PostJSON(context.Background(), "", struct{}{}, &struct{}{})

	var se *retry.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.True(t, retry.Retryable(err))
}

func TestPostJSON_LocalCallsSerialized(t *testing.T) {
	var inFlight, maxInFlight int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ocr := provider.NewLocalClient("local-ocr", &config.EndpointConfig{URL: srv.URL})
	lama := provider.NewLocalClient("local-inpaint", &config.EndpointConfig{URL: srv.URL})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		c := ocr
		if i%2 == 1 {
			c = lama
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.PostJSON(context.Background(), "", struct{}{}, &struct{}{}))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}
