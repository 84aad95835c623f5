package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProviderDeterministic(t *testing.T) {
	mock, err := NewMockProvider(nil)
	require.NoError(t, err)
	ctx := context.Background()

	a1, err := mock.GenerateEmbedding(ctx, "func parse() {}")
	require.NoError(t, err)
	a2, err := mock.GenerateEmbedding(ctx, "func parse() {}")
	require.NoError(t, err)
	b, err := mock.GenerateEmbedding(ctx, "func render() {}")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Len(t, a1, MockDimension)
	assert.Equal(t, MockDimension, mock.Dimension())
	assert.Equal(t, MockModelID, mock.ModelID())

	// Unit length.
	var sum float64
	for _, v := range a1 {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockProviderBatch(t *testing.T) {
	mock, err := NewMockProvider(nil)
	require.NoError(t, err)

	vectors, err := mock.GenerateBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	single, err := mock.GenerateEmbedding(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, single, vectors[1])
}

func TestMockProviderValidation(t *testing.T) {
	mock, err := NewMockProvider(nil)
	require.NoError(t, err)

	_, err = mock.GenerateEmbedding(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = mock.GenerateBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = mock.GenerateBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCacheReturnsCopies(t *testing.T) {
	cache := NewCache(10)
	cache.Set("k", []float32{1, 2, 3})

	got, ok := cache.Get("k")
	require.True(t, ok)
	got[0] = 99

	again, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, float32(1), again[0])
	assert.Equal(t, 1, cache.Size())

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestCacheKeyStable(t *testing.T) {
	assert.Equal(t, CacheKey("abc"), CacheKey("abc"))
	assert.NotEqual(t, CacheKey("abc"), CacheKey("abd"))
	assert.Len(t, CacheKey("abc"), 64)
}

// newTestHTTPProvider points an httpProvider at a test server.
func newTestHTTPProvider(url string, cache *Cache) *httpProvider {
	return &httpProvider{
		provider:   ProviderJina,
		endpoint:   url,
		apiKey:     "test-key",
		model:      DefaultJinaModel,
		dimension:  4,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cache:      cache,
	}
}

func TestHTTPProviderBatch(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data  []item `json:"data"`
			Model string `json:"model"`
		}{Model: req.Model}
		// Return out of order to exercise index-based alignment.
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, item{Embedding: []float32{float32(i), 0, 0, 0}, Index: i})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	p := newTestHTTPProvider(server.URL, NewCache(10))
	vectors, err := p.GenerateBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(0), vectors[0][0])
	assert.Equal(t, float32(1), vectors[1][0])

	// Second single call for "a" is served from cache, no HTTP.
	before := calls.Load()
	vec, err := p.GenerateEmbedding(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, vectors[0], vec)
	assert.Equal(t, before, calls.Load())
}

func TestHTTPProviderRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	p := newTestHTTPProvider(server.URL, nil)
	_, err := p.GenerateBatch(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(MaxRetries), calls.Load())
}

func TestHTTPProviderBatchTooLarge(t *testing.T) {
	p := newTestHTTPProvider("http://unused", nil)
	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "t"
	}
	_, err := p.GenerateBatch(context.Background(), texts)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestRetryWithBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := retryWithBackoff(ctx, DefaultRetryConfig(), func() (int, error) {
		attempts++
		return 0, errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoffSucceedsAfterFailure(t *testing.T) {
	config := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	attempts := 0
	result, err := retryWithBackoff(context.Background(), config, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, attempts)
}

func TestFactory(t *testing.T) {
	emb, err := New(Config{Provider: ProviderMock, CacheSize: 100})
	require.NoError(t, err)
	assert.Equal(t, MockModelID, emb.ModelID())

	_, err = New(Config{Provider: "bogus"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)

	_, err = New(Config{Provider: ProviderJina, APIKey: ""})
	if err == nil {
		t.Skip("JINA_API_KEY set in environment")
	}
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}
