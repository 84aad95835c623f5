package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// MockModelID tags vectors produced by the mock provider so they are
// never fused with real model output.
const MockModelID = "mock-embeddings-v1"

// MockProvider is a deterministic embedder for tests and offline use.
// The vector is derived from the SHA-256 of the text, so equal text
// always embeds identically and similar-but-different texts do not.
type MockProvider struct {
	cache *Cache
}

// NewMockProvider creates a deterministic mock embedder.
func NewMockProvider(cache *Cache) (*MockProvider, error) {
	return &MockProvider{cache: cache}, nil
}

func (m *MockProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := CacheKey(text)
	if m.cache != nil {
		if vec, ok := m.cache.Get(key); ok {
			return vec, nil
		}
	}

	vec := deterministicVector(text)
	if m.cache != nil {
		m.cache.Set(key, vec)
	}
	return vec, nil
}

func (m *MockProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (m *MockProvider) Dimension() int {
	return MockDimension
}

func (m *MockProvider) ModelID() string {
	return MockModelID
}

func (m *MockProvider) Close() error {
	return nil
}

// deterministicVector expands the text hash into a unit vector by
// re-hashing with a counter, 8 floats per digest.
func deterministicVector(text string) []float32 {
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, MockDimension)

	var block [36]byte
	copy(block[:32], seed[:])
	for i := 0; i < MockDimension; i += 8 {
		binary.LittleEndian.PutUint32(block[32:], uint32(i))
		digest := sha256.Sum256(block[:])
		for j := 0; j < 8 && i+j < MockDimension; j++ {
			bits := binary.LittleEndian.Uint32(digest[j*4:])
			// Map to [-1, 1).
			vec[i+j] = float32(int32(bits))/float32(1<<31)
		}
	}
	return NormalizeVector(vec)
}
