package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorlab/codesync/internal/chunk"
	"github.com/mirrorlab/codesync/internal/embed"
	"github.com/mirrorlab/codesync/internal/seal"
	"github.com/mirrorlab/codesync/internal/vector"
)

type fakeProvider struct {
	calls    atomic.Int64
	failures atomic.Int64
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return nil, fmt.Errorf("%w: simulated outage", embed.ErrProvider)
	}
	return []float32{float32(len(text)), 1, 2, 3}, nil
}

func newTestService(t *testing.T, provider embed.Provider) (*Service, vector.Index, *seal.Sealer) {
	t.Helper()
	sealer, err := seal.New(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	idx := vector.NewMemoryIndex()
	svc := New(chunk.New(64), provider, sealer, idx)
	return svc, idx, sealer
}

func TestProcessFile(t *testing.T) {
	provider := &fakeProvider{}
	svc, idx, sealer := newTestService(t, provider)

	content := []byte("package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	hashes, err := svc.ProcessFile(context.Background(), "cmd/main.go", content)
	require.NoError(t, err)
	require.NotEmpty(t, hashes)

	for _, h := range hashes {
		rec, err := idx.Get(context.Background(), h)
		require.NoError(t, err)
		assert.Equal(t, h, rec.ChunkHash)

		vec, err := sealer.Open(rec)
		require.NoError(t, err)
		assert.Len(t, vec, 4)
	}
}

func TestProcessFileSkipsKnownChunks(t *testing.T) {
	provider := &fakeProvider{}
	svc, _, _ := newTestService(t, provider)

	content := []byte("line one\nline two\n")
	hashes, err := svc.ProcessFile(context.Background(), "a.txt", content)
	require.NoError(t, err)
	firstCalls := provider.calls.Load()
	require.Greater(t, firstCalls, int64(0))

	again, err := svc.ProcessFile(context.Background(), "a.txt", content)
	require.NoError(t, err)
	assert.Equal(t, hashes, again)
	assert.Equal(t, firstCalls, provider.calls.Load(), "unchanged chunks must not be re-embedded")
}

func TestProcessFileRetriesTransientErrors(t *testing.T) {
	provider := &fakeProvider{}
	provider.failures.Store(1)
	svc, idx, _ := newTestService(t, provider)

	hashes, err := svc.ProcessFile(context.Background(), "a.txt", []byte("hello\n"))
	require.NoError(t, err)
	require.Len(t, hashes, 1)

	_, err = idx.Get(context.Background(), hashes[0])
	assert.NoError(t, err)
}

func TestProcessFilePersistentFailure(t *testing.T) {
	provider := &fakeProvider{}
	provider.failures.Store(100)
	svc, _, _ := newTestService(t, provider)

	_, err := svc.ProcessFile(context.Background(), "a.txt", []byte("hello\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, embed.ErrProvider)
}

func TestEvictChunks(t *testing.T) {
	provider := &fakeProvider{}
	svc, idx, _ := newTestService(t, provider)

	hashes, err := svc.ProcessFile(context.Background(), "a.txt", []byte("hello\nworld\n"))
	require.NoError(t, err)

	require.NoError(t, svc.EvictChunks(context.Background(), hashes))
	for _, h := range hashes {
		_, err := idx.Get(context.Background(), h)
		assert.ErrorIs(t, err, vector.ErrNotFound)
	}

	assert.NoError(t, svc.EvictChunks(context.Background(), []string{"deadbeef"}))
}
