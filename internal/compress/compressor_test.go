package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/model"
)

func newCompressor(threshold int64) *Compressor {
	return New(&config.CompressionCfg{ThresholdBytes: threshold})
}

func TestRoundTrip(t *testing.T) {
	c := newCompressor(16)
	raw := bytes.Repeat([]byte("talowa feed payload "), 512)

	stored, compressed := c.Compress(raw)
	require.True(t, compressed)
	require.Less(t, len(stored), len(raw))

	got, err := c.Decompress(stored, int64(len(raw)))
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestBelowThresholdStaysRaw(t *testing.T) {
	c := newCompressor(1024)
	raw := []byte("small")

	stored, compressed := c.Compress(raw)
	require.False(t, compressed)
	require.Equal(t, raw, stored)
}

func TestIncompressibleStaysRaw(t *testing.T) {
	c := newCompressor(16)
	raw := make([]byte, 4096)
	rnd := rand.New(rand.NewSource(42))
	rnd.Read(raw)

	stored, compressed := c.Compress(raw)
	require.False(t, compressed)
	require.Equal(t, raw, stored)
}

func TestDisabledNeverCompresses(t *testing.T) {
	c := New(nil)
	raw := bytes.Repeat([]byte("x"), 1<<16)

	stored, compressed := c.Compress(raw)
	require.False(t, compressed)
	require.Equal(t, raw, stored)
}

func TestDecompressGarbageIsCorrupt(t *testing.T) {
	c := newCompressor(16)
	_, err := c.Decompress([]byte("definitely not deflate"), 100)
	require.ErrorIs(t, err, model.ErrCorruptEntry)
}

func TestDecompressSizeMismatchIsCorrupt(t *testing.T) {
	c := newCompressor(16)
	raw := bytes.Repeat([]byte("payload "), 256)
	stored, compressed := c.Compress(raw)
	require.True(t, compressed)

	_, err := c.Decompress(stored, int64(len(raw))+1)
	require.ErrorIs(t, err, model.ErrCorruptEntry)
}
