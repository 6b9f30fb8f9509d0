package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/model"
)

// Compressor is a stateless payload transform. Payloads above the threshold
// are trial-compressed and the smaller of the two encodings is kept.
type Compressor struct {
	threshold int64
	level     int
}

func New(cfg *config.CompressionCfg) *Compressor {
	if !cfg.Enabled() {
		return &Compressor{threshold: -1}
	}
	level := cfg.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	return &Compressor{threshold: cfg.ThresholdBytes, level: level}
}

// Compress returns the stored form of raw and whether it is compressed.
// Compression applies iff the payload exceeds the threshold and the trial
// output is strictly smaller than the input.
func (c *Compressor) Compress(raw []byte) (stored []byte, compressed bool) {
	if c.threshold < 0 || int64(len(raw)) <= c.threshold {
		return raw, false
	}

	var buf bytes.Buffer
	buf.Grow(len(raw) / 2)
	w, err := flate.NewWriter(&buf, c.level)
	if err != nil {
		return raw, false
	}
	if _, err = w.Write(raw); err != nil {
		return raw, false
	}
	if err = w.Close(); err != nil {
		return raw, false
	}

	if buf.Len() >= len(raw) {
		// incompressible, keep raw
		return raw, false
	}
	return buf.Bytes(), true
}

// Decompress restores the raw payload from its stored form. rawSize is the
// recorded size used as an integrity check on the inflated output.
func (c *Compressor) Decompress(stored []byte, rawSize int64) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(stored))
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", model.ErrCorruptEntry, err)
	}
	if int64(len(raw)) != rawSize {
		return nil, fmt.Errorf("%w: inflated size %d, recorded %d", model.ErrCorruptEntry, len(raw), rawSize)
	}
	return raw, nil
}
