package config

// CompressionCfg
//   - Supported levels:
//     CompressNoCompression      = 0
//     CompressBestSpeed          = 1
//     CompressBestCompression    = 9
//     CompressDefaultCompression = 6  // flate.DefaultCompression
//     CompressHuffmanOnly        = -2 // flate.HuffmanOnly
type CompressionCfg struct {
	// ThresholdBytes is the minimum raw payload size eligible for
	// compression. Smaller payloads are always stored raw.
	ThresholdBytes int64 `yaml:"threshold_bytes"`

	// Level is the flate compression level.
	Level int `yaml:"level"`
}

func (cfg *CompressionCfg) Enabled() bool {
	return cfg != nil
}
