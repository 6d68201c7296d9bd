// Package transform wraps registry values in a small versioned envelope,
// optionally zstd-compressed. Any transform decodes any envelope, so a
// registry can switch transforms without rewriting existing records.
package transform

import (
	"fmt"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/klauspost/compress/zstd"
)

const (
	Magic   = "GWRV"
	Version = 1

	headerLen = 7
)

const (
	FlagCompressed = 1 << 0
)

const (
	AlgNone = 0
	AlgZstd = 1
)

// Transform encodes record bytes for storage and back.
type Transform interface {
	Name() string
	Encode(plain []byte) ([]byte, error)
	Decode(stored []byte) ([]byte, error)
}

// Open returns the transform named by cfg. An empty name means "none".
func Open(cfg core.TransformConfig) (Transform, error) {
	switch cfg.Name {
	case "none", "":
		return NewNone(), nil
	case "zstd":
		return NewZstd(cfg.ZstdLevel)
	default:
		return nil, fmt.Errorf("%w: unsupported transform %q", core.ErrInvalidInput, cfg.Name)
	}
}

// shared zstd decoder; DecodeAll is safe for concurrent use.
var decoder, _ = zstd.NewReader(nil)

func header(flags, alg byte) []byte {
	h := make([]byte, 0, headerLen)
	h = append(h, Magic...)
	return append(h, Version, flags, alg)
}

func open(stored []byte) ([]byte, error) {
	if len(stored) < headerLen {
		return nil, fmt.Errorf("%w: value too small for envelope", core.ErrCorrupt)
	}
	if string(stored[:4]) != Magic {
		return nil, fmt.Errorf("%w: invalid magic", core.ErrCorrupt)
	}
	if stored[4] != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", core.ErrCorrupt, stored[4])
	}

	flags, alg, payload := stored[5], stored[6], stored[headerLen:]
	if flags&FlagCompressed == 0 {
		return payload, nil
	}
	if alg != AlgZstd {
		return nil, fmt.Errorf("%w: unsupported compression algorithm %d", core.ErrCorrupt, alg)
	}
	plain, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorrupt, err)
	}
	return plain, nil
}

type noneTransform struct{}

func NewNone() Transform {
	return noneTransform{}
}

func (noneTransform) Name() string { return "none" }

func (noneTransform) Encode(plain []byte) ([]byte, error) {
	return append(header(0, AlgNone), plain...), nil
}

func (noneTransform) Decode(stored []byte) ([]byte, error) { return open(stored) }

type zstdTransform struct {
	encoder *zstd.Encoder
}

func NewZstd(level int) (Transform, error) {
	if level == 0 {
		level = int(zstd.SpeedDefault)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevel(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	return &zstdTransform{encoder: enc}, nil
}

func (t *zstdTransform) Name() string { return "zstd" }

func (t *zstdTransform) Encode(plain []byte) ([]byte, error) {
	return t.encoder.EncodeAll(plain, header(FlagCompressed, AlgZstd)), nil
}

func (t *zstdTransform) Decode(stored []byte) ([]byte, error) { return open(stored) }
