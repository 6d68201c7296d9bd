package registry

import (
	"errors"
	"testing"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/fxamacker/cbor/v2"
)

func TestCodecRejectsCorrupt(t *testing.T) {
	c := NewCodec()

	bad := map[string]linkV1{
		"version":  {Version: 2, Target: make([]byte, 20)},
		"target":   {Version: 1, Target: make([]byte, 3)},
		"verifier": {Version: 1, Target: make([]byte, 20), Verifier: make([]byte, 21)},
	}
	for name, rec := range bad {
		b, _ := cbor.Marshal(rec)
		if _, err := c.Decode(b); !errors.Is(err, core.ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}

	if _, err := c.Decode([]byte{0xff, 0x00}); !errors.Is(err, core.ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for garbage, got %v", err)
	}
}

func TestCodecDeterministic(t *testing.T) {
	c := NewCodec()
	a, _ := c.Encode(sampleLink())
	b, _ := c.Encode(sampleLink())
	if string(a) != string(b) {
		t.Error("expected canonical encoding to be stable")
	}
}

func FuzzCodecDecode(f *testing.F) {
	c := NewCodec()
	valid, _ := c.Encode(sampleLink())
	f.Add(valid)
	f.Add([]byte{})
	f.Add([]byte("not cbor"))

	f.Fuzz(func(t *testing.T, b []byte) {
		_, _ = c.Decode(b)
	})
}
