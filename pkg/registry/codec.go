package registry

import (
	"fmt"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
)

// Limits on stored link records.
const (
	MaxGateways   = 16
	MaxGatewayLen = 1024
)

// linkV1 is the on-disk form of a core.Link.
type linkV1 struct {
	Version  uint16   `cbor:"version"`
	Target   []byte   `cbor:"target"`
	ChainID  uint64   `cbor:"chain_id"`
	Verifier []byte   `cbor:"verifier,omitempty"`
	Gateways []string `cbor:"gateways,omitempty"`
}

// Codec encodes link records.
type Codec interface {
	Encode(l core.Link) ([]byte, error)
	Decode(b []byte) (core.Link, error)
}

type codec struct {
	encMode cbor.EncMode
}

// NewCodec returns the canonical CBOR link codec.
func NewCodec() Codec {
	em, _ := cbor.CanonicalEncOptions().EncMode()
	return &codec{encMode: em}
}

func (c *codec) Encode(l core.Link) ([]byte, error) {
	if err := ValidateLink(l); err != nil {
		return nil, err
	}
	rec := linkV1{
		Version:  1,
		Target:   l.Target.Bytes(),
		ChainID:  l.ChainID,
		Gateways: l.Gateways,
	}
	if l.Verifier != nil {
		rec.Verifier = l.Verifier.Bytes()
	}
	return c.encMode.Marshal(rec)
}

func (c *codec) Decode(b []byte) (core.Link, error) {
	var rec linkV1
	if err := cbor.Unmarshal(b, &rec); err != nil {
		return core.Link{}, fmt.Errorf("%w: failed to unmarshal link: %v", core.ErrCorrupt, err)
	}
	if rec.Version != 1 {
		return core.Link{}, fmt.Errorf("%w: unsupported link version %d", core.ErrCorrupt, rec.Version)
	}
	if len(rec.Target) != common.AddressLength {
		return core.Link{}, fmt.Errorf("%w: target is %d bytes", core.ErrCorrupt, len(rec.Target))
	}
	l := core.Link{
		Target:   common.BytesToAddress(rec.Target),
		ChainID:  rec.ChainID,
		Gateways: rec.Gateways,
	}
	if rec.Verifier != nil {
		if len(rec.Verifier) != common.AddressLength {
			return core.Link{}, fmt.Errorf("%w: verifier is %d bytes", core.ErrCorrupt, len(rec.Verifier))
		}
		v := common.BytesToAddress(rec.Verifier)
		l.Verifier = &v
	}
	if err := ValidateLink(l); err != nil {
		return core.Link{}, fmt.Errorf("%w: %v", core.ErrCorrupt, err)
	}
	return l, nil
}

// ValidateLink bounds the gateway list. A zero target is allowed: it stores
// an unreachable link, which is how an owner disables resolution.
func ValidateLink(l core.Link) error {
	if len(l.Gateways) > MaxGateways {
		return fmt.Errorf("%w: too many gateways: %d > %d", core.ErrInvalidInput, len(l.Gateways), MaxGateways)
	}
	for i, g := range l.Gateways {
		if g == "" {
			return fmt.Errorf("%w: gateway %d is empty", core.ErrInvalidInput, i)
		}
		if len(g) > MaxGatewayLen {
			return fmt.Errorf("%w: gateway %d too long", core.ErrInvalidInput, i)
		}
	}
	return nil
}
