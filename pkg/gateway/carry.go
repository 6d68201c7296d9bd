package gateway

import (
	"fmt"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/decode"
	"github.com/agenthands/gwresolver/pkg/slotpath"
	uuid "github.com/satori/go.uuid"
)

// TagSupply marks a description lookup answered with the registry's
// total supply (the totalSupply() selector).
var TagSupply = [4]byte{0x18, 0x16, 0x0d, 0xdd}

// Carry travels unmodified through a fetch round trip and tells the decoder
// what the originating call was. One is minted per resolution call.
type Carry struct {
	Profile   slotpath.Profile
	Decode    decode.Kind
	RequestID uuid.UUID
}

func newCarry(profile slotpath.Profile, kind decode.Kind) Carry {
	return Carry{Profile: profile, Decode: kind, RequestID: uuid.Must(uuid.NewV4())}
}

// Tag is the 4-byte wire discriminator: the originating profile's selector,
// or TagSupply for supply-count formatting.
func (c Carry) Tag() [4]byte {
	if c.Decode == decode.Supply {
		return TagSupply
	}
	return c.Profile
}

// KindForTag recovers the decoding from a wire tag.
func KindForTag(tag [4]byte) decode.Kind {
	switch tag {
	case TagSupply:
		return decode.Supply
	case slotpath.ProfileAddr:
		return decode.Address
	default:
		return decode.Passthrough
	}
}

// Bytes is the wire form: tag followed by the 16-byte request id.
func (c Carry) Bytes() []byte {
	tag := c.Tag()
	return append(tag[:], c.RequestID.Bytes()...)
}

// ParseCarry reverses Bytes. The profile of a supply carry is reported as
// the text profile, which is the only one that produces it.
func ParseCarry(b []byte) (Carry, error) {
	if len(b) != 4+uuid.Size {
		return Carry{}, fmt.Errorf("%w: carry is %d bytes", core.ErrInvalidInput, len(b))
	}
	var tag [4]byte
	copy(tag[:], b[:4])
	id, err := uuid.FromBytes(b[4:])
	if err != nil {
		return Carry{}, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	c := Carry{Profile: slotpath.Profile(tag), Decode: KindForTag(tag), RequestID: id}
	if tag == TagSupply {
		c.Profile = slotpath.ProfileText
	}
	return c, nil
}
