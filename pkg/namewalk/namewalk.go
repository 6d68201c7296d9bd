// Package namewalk parses DNS wire-encoded names: a run of labels, each a
// one-byte length followed by that many bytes, closed by a zero-length label.
//
// Every function here is bounded by the encoding's own length and fails with
// core.ErrMalformedName instead of scanning past it.
package namewalk

import (
	"fmt"
	"strings"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// MaxLabelLen is the largest label a one-byte length prefix can describe.
const MaxLabelLen = 255

// Keccak returns the legacy Keccak-256 digest of the concatenated parts.
func Keccak(parts ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// LabelHash hashes a single label's raw bytes.
func LabelHash(label []byte) common.Hash {
	return Keccak(label)
}

// labelStarts returns the offset of every length byte from off up to, but
// not including, the terminator.
func labelStarts(name []byte, off int) ([]int, error) {
	if off < 0 || off >= len(name) {
		return nil, fmt.Errorf("%w: offset %d outside %d-byte name", core.ErrMalformedName, off, len(name))
	}
	var starts []int
	for {
		if off >= len(name) {
			return nil, fmt.Errorf("%w: missing terminator", core.ErrMalformedName)
		}
		n := int(name[off])
		if n == 0 {
			return starts, nil
		}
		if off+1+n > len(name) {
			return nil, fmt.Errorf("%w: label at %d overruns name", core.ErrMalformedName, off)
		}
		starts = append(starts, off)
		off += 1 + n
	}
}

// Namehash computes the node identifier of the suffix beginning at offset.
// The suffix consisting of only the terminator hashes to the zero node.
func Namehash(name []byte, offset int) (core.Node, error) {
	starts, err := labelStarts(name, offset)
	if err != nil {
		return core.Node{}, err
	}
	var node core.Node
	for i := len(starts) - 1; i >= 0; i-- {
		s := starts[i]
		label := LabelHash(name[s+1 : s+1+int(name[s])])
		node = Keccak(node[:], label[:])
	}
	return node, nil
}

// Validate checks that the encoding is well formed and that the terminator
// is its final byte.
func Validate(name []byte) error {
	starts, err := labelStarts(name, 0)
	if err != nil {
		return err
	}
	end := 0
	if len(starts) > 0 {
		last := starts[len(starts)-1]
		end = last + 1 + int(name[last])
	}
	if end != len(name)-1 {
		return fmt.Errorf("%w: %d trailing bytes after terminator", core.ErrMalformedName, len(name)-1-end)
	}
	return nil
}

// AuthorityFunc reports whether this system is the configured resolver for node.
type AuthorityFunc func(node core.Node) (bool, error)

// FindOwningNode walks the name from its full form towards the root and
// returns the first suffix node the authority accepts, with the offset of
// that suffix. The root itself is checked last; if it is not accepted either,
// the name is unreachable.
func FindOwningNode(name []byte, isAuthoritative AuthorityFunc) (core.Node, int, error) {
	if err := Validate(name); err != nil {
		return core.Node{}, 0, err
	}
	off := 0
	for off < len(name) {
		node, err := Namehash(name, off)
		if err != nil {
			return core.Node{}, 0, err
		}
		ok, err := isAuthoritative(node)
		if err != nil {
			return core.Node{}, 0, err
		}
		if ok {
			return node, off, nil
		}
		n := int(name[off])
		if n == 0 {
			break
		}
		off += 1 + n
	}
	return core.Node{}, 0, fmt.Errorf("%w: no ancestor of %q delegates here", core.ErrUnreachable, Decode(name))
}

// SubdomainLabelHash returns the hash of the label attached directly below
// the suffix at offset, or nil when offset is 0 (the query targets the
// authoritative node itself).
//
// Only one label is identified: for a.b.owner.eth owned at owner.eth the
// result is the hash of "b", and "a" is not distinguishable.
func SubdomainLabelHash(name []byte, offset int) (*common.Hash, error) {
	if offset == 0 {
		return nil, nil
	}
	if offset < 0 || offset >= len(name) {
		return nil, fmt.Errorf("%w: offset %d outside %d-byte name", core.ErrMalformedName, offset, len(name))
	}
	prev := 1
	for {
		if prev-1 >= len(name) {
			return nil, fmt.Errorf("%w: offset %d is not a label boundary", core.ErrMalformedName, offset)
		}
		n := int(name[prev-1])
		if n == 0 {
			return nil, fmt.Errorf("%w: offset %d past terminator", core.ErrMalformedName, offset)
		}
		next := prev + n
		if next > offset {
			return nil, fmt.Errorf("%w: offset %d is not a label boundary", core.ErrMalformedName, offset)
		}
		if next == offset {
			h := LabelHash(name[prev:next])
			return &h, nil
		}
		prev = next + 1
	}
}

// Encode converts a dotted name into wire form. The empty string is the root.
func Encode(dotted string) ([]byte, error) {
	if dotted == "" || dotted == "." {
		return []byte{0}, nil
	}
	dotted = strings.TrimSuffix(dotted, ".")
	out := make([]byte, 0, len(dotted)+2)
	for _, label := range strings.Split(dotted, ".") {
		if len(label) == 0 {
			return nil, fmt.Errorf("%w: empty label in %q", core.ErrMalformedName, dotted)
		}
		if len(label) > MaxLabelLen {
			return nil, fmt.Errorf("%w: label longer than %d bytes", core.ErrMalformedName, MaxLabelLen)
		}
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	return append(out, 0), nil
}

// MustEncode is like Encode but panics on error.
func MustEncode(dotted string) []byte {
	b, err := Encode(dotted)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode renders a wire-form name as dotted text. Malformed input is
// rendered up to the first bad label.
func Decode(name []byte) string {
	var labels []string
	off := 0
	for off < len(name) {
		n := int(name[off])
		if n == 0 || off+1+n > len(name) {
			break
		}
		labels = append(labels, string(name[off+1:off+1+n]))
		off += 1 + n
	}
	return strings.Join(labels, ".")
}
