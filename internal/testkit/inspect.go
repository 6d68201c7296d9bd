package testkit

import (
	"context"

	"github.com/agenthands/gwresolver/pkg/core"
)

// LinkWalker is the iteration half of a link registry.
type LinkWalker interface {
	ForEachLink(ctx context.Context, fn func(node core.Node, l core.Link) error) error
}

// CountLinks returns the number of stored links, and how many of them are resolvable.
func CountLinks(ctx context.Context, w LinkWalker) (total, resolvable int, err error) {
	err = w.ForEachLink(ctx, func(_ core.Node, l core.Link) error {
		total++
		if l.Resolvable() {
			resolvable++
		}
		return nil
	})
	return total, resolvable, err
}

// CorruptValue flips the bits of a stored value's first byte.
func CorruptValue(payload []byte) []byte {
	out := make([]byte, len(payload))
	copy(out, payload)
	if len(out) > 0 {
		out[0] ^= 0xFF
	}
	return out
}
