package core

import (
	"github.com/ethereum/go-ethereum/common"
)

// Node identifies a name suffix: the recursive Keccak-256 namehash of the
// encoded name starting at some label offset.
type Node = common.Hash

// EVMCoinTypeMarker is OR-ed with a chain id to form that chain's address coin type.
const EVMCoinTypeMarker = 0x80000000

// Link describes where the records of an authoritative node live on a remote chain.
type Link struct {
	Target   common.Address
	ChainID  uint64
	Verifier *common.Address // nil falls back to the chain default
	Gateways []string        // empty means caller-side defaults
}

// Resolvable reports whether the link names a remote target.
func (l Link) Resolvable() bool {
	return l.Target != (common.Address{})
}

// CoinType returns the address coin type of the link's chain.
func (l Link) CoinType() uint64 {
	return EVMCoinTypeMarker | l.ChainID
}

// Clone returns a deep copy so callers can't mutate a cached record.
func (l Link) Clone() Link {
	out := Link{Target: l.Target, ChainID: l.ChainID}
	if l.Verifier != nil {
		v := *l.Verifier
		out.Verifier = &v
	}
	if len(l.Gateways) > 0 {
		out.Gateways = append([]string(nil), l.Gateways...)
	}
	return out
}
