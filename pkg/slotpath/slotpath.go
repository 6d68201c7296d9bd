// Package slotpath maps a resolution query onto either an answer computable
// from local data or a storage path on the remote registry contract.
package slotpath

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/decode"
	"github.com/agenthands/gwresolver/pkg/namewalk"
	"github.com/ethereum/go-ethereum/common"
)

// Storage layout of the remote registry. These must match the deployed
// contract exactly; a mismatch reads the wrong data without any error.
const (
	SlotName        uint64 = 0
	SlotSupply      uint64 = 7
	SlotURI         uint64 = 8
	SlotTexts       uint64 = 9
	SlotAddresses   uint64 = 10
	SlotContentHash uint64 = 11
)

// CoinTypeETH is the coin type of plain addr(node) lookups.
const CoinTypeETH = 60

// Text keys answered from the registry's own metadata.
const (
	TextDescription = "description"
	TextName        = "name"
	TextURL         = "url"
)

// Profile is the 4-byte selector of a resolution call.
type Profile [4]byte

var (
	ProfileAddr        = Profile{0x3b, 0x3b, 0x57, 0xde} // addr(bytes32)
	ProfileAddrCoin    = Profile{0xf1, 0xcb, 0x7e, 0x06} // addr(bytes32,uint256)
	ProfileText        = Profile{0x59, 0xd1, 0xd4, 0x3c} // text(bytes32,string)
	ProfileContentHash = Profile{0xbc, 0x1c, 0x58, 0xd1} // contenthash(bytes32)
)

func (p Profile) String() string {
	switch p {
	case ProfileAddr:
		return "addr"
	case ProfileAddrCoin:
		return "addr-coin"
	case ProfileText:
		return "text"
	case ProfileContentHash:
		return "contenthash"
	default:
		return fmt.Sprintf("0x%x", p[:])
	}
}

// Known reports whether the profile is one of the supported selectors.
func (p Profile) Known() bool {
	switch p {
	case ProfileAddr, ProfileAddrCoin, ProfileText, ProfileContentHash:
		return true
	}
	return false
}

// Key is one mapping key followed from the current slot.
type Key struct {
	Data []byte
	// Dynamic keys (strings) hash their raw bytes; fixed keys are
	// left-padded to a 32-byte word first.
	Dynamic bool
}

// Path addresses one remote storage value: start at Root, follow Keys in
// order, then read a single word or a dynamic byte string.
type Path struct {
	Root      uint64
	Keys      []Key
	ReadBytes bool
}

// Slot computes the concrete storage slot the path resolves to.
func (p Path) Slot() common.Hash {
	slot := SlotFromUint(p.Root)
	for _, k := range p.Keys {
		if k.Dynamic {
			slot = namewalk.Keccak(k.Data, slot[:])
		} else {
			slot = namewalk.Keccak(common.LeftPadBytes(k.Data, 32), slot[:])
		}
	}
	return slot
}

// Plan is the outcome of Build: an Answer, or a Path with its decoding.
type Plan struct {
	Answer []byte
	Path   *Path
	Decode decode.Kind
}

// ShortCircuit reports whether the plan needs no remote fetch.
func (p Plan) ShortCircuit() bool { return p.Path == nil }

// Query is a parsed resolution call.
type Query struct {
	Profile  Profile
	CoinType *big.Int // ProfileAddrCoin
	Key      string   // ProfileText
}

// Build plans a query against link. label is the subdomain label hash, nil
// when the query targets the authoritative node. verifier is the selected
// verifier; nil means none could be resolved.
func Build(q Query, label *common.Hash, link core.Link, verifier *common.Address) (Plan, error) {
	if !q.Profile.Known() {
		return Plan{Answer: make([]byte, 32)}, nil
	}
	if label != nil {
		return remote(q, *label)
	}
	return atNode(q, link, verifier)
}

func remote(q Query, label common.Hash) (Plan, error) {
	labelKey := Key{Data: label.Bytes()}
	switch q.Profile {
	case ProfileAddr:
		return fetch(Path{Root: SlotAddresses, Keys: []Key{labelKey, coinKey(big.NewInt(CoinTypeETH))}}, decode.Address), nil
	case ProfileAddrCoin:
		if q.CoinType == nil {
			return Plan{}, fmt.Errorf("%w: missing coin type", core.ErrInvalidInput)
		}
		return fetch(Path{Root: SlotAddresses, Keys: []Key{labelKey, coinKey(q.CoinType)}, ReadBytes: true}, decode.Passthrough), nil
	case ProfileText:
		return fetch(Path{Root: SlotTexts, Keys: []Key{labelKey, {Data: []byte(q.Key), Dynamic: true}}, ReadBytes: true}, decode.Passthrough), nil
	default: // ProfileContentHash
		return fetch(Path{Root: SlotContentHash, Keys: []Key{labelKey}, ReadBytes: true}, decode.Passthrough), nil
	}
}

func atNode(q Query, link core.Link, verifier *common.Address) (Plan, error) {
	switch q.Profile {
	case ProfileAddr:
		if verifier == nil {
			return Plan{}, fmt.Errorf("%w: no verifier for chain %d", core.ErrUnreachable, link.ChainID)
		}
		return answer(decode.EncodeAddress(*verifier))
	case ProfileAddrCoin:
		if q.CoinType == nil {
			return Plan{}, fmt.Errorf("%w: missing coin type", core.ErrInvalidInput)
		}
		switch {
		case q.CoinType.IsUint64() && q.CoinType.Uint64() == CoinTypeETH:
			if verifier == nil {
				return Plan{}, fmt.Errorf("%w: no verifier for chain %d", core.ErrUnreachable, link.ChainID)
			}
			return answer(decode.EncodeBytes(verifier.Bytes()))
		case q.CoinType.IsUint64() && q.CoinType.Uint64() == link.CoinType():
			return answer(decode.EncodeBytes(link.Target.Bytes()))
		default:
			return answer(decode.EncodeBytes(nil))
		}
	case ProfileText:
		switch q.Key {
		case TextDescription:
			return fetch(Path{Root: SlotSupply}, decode.Supply), nil
		case TextName:
			return fetch(Path{Root: SlotName, ReadBytes: true}, decode.Passthrough), nil
		case TextURL:
			return fetch(Path{Root: SlotURI, ReadBytes: true}, decode.Passthrough), nil
		default:
			return answer(decode.EncodeString(""))
		}
	default: // ProfileContentHash
		return answer(decode.EncodeBytes(nil))
	}
}

func coinKey(coin *big.Int) Key {
	return Key{Data: common.LeftPadBytes(coin.Bytes(), 32)}
}

func fetch(p Path, kind decode.Kind) Plan {
	return Plan{Path: &p, Decode: kind}
}

func answer(b []byte, err error) (Plan, error) {
	if err != nil {
		return Plan{}, err
	}
	return Plan{Answer: b}, nil
}

// SlotFromUint returns slot n as a storage key.
func SlotFromUint(n uint64) common.Hash {
	var h common.Hash
	binary.BigEndian.PutUint64(h[24:], n)
	return h
}
