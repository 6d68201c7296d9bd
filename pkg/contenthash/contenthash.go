// Package contenthash reads and writes EIP-1577 content hashes: a varint
// namespace code followed by a namespace-specific value, a CID for the
// content-addressed namespaces.
package contenthash

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/ipfs/go-cid"
	mbase "github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"
)

// Namespace is the multicodec of a content hash.
type Namespace uint64

const (
	IPFS   Namespace = 0xe3
	Swarm  Namespace = 0xe4
	IPNS   Namespace = 0xe5
	Onion3 Namespace = 0x01bd
)

// Codecs used inside namespace CIDs.
const (
	codecLibp2pKey     = 0x72
	codecSwarmManifest = 0xfa
)

func (n Namespace) Scheme() string {
	switch n {
	case IPFS:
		return "ipfs"
	case Swarm:
		return "bzz"
	case IPNS:
		return "ipns"
	case Onion3:
		return "onion3"
	default:
		return ""
	}
}

func (n Namespace) isCID() bool {
	return n == IPFS || n == IPNS || n == Swarm
}

// Value is a decoded content hash. CID is undefined for non-CID namespaces,
// whose value is kept in Raw.
type Value struct {
	Namespace Namespace
	CID       cid.Cid
	Raw       []byte
}

// Decode parses a content hash.
func Decode(b []byte) (Value, error) {
	code, n, err := varint.FromUvarint(b)
	if err != nil {
		return Value{}, fmt.Errorf("%w: namespace: %v", core.ErrInvalidInput, err)
	}
	v := Value{Namespace: Namespace(code), Raw: append([]byte(nil), b[n:]...)}
	if v.Namespace.Scheme() == "" {
		return Value{}, fmt.Errorf("%w: unsupported namespace 0x%x", core.ErrInvalidInput, code)
	}
	if !v.Namespace.isCID() {
		if len(v.Raw) == 0 {
			return Value{}, fmt.Errorf("%w: empty %s value", core.ErrInvalidInput, v.Namespace.Scheme())
		}
		return v, nil
	}
	c, err := cid.Cast(v.Raw)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %s cid: %v", core.ErrInvalidInput, v.Namespace.Scheme(), err)
	}
	v.CID = c
	return v, nil
}

// Encode produces the content hash bytes. IPFS CIDs are stored as v1.
func Encode(v Value) ([]byte, error) {
	if v.Namespace.Scheme() == "" {
		return nil, fmt.Errorf("%w: unsupported namespace 0x%x", core.ErrInvalidInput, uint64(v.Namespace))
	}
	out := varint.ToUvarint(uint64(v.Namespace))
	if !v.Namespace.isCID() {
		if len(v.Raw) == 0 {
			return nil, fmt.Errorf("%w: empty %s value", core.ErrInvalidInput, v.Namespace.Scheme())
		}
		return append(out, v.Raw...), nil
	}
	if !v.CID.Defined() {
		return nil, fmt.Errorf("%w: undefined cid", core.ErrInvalidInput)
	}
	c := v.CID
	if c.Version() == 0 {
		c = cid.NewCidV1(c.Type(), c.Hash())
	}
	return append(out, c.Bytes()...), nil
}

// String renders the value as a URI, e.g. ipfs://bafy...
func (v Value) String() string {
	scheme := v.Namespace.Scheme()
	switch v.Namespace {
	case IPNS:
		s, err := v.CID.StringOfBase(mbase.Base36)
		if err != nil {
			s = v.CID.String()
		}
		return scheme + "://" + s
	case Swarm:
		dec, err := multihash.Decode(v.CID.Hash())
		if err != nil {
			return scheme + "://" + v.CID.String()
		}
		return scheme + "://" + hex.EncodeToString(dec.Digest)
	case IPFS:
		return scheme + "://" + v.CID.String()
	default:
		return scheme + "://" + string(v.Raw)
	}
}

// Parse reads a URI produced by String. Bare CIDs are taken as IPFS.
func Parse(uri string) (Value, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		scheme, rest = "ipfs", uri
	}
	switch scheme {
	case "ipfs", "ipns":
		c, err := cid.Decode(rest)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s cid: %v", core.ErrInvalidInput, scheme, err)
		}
		if scheme == "ipns" {
			if c.Version() == 0 {
				c = cid.NewCidV1(codecLibp2pKey, c.Hash())
			}
			return Value{Namespace: IPNS, CID: c}, nil
		}
		return Value{Namespace: IPFS, CID: c}, nil
	case "bzz":
		digest, err := hex.DecodeString(rest)
		if err != nil || len(digest) != 32 {
			return Value{}, fmt.Errorf("%w: swarm hash %q", core.ErrInvalidInput, rest)
		}
		mh, err := multihash.Encode(digest, multihash.KECCAK_256)
		if err != nil {
			return Value{}, err
		}
		return Value{Namespace: Swarm, CID: cid.NewCidV1(codecSwarmManifest, mh)}, nil
	case "onion3":
		if rest == "" {
			return Value{}, fmt.Errorf("%w: empty onion address", core.ErrInvalidInput)
		}
		return Value{Namespace: Onion3, Raw: []byte(rest)}, nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported scheme %q", core.ErrInvalidInput, scheme)
	}
}

// ForContent returns the IPFS content hash of a single raw block holding plain.
func ForContent(plain []byte) (Value, error) {
	hash, err := multihash.Sum(plain, multihash.SHA2_256, -1)
	if err != nil {
		return Value{}, fmt.Errorf("failed to compute multihash: %w", err)
	}
	return Value{Namespace: IPFS, CID: cid.NewCidV1(cid.Raw, hash)}, nil
}

// Verify checks that plain hashes to the value's CID.
func Verify(v Value, plain []byte) error {
	if !v.Namespace.isCID() || !v.CID.Defined() {
		return fmt.Errorf("%w: %s value has no cid", core.ErrInvalidInput, v.Namespace.Scheme())
	}
	prefix := v.CID.Prefix()
	hash, err := multihash.Sum(plain, prefix.MhType, prefix.MhLength)
	if err != nil {
		return fmt.Errorf("failed to compute multihash for verification: %w", err)
	}
	if !bytes.Equal(v.CID.Hash(), hash) {
		return fmt.Errorf("%w: content hash mismatch", core.ErrCorrupt)
	}
	return nil
}
