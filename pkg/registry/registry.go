// Package registry persists link records and per-chain default verifiers in
// an embedded pebble store. Every write replaces a whole record with a single
// Set, so readers see either the old record or the new one.
package registry

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/transform"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
)

var (
	PrefixLink     = []byte("lnk:")
	PrefixVerifier = []byte("ver:")
)

// Links is the read/write contract of the link registry.
type Links interface {
	Link(ctx context.Context, node core.Node) (core.Link, bool, error)
	PutLink(ctx context.Context, node core.Node, l core.Link) error
	ForEachLink(ctx context.Context, fn func(node core.Node, l core.Link) error) error
}

// Verifiers is the read/write contract of the default-verifier registry.
type Verifiers interface {
	DefaultVerifier(ctx context.Context, chainID uint64) (common.Address, bool, error)
	PutDefaultVerifier(ctx context.Context, chainID uint64, v common.Address) error
}

// Store holds both registries.
type Store interface {
	Links
	Verifiers
	Close() error
}

type pebbleStore struct {
	db    *pebble.DB
	codec Codec
	tr    transform.Transform

	// mu orders cache fills against writes so a slow reader cannot
	// reinstate a record a writer just replaced.
	mu    sync.RWMutex
	cache *lru.Cache // core.Node -> core.Link, nil when disabled
}

// Open opens the registry described by cfg.
func Open(cfg core.RegistryConfig, tcfg core.TransformConfig) (Store, error) {
	tr, err := transform.Open(tcfg)
	if err != nil {
		return nil, err
	}

	opts := &pebble.Options{}
	dir := cfg.Dir
	if cfg.InMemory {
		opts.FS = vfs.NewMem()
		if dir == "" {
			dir = "registry"
		}
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: registry directory not specified", core.ErrInvalidInput)
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}

	s := &pebbleStore{db: db, codec: NewCodec(), tr: tr}
	if cfg.CacheSize > 0 {
		s.cache, err = lru.New(cfg.CacheSize)
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}

func linkKey(node core.Node) []byte {
	return append(append([]byte(nil), PrefixLink...), node[:]...)
}

func verifierKey(chainID uint64) []byte {
	k := make([]byte, len(PrefixVerifier)+8)
	copy(k, PrefixVerifier)
	binary.BigEndian.PutUint64(k[len(PrefixVerifier):], chainID)
	return k
}

func (s *pebbleStore) get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer closer.Close()

	plain, err := s.tr.Decode(val)
	if err != nil {
		return nil, false, err
	}
	// plain may alias pebble's buffer when uncompressed
	return append([]byte(nil), plain...), true, nil
}

func (s *pebbleStore) Link(ctx context.Context, node core.Node) (core.Link, bool, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(node); ok {
			return v.(core.Link).Clone(), true, nil
		}
		s.mu.RLock()
		defer s.mu.RUnlock()
	}

	raw, ok, err := s.get(linkKey(node))
	if err != nil || !ok {
		return core.Link{}, false, err
	}
	l, err := s.codec.Decode(raw)
	if err != nil {
		return core.Link{}, false, err
	}
	if s.cache != nil {
		s.cache.Add(node, l.Clone())
	}
	return l, true, nil
}

func (s *pebbleStore) PutLink(ctx context.Context, node core.Node, l core.Link) error {
	raw, err := s.codec.Encode(l)
	if err != nil {
		return err
	}
	stored, err := s.tr.Encode(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Set(linkKey(node), stored, pebble.Sync); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Add(node, l.Clone())
	}
	return nil
}

func (s *pebbleStore) ForEachLink(ctx context.Context, fn func(node core.Node, l core.Link) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: PrefixLink,
		UpperBound: incrementByte(PrefixLink),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := iter.Key()[len(PrefixLink):]
		if len(key) != common.HashLength {
			return fmt.Errorf("%w: link key is %d bytes", core.ErrCorrupt, len(key))
		}
		plain, err := s.tr.Decode(iter.Value())
		if err != nil {
			return err
		}
		l, err := s.codec.Decode(plain)
		if err != nil {
			return err
		}
		if err := fn(common.BytesToHash(key), l); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *pebbleStore) DefaultVerifier(ctx context.Context, chainID uint64) (common.Address, bool, error) {
	raw, ok, err := s.get(verifierKey(chainID))
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	if len(raw) != common.AddressLength {
		return common.Address{}, false, fmt.Errorf("%w: verifier is %d bytes", core.ErrCorrupt, len(raw))
	}
	return common.BytesToAddress(raw), true, nil
}

func (s *pebbleStore) PutDefaultVerifier(ctx context.Context, chainID uint64, v common.Address) error {
	stored, err := s.tr.Encode(v.Bytes())
	if err != nil {
		return err
	}
	return s.db.Set(verifierKey(chainID), stored, pebble.Sync)
}

func incrementByte(b []byte) []byte {
	res := make([]byte, len(b))
	copy(res, b)
	for i := len(res) - 1; i >= 0; i-- {
		res[i]++
		if res[i] != 0 {
			return res
		}
	}
	return nil
}
