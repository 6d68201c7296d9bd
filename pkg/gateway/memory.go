package gateway

import (
	"context"
	"math/big"
	"sync"

	"github.com/agenthands/gwresolver/pkg/namewalk"
	"github.com/ethereum/go-ethereum/common"
)

// MaxReadBytes bounds dynamic values a MemoryFetcher will return.
const MaxReadBytes = 1 << 16

// Exit codes reported by MemoryFetcher.
const (
	ExitOK       uint8 = 0
	ExitTooLarge uint8 = 1
)

var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

// MemoryFetcher answers fetches from an in-process copy of contract storage
// laid out the way Solidity lays it out. Proofs are not produced; it stands
// in for a verifier in tests and local runs.
type MemoryFetcher struct {
	mu      sync.RWMutex
	storage map[common.Address]map[common.Hash]common.Hash
	calls   []Call
}

// Call records one Fetch.
type Call struct {
	Verifier common.Address
	Request  Request
	Gateways []string
}

func NewMemoryFetcher() *MemoryFetcher {
	return &MemoryFetcher{storage: make(map[common.Address]map[common.Hash]common.Hash)}
}

// SetWord stores a raw 32-byte word.
func (m *MemoryFetcher) SetWord(target common.Address, slot, word common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.storage[target]
	if !ok {
		st = make(map[common.Hash]common.Hash)
		m.storage[target] = st
	}
	st[slot] = word
}

// SetBytes stores a dynamic bytes/string value at slot.
func (m *MemoryFetcher) SetBytes(target common.Address, slot common.Hash, data []byte) {
	if len(data) < 32 {
		var word common.Hash
		copy(word[:], data)
		word[31] = byte(len(data) * 2)
		m.SetWord(target, slot, word)
		return
	}
	m.SetWord(target, slot, common.BigToHash(big.NewInt(int64(len(data))*2+1)))
	base := namewalk.Keccak(slot[:])
	for i := 0; i*32 < len(data); i++ {
		var word common.Hash
		copy(word[:], data[i*32:])
		m.SetWord(target, offsetSlot(base, i), word)
	}
}

func (m *MemoryFetcher) Fetch(ctx context.Context, verifier common.Address, req Request, gateways []string) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, Call{Verifier: verifier, Request: req, Gateways: gateways})
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.storage[req.Target]
	slot := req.Path.Slot()
	if !req.Path.ReadBytes {
		word := st[slot]
		return Response{Values: [][]byte{word.Bytes()}}, nil
	}
	data, code := readBytes(st, slot)
	if code != ExitOK {
		return Response{ExitCode: code}, nil
	}
	return Response{Values: [][]byte{data}}, nil
}

// Calls returns the fetches made so far.
func (m *MemoryFetcher) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Call(nil), m.calls...)
}

func readBytes(st map[common.Hash]common.Hash, slot common.Hash) ([]byte, uint8) {
	head := st[slot]
	if head[31]&1 == 0 {
		n := int(head[31]) / 2
		if n > 31 {
			return nil, ExitTooLarge
		}
		return append([]byte(nil), head[:n]...), ExitOK
	}
	n := new(big.Int).SetBytes(head[:])
	n.Rsh(n, 1)
	if !n.IsInt64() || n.Int64() > MaxReadBytes {
		return nil, ExitTooLarge
	}
	size := int(n.Int64())
	out := make([]byte, 0, size+31)
	base := namewalk.Keccak(slot[:])
	for i := 0; len(out) < size; i++ {
		word := st[offsetSlot(base, i)]
		out = append(out, word[:]...)
	}
	return out[:size], ExitOK
}

func offsetSlot(base common.Hash, i int) common.Hash {
	n := new(big.Int).SetBytes(base[:])
	n.Add(n, big.NewInt(int64(i)))
	n.Mod(n, two256)
	return common.BigToHash(n)
}
