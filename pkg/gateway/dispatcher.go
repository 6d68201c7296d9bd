// Package gateway issues proof-fetch requests for resolution calls and
// completes them when the verifier's values come back.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/decode"
	"github.com/agenthands/gwresolver/pkg/logutil"
	"github.com/agenthands/gwresolver/pkg/registry"
	"github.com/agenthands/gwresolver/pkg/slotpath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/groupcache/lru"
)

var log = logutil.Logger("gateway")

// DefaultPendingLimit bounds the lookups awaiting completion. The oldest
// lookup is forgotten when the limit is exceeded.
const DefaultPendingLimit = 1024

// Lookup is an issued fetch whose result has not been decoded yet.
type Lookup struct {
	Verifier common.Address
	Request  Request
	Gateways []string
	Carry    Carry

	d    *Dispatcher
	once sync.Once
	out  []byte
	err  error
}

// Wait performs the fetch through the dispatcher's Fetcher and decodes the
// result. The fetch happens at most once; later calls return the same result.
func (l *Lookup) Wait(ctx context.Context) ([]byte, error) {
	l.once.Do(func() {
		resp, err := l.d.fetcher.Fetch(ctx, l.Verifier, l.Request, l.Gateways)
		if err != nil {
			l.d.forget(l.Carry)
			l.err = fmt.Errorf("%w: %v", core.ErrFetchFailed, err)
			return
		}
		l.out, l.err = l.d.Complete(l.Carry, resp)
	})
	return l.out, l.err
}

// Dispatcher selects verifiers and tracks pending lookups.
type Dispatcher struct {
	verifiers registry.Verifiers
	fetcher   Fetcher

	mu      sync.Mutex
	pending *lru.Cache // uuid.UUID -> Carry
}

// NewDispatcher returns a dispatcher fetching through f. limit <= 0 uses
// DefaultPendingLimit.
func NewDispatcher(v registry.Verifiers, f Fetcher, limit int) *Dispatcher {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	return &Dispatcher{verifiers: v, fetcher: f, pending: lru.New(limit)}
}

// SelectVerifier returns the link's own verifier, else the chain default.
// It returns nil when neither is set.
func (d *Dispatcher) SelectVerifier(ctx context.Context, link core.Link) (*common.Address, error) {
	if link.Verifier != nil {
		v := *link.Verifier
		return &v, nil
	}
	v, ok, err := d.verifiers.DefaultVerifier(ctx, link.ChainID)
	if err != nil {
		return nil, err
	}
	if !ok || v == (common.Address{}) {
		return nil, nil
	}
	return &v, nil
}

// Dispatch issues the single fetch for a planned resolution. verifier is the
// result of SelectVerifier; nil fails with core.ErrUnreachable before
// anything is issued.
func (d *Dispatcher) Dispatch(ctx context.Context, link core.Link, verifier *common.Address, profile slotpath.Profile, plan slotpath.Plan) (*Lookup, error) {
	if plan.ShortCircuit() {
		return nil, fmt.Errorf("%w: plan needs no fetch", core.ErrInvalidInput)
	}
	if verifier == nil {
		return nil, fmt.Errorf("%w: no verifier for chain %d", core.ErrUnreachable, link.ChainID)
	}
	if !link.Resolvable() {
		return nil, fmt.Errorf("%w: link has no target", core.ErrUnreachable)
	}

	l := &Lookup{
		Verifier: *verifier,
		Request:  Request{Target: link.Target, Path: *plan.Path},
		Gateways: append([]string(nil), link.Gateways...),
		Carry:    newCarry(profile, plan.Decode),
		d:        d,
	}

	d.mu.Lock()
	d.pending.Add(l.Carry.RequestID, l.Carry)
	d.mu.Unlock()

	log.Debugf("dispatch %s: verifier=%s target=%s slot=%s tag=%x",
		l.Carry.RequestID, l.Verifier.Hex(), l.Request.Target.Hex(), l.Request.Path.Slot().Hex(), l.Carry.Tag())
	return l, nil
}

// Complete decodes the verifier's response for a pending lookup. Each
// lookup completes exactly once.
func (d *Dispatcher) Complete(c Carry, resp Response) ([]byte, error) {
	d.mu.Lock()
	v, ok := d.pending.Get(c.RequestID)
	if !ok {
		d.mu.Unlock()
		return nil, ErrUnknownRequest
	}
	// a mismatched tag leaves the lookup pending for the genuine response
	if v.(Carry).Tag() != c.Tag() {
		d.mu.Unlock()
		return nil, ErrCarryMismatch
	}
	d.pending.Remove(c.RequestID)
	d.mu.Unlock()

	if resp.ExitCode != 0 {
		log.Warningf("request %s: verifier exit code %d", c.RequestID, resp.ExitCode)
		return nil, fmt.Errorf("%w: exit code %d", core.ErrFetchFailed, resp.ExitCode)
	}
	out, err := decode.Decode(resp.Values, v.(Carry).Decode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrFetchFailed, err)
	}
	return out, nil
}

// Pending reports how many lookups await completion.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Len()
}

func (d *Dispatcher) forget(c Carry) {
	d.mu.Lock()
	d.pending.Remove(c.RequestID)
	d.mu.Unlock()
}
