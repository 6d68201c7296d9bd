// Package resolver resolves names whose data lives on a remote chain. A
// resolution call walks the name to its authoritative node, looks up the
// node's link, and either answers locally or issues one proof fetch.
package resolver

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/gateway"
	"github.com/agenthands/gwresolver/pkg/logutil"
	"github.com/agenthands/gwresolver/pkg/namewalk"
	"github.com/agenthands/gwresolver/pkg/oracle"
	"github.com/agenthands/gwresolver/pkg/registry"
	"github.com/agenthands/gwresolver/pkg/slotpath"
	"github.com/ethereum/go-ethereum/common"
)

var log = logutil.Logger("resolver")

// Result is the outcome of Resolve: an Answer computed without fetching, or
// a Lookup that must be waited on (or completed through Callback).
type Result struct {
	Node    core.Node
	Profile slotpath.Profile
	Answer  []byte
	Lookup  *gateway.Lookup
}

// Resolver is safe for concurrent use.
type Resolver struct {
	cfg    core.Config
	store  registry.Store
	oracle oracle.Oracle
	disp   *gateway.Dispatcher

	mu     sync.RWMutex
	closed bool
}

// Open opens the registry under cfg and returns a resolver fetching
// through f.
func Open(ctx context.Context, cfg core.Config, o oracle.Oracle, f gateway.Fetcher) (*Resolver, error) {
	if o == nil || f == nil {
		return nil, fmt.Errorf("%w: oracle and fetcher are required", core.ErrInvalidInput)
	}
	if cfg.Registry.Dir == "" && !cfg.Registry.InMemory {
		cfg.Registry.Dir = filepath.Join(cfg.Dir, "registry")
	}

	st, err := registry.Open(cfg.Registry, cfg.Transform)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	return New(cfg, st, o, f), nil
}

// New builds a resolver over an already open store. Close closes st.
func New(cfg core.Config, st registry.Store, o oracle.Oracle, f gateway.Fetcher) *Resolver {
	return &Resolver{
		cfg:    cfg,
		store:  st,
		oracle: o,
		disp:   gateway.NewDispatcher(st, f, cfg.Gateway.PendingLimit),
	}
}

func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.store.Close()
}

func (r *Resolver) checkOpen() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return core.ErrClosed
	}
	return nil
}

// Resolve runs a resolution call for a wire-encoded name and ENSIP-10 call
// data.
func (r *Resolver) Resolve(ctx context.Context, name, data []byte) (*Result, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	q, err := ParseCall(data)
	if err != nil {
		return nil, err
	}

	node, offset, err := r.locate(ctx, name)
	if err != nil {
		log.Warningf("locate %q: %v", namewalk.Decode(name), err)
		return nil, err
	}
	log.Debugf("%s %q: authority %s at offset %d", q.Profile, namewalk.Decode(name), node.Hex(), offset)

	link, err := r.lookupLink(ctx, node)
	if err != nil {
		log.Warningf("link %s: %v", node.Hex(), err)
		return nil, err
	}

	label, err := namewalk.SubdomainLabelHash(name, offset)
	if err != nil {
		return nil, err
	}
	verifier, err := r.disp.SelectVerifier(ctx, link)
	if err != nil {
		return nil, err
	}

	plan, err := slotpath.Build(q, label, link, verifier)
	if err != nil {
		log.Warningf("plan %s at %s: %v", q.Profile, node.Hex(), err)
		return nil, err
	}
	res := &Result{Node: node, Profile: q.Profile}
	if plan.ShortCircuit() {
		log.Debugf("%s at %s: answered locally", q.Profile, node.Hex())
		res.Answer = plan.Answer
		return res, nil
	}

	res.Lookup, err = r.disp.Dispatch(ctx, link, verifier, q.Profile, plan)
	if err != nil {
		log.Warningf("dispatch %s at %s: %v", q.Profile, node.Hex(), err)
		return nil, err
	}
	return res, nil
}

// ResolveAndWait resolves and, when a fetch is needed, waits for it.
func (r *Resolver) ResolveAndWait(ctx context.Context, name, data []byte) ([]byte, error) {
	res, err := r.Resolve(ctx, name, data)
	if err != nil {
		return nil, err
	}
	if res.Lookup == nil {
		return res.Answer, nil
	}
	return res.Lookup.Wait(ctx)
}

// Callback completes a lookup whose fetch was performed by the caller.
// carry is the lookup's Carry.Bytes().
func (r *Resolver) Callback(ctx context.Context, values [][]byte, exitCode uint8, carry []byte) ([]byte, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	c, err := gateway.ParseCarry(carry)
	if err != nil {
		return nil, err
	}
	out, err := r.disp.Complete(c, gateway.Response{Values: values, ExitCode: exitCode})
	if err != nil {
		log.Warningf("callback %s: %v", c.RequestID, err)
		return nil, err
	}
	return out, nil
}

// Target returns the authoritative node for name and its link.
func (r *Resolver) Target(ctx context.Context, name []byte) (core.Node, core.Link, error) {
	if err := r.checkOpen(); err != nil {
		return core.Node{}, core.Link{}, err
	}
	node, _, err := r.locate(ctx, name)
	if err != nil {
		return core.Node{}, core.Link{}, err
	}
	link, ok, err := r.store.Link(ctx, node)
	if err != nil {
		return core.Node{}, core.Link{}, err
	}
	if !ok {
		return node, core.Link{}, fmt.Errorf("%w: no link for %s", core.ErrNotFound, node.Hex())
	}
	return node, link, nil
}

func (r *Resolver) locate(ctx context.Context, name []byte) (core.Node, int, error) {
	return namewalk.FindOwningNode(name, func(node core.Node) (bool, error) {
		res, err := r.oracle.ConfiguredResolver(ctx, node)
		if err != nil {
			return false, err
		}
		return res == r.cfg.Self, nil
	})
}

func (r *Resolver) lookupLink(ctx context.Context, node core.Node) (core.Link, error) {
	link, ok, err := r.store.Link(ctx, node)
	if err != nil {
		return core.Link{}, err
	}
	if !ok || !link.Resolvable() {
		return core.Link{}, fmt.Errorf("%w: no link target for %s", core.ErrUnreachable, node.Hex())
	}
	return link, nil
}

// SetDefaultVerifier sets the verifier used for chainID when a link has no
// override. Only the configured owner may call it.
func (r *Resolver) SetDefaultVerifier(ctx context.Context, caller common.Address, chainID uint64, verifier common.Address) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if caller == (common.Address{}) || caller != r.cfg.Owner {
		log.Warningf("set-verifier chain %d: %s is not the owner", chainID, caller.Hex())
		return fmt.Errorf("%w: %s is not the owner", core.ErrUnauthorized, caller.Hex())
	}
	if err := r.store.PutDefaultVerifier(ctx, chainID, verifier); err != nil {
		return err
	}
	log.Infof("default verifier for chain %d set to %s", chainID, verifier.Hex())
	return nil
}

// SetLink replaces the link of node. The caller must own the node, be
// approved for all of the owner's names, or be approved for the wrapped name.
func (r *Resolver) SetLink(ctx context.Context, caller common.Address, node core.Node, link core.Link) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	ok, err := oracle.CanModify(ctx, r.oracle, node, caller)
	if err != nil {
		return err
	}
	if !ok {
		log.Warningf("set-link %s: %s not authorised", node.Hex(), caller.Hex())
		return fmt.Errorf("%w: %s may not modify %s", core.ErrUnauthorized, caller.Hex(), node.Hex())
	}
	if err := r.store.PutLink(ctx, node, link); err != nil {
		return err
	}
	log.Infof("link for %s set: target=%s chain=%d", node.Hex(), link.Target.Hex(), link.ChainID)
	return nil
}

// Link returns the stored link of node.
func (r *Resolver) Link(ctx context.Context, node core.Node) (core.Link, bool, error) {
	if err := r.checkOpen(); err != nil {
		return core.Link{}, false, err
	}
	return r.store.Link(ctx, node)
}

// Links iterates every stored link.
func (r *Resolver) Links(ctx context.Context, fn func(node core.Node, l core.Link) error) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	return r.store.ForEachLink(ctx, fn)
}

// Pending reports lookups awaiting completion.
func (r *Resolver) Pending() int {
	return r.disp.Pending()
}
