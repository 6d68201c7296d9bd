// Package oracle defines the ownership and resolver-delegation queries the
// resolver consults, plus an in-memory implementation.
package oracle

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/namewalk"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Oracle answers ownership questions about nodes.
type Oracle interface {
	OwnerOf(ctx context.Context, node core.Node) (common.Address, error)
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
	CanModifyWrappedName(ctx context.Context, node core.Node, operator common.Address) (bool, error)
	ConfiguredResolver(ctx context.Context, node core.Node) (common.Address, error)
}

// CanModify reports whether caller may administer node: it owns the node,
// is an approved operator of the owner, or is approved through the
// wrapping layer.
func CanModify(ctx context.Context, o Oracle, node core.Node, caller common.Address) (bool, error) {
	owner, err := o.OwnerOf(ctx, node)
	if err != nil {
		return false, err
	}
	if owner == caller && owner != (common.Address{}) {
		return true, nil
	}
	ok, err := o.IsApprovedForAll(ctx, owner, caller)
	if err != nil || ok {
		return ok, err
	}
	return o.CanModifyWrappedName(ctx, node, caller)
}

type approval struct {
	owner, operator common.Address
}

type wrappedApproval struct {
	node     core.Node
	operator common.Address
}

// Static is a mutable in-memory Oracle.
type Static struct {
	mu        sync.RWMutex
	owners    map[core.Node]common.Address
	resolvers map[core.Node]common.Address
	approvals map[approval]bool
	wrapped   map[wrappedApproval]bool
}

func NewStatic() *Static {
	return &Static{
		owners:    make(map[core.Node]common.Address),
		resolvers: make(map[core.Node]common.Address),
		approvals: make(map[approval]bool),
		wrapped:   make(map[wrappedApproval]bool),
	}
}

func (s *Static) SetOwner(node core.Node, owner common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[node] = owner
}

func (s *Static) SetResolver(node core.Node, resolver common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvers[node] = resolver
}

func (s *Static) SetApprovalForAll(owner, operator common.Address, approved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[approval{owner, operator}] = approved
}

func (s *Static) SetWrappedApproval(node core.Node, operator common.Address, approved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wrapped[wrappedApproval{node, operator}] = approved
}

func (s *Static) OwnerOf(ctx context.Context, node core.Node) (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[node], nil
}

func (s *Static) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approvals[approval{owner, operator}], nil
}

func (s *Static) CanModifyWrappedName(ctx context.Context, node core.Node, operator common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wrapped[wrappedApproval{node, operator}], nil
}

func (s *Static) ConfiguredResolver(ctx context.Context, node core.Node) (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolvers[node], nil
}

// File is the YAML fixture form of a Static oracle. Names are dotted.
type File struct {
	Names []struct {
		Name     string   `yaml:"name"`
		Owner    string   `yaml:"owner"`
		Resolver string   `yaml:"resolver"`
		Wrapped  []string `yaml:"wrapped_operators"`
	} `yaml:"names"`
	Operators []struct {
		Owner    string `yaml:"owner"`
		Operator string `yaml:"operator"`
	} `yaml:"operators"`
}

// LoadStatic reads a YAML fixture into a Static oracle.
func LoadStatic(path string) (*Static, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseStatic(b)
}

// ParseStatic decodes a YAML fixture.
func ParseStatic(b []byte) (*Static, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: oracle fixture: %v", core.ErrInvalidInput, err)
	}
	s := NewStatic()
	for _, n := range f.Names {
		enc, err := namewalk.Encode(n.Name)
		if err != nil {
			return nil, err
		}
		node, err := namewalk.Namehash(enc, 0)
		if err != nil {
			return nil, err
		}
		if n.Owner != "" {
			if !common.IsHexAddress(n.Owner) {
				return nil, fmt.Errorf("%w: owner of %s: %q", core.ErrInvalidInput, n.Name, n.Owner)
			}
			s.SetOwner(node, common.HexToAddress(n.Owner))
		}
		if n.Resolver != "" {
			if !common.IsHexAddress(n.Resolver) {
				return nil, fmt.Errorf("%w: resolver of %s: %q", core.ErrInvalidInput, n.Name, n.Resolver)
			}
			s.SetResolver(node, common.HexToAddress(n.Resolver))
		}
		for _, op := range n.Wrapped {
			s.SetWrappedApproval(node, common.HexToAddress(op), true)
		}
	}
	for _, op := range f.Operators {
		s.SetApprovalForAll(common.HexToAddress(op.Owner), common.HexToAddress(op.Operator), true)
	}
	return s, nil
}
