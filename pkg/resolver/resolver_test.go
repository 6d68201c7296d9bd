package resolver

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/decode"
	"github.com/agenthands/gwresolver/pkg/gateway"
	"github.com/agenthands/gwresolver/pkg/namewalk"
	"github.com/agenthands/gwresolver/pkg/oracle"
	"github.com/agenthands/gwresolver/pkg/slotpath"
	"github.com/ethereum/go-ethereum/common"
)

const chainID = 8453

var (
	self     = common.HexToAddress("0x5e1f")
	owner    = common.HexToAddress("0x0a11")
	alice    = common.HexToAddress("0xa11ce")
	mallory  = common.HexToAddress("0xbad")
	target   = common.HexToAddress("0x7a59e7")
	verifier = common.HexToAddress("0x7e71f1e7")

	parentName = namewalk.MustEncode("owner.eth")
	subName    = namewalk.MustEncode("bob.owner.eth")
	parentNode = mustNode(parentName)
)

func mustNode(name []byte) core.Node {
	n, err := namewalk.Namehash(name, 0)
	if err != nil {
		panic(err)
	}
	return n
}

type fixture struct {
	r   *Resolver
	o   *oracle.Static
	mem *gateway.MemoryFetcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := core.Config{
		Self:     self,
		Owner:    owner,
		Registry: core.RegistryConfig{InMemory: true, CacheSize: 16},
	}
	o := oracle.NewStatic()
	o.SetResolver(parentNode, self)
	o.SetOwner(parentNode, alice)

	mem := gateway.NewMemoryFetcher()
	r, err := Open(context.Background(), cfg, o, mem)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return &fixture{r: r, o: o, mem: mem}
}

// linked stores a link for owner.eth without a verifier override.
func (f *fixture) linked(t *testing.T) {
	t.Helper()
	link := core.Link{Target: target, ChainID: chainID, Gateways: []string{"https://gw.example"}}
	if err := f.r.SetLink(context.Background(), alice, parentNode, link); err != nil {
		t.Fatalf("SetLink failed: %v", err)
	}
}

func (f *fixture) withDefaultVerifier(t *testing.T) {
	t.Helper()
	if err := f.r.SetDefaultVerifier(context.Background(), owner, chainID, verifier); err != nil {
		t.Fatalf("SetDefaultVerifier failed: %v", err)
	}
}

func TestAddrAtNodeReturnsVerifier(t *testing.T) {
	f := newFixture(t)
	f.linked(t)
	f.withDefaultVerifier(t)

	res, err := f.r.Resolve(context.Background(), parentName, AddrCall(parentNode))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Lookup != nil {
		t.Fatal("expected local answer")
	}
	got, err := decode.UnpackAddress(res.Answer)
	if err != nil || got != verifier {
		t.Errorf("expected verifier %s, got %s (%v)", verifier.Hex(), got.Hex(), err)
	}
	if n := len(f.mem.Calls()); n != 0 {
		t.Errorf("expected zero fetches, got %d", n)
	}
}

func TestDescriptionReportsSupply(t *testing.T) {
	f := newFixture(t)
	f.linked(t)
	f.withDefaultVerifier(t)
	f.mem.SetWord(target, slotpath.SlotFromUint(slotpath.SlotSupply), common.BigToHash(big.NewInt(42)))

	out, err := f.r.ResolveAndWait(context.Background(), parentName, TextCall(parentNode, "description"))
	if err != nil {
		t.Fatalf("ResolveAndWait failed: %v", err)
	}
	s, err := decode.UnpackString(out)
	if err != nil || s != "42 subdomains" {
		t.Errorf("expected %q, got %q (%v)", "42 subdomains", s, err)
	}
	if n := len(f.mem.Calls()); n != 1 {
		t.Errorf("expected exactly one fetch, got %d", n)
	}
}

func TestNodeTextRecords(t *testing.T) {
	f := newFixture(t)
	f.linked(t)
	f.withDefaultVerifier(t)
	f.mem.SetBytes(target, slotpath.SlotFromUint(slotpath.SlotName), []byte("Owner Names"))
	f.mem.SetBytes(target, slotpath.SlotFromUint(slotpath.SlotURI), []byte("https://names.example.org/metadata/registry.json"))

	cases := []struct {
		key  string
		want string
	}{
		{"name", "Owner Names"},
		{"url", "https://names.example.org/metadata/registry.json"},
		{"avatar", ""},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			out, err := f.r.ResolveAndWait(context.Background(), parentName, TextCall(parentNode, tc.key))
			if err != nil {
				t.Fatalf("ResolveAndWait failed: %v", err)
			}
			s, err := decode.UnpackString(out)
			if err != nil || s != tc.want {
				t.Errorf("expected %q, got %q (%v)", tc.want, s, err)
			}
		})
	}
}

func TestUnknownTextKeyFetchesNothing(t *testing.T) {
	f := newFixture(t)
	f.linked(t)

	res, err := f.r.Resolve(context.Background(), parentName, TextCall(parentNode, "com.twitter"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	s, err := decode.UnpackString(res.Answer)
	if err != nil || s != "" {
		t.Errorf("expected empty string, got %q (%v)", s, err)
	}
	if n := len(f.mem.Calls()); n != 0 || f.r.Pending() != 0 {
		t.Errorf("expected nothing dispatched, got %d fetches", n)
	}
}

func TestAddrCoinAtNode(t *testing.T) {
	f := newFixture(t)
	f.linked(t)
	f.withDefaultVerifier(t)

	cases := []struct {
		name string
		coin uint64
		want []byte
	}{
		{"ETH", slotpath.CoinTypeETH, verifier.Bytes()},
		{"LinkChain", core.EVMCoinTypeMarker | chainID, target.Bytes()},
		{"Other", 0, []byte{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.r.Resolve(context.Background(), parentName, AddrCoinCall(parentNode, tc.coin))
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			got, err := decode.UnpackBytes(res.Answer)
			if err != nil || !bytes.Equal(got, tc.want) {
				t.Errorf("expected %x, got %x (%v)", tc.want, got, err)
			}
		})
	}
	if n := len(f.mem.Calls()); n != 0 {
		t.Errorf("expected zero fetches, got %d", n)
	}
}

func TestContentHashAtNodeIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.linked(t)

	res, err := f.r.Resolve(context.Background(), parentName, ContentHashCall(parentNode))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got, err := decode.UnpackBytes(res.Answer)
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty bytes, got %x (%v)", got, err)
	}
}

func TestUnknownSelectorPlaceholder(t *testing.T) {
	f := newFixture(t)
	f.linked(t)

	data := append([]byte{0xde, 0xad, 0xbe, 0xef}, make([]byte, 32)...)
	for _, name := range [][]byte{parentName, subName} {
		out, err := f.r.ResolveAndWait(context.Background(), name, data)
		if err != nil {
			t.Fatalf("ResolveAndWait failed: %v", err)
		}
		if !bytes.Equal(out, make([]byte, 32)) {
			t.Errorf("expected 32 zero bytes, got %x", out)
		}
	}
}

func TestSubdomainNeedsVerifier(t *testing.T) {
	f := newFixture(t)
	f.linked(t)

	_, err := f.r.Resolve(context.Background(), subName, TextCall(parentNode, "url"))
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	if n := len(f.mem.Calls()); n != 0 {
		t.Fatalf("expected zero fetches, got %d", n)
	}

	f.withDefaultVerifier(t)
	if _, err := f.r.ResolveAndWait(context.Background(), subName, TextCall(parentNode, "url")); err != nil {
		t.Fatalf("ResolveAndWait failed: %v", err)
	}
	calls := f.mem.Calls()
	if len(calls) != 1 || calls[0].Verifier != verifier {
		t.Errorf("expected one fetch to the chain default, got %+v", calls)
	}
}

func TestLinkVerifierOverride(t *testing.T) {
	f := newFixture(t)
	f.withDefaultVerifier(t)

	override := common.HexToAddress("0x0eef")
	link := core.Link{Target: target, ChainID: chainID, Verifier: &override}
	if err := f.r.SetLink(context.Background(), alice, parentNode, link); err != nil {
		t.Fatalf("SetLink failed: %v", err)
	}

	if _, err := f.r.ResolveAndWait(context.Background(), subName, ContentHashCall(parentNode)); err != nil {
		t.Fatalf("ResolveAndWait failed: %v", err)
	}
	calls := f.mem.Calls()
	if len(calls) != 1 || calls[0].Verifier != override {
		t.Errorf("expected fetch to the link verifier, got %+v", calls)
	}
}

func TestSubdomainRecords(t *testing.T) {
	f := newFixture(t)
	f.linked(t)
	f.withDefaultVerifier(t)

	label := namewalk.LabelHash([]byte("bob"))
	labelKey := slotpath.Key{Data: label.Bytes()}
	bobAddr := common.HexToAddress("0xb0b")
	coin := uint64(core.EVMCoinTypeMarker | 10)
	coinAddr := common.HexToAddress("0xc01")
	hash := append([]byte{0xe3, 0x01, 0x01, 0x70, 0x12, 0x20}, bytes.Repeat([]byte{0x11}, 32)...)

	f.mem.SetWord(target, slotpath.Path{Root: slotpath.SlotAddresses, Keys: []slotpath.Key{labelKey, {Data: big.NewInt(slotpath.CoinTypeETH).Bytes()}}}.Slot(), common.BytesToHash(bobAddr.Bytes()))
	f.mem.SetBytes(target, slotpath.Path{Root: slotpath.SlotAddresses, Keys: []slotpath.Key{labelKey, {Data: new(big.Int).SetUint64(coin).Bytes()}}}.Slot(), coinAddr.Bytes())
	f.mem.SetBytes(target, slotpath.Path{Root: slotpath.SlotTexts, Keys: []slotpath.Key{labelKey, {Data: []byte("avatar"), Dynamic: true}}}.Slot(), []byte("ipfs://avatar"))
	f.mem.SetBytes(target, slotpath.Path{Root: slotpath.SlotContentHash, Keys: []slotpath.Key{labelKey}}.Slot(), hash)

	ctx := context.Background()
	t.Run("Addr", func(t *testing.T) {
		out, err := f.r.ResolveAndWait(ctx, subName, AddrCall(mustNode(subName)))
		if err != nil {
			t.Fatalf("ResolveAndWait failed: %v", err)
		}
		got, _ := decode.UnpackAddress(out)
		if got != bobAddr {
			t.Errorf("expected %s, got %s", bobAddr.Hex(), got.Hex())
		}
	})
	t.Run("AddrCoin", func(t *testing.T) {
		out, err := f.r.ResolveAndWait(ctx, subName, AddrCoinCall(mustNode(subName), coin))
		if err != nil {
			t.Fatalf("ResolveAndWait failed: %v", err)
		}
		got, _ := decode.UnpackBytes(out)
		if !bytes.Equal(got, coinAddr.Bytes()) {
			t.Errorf("expected %x, got %x", coinAddr.Bytes(), got)
		}
	})
	t.Run("Text", func(t *testing.T) {
		out, err := f.r.ResolveAndWait(ctx, subName, TextCall(mustNode(subName), "avatar"))
		if err != nil {
			t.Fatalf("ResolveAndWait failed: %v", err)
		}
		got, _ := decode.UnpackString(out)
		if got != "ipfs://avatar" {
			t.Errorf("expected ipfs://avatar, got %q", got)
		}
	})
	t.Run("ContentHash", func(t *testing.T) {
		out, err := f.r.ResolveAndWait(ctx, subName, ContentHashCall(mustNode(subName)))
		if err != nil {
			t.Fatalf("ResolveAndWait failed: %v", err)
		}
		got, _ := decode.UnpackBytes(out)
		if !bytes.Equal(got, hash) {
			t.Errorf("expected %x, got %x", hash, got)
		}
	})
	t.Run("DeeperNameSharesLabel", func(t *testing.T) {
		deep := namewalk.MustEncode("x.bob.owner.eth")
		out, err := f.r.ResolveAndWait(ctx, deep, AddrCall(mustNode(deep)))
		if err != nil {
			t.Fatalf("ResolveAndWait failed: %v", err)
		}
		got, _ := decode.UnpackAddress(out)
		if got != bobAddr {
			t.Errorf("expected %s, got %s", bobAddr.Hex(), got.Hex())
		}
	})
}

func TestUnreachable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("NoAuthority", func(t *testing.T) {
		name := namewalk.MustEncode("other.eth")
		if _, err := f.r.Resolve(ctx, name, AddrCall(mustNode(name))); !errors.Is(err, ErrUnreachable) {
			t.Errorf("expected ErrUnreachable, got %v", err)
		}
	})
	t.Run("NoLink", func(t *testing.T) {
		if _, err := f.r.Resolve(ctx, parentName, AddrCall(parentNode)); !errors.Is(err, ErrUnreachable) {
			t.Errorf("expected ErrUnreachable, got %v", err)
		}
	})
	t.Run("ZeroTarget", func(t *testing.T) {
		if err := f.r.SetLink(ctx, alice, parentNode, core.Link{ChainID: chainID}); err != nil {
			t.Fatalf("SetLink failed: %v", err)
		}
		if _, err := f.r.Resolve(ctx, parentName, AddrCall(parentNode)); !errors.Is(err, ErrUnreachable) {
			t.Errorf("expected ErrUnreachable, got %v", err)
		}
	})
	t.Run("NodeAddrWithoutVerifier", func(t *testing.T) {
		f.linked(t)
		if _, err := f.r.Resolve(ctx, parentName, AddrCall(parentNode)); !errors.Is(err, ErrUnreachable) {
			t.Errorf("expected ErrUnreachable, got %v", err)
		}
	})
}

func TestRootAuthority(t *testing.T) {
	f := newFixture(t)
	root := mustNode(namewalk.MustEncode(""))
	f.o.SetResolver(root, self)
	f.o.SetOwner(root, alice)
	if err := f.r.SetLink(context.Background(), alice, root, core.Link{Target: target, ChainID: chainID}); err != nil {
		t.Fatalf("SetLink failed: %v", err)
	}

	node, link, err := f.r.Target(context.Background(), namewalk.MustEncode("anything.com"))
	if err != nil {
		t.Fatalf("Target failed: %v", err)
	}
	if node != root || link.Target != target {
		t.Errorf("expected root authority, got %s -> %s", node.Hex(), link.Target.Hex())
	}
}

func TestMalformedName(t *testing.T) {
	f := newFixture(t)
	f.linked(t)

	bad := [][]byte{
		nil,
		{5, 'o', 'w'},
		{3, 'e', 't', 'h'},
		{3, 'e', 't', 'h', 0, 0},
	}
	for _, name := range bad {
		if _, err := f.r.Resolve(context.Background(), name, AddrCall(parentNode)); !errors.Is(err, ErrMalformedName) {
			t.Errorf("%x: expected ErrMalformedName, got %v", name, err)
		}
	}
}

func TestBadCallData(t *testing.T) {
	f := newFixture(t)
	f.linked(t)

	for _, data := range [][]byte{nil, {0x3b, 0x3b}, slotpath.ProfileText[:]} {
		if _, err := f.r.Resolve(context.Background(), parentName, data); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%x: expected ErrInvalidInput, got %v", data, err)
		}
	}
}

func TestCallback(t *testing.T) {
	f := newFixture(t)
	f.linked(t)
	f.withDefaultVerifier(t)
	ctx := context.Background()

	res, err := f.r.Resolve(ctx, parentName, TextCall(parentNode, "description"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	carry := res.Lookup.Carry.Bytes()
	if !bytes.Equal(carry[:4], gateway.TagSupply[:]) {
		t.Errorf("expected supply tag, got %x", carry[:4])
	}

	values := [][]byte{common.BigToHash(big.NewInt(7)).Bytes()}
	out, err := f.r.Callback(ctx, values, 0, carry)
	if err != nil {
		t.Fatalf("Callback failed: %v", err)
	}
	if s, _ := decode.UnpackString(out); s != "7 subdomains" {
		t.Errorf("expected %q, got %q", "7 subdomains", s)
	}
	if _, err := f.r.Callback(ctx, values, 0, carry); !errors.Is(err, ErrUnknownRequest) {
		t.Errorf("expected ErrUnknownRequest on second callback, got %v", err)
	}

	res, _ = f.r.Resolve(ctx, subName, TextCall(parentNode, "url"))
	if _, err := f.r.Callback(ctx, nil, 3, res.Lookup.Carry.Bytes()); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed on exit code, got %v", err)
	}
	if _, err := f.r.Callback(ctx, values, 0, []byte{1, 2, 3}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput on short carry, got %v", err)
	}
}

func TestSetLinkAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := core.Link{Target: target, ChainID: chainID}

	if err := f.r.SetLink(ctx, mallory, parentNode, link); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, ok, _ := f.r.Link(ctx, parentNode); ok {
		t.Fatal("unauthorized write left a record")
	}

	if err := f.r.SetLink(ctx, alice, parentNode, link); err != nil {
		t.Fatalf("owner SetLink failed: %v", err)
	}
	got, ok, err := f.r.Link(ctx, parentNode)
	if err != nil || !ok || got.Target != target {
		t.Fatalf("expected owner write visible, got %+v %v %v", got, ok, err)
	}

	operator := common.HexToAddress("0x0b")
	f.o.SetApprovalForAll(alice, operator, true)
	moved := core.Link{Target: common.HexToAddress("0x1234"), ChainID: chainID}
	if err := f.r.SetLink(ctx, operator, parentNode, moved); err != nil {
		t.Fatalf("operator SetLink failed: %v", err)
	}

	wrapped := common.HexToAddress("0x0c")
	if err := f.r.SetLink(ctx, wrapped, parentNode, link); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized before wrapped approval, got %v", err)
	}
	f.o.SetWrappedApproval(parentNode, wrapped, true)
	if err := f.r.SetLink(ctx, wrapped, parentNode, link); err != nil {
		t.Fatalf("wrapped operator SetLink failed: %v", err)
	}

	if err := f.r.SetLink(ctx, mallory, parentNode, moved); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	got, _, _ = f.r.Link(ctx, parentNode)
	if got.Target != target {
		t.Errorf("rejected write changed the record to %s", got.Target.Hex())
	}
}

func TestSetDefaultVerifierAuthorization(t *testing.T) {
	f := newFixture(t)
	f.linked(t)
	ctx := context.Background()

	if err := f.r.SetDefaultVerifier(ctx, alice, chainID, verifier); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.r.Resolve(ctx, parentName, AddrCall(parentNode)); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected verifier to stay unset, got %v", err)
	}
	f.withDefaultVerifier(t)
	if _, err := f.r.Resolve(ctx, parentName, AddrCall(parentNode)); err != nil {
		t.Fatalf("expected owner write visible, got %v", err)
	}
}

func TestLinks(t *testing.T) {
	f := newFixture(t)
	f.linked(t)

	n := 0
	err := f.r.Links(context.Background(), func(node core.Node, l core.Link) error {
		n++
		if node != parentNode || l.Target != target {
			t.Errorf("unexpected link %s -> %s", node.Hex(), l.Target.Hex())
		}
		return nil
	})
	if err != nil || n != 1 {
		t.Errorf("expected one link, got %d (%v)", n, err)
	}
}

func TestClosed(t *testing.T) {
	f := newFixture(t)
	if err := f.r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := f.r.Resolve(context.Background(), parentName, AddrCall(parentNode)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := f.r.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
