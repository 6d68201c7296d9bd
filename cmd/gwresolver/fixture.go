package main

import (
	"fmt"
	"math/big"
	"os"

	"github.com/agenthands/gwresolver/pkg/contenthash"
	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/gateway"
	"github.com/agenthands/gwresolver/pkg/namewalk"
	"github.com/agenthands/gwresolver/pkg/slotpath"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// storageFile describes remote registry contracts for the in-process
// fetcher, keyed the way the contracts key their records.
type storageFile struct {
	Targets []struct {
		Address    string                  `yaml:"address"`
		Name       string                  `yaml:"name"`
		URL        string                  `yaml:"url"`
		Supply     uint64                  `yaml:"supply"`
		Subdomains map[string]subdomainDoc `yaml:"subdomains"`
	} `yaml:"targets"`
}

type subdomainDoc struct {
	Addr        string            `yaml:"addr"`
	Coins       map[uint64]string `yaml:"coins"`
	Texts       map[string]string `yaml:"texts"`
	ContentHash string            `yaml:"contenthash"`
}

func loadStorage(path string) (*gateway.MemoryFetcher, error) {
	m := gateway.NewMemoryFetcher()
	if path == "" {
		return m, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f storageFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: storage fixture: %v", core.ErrInvalidInput, err)
	}

	for _, t := range f.Targets {
		target, err := parseAddress("target", t.Address)
		if err != nil {
			return nil, err
		}
		m.SetWord(target, slotpath.SlotFromUint(slotpath.SlotSupply), common.BigToHash(new(big.Int).SetUint64(t.Supply)))
		if t.Name != "" {
			m.SetBytes(target, slotpath.SlotFromUint(slotpath.SlotName), []byte(t.Name))
		}
		if t.URL != "" {
			m.SetBytes(target, slotpath.SlotFromUint(slotpath.SlotURI), []byte(t.URL))
		}
		for label, sub := range t.Subdomains {
			if err := loadSubdomain(m, target, label, sub); err != nil {
				return nil, fmt.Errorf("subdomain %s: %w", label, err)
			}
		}
	}
	return m, nil
}

func loadSubdomain(m *gateway.MemoryFetcher, target common.Address, label string, sub subdomainDoc) error {
	labelKey := slotpath.Key{Data: namewalk.LabelHash([]byte(label)).Bytes()}
	coinKey := func(coin uint64) slotpath.Key {
		return slotpath.Key{Data: new(big.Int).SetUint64(coin).Bytes()}
	}

	if sub.Addr != "" {
		a, err := parseAddress("addr", sub.Addr)
		if err != nil {
			return err
		}
		p := slotpath.Path{Root: slotpath.SlotAddresses, Keys: []slotpath.Key{labelKey, coinKey(slotpath.CoinTypeETH)}}
		m.SetWord(target, p.Slot(), common.BytesToHash(a.Bytes()))
	}
	for coin, v := range sub.Coins {
		p := slotpath.Path{Root: slotpath.SlotAddresses, Keys: []slotpath.Key{labelKey, coinKey(coin)}}
		m.SetBytes(target, p.Slot(), common.FromHex(v))
	}
	for key, v := range sub.Texts {
		p := slotpath.Path{Root: slotpath.SlotTexts, Keys: []slotpath.Key{labelKey, {Data: []byte(key), Dynamic: true}}}
		m.SetBytes(target, p.Slot(), []byte(v))
	}
	if sub.ContentHash != "" {
		v, err := contenthash.Parse(sub.ContentHash)
		if err != nil {
			return err
		}
		b, err := contenthash.Encode(v)
		if err != nil {
			return err
		}
		p := slotpath.Path{Root: slotpath.SlotContentHash, Keys: []slotpath.Key{labelKey}}
		m.SetBytes(target, p.Slot(), b)
	}
	return nil
}
