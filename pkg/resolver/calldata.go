package resolver

import (
	"fmt"
	"math/big"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/slotpath"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	nodeArgs     = arguments("bytes32")
	addrCoinArgs = arguments("bytes32", "uint256")
	textArgs     = arguments("bytes32", "string")
)

func arguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// ParseCall splits resolution call data into its profile and arguments.
// Unknown selectors parse to a query with only the profile set; the node
// argument is not used, the node is always derived from the name.
func ParseCall(data []byte) (slotpath.Query, error) {
	if len(data) < 4 {
		return slotpath.Query{}, fmt.Errorf("%w: call data is %d bytes", core.ErrInvalidInput, len(data))
	}
	var q slotpath.Query
	copy(q.Profile[:], data[:4])
	args := data[4:]

	switch q.Profile {
	case slotpath.ProfileAddr, slotpath.ProfileContentHash:
		if _, err := nodeArgs.Unpack(args); err != nil {
			return slotpath.Query{}, fmt.Errorf("%w: %s args: %v", core.ErrInvalidInput, q.Profile, err)
		}
	case slotpath.ProfileAddrCoin:
		vals, err := addrCoinArgs.Unpack(args)
		if err != nil {
			return slotpath.Query{}, fmt.Errorf("%w: %s args: %v", core.ErrInvalidInput, q.Profile, err)
		}
		q.CoinType = vals[1].(*big.Int)
	case slotpath.ProfileText:
		vals, err := textArgs.Unpack(args)
		if err != nil {
			return slotpath.Query{}, fmt.Errorf("%w: %s args: %v", core.ErrInvalidInput, q.Profile, err)
		}
		q.Key = vals[1].(string)
	}
	return q, nil
}

// AddrCall encodes addr(node).
func AddrCall(node core.Node) []byte {
	return call(slotpath.ProfileAddr, nodeArgs, [32]byte(node))
}

// AddrCoinCall encodes addr(node, coinType).
func AddrCoinCall(node core.Node, coinType uint64) []byte {
	return call(slotpath.ProfileAddrCoin, addrCoinArgs, [32]byte(node), new(big.Int).SetUint64(coinType))
}

// TextCall encodes text(node, key).
func TextCall(node core.Node, key string) []byte {
	return call(slotpath.ProfileText, textArgs, [32]byte(node), key)
}

// ContentHashCall encodes contenthash(node).
func ContentHashCall(node core.Node) []byte {
	return call(slotpath.ProfileContentHash, nodeArgs, [32]byte(node))
}

func call(p slotpath.Profile, args abi.Arguments, vals ...interface{}) []byte {
	b, err := args.Pack(vals...)
	if err != nil {
		panic(err)
	}
	return append(p[:], b...)
}
