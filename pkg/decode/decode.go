// Package decode turns proof-fetch results back into the ABI encoding the
// originating resolution profile returns.
package decode

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Kind selects how a fetch result is decoded.
type Kind uint8

const (
	// Passthrough returns the first value as ABI bytes.
	Passthrough Kind = iota
	// Address takes the low 20 bytes of the first value as an address.
	Address
	// Supply formats the first value as "<N> subdomains".
	Supply
)

func (k Kind) String() string {
	switch k {
	case Passthrough:
		return "passthrough"
	case Address:
		return "address"
	case Supply:
		return "supply"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var ErrNoValues = errors.New("decode: no values returned")

var (
	addressArgs = mustArgs("address")
	bytesArgs   = mustArgs("bytes")
	stringArgs  = mustArgs("string")
)

func mustArgs(typ string) abi.Arguments {
	t, err := abi.NewType(typ, "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}

// Decode produces the final resolution output from the returned values.
func Decode(values [][]byte, kind Kind) ([]byte, error) {
	if len(values) == 0 {
		return nil, ErrNoValues
	}
	first := values[0]
	switch kind {
	case Address:
		return EncodeAddress(common.BytesToAddress(first))
	case Supply:
		n := new(big.Int).SetBytes(first)
		return EncodeString(n.String() + " subdomains")
	case Passthrough:
		return EncodeBytes(first)
	default:
		return nil, fmt.Errorf("decode: unknown kind %d", kind)
	}
}

// EncodeAddress is abi.encode(address).
func EncodeAddress(a common.Address) ([]byte, error) {
	return addressArgs.Pack(a)
}

// EncodeBytes is abi.encode(bytes).
func EncodeBytes(b []byte) ([]byte, error) {
	if b == nil {
		b = []byte{}
	}
	return bytesArgs.Pack(b)
}

// EncodeString is abi.encode(string).
func EncodeString(s string) ([]byte, error) {
	return stringArgs.Pack(s)
}

// UnpackAddress reverses EncodeAddress.
func UnpackAddress(out []byte) (common.Address, error) {
	vals, err := addressArgs.Unpack(out)
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}

// UnpackBytes reverses EncodeBytes.
func UnpackBytes(out []byte) ([]byte, error) {
	vals, err := bytesArgs.Unpack(out)
	if err != nil {
		return nil, err
	}
	return vals[0].([]byte), nil
}

// UnpackString reverses EncodeString.
func UnpackString(out []byte) (string, error) {
	vals, err := stringArgs.Unpack(out)
	if err != nil {
		return "", err
	}
	return vals[0].(string), nil
}
