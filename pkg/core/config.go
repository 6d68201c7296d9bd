package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	Dir string // state root

	// Self is the resolver reference the ownership oracle reports for
	// nodes delegated to this system.
	Self common.Address
	// Owner is the privileged role allowed to set chain default verifiers.
	Owner common.Address

	Registry  RegistryConfig
	Transform TransformConfig
	Gateway   GatewayConfig
	Log       LogConfig
}

type RegistryConfig struct {
	Dir       string
	InMemory  bool // pebble in-memory FS, nothing touches disk
	CacheSize int  // decoded link records kept hot; 0 disables
}

type TransformConfig struct {
	Name      string // "none" or "zstd"
	ZstdLevel int
}

type GatewayConfig struct {
	Addr         string        // gRPC gateway address, empty uses the in-process fetcher
	Timeout      time.Duration // per fetch, applied by the transport
	PendingLimit int           // outstanding lookups tracked at once
	MaxMsgBytes  int
}

type LogConfig struct {
	Level string
}
