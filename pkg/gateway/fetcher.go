package gateway

import (
	"context"

	"github.com/agenthands/gwresolver/pkg/slotpath"
	"github.com/ethereum/go-ethereum/common"
)

// Request is a proof-fetch request: one storage path on the target contract.
type Request struct {
	Target common.Address
	Path   slotpath.Path
}

// Response is what a verifier returns: the proven values, in request order,
// and an exit code that is non-zero when the request program aborted.
type Response struct {
	Values   [][]byte
	ExitCode uint8
}

// Fetcher proves and returns remote storage values. Timeouts, retries and
// gateway selection are the implementation's concern. An empty gateway
// list means the fetcher's own defaults.
type Fetcher interface {
	Fetch(ctx context.Context, verifier common.Address, req Request, gateways []string) (Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, verifier common.Address, req Request, gateways []string) (Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, verifier common.Address, req Request, gateways []string) (Response, error) {
	return f(ctx, verifier, req, gateways)
}
