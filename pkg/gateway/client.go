package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GRPCFetcher implements Fetcher over the gateway gRPC service.
type GRPCFetcher struct {
	cc grpc.ClientConnInterface

	// Timeout applies per fetch when non-zero.
	Timeout time.Duration

	closer func() error
}

type DialOptions struct {
	// Timeout applies per fetch when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

// Dial connects to a gateway service.
func Dial(target string, opts DialOptions) (*GRPCFetcher, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}
	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &GRPCFetcher{cc: cc, Timeout: opts.Timeout, closer: cc.Close}, nil
}

// NewGRPCFetcher wraps an existing connection. Close does not close it.
func NewGRPCFetcher(cc grpc.ClientConnInterface, timeout time.Duration) *GRPCFetcher {
	return &GRPCFetcher{cc: cc, Timeout: timeout}
}

func (f *GRPCFetcher) Close() error {
	if f == nil || f.closer == nil {
		return nil
	}
	return f.closer()
}

func (f *GRPCFetcher) Fetch(ctx context.Context, verifier common.Address, req Request, gateways []string) (Response, error) {
	b, err := encodeFetchRequest(verifier, req, gateways)
	if err != nil {
		return Response{}, err
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	out := new(wrapperspb.BytesValue)
	if err := f.cc.Invoke(ctx, fetchMethodPath, wrapperspb.Bytes(b), out); err != nil {
		return Response{}, mapRPC(err)
	}

	var env fetchResponseV1
	if err := cbor.Unmarshal(out.GetValue(), &env); err != nil {
		return Response{}, fmt.Errorf("%w: fetch response: %v", core.ErrCorrupt, err)
	}
	return Response{Values: env.Values, ExitCode: env.ExitCode}, nil
}

func mapRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", core.ErrInvalidInput, st.Message())
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.Canceled:
		return context.Canceled
	default:
		return err
	}
}
