package gateway

import (
	"context"
	"fmt"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/slotpath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The gateway service carries CBOR envelopes inside protobuf BytesValue so
// no protoc step is needed.
const (
	serviceName     = "gwresolver.gateway.v1.Gateway"
	fetchMethodPath = "/" + serviceName + "/Fetch"
)

type keyV1 struct {
	Data    []byte `cbor:"data"`
	Dynamic bool   `cbor:"dynamic,omitempty"`
}

type fetchRequestV1 struct {
	Verifier  []byte   `cbor:"verifier"`
	Target    []byte   `cbor:"target"`
	Root      uint64   `cbor:"root"`
	Keys      []keyV1  `cbor:"keys,omitempty"`
	ReadBytes bool     `cbor:"read_bytes,omitempty"`
	Gateways  []string `cbor:"gateways,omitempty"`
}

type fetchResponseV1 struct {
	Values   [][]byte `cbor:"values"`
	ExitCode uint8    `cbor:"exit_code"`
}

var encMode, _ = cbor.CanonicalEncOptions().EncMode()

func encodeFetchRequest(verifier common.Address, req Request, gateways []string) ([]byte, error) {
	env := fetchRequestV1{
		Verifier:  verifier.Bytes(),
		Target:    req.Target.Bytes(),
		Root:      req.Path.Root,
		ReadBytes: req.Path.ReadBytes,
		Gateways:  gateways,
	}
	for _, k := range req.Path.Keys {
		env.Keys = append(env.Keys, keyV1{Data: k.Data, Dynamic: k.Dynamic})
	}
	return encMode.Marshal(env)
}

func decodeFetchRequest(b []byte) (common.Address, Request, []string, error) {
	var env fetchRequestV1
	if err := cbor.Unmarshal(b, &env); err != nil {
		return common.Address{}, Request{}, nil, fmt.Errorf("%w: fetch request: %v", core.ErrInvalidInput, err)
	}
	if len(env.Verifier) != common.AddressLength || len(env.Target) != common.AddressLength {
		return common.Address{}, Request{}, nil, fmt.Errorf("%w: fetch request addresses", core.ErrInvalidInput)
	}
	req := Request{
		Target: common.BytesToAddress(env.Target),
		Path:   slotpath.Path{Root: env.Root, ReadBytes: env.ReadBytes},
	}
	for _, k := range env.Keys {
		req.Path.Keys = append(req.Path.Keys, slotpath.Key{Data: k.Data, Dynamic: k.Dynamic})
	}
	return common.BytesToAddress(env.Verifier), req, env.Gateways, nil
}

// GatewayServer is the server API of the gateway service.
type GatewayServer interface {
	Fetch(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// RegisterGatewayServer registers the gateway service on a gRPC server.
func RegisterGatewayServer(s grpc.ServiceRegistrar, srv GatewayServer) {
	s.RegisterService(&Gateway_ServiceDesc, srv)
}

func _Gateway_Fetch_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GatewayServer).Fetch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fetchMethodPath}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GatewayServer).Fetch(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Gateway_ServiceDesc is the grpc.ServiceDesc for the gateway service.
var Gateway_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*GatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fetch", Handler: _Gateway_Fetch_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gateway.proto",
}

// Server exposes a Fetcher over the gateway service.
type Server struct {
	Fetcher Fetcher
}

func (s *Server) Fetch(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Fetcher == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing fetcher")
	}
	verifier, req, gateways, err := decodeFetchRequest(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := s.Fetcher.Fetch(ctx, verifier, req, gateways)
	if err != nil {
		if st, ok := status.FromError(err); ok {
			return nil, st.Err()
		}
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	b, err := encMode.Marshal(fetchResponseV1{Values: resp.Values, ExitCode: resp.ExitCode})
	if err != nil {
		return nil, status.Error(codes.Internal, "response encoding failed")
	}
	log.Debugf("served fetch: target=%s slot=%s exit=%d", req.Target.Hex(), req.Path.Slot().Hex(), resp.ExitCode)
	return wrapperspb.Bytes(b), nil
}
