package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"syscall"

	"github.com/agenthands/gwresolver/pkg/contenthash"
	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/decode"
	"github.com/agenthands/gwresolver/pkg/gateway"
	"github.com/agenthands/gwresolver/pkg/logutil"
	"github.com/agenthands/gwresolver/pkg/namewalk"
	"github.com/agenthands/gwresolver/pkg/oracle"
	"github.com/agenthands/gwresolver/pkg/resolver"
	"github.com/agenthands/gwresolver/pkg/slotpath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
	"google.golang.org/grpc"
)

var log = logutil.Logger("gwresolver")

func openResolver(c *cli.Context) (*resolver.Resolver, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	o := oracle.NewStatic()
	if path := c.GlobalString("oracle"); path != "" {
		if o, err = oracle.LoadStatic(path); err != nil {
			return nil, nil, err
		}
	}

	var f gateway.Fetcher
	closeFetcher := func() error { return nil }
	if cfg.Gateway.Addr != "" {
		g, err := gateway.Dial(cfg.Gateway.Addr, gateway.DialOptions{Timeout: cfg.Gateway.Timeout, MaxMsgBytes: cfg.Gateway.MaxMsgBytes})
		if err != nil {
			return nil, nil, err
		}
		f, closeFetcher = g, g.Close
	} else if f, err = loadStorage(c.GlobalString("storage")); err != nil {
		return nil, nil, err
	}

	r, err := resolver.Open(context.Background(), cfg, o, f)
	if err != nil {
		closeFetcher()
		return nil, nil, err
	}
	return r, func() {
		r.Close()
		closeFetcher()
	}, nil
}

func nameArg(c *cli.Context) ([]byte, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("%w: expected one NAME argument", core.ErrInvalidInput)
	}
	return namewalk.Encode(c.Args().First())
}

func namehashCommand(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	node, err := namewalk.Namehash(name, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, node.Hex())
	return nil
}

func setVerifierCommand(c *cli.Context) error {
	caller, err := parseAddress("caller", c.String("caller"))
	if err != nil {
		return err
	}
	verifier, err := parseAddress("verifier", c.String("verifier"))
	if err != nil {
		return err
	}
	r, done, err := openResolver(c)
	if err != nil {
		return err
	}
	defer done()
	return r.SetDefaultVerifier(context.Background(), caller, c.Uint64("chain"), verifier)
}

func setLinkCommand(c *cli.Context) error {
	caller, err := parseAddress("caller", c.String("caller"))
	if err != nil {
		return err
	}
	name, err := namewalk.Encode(c.String("name"))
	if err != nil {
		return err
	}
	node, err := namewalk.Namehash(name, 0)
	if err != nil {
		return err
	}
	link := core.Link{ChainID: c.Uint64("chain"), Gateways: c.StringSlice("gateway-url")}
	if link.Target, err = parseAddress("target", c.String("target")); err != nil {
		return err
	}
	if v := c.String("verifier"); v != "" {
		a, err := parseAddress("verifier", v)
		if err != nil {
			return err
		}
		link.Verifier = &a
	}

	r, done, err := openResolver(c)
	if err != nil {
		return err
	}
	defer done()
	return r.SetLink(context.Background(), caller, node, link)
}

func getLinkCommand(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	node, err := namewalk.Namehash(name, 0)
	if err != nil {
		return err
	}
	r, done, err := openResolver(c)
	if err != nil {
		return err
	}
	defer done()

	l, ok, err := r.Link(context.Background(), node)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no link for %s", core.ErrNotFound, c.Args().First())
	}
	fmt.Fprintln(c.App.Writer, formatLink(node, l))
	return nil
}

func listLinksCommand(c *cli.Context) error {
	r, done, err := openResolver(c)
	if err != nil {
		return err
	}
	defer done()
	return r.Links(context.Background(), func(node core.Node, l core.Link) error {
		fmt.Fprintln(c.App.Writer, formatLink(node, l))
		return nil
	})
}

func formatLink(node core.Node, l core.Link) string {
	verifier := "default"
	if l.Verifier != nil {
		verifier = l.Verifier.Hex()
	}
	return fmt.Sprintf("%s target=%s chain=%d verifier=%s gateways=%s",
		node.Hex(), l.Target.Hex(), l.ChainID, verifier, strings.Join(l.Gateways, ","))
}

func resolveCommand(c *cli.Context) error {
	name, err := nameArg(c)
	if err != nil {
		return err
	}
	node, err := namewalk.Namehash(name, 0)
	if err != nil {
		return err
	}

	var data []byte
	switch {
	case c.Bool("contenthash"):
		data = resolver.ContentHashCall(node)
	case c.String("text") != "":
		data = resolver.TextCall(node, c.String("text"))
	case c.Int64("coin") >= 0:
		data = resolver.AddrCoinCall(node, uint64(c.Int64("coin")))
	default:
		data = resolver.AddrCall(node)
	}

	r, done, err := openResolver(c)
	if err != nil {
		return err
	}
	defer done()

	out, err := r.ResolveAndWait(context.Background(), name, data)
	if err != nil {
		return err
	}
	s, err := formatOutput(data, out)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, s)
	return nil
}

func formatOutput(call, out []byte) (string, error) {
	var p slotpath.Profile
	copy(p[:], call)
	switch p {
	case slotpath.ProfileAddr:
		a, err := decode.UnpackAddress(out)
		return a.Hex(), err
	case slotpath.ProfileText:
		return decode.UnpackString(out)
	case slotpath.ProfileContentHash:
		b, err := decode.UnpackBytes(out)
		if err != nil || len(b) == 0 {
			return "", err
		}
		v, err := contenthash.Decode(b)
		if err != nil {
			return "0x" + common.Bytes2Hex(b), nil
		}
		return v.String(), nil
	default:
		b, err := decode.UnpackBytes(out)
		return "0x" + common.Bytes2Hex(b), err
	}
}

func serveCommand(c *cli.Context) error {
	m, err := loadStorage(c.GlobalString("storage"))
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", c.String("listen"))
	if err != nil {
		return err
	}

	srv := grpc.NewServer()
	gateway.RegisterGatewayServer(srv, &gateway.Server{Fetcher: m})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	log.Infof("gateway listening on %s", lis.Addr())
	return srv.Serve(lis)
}

func contenthashCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("%w: expected one argument", core.ErrInvalidInput)
	}
	arg := c.Args().First()
	if strings.HasPrefix(arg, "0x") {
		v, err := contenthash.Decode(common.FromHex(arg))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, v.String())
		return nil
	}
	v, err := contenthash.Parse(arg)
	if err != nil {
		return err
	}
	b, err := contenthash.Encode(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "0x"+common.Bytes2Hex(b))
	return nil
}
