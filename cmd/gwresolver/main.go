package main

import (
	"fmt"
	"os"

	"github.com/agenthands/gwresolver/pkg/logutil"
	"github.com/urfave/cli"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "gwresolver"
	app.Usage = "resolve names whose records live on a remote chain"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "YAML configuration file"},
		cli.StringFlag{Name: "dir", Usage: "state directory"},
		cli.BoolFlag{Name: "in-memory", Usage: "keep the registry in memory"},
		cli.StringFlag{Name: "self", Usage: "resolver address the oracle delegates to"},
		cli.StringFlag{Name: "owner", Usage: "address allowed to set default verifiers"},
		cli.StringFlag{Name: "oracle", Usage: "YAML ownership fixture"},
		cli.StringFlag{Name: "storage", Usage: "YAML remote storage fixture for the in-process fetcher"},
		cli.StringFlag{Name: "gateway", Usage: "gRPC gateway address; empty fetches in-process"},
		cli.StringFlag{Name: "log-level", EnvVar: logutil.EnvLevel},
	}
	app.Before = func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		logutil.Setup(cfg.Log.Level)
		return nil
	}
	app.Commands = []cli.Command{
		cli.Command{
			Name:      "namehash",
			Usage:     "print the node of a name",
			ArgsUsage: "NAME",
			Action:    namehashCommand,
		},
		cli.Command{
			Name:  "set-verifier",
			Usage: "set the default verifier of a chain",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "caller"},
				cli.Uint64Flag{Name: "chain"},
				cli.StringFlag{Name: "verifier"},
			},
			Action: setVerifierCommand,
		},
		cli.Command{
			Name:  "set-link",
			Usage: "set the link of a name",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "caller"},
				cli.StringFlag{Name: "name"},
				cli.StringFlag{Name: "target"},
				cli.Uint64Flag{Name: "chain"},
				cli.StringFlag{Name: "verifier", Usage: "override the chain default"},
				cli.StringSliceFlag{Name: "gateway-url"},
			},
			Action: setLinkCommand,
		},
		cli.Command{
			Name:      "get-link",
			Usage:     "print the link of a name",
			ArgsUsage: "NAME",
			Action:    getLinkCommand,
		},
		cli.Command{
			Name:    "list-links",
			Aliases: []string{"ls"},
			Action:  listLinksCommand,
		},
		cli.Command{
			Name:      "resolve",
			Usage:     "resolve a record of a name",
			ArgsUsage: "NAME",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "text"},
				cli.Int64Flag{Name: "coin", Value: -1},
				cli.BoolFlag{Name: "contenthash"},
			},
			Action: resolveCommand,
		},
		cli.Command{
			Name:   "serve",
			Usage:  "serve the storage fixture as a gRPC gateway",
			Flags:  []cli.Flag{cli.StringFlag{Name: "listen", Value: "127.0.0.1:8546"}},
			Action: serveCommand,
		},
		cli.Command{
			Name:      "contenthash",
			Usage:     "convert between content hash bytes and URIs",
			ArgsUsage: "URI|0xHEX",
			Action:    contenthashCommand,
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
