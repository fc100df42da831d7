package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/okian/blueprints/internal/adapters/discovery"
	"github.com/okian/blueprints/internal/drawsim"
	"github.com/okian/blueprints/pkg/logger"
)

const (
	defaultRunTimeout      = 5 * time.Minute
	defaultDiscoverTimeout = 2 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(os.Args[1:]); err != nil {
		os.Stderr.WriteString("draw simulation failed: " + err.Error() + "\n")
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(args []string) error {
	var cfg drawsim.Config
	var discover, help bool

	flagSet := pflag.NewFlagSet("draw-sim", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.BaseURL, "url", drawsim.DefaultBaseURL, "base URL of the blueprints server")
	flagSet.StringVar(&cfg.APIPrefix, "prefix", drawsim.DefaultPrefix, "REST prefix configured on the server")
	flagSet.StringVar(&cfg.Origin, "origin", "", "Origin header sent on the websocket handshake")
	flagSet.StringVar(&cfg.Author, "author", "", "blueprint author (default: generated)")
	flagSet.StringVar(&cfg.Name, "name", "", "blueprint name (default: generated)")
	flagSet.IntVarP(&cfg.Sessions, "sessions", "s", drawsim.DefaultSessions, "concurrent websocket sessions")
	flagSet.IntVarP(&cfg.PointsPerSession, "points", "p", drawsim.DefaultPoints, "points drawn by each session")
	flagSet.DurationVar(&cfg.Interval, "interval", 0, "pause between two draws of one session")
	flagSet.DurationVar(&cfg.Timeout, "timeout", drawsim.DefaultTimeout, "HTTP request and dial timeout")
	flagSet.DurationVar(&cfg.Settle, "settle", drawsim.DefaultSettle, "how long to wait for sessions to converge")
	flagSet.BoolVar(&cfg.Keep, "keep", false, "keep the blueprint after the run")
	flagSet.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every failed draw")
	flagSet.BoolVar(&discover, "discover", false, "find the server on the LAN over mDNS instead of --url")
	flagSet.BoolVarP(&help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help {
		printHelp(flagSet)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	if discover {
		addrs, err := discovery.Browse(ctx, defaultDiscoverTimeout)
		if err != nil {
			return err
		}
		if len(addrs) == 0 {
			return errors.New("no blueprints server found on the local network")
		}
		cfg.BaseURL = "http://" + addrs[0]
		logger.Get().Info(ctx, "discovered server", logger.String("url", cfg.BaseURL), logger.Int("found", len(addrs)))
	}

	stats, err := drawsim.Run(ctx, &cfg)
	drawsim.PrintStats(stats)
	return err
}

func printHelp(flagSet *pflag.FlagSet) {
	os.Stdout.WriteString(`Blueprint draw simulator
========================

Opens several websocket sessions on one blueprint, draws from all of them
concurrently and checks that every session ends on the stored sequence.

Usage:
  draw-sim [flags]

Flags:
` + flagSet.FlagUsages() + `
Examples:
  # Four sessions, fifty points each, against a local server
  draw-sim

  # Heavier run that keeps the result for inspection
  draw-sim --sessions 16 --points 200 --keep --author juan --name carga

  # Find the server on the LAN
  draw-sim --discover
`)
}
