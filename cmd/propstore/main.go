// Command propstore inspects and edits the chunked stores persisted in a
// property backend.
//
//	propstore --backend bolt --path /var/lib/server list
//	propstore --config engine.json repair wallets --field transactions
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"

	"github.com/tailored-agentic-units/propstore/engine"
	"github.com/tailored-agentic-units/propstore/observability"
)

// Options are the global flags shared by every command.
type Options struct {
	ConfigFile string `long:"config" description:"Path to engine config JSON file"`
	Backend    string `long:"backend" description:"Property backend (overrides config)" choice:"memory" choice:"file" choice:"sqlite" choice:"bolt"`
	Path       string `long:"path" description:"Backend directory or database file (overrides config)"`
	Limit      int    `long:"limit" description:"Maximum property value length (overrides config)"`
	Verbose    bool   `long:"verbose" short:"v" description:"Enable verbose logging to stderr"`
}

var (
	opts   = new(Options)
	stdout io.Writer = os.Stdout
)

func main() {
	parser := flags.NewParser(opts, flags.Default)

	must(parser.AddCommand("list", "List stores",
		"List every store with an index in the backend, with its chunk count, size and health.", &cmdList{}))
	must(parser.AddCommand("inspect", "Show the chunk layout of a store",
		"Show the index, every chunk slot and any stale chunks of a store without loading it.", &cmdInspect{}))
	must(parser.AddCommand("dump", "Print the payload of a store",
		"Print the reassembled JSON payload of a store.", &cmdDump{}))
	must(parser.AddCommand("verify", "Check stores for corruption",
		"Check the named stores, or every store, for missing chunks, invalid indexes and undecodable payloads.", &cmdVerify{}))
	must(parser.AddCommand("repair", "Repair a corrupt store",
		"Load a store through the repair strategies and rewrite it with a clean layout.", &cmdRepair{}))
	must(parser.AddCommand("set", "Set an entry of a store",
		"Set key of a store to a JSON value and save it.", &cmdSet{}))
	must(parser.AddCommand("delete", "Delete an entry of a store",
		"Delete key from a store and save it.", &cmdDelete{}))

	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func must(_ *flags.Command, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to add command: %v\n", err)
		os.Exit(1)
	}
}

// command is implemented by every subcommand.
type command interface {
	run(ctx context.Context, e *engine.Engine) error
}

// execute builds an Engine from the global options, runs c and closes
// the Engine, flushing whatever c left dirty.
func execute(c command) error {
	cfg, err := config()
	if err != nil {
		return err
	}

	e, err := engine.New(cfg, engine.WithObserver(observability.NewSlogObserver(logger())))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return errors.Join(c.run(ctx, e), e.Close(context.WithoutCancel(ctx)))
}

func config() (*engine.Config, error) {
	cfg := engine.DefaultConfig()
	if opts.ConfigFile != "" {
		loaded, err := engine.LoadConfig(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	cfg.Merge(&engine.Config{
		Property: propertyOverrides(),
	})
	cfg.Autosave = "0"
	return &cfg, nil
}

func logger() *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
