package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/tailored-agentic-units/propstore/database"
	"github.com/tailored-agentic-units/propstore/engine"
	"github.com/tailored-agentic-units/propstore/property"
)

var (
	errUnhealthy   = errors.New("unhealthy stores found")
	errNeedsRepair = errors.New("store needs repair")
)

func propertyOverrides() property.Config {
	return property.Config{
		Backend: opts.Backend,
		Path:    opts.Path,
		Limit:   opts.Limit,
	}
}

type storeArg struct {
	Name string `positional-arg-name:"store" required:"yes"`
}

type cmdList struct{}

func (c *cmdList) Execute([]string) error { return execute(c) }

func (c *cmdList) run(ctx context.Context, e *engine.Engine) error {
	names, err := database.Stores(ctx, e.Backend())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STORE\tCHUNKS\tSIZE\tSTATUS")
	for _, name := range names {
		in, err := database.Inspect(ctx, e.Backend(), name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", name, in.Index, humanize.Bytes(uint64(len(in.Payload))), status(in))
	}
	return w.Flush()
}

type cmdInspect struct {
	Args storeArg `positional-args:"yes"`
}

func (c *cmdInspect) Execute([]string) error { return execute(c) }

func (c *cmdInspect) run(ctx context.Context, e *engine.Engine) error {
	in, err := database.Inspect(ctx, e.Backend(), c.Args.Name)
	if err != nil {
		return err
	}
	if !in.Indexed {
		return fmt.Errorf("store %s has no index", c.Args.Name)
	}

	limit := e.Backend().Limit()
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "index\t%q\n", in.RawIndex)
	for _, ch := range in.Chunks {
		if !ch.Present {
			fmt.Fprintf(w, "%s\tmissing\n", ch.Key)
			continue
		}
		fmt.Fprintf(w, "%s\t%s of %s\t%.1f%%\n", ch.Key,
			humanize.Comma(int64(ch.Length)), humanize.Comma(int64(limit)),
			100*float64(ch.Length)/float64(limit))
	}
	for _, key := range in.Stale {
		fmt.Fprintf(w, "%s\tstale\n", key)
	}
	fmt.Fprintf(w, "payload\t%s\n", humanize.Bytes(uint64(len(in.Payload))))
	fmt.Fprintf(w, "status\t%s\n", status(in))
	return w.Flush()
}

type cmdDump struct {
	Pretty bool     `long:"pretty" description:"Indent the JSON payload"`
	Args   storeArg `positional-args:"yes"`
}

func (c *cmdDump) Execute([]string) error { return execute(c) }

func (c *cmdDump) run(ctx context.Context, e *engine.Engine) error {
	in, err := database.Inspect(ctx, e.Backend(), c.Args.Name)
	if err != nil {
		return err
	}
	if !in.Indexed {
		return fmt.Errorf("store %s has no index", c.Args.Name)
	}

	if c.Pretty && in.Err == nil {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(in.Payload), "", "  "); err != nil {
			return err
		}
		fmt.Fprintln(stdout, buf.String())
		return nil
	}
	fmt.Fprintln(stdout, in.Payload)
	return nil
}

type cmdVerify struct {
	Args struct {
		Names []string `positional-arg-name:"store"`
	} `positional-args:"yes"`
}

func (c *cmdVerify) Execute([]string) error { return execute(c) }

func (c *cmdVerify) run(ctx context.Context, e *engine.Engine) error {
	names := c.Args.Names
	if len(names) == 0 {
		var err error
		if names, err = database.Stores(ctx, e.Backend()); err != nil {
			return err
		}
	}

	unhealthy := 0
	for _, name := range names {
		in, err := database.Inspect(ctx, e.Backend(), name)
		if err != nil {
			return err
		}
		if !in.Indexed {
			fmt.Fprintf(stdout, "%s: no index\n", name)
			unhealthy++
			continue
		}
		fmt.Fprintf(stdout, "%s: %s\n", name, status(in))
		if !in.Healthy() {
			unhealthy++
		}
	}
	if unhealthy > 0 {
		return fmt.Errorf("%w: %d of %d", errUnhealthy, unhealthy, len(names))
	}
	return nil
}

type cmdRepair struct {
	Field string   `long:"field" description:"Top-level array field to repair element-wise"`
	Args  storeArg `positional-args:"yes"`
}

func (c *cmdRepair) Execute([]string) error { return execute(c) }

func (c *cmdRepair) run(ctx context.Context, e *engine.Engine) error {
	in, err := database.Inspect(ctx, e.Backend(), c.Args.Name)
	if err != nil {
		return err
	}
	if !in.Indexed {
		return fmt.Errorf("store %s has no index", c.Args.Name)
	}

	var dbOpts []database.Option
	if c.Field != "" {
		dbOpts = append(dbOpts, database.WithArrayField(c.Field))
	}
	db, err := database.Open[json.RawMessage](ctx, e.Manager(), c.Args.Name, dbOpts...)
	if db == nil {
		return err
	}
	if err := db.Save(ctx, true); err != nil {
		return err
	}

	r := db.Report()
	switch r.Outcome {
	case database.OutcomeClean:
		fmt.Fprintf(stdout, "%s: healthy, rewrote %d keys\n", c.Args.Name, db.Len())
	case database.OutcomeRepaired:
		fmt.Fprintf(stdout, "%s: repaired with %s, kept %d keys\n", c.Args.Name, r.Strategy, db.Len())
	default:
		fmt.Fprintf(stdout, "%s: %s, %s discarded\n", c.Args.Name, r.Outcome, humanize.Bytes(uint64(r.Bytes)))
	}
	return err
}

type cmdSet struct {
	Raw  bool `long:"string" description:"Store the value as a JSON string instead of parsing it"`
	Args struct {
		Name  string `positional-arg-name:"store" required:"yes"`
		Key   string `positional-arg-name:"key" required:"yes"`
		Value string `positional-arg-name:"value" required:"yes"`
	} `positional-args:"yes"`
}

func (c *cmdSet) Execute([]string) error { return execute(c) }

func (c *cmdSet) run(ctx context.Context, e *engine.Engine) error {
	value := json.RawMessage(c.Args.Value)
	if c.Raw {
		b, err := json.Marshal(c.Args.Value)
		if err != nil {
			return err
		}
		value = b
	} else if !json.Valid(value) {
		return fmt.Errorf("value %q is not JSON; pass --string to store it as text", c.Args.Value)
	}

	if _, err := writable(ctx, e, c.Args.Name); err != nil {
		return err
	}

	db, err := database.Open[json.RawMessage](ctx, e.Manager(), c.Args.Name)
	if err != nil {
		return err
	}
	db.Set(c.Args.Key, value)
	return db.Save(ctx, false)
}

type cmdDelete struct {
	Args struct {
		Name string `positional-arg-name:"store" required:"yes"`
		Key  string `positional-arg-name:"key" required:"yes"`
	} `positional-args:"yes"`
}

func (c *cmdDelete) Execute([]string) error { return execute(c) }

func (c *cmdDelete) run(ctx context.Context, e *engine.Engine) error {
	in, err := writable(ctx, e, c.Args.Name)
	if err != nil {
		return err
	}
	if !in.Indexed {
		return fmt.Errorf("store %s has no index", c.Args.Name)
	}

	db, err := database.Open[json.RawMessage](ctx, e.Manager(), c.Args.Name)
	if err != nil {
		return err
	}
	if !db.Delete(c.Args.Key) {
		return fmt.Errorf("store %s has no key %q", c.Args.Name, c.Args.Key)
	}
	return db.Save(ctx, false)
}

// writable refuses stores whose load would repair or reinitialize them, so
// an edit never discards data that repair --field could still recover.
func writable(ctx context.Context, e *engine.Engine, name string) (*database.Inspection, error) {
	in, err := database.Inspect(ctx, e.Backend(), name)
	if err != nil {
		return nil, err
	}
	if !in.Healthy() {
		return nil, fmt.Errorf("%w: %s is %s; run propstore repair %s first", errNeedsRepair, name, status(in), name)
	}
	return in, nil
}

func status(in *database.Inspection) string {
	var problems []string
	if in.IndexErr != nil {
		problems = append(problems, "invalid index")
	}
	if missing := in.Missing(); len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("%d missing", len(missing)))
	}
	if in.Err != nil {
		problems = append(problems, "corrupt")
	}
	if len(in.Stale) > 0 {
		problems = append(problems, fmt.Sprintf("%d stale", len(in.Stale)))
	}
	if len(problems) == 0 {
		return "ok"
	}
	return strings.Join(problems, ", ")
}
