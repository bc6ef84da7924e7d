package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
)

type initCmd struct{ *Env }

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "create or unlock an encrypted store" }
func (*initCmd) Usage() string {
	return `famledger [-store <path>] init

  Derives the store key from the password and opens the store, creating it
  and its key header on first use.
`
}
func (*initCmd) SetFlags(*flag.FlagSet) {}

func (c *initCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	key, err := c.storeKey(true)
	if err != nil {
		return exit(err)
	}
	res, err := c.Engine.InitDatabase(ctx, c.StorePath, key)
	if err != nil {
		return exit(fmt.Errorf("%s: %w", res.Message, err))
	}
	defer c.lock(ctx, key)
	fmt.Fprintf(c.Out, "%s: %s\n", c.StorePath, res.Message)
	return subcommands.ExitSuccess
}

type checkCmd struct{ *Env }

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "verify read-only that the password unlocks the store" }
func (*checkCmd) Usage() string {
	return `famledger check

  Opens the store read-only and reports its schema version. The store file
  is never modified.
`
}
func (*checkCmd) SetFlags(*flag.FlagSet) {}

func (c *checkCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	key, err := c.storeKey(false)
	if err != nil {
		return exit(err)
	}
	res, err := c.Engine.CheckConnection(ctx, c.StorePath, key)
	if err != nil {
		return exit(fmt.Errorf("%s: %w", res.Message, err))
	}
	fmt.Fprintln(c.Out, res.Message)
	return subcommands.ExitSuccess
}

type versionCmd struct{ *Env }

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print the store schema version" }
func (*versionCmd) Usage() string          { return "famledger version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}

func (c *versionCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	key, err := c.storeKey(false)
	if err != nil {
		return exit(err)
	}
	v, err := c.Engine.GetVersion(ctx, c.StorePath, key)
	if err != nil {
		return exit(err)
	}
	fmt.Fprintln(c.Out, v)
	return subcommands.ExitSuccess
}

type setVersionCmd struct{ *Env }

func (*setVersionCmd) Name() string     { return "set-version" }
func (*setVersionCmd) Synopsis() string { return "overwrite the recorded schema version" }
func (*setVersionCmd) Usage() string {
	return `famledger set-version <n>

  Stores n as the schema version. n must be a non-negative integer.
`
}
func (*setVersionCmd) SetFlags(*flag.FlagSet) {}

func (c *setVersionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	return exit(c.withStore(ctx, func(key []byte) error {
		res, err := c.Engine.SetVersion(ctx, c.StorePath, key, f.Arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.Out, res.Message)
		return nil
	}))
}

type queryCmd struct{ *Env }

func (*queryCmd) Name() string     { return "query" }
func (*queryCmd) Synopsis() string { return "run a raw SQL statement against the store" }
func (*queryCmd) Usage() string {
	return `famledger query <sql>

  Runs one statement inside a transaction and prints the result rows as
  JSON. Statements are not recorded in the version log.
`
}
func (*queryCmd) SetFlags(*flag.FlagSet) {}

func (c *queryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return subcommands.ExitUsageError
	}
	query := strings.Join(f.Args(), " ")
	return exit(c.withStore(ctx, func(key []byte) error {
		out, err := c.Engine.ExecuteQuery(ctx, c.StorePath, key, query)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.Out, out)
		return nil
	}))
}
