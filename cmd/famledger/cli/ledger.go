package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
)

type accountAddCmd struct {
	*Env
	name        string
	accountType string
}

func (*accountAddCmd) Name() string     { return "account-add" }
func (*accountAddCmd) Synopsis() string { return "create an account" }
func (*accountAddCmd) Usage() string {
	return `famledger account-add -name <name> -type <type>
`
}

func (c *accountAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Account name.")
	f.StringVar(&c.accountType, "type", "", "Account type, one of the configured types (cash, card, bank, deposit by default).")
}

func (c *accountAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return exit(c.withStore(ctx, func(key []byte) error {
		acc, err := c.Engine.CreateAccount(ctx, c.StorePath, key, c.name, c.accountType)
		if err != nil {
			return err
		}
		if c.JSON {
			return c.printJSON(acc)
		}
		fmt.Fprintf(c.Out, "account %d created: %s (%s)\n", acc.ID, acc.Name, acc.Type)
		return nil
	}))
}

type accountsCmd struct{ *Env }

func (*accountsCmd) Name() string           { return "accounts" }
func (*accountsCmd) Synopsis() string       { return "list accounts" }
func (*accountsCmd) Usage() string          { return "famledger accounts\n" }
func (*accountsCmd) SetFlags(*flag.FlagSet) {}

func (c *accountsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return exit(c.withStore(ctx, func(key []byte) error {
		accounts, err := c.Engine.ListAccounts(ctx, c.StorePath, key)
		if err != nil {
			return err
		}
		if c.JSON {
			return c.printJSON(accounts)
		}
		w := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tCREATED")
		for _, a := range accounts {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", a.ID, a.Name, a.Type, formatTS(a.CreatedAt))
		}
		return w.Flush()
	}))
}

type opAddCmd struct {
	*Env
	accountID   int64
	amount      string
	description string
}

func (*opAddCmd) Name() string     { return "op-add" }
func (*opAddCmd) Synopsis() string { return "record a signed amount against an account" }
func (*opAddCmd) Usage() string {
	return `famledger op-add -account <id> -amount <amount> -d <description>

  Positive amounts are inflows, negative amounts outflows. The new running
  balance is printed.
`
}

func (c *opAddCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.accountID, "account", 0, "Account id.")
	f.StringVar(&c.amount, "amount", "", "Signed amount, e.g. -40.5.")
	f.StringVar(&c.description, "d", "", "Description.")
}

func (c *opAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := strconv.ParseFloat(c.amount, 64)
	if err != nil {
		return exit(fmt.Errorf("cli: amount %q: %w", c.amount, err))
	}
	return exit(c.withStore(ctx, func(key []byte) error {
		p, err := c.Engine.AddOperation(ctx, c.StorePath, key, c.accountID, amount, c.description)
		if err != nil {
			return err
		}
		if c.JSON {
			return c.printJSON(p)
		}
		fmt.Fprintf(c.Out, "operation %d: %s, balance %s\n", p.Operation.ID,
			formatAmount(p.Operation.Amount, c.Currency), formatAmount(p.State.Balance, c.Currency))
		return nil
	}))
}

type opsCmd struct {
	*Env
	accountID int64
}

func (*opsCmd) Name() string     { return "ops" }
func (*opsCmd) Synopsis() string { return "list the operations of an account" }
func (*opsCmd) Usage() string {
	return `famledger ops -account <id>
`
}

func (c *opsCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.accountID, "account", 0, "Account id.")
}

func (c *opsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return exit(c.withStore(ctx, func(key []byte) error {
		ops, err := c.Engine.GetOperations(ctx, c.StorePath, key, c.accountID)
		if err != nil {
			return err
		}
		if c.JSON {
			return c.printJSON(ops)
		}
		w := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tDESCRIPTION\t")
		for _, op := range ops {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t\n", op.ID, formatTS(op.TS), formatAmount(op.Amount, c.Currency), op.Description)
		}
		return w.Flush()
	}))
}

type logCmd struct {
	*Env
	entity   string
	entityID int64
}

func (*logCmd) Name() string     { return "log" }
func (*logCmd) Synopsis() string { return "show the version log" }
func (*logCmd) Usage() string {
	return `famledger log [-entity account|operation|state] [-id <entity id>]

  Lists version log records, optionally filtered by entity kind and id.
`
}

func (c *logCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.entity, "entity", "", "Entity kind filter.")
	f.Int64Var(&c.entityID, "id", 0, "Entity id filter, 0 for all.")
}

func (c *logCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var entityID *int64
	if c.entityID != 0 {
		entityID = &c.entityID
	}
	return exit(c.withStore(ctx, func(key []byte) error {
		records, err := c.Engine.ListVersions(ctx, c.StorePath, key, c.entity, entityID)
		if err != nil {
			return err
		}
		if c.JSON {
			return c.printJSON(records)
		}
		w := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tACTION\tENTITY\tPAYLOAD")
		for _, r := range records {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s %d\t%s\n", r.ID, formatTS(r.TS), r.Action, r.Entity, r.EntityID, r.Payload)
		}
		return w.Flush()
	}))
}

type verifyLogCmd struct{ *Env }

func (*verifyLogCmd) Name() string     { return "verify-log" }
func (*verifyLogCmd) Synopsis() string { return "check the signature of every version log record" }
func (*verifyLogCmd) Usage() string {
	return `famledger verify-log

  Exits non-zero when any record fails verification.
`
}
func (*verifyLogCmd) SetFlags(*flag.FlagSet) {}

func (c *verifyLogCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var bad int
	err := c.withStore(ctx, func(key []byte) error {
		records, err := c.Engine.ListVersions(ctx, c.StorePath, key, "", nil)
		if err != nil {
			return err
		}
		for _, r := range records {
			ok, err := c.Engine.VerifyVersion(ctx, c.StorePath, key, r.ID)
			if err != nil {
				return err
			}
			if !ok {
				bad++
				fmt.Fprintf(c.Out, "record %d: signature mismatch\n", r.ID)
			}
		}
		fmt.Fprintf(c.Out, "%d records, %d failed\n", len(records), bad)
		return nil
	})
	if err != nil {
		return exit(err)
	}
	if bad > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func formatTS(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.DateTime)
}
