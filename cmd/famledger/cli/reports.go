package cli

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/google/subcommands"
)

type balanceCmd struct {
	*Env
	accountID int64
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "print the current balance of an account" }
func (*balanceCmd) Usage() string {
	return `famledger balance -account <id>
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.accountID, "account", 0, "Account id.")
}

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return exit(c.withStore(ctx, func(key []byte) error {
		balance, err := c.Engine.GetAccountBalance(ctx, c.StorePath, key, c.accountID)
		if err != nil {
			return err
		}
		if c.JSON {
			return c.printJSON(map[string]any{"account_id": c.accountID, "balance": balance})
		}
		fmt.Fprintln(c.Out, formatAmount(balance, c.Currency))
		return nil
	}))
}

type netWorthCmd struct{ *Env }

func (*netWorthCmd) Name() string           { return "networth" }
func (*netWorthCmd) Synopsis() string       { return "print the sum of all account balances" }
func (*netWorthCmd) Usage() string          { return "famledger networth\n" }
func (*netWorthCmd) SetFlags(*flag.FlagSet) {}

func (c *netWorthCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return exit(c.withStore(ctx, func(key []byte) error {
		nw, err := c.Engine.GetNetWorth(ctx, c.StorePath, key)
		if err != nil {
			return err
		}
		if c.JSON {
			return c.printJSON(map[string]any{"net_worth": nw})
		}
		fmt.Fprintln(c.Out, formatAmount(nw, c.Currency))
		return nil
	}))
}

type historyCmd struct {
	*Env
	accountID int64
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "print the running balance of an account over time" }
func (*historyCmd) Usage() string {
	return `famledger history -account <id>
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.accountID, "account", 0, "Account id.")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return exit(c.withStore(ctx, func(key []byte) error {
		states, err := c.Engine.GetBalanceHistory(ctx, c.StorePath, key, c.accountID)
		if err != nil {
			return err
		}
		if c.JSON {
			return c.printJSON(states)
		}
		w := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "TIME\tBALANCE\t")
		for _, s := range states {
			fmt.Fprintf(w, "%s\t%s\t\n", formatTS(s.TS), formatAmount(s.Balance, c.Currency))
		}
		return w.Flush()
	}))
}

type allocationCmd struct{ *Env }

func (*allocationCmd) Name() string           { return "allocation" }
func (*allocationCmd) Synopsis() string       { return "group balances by account type" }
func (*allocationCmd) Usage() string          { return "famledger allocation\n" }
func (*allocationCmd) SetFlags(*flag.FlagSet) {}

func (c *allocationCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return exit(c.withStore(ctx, func(key []byte) error {
		alloc, err := c.Engine.GetAssetAllocation(ctx, c.StorePath, key)
		if err != nil {
			return err
		}
		if c.JSON {
			return c.printJSON(alloc)
		}
		w := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "TYPE\tACCOUNTS\tTOTAL\t")
		for _, a := range alloc {
			fmt.Fprintf(w, "%s\t%d\t%s\t\n", a.Type, a.AccountCount, formatAmount(a.TotalBalance, c.Currency))
		}
		return w.Flush()
	}))
}
