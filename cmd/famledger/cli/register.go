package cli

import (
	"flag"

	"github.com/google/subcommands"
)

// Register adds every famledger subcommand to c, grouped for help output.
func Register(c *subcommands.Commander, env *Env) {
	c.Register(&initCmd{env}, "store")
	c.Register(&checkCmd{env}, "store")
	c.Register(&versionCmd{env}, "store")
	c.Register(&setVersionCmd{env}, "store")
	c.Register(&queryCmd{env}, "store")

	c.Register(&accountAddCmd{Env: env}, "ledger")
	c.Register(&accountsCmd{env}, "ledger")
	c.Register(&opAddCmd{Env: env}, "ledger")
	c.Register(&opsCmd{Env: env}, "ledger")
	c.Register(&logCmd{Env: env}, "ledger")
	c.Register(&verifyLogCmd{env}, "ledger")

	c.Register(&balanceCmd{Env: env}, "reports")
	c.Register(&netWorthCmd{env}, "reports")
	c.Register(&historyCmd{Env: env}, "reports")
	c.Register(&allocationCmd{env}, "reports")

	c.Register(&keygenCmd{env}, "crypto")
	c.Register(&deriveCmd{env}, "crypto")
	c.Register(&verifyPasswordCmd{env}, "crypto")
	c.Register(&cryptoConfigCmd{env}, "crypto")

	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")
}

// BindFlags registers the global flags on fs. defaultStore is used when
// -store is not given.
func BindFlags(fs *flag.FlagSet, env *Env, defaultStore string) {
	fs.StringVar(&env.StorePath, "store", defaultStore, "Path to the encrypted store.")
	fs.StringVar(&env.PasswordFile, "password-file", "", "Read the password from this file instead of "+PasswordEnv+".")
	fs.BoolVar(&env.JSON, "json", false, "Print results as JSON.")
}
