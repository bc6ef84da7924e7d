package cli

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type keygenCmd struct{ *Env }

func (*keygenCmd) Name() string           { return "keygen" }
func (*keygenCmd) Synopsis() string       { return "print fresh random key material as hex" }
func (*keygenCmd) Usage() string          { return "famledger keygen\n" }
func (*keygenCmd) SetFlags(*flag.FlagSet) {}

func (c *keygenCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	key, err := c.Engine.GenerateKey()
	if err != nil {
		return exit(err)
	}
	fmt.Fprintln(c.Out, hex.EncodeToString(key))
	return subcommands.ExitSuccess
}

type deriveCmd struct{ *Env }

func (*deriveCmd) Name() string     { return "derive" }
func (*deriveCmd) Synopsis() string { return "derive a key from the password with a fresh salt" }
func (*deriveCmd) Usage() string {
	return `famledger derive

  Prints the derived key, the salt and the PHC hash to store for later
  verification.
`
}
func (*deriveCmd) SetFlags(*flag.FlagSet) {}

func (c *deriveCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	pw, err := c.password()
	if err != nil {
		return exit(err)
	}
	dk, err := c.Engine.DerivePasswordKey(pw)
	if err != nil {
		return exit(err)
	}
	out := map[string]string{
		"key":  hex.EncodeToString(dk.Key),
		"salt": hex.EncodeToString(dk.Salt),
		"hash": dk.Hash,
	}
	if c.JSON {
		return exit(c.printJSON(out))
	}
	fmt.Fprintf(c.Out, "key  %s\nsalt %s\nhash %s\n", out["key"], out["salt"], out["hash"])
	return subcommands.ExitSuccess
}

type verifyPasswordCmd struct{ *Env }

func (*verifyPasswordCmd) Name() string     { return "verify-password" }
func (*verifyPasswordCmd) Synopsis() string { return "check the password against a stored hash" }
func (*verifyPasswordCmd) Usage() string {
	return `famledger verify-password <hash>

  Exits zero when the password matches the hash.
`
}
func (*verifyPasswordCmd) SetFlags(*flag.FlagSet) {}

func (c *verifyPasswordCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	pw, err := c.password()
	if err != nil {
		return exit(err)
	}
	if !c.Engine.VerifyPasswordKey(pw, f.Arg(0)) {
		fmt.Fprintln(c.Out, "invalid")
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.Out, "valid")
	return subcommands.ExitSuccess
}

type cryptoConfigCmd struct{ *Env }

func (*cryptoConfigCmd) Name() string           { return "crypto-config" }
func (*cryptoConfigCmd) Synopsis() string       { return "print the active key derivation parameters" }
func (*cryptoConfigCmd) Usage() string          { return "famledger crypto-config\n" }
func (*cryptoConfigCmd) SetFlags(*flag.FlagSet) {}

func (c *cryptoConfigCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	return exit(c.printJSON(c.Engine.GetCryptoConfig()))
}
