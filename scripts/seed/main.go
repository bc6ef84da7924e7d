// Command seed fills a demo store with a few accounts and operations.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/famledger/famledger/internal/commands"
	"github.com/famledger/famledger/internal/kdf"
)

type demoOp struct {
	account     int
	amount      float64
	description string
}

var demoAccounts = []struct{ name, kind string }{
	{"Wallet", "cash"},
	{"Visa", "card"},
	{"Checking", "bank"},
	{"Savings", "deposit"},
}

var demoOps = []demoOp{
	{2, 2500, "salary"},
	{0, 200, "atm withdrawal"},
	{2, -200, "atm withdrawal"},
	{0, -35.4, "farmers market"},
	{1, -120.99, "school supplies"},
	{2, -120.99, "card repayment"},
	{1, 120.99, "card repayment"},
	{3, 500, "monthly saving"},
	{2, -500, "monthly saving"},
	{2, -860, "rent"},
}

func main() {
	path := getenv("LEDGER_PATH", "demo.db")
	password := getenv("FAMLEDGER_PASSWORD", "demo")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := os.Stat(path); err == nil {
		log.Fatalf("%s already exists; seed only creates new stores", path)
	}

	deriver, err := kdf.New(kdf.DefaultParams())
	if err != nil {
		log.Fatalf("kdf: %v", err)
	}
	engine, err := commands.NewEngine(commands.Options{Deriver: deriver})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	dk, err := deriver.DerivePasswordKey(password)
	if err != nil {
		log.Fatalf("derive key: %v", err)
	}
	if err := os.WriteFile(path+".kdf", []byte(dk.Header()+"\n"), 0o600); err != nil {
		log.Fatalf("write key header: %v", err)
	}
	if _, err := engine.InitDatabase(ctx, path, dk.Key); err != nil {
		log.Fatalf("init store: %v", err)
	}

	fmt.Println("→ Seeding accounts...")
	ids := make([]int64, len(demoAccounts))
	for i, a := range demoAccounts {
		acc, err := engine.CreateAccount(ctx, path, dk.Key, a.name, a.kind)
		if err != nil {
			log.Fatalf("create account %s: %v", a.name, err)
		}
		ids[i] = acc.ID
	}

	fmt.Println("→ Seeding operations...")
	for _, op := range demoOps {
		if _, err := engine.AddOperation(ctx, path, dk.Key, ids[op.account], op.amount, op.description); err != nil {
			log.Fatalf("add operation %q: %v", op.description, err)
		}
	}

	nw, err := engine.GetNetWorth(ctx, path, dk.Key)
	if err != nil {
		log.Fatalf("net worth: %v", err)
	}
	fmt.Printf("✓ Seeded %s: %d accounts, %d operations, net worth %s\n", path, len(ids), len(demoOps), nw)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
