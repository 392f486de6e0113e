// Copyright 2025 Certen Protocol
//
// ubl-cli is a thin local tool for inspecting and dry-run registering
// program packs without going through the HTTP daemon — the same
// register-then-print-hashes workflow /register exposes, minus the
// network hop, plus read-only ledger inspection.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/LogLine-Foundation/UBL/internal/ledgerx"
	"github.com/LogLine-Foundation/UBL/internal/programpack"
	"github.com/LogLine-Foundation/UBL/internal/registry"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "register":
		err = runRegister(os.Args[2:])
	case "ledger-info":
		err = runLedgerInfo(os.Args[2:])
	case "ledger-record":
		err = runLedgerRecord(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ubl-cli: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ubl-cli <command> [args]")
	fmt.Fprintln(os.Stderr, "  register <pack.yaml>          parse and hash a program pack without a running server")
	fmt.Fprintln(os.Stderr, "  ledger-info <ledger.json>     print the ledger's version, head record, and record count")
	fmt.Fprintln(os.Stderr, "  ledger-record <ledger.json> <seq>   print one effect record as JSON")
}

// runRegister loads a single pack file into a fresh, throwaway registry and
// prints every chip and program hash it produced. It never touches a
// ledger, so it is safe to run against a pack that is still being drafted.
func runRegister(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("register requires exactly one pack path")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read pack: %w", err)
	}
	reg := registry.New()
	if err := programpack.LoadBytes(data, reg); err != nil {
		return fmt.Errorf("load pack: %w", err)
	}
	for _, c := range reg.ListChips() {
		fmt.Printf("chip    %s  %s\n", c.Hash, c.Name)
	}
	for _, p := range reg.ListPrograms() {
		fmt.Printf("program %s  %s\n", p.Hash, p.Name)
	}
	return nil
}

func runLedgerInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("ledger-info requires exactly one ledger path")
	}
	l, err := ledgerx.Load(args[0])
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	snap := l.Snapshot()
	fmt.Printf("version:     %d\n", l.Version())
	fmt.Printf("head_record: %s\n", l.HeadRecordHash())
	fmt.Printf("state_keys:  %d\n", len(snap.State))
	var seq uint64 = 1
	for {
		if _, ok := l.RecordAt(seq); !ok {
			break
		}
		seq++
	}
	fmt.Printf("records:     %d\n", seq-1)
	return nil
}

func runLedgerRecord(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("ledger-record requires a ledger path and a sequence number")
	}
	l, err := ledgerx.Load(args[0])
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	var seq uint64
	if _, err := fmt.Sscanf(args[1], "%d", &seq); err != nil {
		return fmt.Errorf("parse sequence %q: %w", args[1], err)
	}
	record, ok := l.RecordAt(seq)
	if !ok {
		return fmt.Errorf("no record at sequence %d", seq)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}
