// Copyright 2025 Certen Protocol
//
// ubl-server is the kernel's HTTP daemon: load configuration, open the
// ledger, wire the registry and executor, and serve the registration,
// execution, verification, and inspection endpoints until told to stop.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LogLine-Foundation/UBL/internal/config"
	"github.com/LogLine-Foundation/UBL/internal/executor"
	"github.com/LogLine-Foundation/UBL/internal/ledgerx"
	"github.com/LogLine-Foundation/UBL/internal/programpack"
	"github.com/LogLine-Foundation/UBL/internal/registry"
	"github.com/LogLine-Foundation/UBL/internal/signing"
	"github.com/LogLine-Foundation/UBL/pkg/server"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides UBL_LISTEN_ADDR)")
		ledgerPath = flag.String("ledger-path", "", "ledger JSON document path (overrides UBL_LEDGER_PATH)")
		programDir = flag.String("programs", "", "directory of *.yaml program packs to load at startup (overrides UBL_PROGRAM_PACK_DIR)")
	)
	flag.Parse()

	cfg := config.Load()
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *ledgerPath != "" {
		cfg.LedgerPath = *ledgerPath
	}
	if *programDir != "" {
		cfg.ProgramPackDir = *programDir
	}

	log.Printf("[ubl] starting kernel, ledger=%s listen=%s", cfg.LedgerPath, cfg.ListenAddr)

	ledger, err := ledgerx.Load(cfg.LedgerPath)
	if err != nil {
		log.Fatalf("[ubl] failed to load ledger: %v", err)
	}
	ledger.CommitTimeout = time.Duration(cfg.CommitTimeoutMS) * time.Millisecond
	log.Printf("[ubl] ledger loaded at version %d, head_record=%s", ledger.Version(), ledger.HeadRecordHash())

	var signer *signing.Signer
	if cfg.SigningKeyB64 != "" {
		signer, err = signing.NewFromSeedB64(cfg.SigningKeyB64)
		if err != nil {
			log.Fatalf("[ubl] failed to load signing key: %v", err)
		}
		log.Printf("[ubl] proofs and effect records will be signed")
	} else {
		log.Printf("[ubl] no signing key configured, running unsigned")
	}

	reg := registry.New()

	if cfg.ProgramPackDir != "" {
		if err := programpack.LoadDir(cfg.ProgramPackDir, reg); err != nil {
			log.Fatalf("[ubl] failed to load program pack directory %q: %v", cfg.ProgramPackDir, err)
		}
		chips := reg.ListChips()
		programs := reg.ListPrograms()
		log.Printf("[ubl] loaded %d chip(s) and %d program(s) from %s", len(chips), len(programs), cfg.ProgramPackDir)
	}

	if cfg.APIKey == "" {
		log.Printf("[ubl] WARNING: UBL_API_KEY is unset, every endpoint except /health runs unauthenticated")
	}

	kernel := &executor.Kernel{Registry: reg, Ledger: ledger, Signer: signer}
	srv := &server.Server{Kernel: kernel, Registry: reg, Ledger: ledger, Signer: signer, APIKey: cfg.APIKey}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Routes(),
	}

	go func() {
		log.Printf("[ubl] listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[ubl] HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("[ubl] shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ubl] HTTP server shutdown error: %v", err)
	}

	log.Printf("[ubl] stopped, head_record=%s", ledger.HeadRecordHash())
}
