// Package cli implements the interactive shell of the clinical vault. It is
// a thin dispatch layer: all business rules live in the store, compliance
// and syncer packages.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"github.com/shimishnaByAndy/clinicalvault/internal/compliance"
	"github.com/shimishnaByAndy/clinicalvault/internal/config"
	"github.com/shimishnaByAndy/clinicalvault/internal/logging"
	"github.com/shimishnaByAndy/clinicalvault/internal/store"
	"github.com/shimishnaByAndy/clinicalvault/internal/syncer"
)

type App struct {
	config      *config.Config
	log         logging.Logger
	store       *store.Store
	tracker     *compliance.Tracker
	coordinator *syncer.Coordinator
	actor       string
	reader      *bufio.Reader
}

// NewApp prompts for the vault passphrase, opens the store and wires the
// compliance tracker and sync coordinator together.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	passphrase, err := GetPassword("Vault passphrase", int(os.Stdin.Fd()), os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	defer common.WipeByteArray(passphrase)

	s, err := store.Open(ctx, store.OpenConfig{
		Path:       cfg.DatabasePath,
		Passphrase: passphrase,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}

	creds := compliance.NewSQLiteCredentialDirectory(s.DB())
	tracker := compliance.NewTracker(s.DB(), creds, log)

	remote := syncer.NewHTTPClient(cfg.RemoteEndpoint, cfg.HTTPTimeout)
	coordinator := syncer.New(s, remote, tracker, log, syncer.Options{
		Collection: cfg.Collection,
		Interval:   cfg.SyncInterval,
		Lookback:   cfg.FirstSyncLookback,
	})

	return &App{
		config:      cfg,
		log:         log,
		store:       s,
		tracker:     tracker,
		coordinator: coordinator,
		reader:      bufio.NewReader(os.Stdin),
	}, nil
}

// Run starts the background sync loop and enters the command loop until
// "exit" or EOF.
func (a *App) Run(ctx context.Context) {
	defer a.store.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.coordinator.Run(ctx)

	actor, err := GetSimpleText(a.reader, "Practitioner ID", os.Stdout)
	if err != nil {
		return
	}
	a.actor = actor

	fmt.Println("Clinical vault ready (type 'help' for commands)")

	for {
		fmt.Print("vault> ")
		line, err := a.reader.ReadString('\n')
		if err != nil {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			fmt.Println("Commands: add, get, list, delete, audit, deid, verify, validate, sync, status, conflicts, resolve, exit")
		case "add":
			a.Add(ctx)
		case "get":
			a.Get(ctx, args)
		case "list":
			a.List(ctx, args)
		case "delete":
			a.Delete(ctx, args)
		case "audit":
			a.Audit(ctx, args)
		case "deid":
			a.Deidentify(ctx)
		case "verify":
			a.Verify(ctx)
		case "validate":
			a.Validate(ctx, args)
		case "sync":
			a.Sync(ctx)
		case "status":
			a.SyncStatus()
		case "conflicts":
			a.Conflicts()
		case "resolve":
			a.Resolve(ctx, args)
		case "exit":
			return
		default:
			fmt.Printf("unknown command: %s\n", cmd)
		}
	}
}
