// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// profiledir is the command-line front end of the profile directory.
// Each invocation opens the configured record store, runs one
// directory operation as the identity given by --agent, and exits.
//
// Usage:
//
//	profiledir keygen
//	profiledir --agent <hex> register --nickname carol --field avatar=https://...
//	profiledir --agent <hex> update --nickname caroline
//	profiledir get [agent]
//	profiledir search <prefix>
//	profiledir list
//
// Configuration comes from --config or PROFILEDIR_CONFIG (see
// lib/config). With --signals, the directory signals produced by the
// invocation's own commits are written to stdout as JSON lines after
// the command's output.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	ossignal "os/signal"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/profiledir/lib/config"
	"github.com/bureau-foundation/profiledir/lib/directory"
	"github.com/bureau-foundation/profiledir/lib/record"
	"github.com/bureau-foundation/profiledir/lib/recordstore"
	"github.com/bureau-foundation/profiledir/lib/signal"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// exitError ends the process with a status code and no further
// message; the command has already written its own output.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func (e *exitError) ExitCode() int { return e.code }

// app holds the global flags and output streams shared by every
// subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath   string
	agentHex     string
	printSignals bool
}

func run(args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}
	flagSet := a.globalFlags()
	root := a.commands()
	root.flags = a.globalFlags
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			root.printHelp(stderr)
			return nil
		}
		return fmt.Errorf("%w\n\nRun 'profiledir --help' for usage.", err)
	}

	return root.execute(stderr, flagSet.Args())
}

func (a *app) globalFlags() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("profiledir", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&a.configPath, "config", "", "config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&a.agentHex, "agent", "", "local identity, as printed by keygen")
	flagSet.BoolVar(&a.printSignals, "signals", false, "print signals from this invocation's commits as JSON lines")
	return flagSet
}

// session is everything one directory operation needs, opened from
// config.
type session struct {
	logger       *slog.Logger
	agent        record.AgentKey
	directory    *directory.Directory
	hub          *signal.Hub
	subscription *signal.Subscription
	closeStore   func() error
}

// withSession opens a session, runs body, and tears the session down.
// needAgent makes --agent mandatory.
func (a *app) withSession(needAgent bool, body func(ctx context.Context, s *session) error) error {
	var agent record.AgentKey
	switch {
	case a.agentHex != "":
		parsed, err := record.ParseAgentKey(a.agentHex)
		if err != nil {
			return fmt.Errorf("--agent: %w", err)
		}
		agent = parsed
	case needAgent:
		return errors.New("--agent is required (create one with 'profiledir keygen')")
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, a.stderr)
	if err != nil {
		return err
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	s := &session{logger: logger, agent: agent, closeStore: closeStore}
	defer s.close()

	s.hub = signal.NewHub(signal.HubConfig{BufferSize: cfg.Signals.BufferSize, Logger: logger})
	if a.printSignals {
		s.subscription = s.hub.Subscribe()
	}
	classifier, err := signal.NewClassifier(signal.ClassifierConfig{Store: store, Emitter: s.hub, Logger: logger})
	if err != nil {
		return err
	}
	s.directory, err = directory.New(directory.Config{
		Store:    store,
		Author:   agent,
		Observer: classifier,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	err = body(ctx, s)
	if s.subscription != nil {
		if printErr := a.writeSignals(s.subscription); printErr != nil && err == nil {
			err = printErr
		}
	}
	return err
}

func (s *session) close() {
	if s.hub != nil {
		s.hub.Close()
	}
	if err := s.closeStore(); err != nil {
		s.logger.Error("closing record store", "error", err)
	}
}

// writeSignals prints every signal already delivered to subscription.
// Commits classify synchronously, so once the command returns nothing
// more is coming.
func (a *app) writeSignals(subscription *signal.Subscription) error {
	encoder := json.NewEncoder(a.stdout)
	for {
		select {
		case received, ok := <-subscription.C:
			if !ok {
				return nil
			}
			if err := encoder.Encode(signal.NewEnvelope(received)); err != nil {
				return fmt.Errorf("writing signal: %w", err)
			}
		default:
			return nil
		}
	}
}

func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFile(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(stderr, options)), nil
	}
	return slog.New(slog.NewTextHandler(stderr, options)), nil
}

// openStore opens the configured backend and returns it with its
// close function.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (recordstore.Store, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("using an in-memory record store; nothing will persist past this command")
		return recordstore.NewMemoryStore(recordstore.MemoryConfig{}), func() error { return nil }, nil
	default:
		if err := cfg.EnsureStoreDir(); err != nil {
			return nil, nil, err
		}
		tag, err := cfg.CompressionTag()
		if err != nil {
			return nil, nil, err
		}
		store, err := recordstore.OpenSQLite(ctx, recordstore.SQLiteConfig{
			Path:                 cfg.Store.Path,
			PoolSize:             cfg.Store.PoolSize,
			Compression:          tag,
			CompressionThreshold: cfg.Store.CompressionThreshold,
			Logger:               logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}

// isTerminal reports whether w is a terminal, for deciding whether to
// style output.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
