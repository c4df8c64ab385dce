// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/profiledir/lib/directory"
	"github.com/bureau-foundation/profiledir/lib/profile"
	"github.com/bureau-foundation/profiledir/lib/record"
)

func (a *app) commands() *command {
	return &command{
		name:    "profiledir",
		summary: "Distributed profile directory",
		subcommands: []*command{
			a.keygenCommand(),
			a.writeCommand("register", "Create a profile for --agent", (*directory.Directory).Register),
			a.writeCommand("update", "Publish a new version of --agent's profile", (*directory.Directory).Update),
			a.getCommand(),
			a.searchCommand(),
			a.listCommand(),
		},
	}
}

func (a *app) keygenCommand() *command {
	return &command{
		name:    "keygen",
		summary: "Generate a new identity",
		usage:   "profiledir keygen",
		run: func(_ *pflag.FlagSet, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			// Records are not signed; the private half is discarded.
			public, _, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generating key: %w", err)
			}
			var agent record.AgentKey
			copy(agent[:], public)
			newPrinter(a.stdout).field("agent", agent.String())
			return nil
		},
	}
}

type writeFunc func(*directory.Directory, context.Context, record.AgentKey, profile.Profile) (directory.ProfileRecord, error)

// writeCommand builds register and update, which differ only in the
// directory operation they call.
func (a *app) writeCommand(name, summary string, write writeFunc) *command {
	var (
		nickname string
		fields   []string
	)
	return &command{
		name:    name,
		summary: summary,
		usage:   "profiledir --agent <hex> " + name + " --nickname <name> [--field key=value ...]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			flagSet.StringVar(&nickname, "nickname", "", "nickname to publish (required)")
			flagSet.StringArrayVar(&fields, "field", nil, "additional profile field as key=value (repeatable)")
			return flagSet
		},
		run: func(_ *pflag.FlagSet, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if nickname == "" {
				return errors.New("--nickname is required")
			}
			parsed, err := parseFields(fields)
			if err != nil {
				return err
			}
			p := profile.Profile{Nickname: nickname, Fields: parsed}
			return a.withSession(true, func(ctx context.Context, s *session) error {
				written, err := write(s.directory, ctx, s.agent, p)
				if err != nil {
					return err
				}
				s.logger.Info("profile written",
					"command", name,
					"agent", written.Agent.Short(),
					"action_hash", written.Record.Hash.Short(),
				)
				newPrinter(a.stdout).profile(written)
				return nil
			})
		},
	}
}

func (a *app) getCommand() *command {
	return &command{
		name:    "get",
		summary: "Show the current profile of an identity",
		usage:   "profiledir get [agent]",
		run: func(_ *pflag.FlagSet, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("unexpected argument %q", args[1])
			}
			var target *record.AgentKey
			if len(args) == 1 {
				parsed, err := record.ParseAgentKey(args[0])
				if err != nil {
					return fmt.Errorf("agent: %w", err)
				}
				target = &parsed
			}
			return a.withSession(target == nil, func(ctx context.Context, s *session) error {
				identity := s.agent
				if target != nil {
					identity = *target
				}
				current, found, err := s.directory.Get(ctx, identity)
				if err != nil {
					return err
				}
				if !found {
					fmt.Fprintf(a.stderr, "no profile for %s\n", identity)
					return &exitError{code: 1}
				}
				newPrinter(a.stdout).profile(current)
				return nil
			})
		},
	}
}

func (a *app) searchCommand() *command {
	return &command{
		name:    "search",
		summary: "Find profiles whose nickname starts with a prefix",
		usage:   fmt.Sprintf("profiledir search <prefix>  (at least %d characters)", profile.MinNicknameLength),
		run: func(_ *pflag.FlagSet, args []string) error {
			if len(args) != 1 {
				return errors.New("search takes exactly one prefix")
			}
			return a.withSession(false, func(ctx context.Context, s *session) error {
				agents, err := s.directory.Search(ctx, args[0])
				if err != nil {
					return err
				}
				return a.printAgents(ctx, s, agents)
			})
		},
	}
}

func (a *app) listCommand() *command {
	return &command{
		name:    "list",
		summary: "List every indexed profile",
		usage:   "profiledir list",
		run: func(_ *pflag.FlagSet, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return a.withSession(false, func(ctx context.Context, s *session) error {
				agents, err := s.directory.ListAll(ctx)
				if err != nil {
					return err
				}
				return a.printAgents(ctx, s, agents)
			})
		},
	}
}

// printAgents resolves each agent's current profile and prints one
// table row per agent.
func (a *app) printAgents(ctx context.Context, s *session, agents []record.AgentKey) error {
	rows := make([][]string, 0, len(agents))
	for _, agent := range agents {
		current, found, err := s.directory.Get(ctx, agent)
		if err != nil {
			return err
		}
		nickname := "-"
		if found {
			nickname = current.Profile.Nickname
		}
		rows = append(rows, []string{agent.String(), nickname})
	}
	newPrinter(a.stdout).table([]string{"AGENT", "NICKNAME"}, rows)
	return nil
}

// parseFields turns key=value flag values into a field map.
func parseFields(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	fields := make(map[string]string, len(values))
	for _, value := range values {
		key, fieldValue, ok := strings.Cut(value, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--field %q: want key=value", value)
		}
		if _, exists := fields[key]; exists {
			return nil, fmt.Errorf("--field %q given more than once", key)
		}
		fields[key] = fieldValue
	}
	return fields, nil
}
