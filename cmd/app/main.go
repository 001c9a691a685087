// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/config"
	"codeberg.org/oliverandrich/idp-registration/internal/registration"
	"codeberg.org/oliverandrich/idp-registration/internal/server"
	"codeberg.org/oliverandrich/idp-registration/internal/tokenable"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:    "idp",
		Usage:   "Identity provider registration service",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: server.Run,
			},
			{
				Name:  "invite",
				Usage: "Mint an organization invite token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "org-user-id",
						Usage:    "Organization user the invite is bound to",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Invited email address",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Value: registration.DefaultOrgInviteTTL,
						Usage: "How long the invite stays valid",
					},
				},
				Action: invite,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func invite(_ context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	if cfg.Tokens.HashKey == "" || cfg.Tokens.BlockKey == "" {
		return errors.New("token-hash-key and token-block-key must be set to mint invites")
	}

	orgUserID, err := uuid.Parse(cmd.String("org-user-id"))
	if err != nil {
		return fmt.Errorf("invalid org-user-id: %w", err)
	}

	keys, err := tokenable.NewKeys(cfg.Tokens.HashKey, cfg.Tokens.BlockKey)
	if err != nil {
		return fmt.Errorf("failed to load token keys: %w", err)
	}

	ttl := cmd.Duration("ttl")
	if ttl <= 0 {
		ttl = registration.DefaultOrgInviteTTL
	}
	token, err := registration.IssueInvite(tokenable.NewCodec(keys), orgUserID, cmd.String("email"), ttl)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	return nil
}
