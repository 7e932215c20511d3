package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/MikeSquared-Agency/EduMate/internal/auth"
	"github.com/MikeSquared-Agency/EduMate/internal/config"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

var readPasswordFunc = term.ReadPassword // mockable

const minPasswordLength = 6

var errPasswordMismatch = errors.New("passwords do not match")

// passwordStore is the part of store.Store that reset-password needs.
type passwordStore interface {
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	UpdateUserPassword(ctx context.Context, id uuid.UUID, hash []byte) error
}

func newResetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for a user",
		Long:  "Prompts for the new password twice without echoing it, then stores its bcrypt hash.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			db, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			return resetPassword(cmd.Context(), db, cmd.OutOrStdout(), email, cfg.Auth.BcryptCost)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's e-mail address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func resetPassword(ctx context.Context, s passwordStore, out io.Writer, email string, cost int) error {
	user, err := s.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("no user with e-mail %q", email)
	}

	pwd, err := prompt(out, "New password: ")
	if err != nil {
		return err
	}
	if len(pwd) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	}
	confirm, err := prompt(out, "Confirm password: ")
	if err != nil {
		return err
	}
	if pwd != confirm {
		return errPasswordMismatch
	}

	hash, err := auth.HashPassword(pwd, cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	fmt.Fprintf(out, "password updated for %s\n", user.Email)
	return nil
}

func prompt(out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	b, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
