// Command winchctl is the operator CLI of the Winch Zone dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/winchzone/dashboard/internal/access"
	"github.com/winchzone/dashboard/internal/auth"
	"github.com/winchzone/dashboard/internal/db"
	"github.com/winchzone/dashboard/internal/directory"
	"github.com/winchzone/dashboard/internal/identity"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "winchctl",
		Short:         "Winch Zone dashboard operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	cmd.AddCommand(hashPasswordCmd(), usersCmd())
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the argon2id hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.Hash(args[0])
			if err != nil {
				return fmt.Errorf("hash: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect and change dashboard roles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users with their role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			entries, err := directory.NewRepository(pool).List(ctx)
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USER ID\tEMAIL\tROLE")
			for _, e := range entries {
				role := string(e.Role)
				if role == "" {
					role = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.UserID, e.Email, role)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-role <user-id> <admin|user|1|2>",
		Short: "Assign the role of a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			code, err := parseRoleCode(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := directory.NewRepository(pool).SetRoleCode(ctx, userID, code); err != nil {
				return fmt.Errorf("set role: %w", err)
			}
			notifyRoleChange(ctx, userID)
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", userID, access.RoleFromCode(code))
			return nil
		},
	})

	return cmd
}

func parseRoleCode(raw string) (int, error) {
	if role, ok := access.ParseRole(raw); ok {
		return role.Code(), nil
	}
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || (code != access.CodeAdmin && code != access.CodeUser) {
		return 0, fmt.Errorf("unknown role %q", raw)
	}
	return code, nil
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		return nil, errors.New("DB_DSN is required")
	}
	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	return pool, nil
}

// notifyRoleChange drops cached roles on running API instances. Without
// REDIS_URL the caches expire on their own.
func notifyRoleChange(ctx context.Context, userID uuid.UUID) {
	raw := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if raw == "" {
		return
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		log.Warn().Err(err).Msg("invalid REDIS_URL, role change not broadcast")
		return
	}
	client := redis.NewClient(opts)
	defer client.Close()

	identity.NewHub(client, log.Logger).Publish(ctx, identity.Event{Type: identity.EventUserUpdated, UserID: userID})
}
