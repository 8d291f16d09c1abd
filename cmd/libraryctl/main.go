// Command libraryctl runs maintenance jobs against the library database.
package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/config"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/logger"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type env struct {
	cfg *config.Config
	db  *gorm.DB
	svc *services.Container
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Maintenance commands for the libraryhub database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Setup(cfg.Log)

			db, err := config.ConnectDatabase(cfg)
			if err != nil {
				return err
			}
			e.cfg, e.db = cfg, db
			e.svc = services.NewContainer(db, cfg, services.NewNotifier(cfg.Mail), services.SystemClock)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			logger.Sync()
			return config.CloseDatabase()
		},
	}

	root.AddCommand(
		migrateCmd(e),
		seedCmd(e),
		sweepCmd(e),
		outboxCmd(e),
		tokenCmd(e),
		passwdCmd(e),
	)
	return root
}

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := models.AutoMigrate(e.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration completed")
			return nil
		},
	}
}

func seedCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert categories and the bootstrap admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return config.NewSeeder(e.db, e.cfg.Admin).Run(cmd.Context())
		},
	}
}

func sweepCmd(e *env) *cobra.Command {
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Run a lending sweep now",
	}
	sweep.AddCommand(
		&cobra.Command{
			Use:   "overdue",
			Short: "Recompute overdue fines and queue overdue notices",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				result, err := e.svc.Sweeps.SweepOverdue(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			},
		},
		&cobra.Command{
			Use:   "due-soon",
			Short: "Queue reminders for loans due within the window",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				result, err := e.svc.Sweeps.SendDueSoonReminders(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			},
		},
	)
	return sweep
}

func outboxCmd(e *env) *cobra.Command {
	outbox := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect or deliver queued notifications",
	}

	var rounds int
	flush := &cobra.Command{
		Use:   "flush",
		Short: "Deliver due notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			total := &services.DispatchResult{}
			for i := 0; i < rounds; i++ {
				result, err := e.svc.Notifications.DispatchPending(cmd.Context())
				if err != nil {
					return err
				}
				total.Claimed += result.Claimed
				total.Sent += result.Sent
				total.Retried += result.Retried
				total.Failed += result.Failed
				if result.Claimed == 0 {
					break
				}
			}
			return printJSON(cmd, total)
		},
	}
	flush.Flags().IntVar(&rounds, "rounds", 1, "dispatch batches to run, stops early when nothing is due")

	outbox.AddCommand(flush, &cobra.Command{
		Use:   "pending",
		Short: "Count notifications waiting for delivery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, err := e.svc.Notifications.PendingCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	})
	return outbox
}

func tokenCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "token <username>",
		Short: "Mint an access token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := e.svc.Auth.MintAccessToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func passwdCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set a user's password, read from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			first, err := readPassword(cmd, "New password: ")
			if err != nil {
				return err
			}
			second, err := readPassword(cmd, "Repeat password: ")
			if err != nil {
				return err
			}
			if first != second {
				return fmt.Errorf("passwords do not match")
			}
			if err := e.svc.Users.ResetPassword(cmd.Context(), args[0], first); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password updated")
			return nil
		},
	}
}

// readPassword reads a masked line from the terminal
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

