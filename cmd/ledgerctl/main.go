package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"points-service/internal/app"
	"points-service/internal/auth"
	"points-service/internal/config"
	"points-service/internal/database"
	"points-service/internal/logger"
)

type cli struct {
	cfg    *config.Config
	log    *logrus.Logger
	ledger *app.App
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the points ledger from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = logger.New(cfg.Log.Level, cfg.Log.Format)
			c.log.SetOutput(os.Stderr)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.ledger != nil {
				_ = c.ledger.Close()
			}
		},
	}

	root.AddCommand(c.expireCmd(), c.reconcileCmd(), c.summaryCmd(), c.tokenCmd())
	return root
}

// connect opens the database lazily so commands that need none stay offline.
func (c *cli) connect() error {
	db, err := database.Connect(c.cfg.Database, c.log)
	if err != nil {
		return err
	}
	c.ledger = app.New(c.cfg, db, c.log, nil)
	return nil
}

func (c *cli) expireCmd() *cobra.Command {
	var maxAgeDays int
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Expire stale pending transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.connect(); err != nil {
				return err
			}
			if maxAgeDays == 0 {
				res, err := c.ledger.Expiry.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(res)
			}
			res, err := c.ledger.Expiry.ExpirePending(cmd.Context(), maxAgeDays)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "override SWEEP_MAX_AGE_DAYS and skip the sweep lease")
	return cmd
}

func (c *cli) reconcileCmd() *cobra.Command {
	var (
		userID uint
		fix    bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stored balances with transaction history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.connect(); err != nil {
				return err
			}
			if userID != 0 {
				d, err := c.ledger.Reconcile.ReconcileUser(cmd.Context(), userID, fix)
				if err != nil {
					return err
				}
				return printJSON(d)
			}
			drifts, err := c.ledger.Reconcile.ReconcileAll(cmd.Context(), fix)
			if err != nil {
				return err
			}
			return printJSON(drifts)
		},
	}
	cmd.Flags().UintVar(&userID, "user-id", 0, "reconcile a single user")
	cmd.Flags().BoolVar(&fix, "fix", false, "overwrite drifted balances")
	return cmd
}

func (c *cli) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <userId>",
		Short: "Print a user's balances and breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			if err := c.connect(); err != nil {
				return err
			}
			s, err := c.ledger.Reporting.GetUserSummary(cmd.Context(), uint(id))
			if err != nil {
				return err
			}
			return printJSON(s)
		},
	}
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Sign a bearer token with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := auth.IssueToken(c.cfg.JWT.Secret, c.cfg.JWT.Issuer, args[0], role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
