// Command tipctl inspects the tip ledger and performer accounts directly
// from the service database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/MohammedAK1991/street-performers-map-sub000/database"
	"github.com/MohammedAK1991/street-performers-map-sub000/directory"
	"github.com/MohammedAK1991/street-performers-map-sub000/ledger"
	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/MohammedAK1991/street-performers-map-sub000/payments"
	"github.com/MohammedAK1991/street-performers-map-sub000/utils"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	dbPath  string
	jsonOut bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "tipctl",
		Short:         "Operator tool for the street performer tip ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultDB := os.Getenv("DATABASE_URL")
	if defaultDB == "" {
		defaultDB = "streettips.db"
	}
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", defaultDB, "SQLite database path")
	rootCmd.PersistentFlags().BoolVarP(&a.jsonOut, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(a.summaryCmd())
	rootCmd.AddCommand(a.recentCmd())
	rootCmd.AddCommand(a.pendingCmd())
	rootCmd.AddCommand(a.accountCmd())
	rootCmd.AddCommand(tokenCmd())

	return rootCmd
}

type stores struct {
	ledger    *ledger.Store
	directory *directory.Store
}

func (a *app) withStores(fn func(ctx context.Context, s stores) error) error {
	db, err := database.Initialize(a.dbPath, zerolog.Nop())
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, stores{
		ledger:    ledger.NewStore(db, zerolog.Nop()),
		directory: directory.NewStore(db, zerolog.Nop()),
	})
}

func (a *app) summaryCmd() *cobra.Command {
	var performerID, from, to string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show a performer's completed tip totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromT, err := parseDay(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toT, err := parseDay(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			return a.withStores(func(ctx context.Context, s stores) error {
				sum, err := s.ledger.Summary(ctx, performerID, fromT, toT)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), sum)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "Performer:\t%s\n", performerID)
				fmt.Fprintf(tw, "Tips:\t%d\n", sum.Count)
				fmt.Fprintf(tw, "Total:\t%s\n", money(sum.TotalAmount))
				fmt.Fprintf(tw, "Average:\t%s\n", money(sum.AverageAmount))
				fmt.Fprintf(tw, "Fees:\t%s\n", money(sum.TotalFees))
				fmt.Fprintf(tw, "Net:\t%s\n", money(sum.TotalNet))
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&performerID, "performer", "p", "", "Performer id")
	cmd.Flags().StringVar(&from, "from", "", "Start date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "End date, exclusive (YYYY-MM-DD)")
	cmd.MarkFlagRequired("performer")
	return cmd
}

func (a *app) recentCmd() *cobra.Command {
	var performanceID string
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent public tips for a performance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStores(func(ctx context.Context, s stores) error {
				recent, err := s.ledger.RecentPublicTips(ctx, performanceID, limit)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), recent)
				}
				if len(recent) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No public tips")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tAMOUNT\tFROM\tMESSAGE\tAT")
				for _, tip := range recent {
					from := "-"
					if tip.FromUserID != nil {
						from = *tip.FromUserID
					}
					fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\n",
						tip.ID, money(tip.Amount), tip.Currency, from, tip.PublicMessage, tip.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&performanceID, "performance", "", "Performance id")
	cmd.Flags().IntVarP(&limit, "limit", "n", ledger.DefaultRecentLimit, "Maximum results")
	cmd.MarkFlagRequired("performance")
	return cmd
}

// pendingCmd lists transactions whose intent never reached a terminal state.
func (a *app) pendingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List transactions still awaiting a processor outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStores(func(ctx context.Context, s stores) error {
				txs, err := s.ledger.ListByStatus(ctx, models.StatusPending, limit, 0)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), txs)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tINTENT\tPERFORMER\tAMOUNT\tAGE")
				for _, tx := range txs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n",
						tx.ID, tx.ProcessorPaymentIntentID, tx.ToUserID, money(tx.Amount), tx.Currency,
						time.Since(tx.CreatedAt).Round(time.Second))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum results")
	return cmd
}

func (a *app) accountCmd() *cobra.Command {
	var performerID string
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show a performer's connected account record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStores(func(ctx context.Context, s stores) error {
				acct, err := s.directory.Get(ctx, performerID)
				if errors.Is(err, directory.ErrNotFound) {
					return fmt.Errorf("no account record for performer %s", performerID)
				}
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), acct)
				}
				accountID := "-"
				if acct.HasAccount() {
					accountID = *acct.ConnectAccountID
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "Performer:\t%s\n", acct.PerformerID)
				fmt.Fprintf(tw, "Account:\t%s\n", accountID)
				fmt.Fprintf(tw, "Status:\t%s\n", acct.AccountStatus)
				fmt.Fprintf(tw, "Charges:\t%t\n", acct.ChargesEnabled)
				fmt.Fprintf(tw, "Payouts:\t%t\n", acct.PayoutsEnabled)
				fmt.Fprintf(tw, "Details:\t%t\n", acct.DetailsSubmitted)
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&performerID, "performer", "p", "", "Performer id")
	cmd.MarkFlagRequired("performer")
	return cmd
}

func tokenCmd() *cobra.Command {
	var userID, role, secret string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			tok, err := utils.GenerateToken(userID, role, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id")
	cmd.Flags().StringVarP(&role, "role", "r", utils.RoleAdmin, "Role (tipper, performer, admin)")
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (default $JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("user")
	return cmd
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func money(minor int64) string {
	return payments.FromMinorUnits(minor).StringFixed(2)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
