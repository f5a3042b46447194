package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/buildledger/buildledger/internal/app"
	"github.com/buildledger/buildledger/internal/config"
	"github.com/buildledger/buildledger/internal/database"
	"github.com/buildledger/buildledger/pkg/earned_value"
	"github.com/buildledger/buildledger/pkg/payroll"
	"github.com/buildledger/buildledger/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string
var tenantId int

func main() {
	rootCmd := &cobra.Command{
		Use:   "buildledgerctl",
		Short: "Maintenance commands for the construction cost ledger",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := cmd.Flags().GetString("log-level")
			if err != nil {
				return err
			}
			lvl, err := log.ParseLevel(level)
			if err != nil {
				return err
			}
			log.SetLevel(lvl)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", app.ConfigPath, "configuration file")
	rootCmd.PersistentFlags().IntVar(&tenantId, "tenant", 0, "tenant the command acts on")
	rootCmd.PersistentFlags().String("log-level", "info", "log level")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(recomputeCmd())
	rootCmd.AddCommand(evCmd())
	rootCmd.AddCommand(taxPreviewCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withDeps loads the configuration, opens the database and hands the wired services to fn.
func withDeps(fn func(deps *app.Dependencies) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(app.BuildDependencies(db, cfg))
}

func tenantContext() (context.Context, error) {
	if tenantId <= 0 {
		return nil, fmt.Errorf("--tenant is required")
	}
	return user.WithUser(context.Background(), user.User{TenantId: tenantId, Username: "buildledgerctl"}), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := database.Migrate(cfg.Database); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func userCmd() *cobra.Command {
	var username, displayName string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user in a tenant and print its X-User-Id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantId <= 0 {
				return fmt.Errorf("--tenant is required")
			}
			return withDeps(func(deps *app.Dependencies) error {
				created, err := deps.UserService.CreateUser(context.Background(), user.User{
					TenantId:    tenantId,
					Username:    username,
					DisplayName: displayName,
				})
				if err != nil {
					return err
				}
				fmt.Printf("created user %s (X-User-Id: %s)\n", created.Username, created.Uid)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func recomputeCmd() *cobra.Command {
	var periodId int
	var force bool

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute a payroll period, or every flagged period when --period is omitted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(deps *app.Dependencies) error {
				if periodId == 0 {
					count, err := deps.PayrollService.RecomputeStalePeriods(cmd.Context())
					fmt.Printf("recomputed %d flagged period(s)\n", count)
					return err
				}
				ctx, err := tenantContext()
				if err != nil {
					return err
				}
				result, err := deps.PayrollService.RecomputePeriod(ctx, periodId, force)
				if err != nil {
					return err
				}
				fmt.Printf("run %s: period %d recomputed at %s, %d record(s), %d skipped\n",
					result.RunId, result.PeriodId, result.RecomputedAt.Format(time.RFC3339), result.Recomputed, result.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&periodId, "period", 0, "payroll period id")
	cmd.Flags().BoolVar(&force, "force", false, "recompute even if the period is locked")
	return cmd
}

func evCmd() *cobra.Command {
	var projectId int
	var asOf string
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "ev",
		Short: "Print the earned value snapshot of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := tenantContext()
			if err != nil {
				return err
			}
			return withDeps(func(deps *app.Dependencies) error {
				date := deps.Clock.Now()
				if asOf != "" {
					if date, err = time.Parse("2006-01-02", asOf); err != nil {
						return fmt.Errorf("invalid --as-of: %w", err)
					}
				}
				snapshot, err := deps.EarnedValueService.ComputeProjectEV(ctx, projectId, date)
				if err != nil {
					return err
				}
				if asCSV {
					return earned_value.WriteCSV(snapshot, os.Stdout)
				}
				return printJSON(earned_value.SnapshotToDTO(snapshot))
			})
		},
	}

	cmd.Flags().IntVar(&projectId, "project", 0, "project id")
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date (YYYY-MM-DD), defaults to today")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write the per-line report as CSV")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func taxPreviewCmd() *cobra.Command {
	var employeeId int
	var gross string

	cmd := &cobra.Command{
		Use:   "tax-preview",
		Short: "Show how a gross amount is taxed under an employee's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := tenantContext()
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(gross)
			if err != nil {
				return fmt.Errorf("invalid --gross: %w", err)
			}
			return withDeps(func(deps *app.Dependencies) error {
				breakdown, err := deps.PayrollService.PreviewTax(ctx, employeeId, amount)
				if err != nil {
					return err
				}
				return printJSON(payroll.BreakdownToDTO(breakdown))
			})
		},
	}

	cmd.Flags().IntVar(&employeeId, "employee", 0, "employee id")
	cmd.Flags().StringVar(&gross, "gross", "", "gross pay")
	_ = cmd.MarkFlagRequired("employee")
	_ = cmd.MarkFlagRequired("gross")
	return cmd
}
