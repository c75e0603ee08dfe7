package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/purchasing/internal/app"
	"github.com/Additional-Code/purchasing/internal/migration"
	"github.com/Additional-Code/purchasing/internal/seeder"
	serviceorder "github.com/Additional-Code/purchasing/internal/service/order"
	"github.com/Additional-Code/purchasing/internal/workflow"
	"github.com/Additional-Code/purchasing/pkg/errorbank"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root purchasing CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "purchasing",
		Short:         "Purchase order tracking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newPolicyCmd())
	root.AddCommand(newOrdersCmd())

	return root
}

// Execute runs the purchasing CLI.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the purchasing CLI until ctx is cancelled.
func ExecuteContext(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run", "serve"},
		Short:   "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), fx.New(app.Module))
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Storage, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Storage, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo purchase orders into an empty table",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			opts := fx.Options(app.Storage, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				n, err := seed.Orders(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d purchase orders\n", n)
				return nil
			})
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), fx.New(app.Worker))
		},
	})
	return cmd
}

func newPolicyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Print the status transition table for the admin role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPolicy(cmd.OutOrStdout())
		},
	}
}

func printPolicy(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tALLOWED\tCONFIRM")
	for _, from := range workflow.Statuses() {
		next, err := workflow.AllowedNext(from, workflow.RoleAdmin)
		if err != nil {
			return err
		}
		var allowed, confirm []string
		for _, to := range next {
			allowed = append(allowed, string(to))
			if v, err := workflow.Evaluate(from, to, workflow.RoleAdmin); err == nil && v.RequiresConfirmation {
				confirm = append(confirm, string(to))
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", from, joinOrDash(allowed), joinOrDash(confirm))
	}
	return tw.Flush()
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

func newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Operate on purchase orders",
	}

	setStatus := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Change an order's status through the workflow policy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			rawRole, _ := cmd.Flags().GetString("role")
			role, ok := workflow.ParseRole(rawRole)
			if !ok {
				return fmt.Errorf("unknown role %q", rawRole)
			}
			confirm, _ := cmd.Flags().GetBool("confirm")

			var svc *serviceorder.Service
			opts := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				out, err := svc.ChangeStatus(ctx, serviceorder.StatusChange{
					OrderID:   id,
					Status:    args[1],
					Role:      role,
					Confirmed: confirm,
				})
				if errorbank.KindOf(err) == errorbank.KindConfirmationRequired {
					return errors.New("changing to this status is irreversible; rerun with --confirm")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %d: %s -> %s\n", out.OrderID, out.From, out.To)
				return nil
			})
		},
	}
	setStatus.Flags().String("role", string(workflow.RoleAdmin), "Role to act as (admin or user)")
	setStatus.Flags().Bool("confirm", false, "Confirm an irreversible transition")

	cmd.AddCommand(setStatus)
	return cmd
}

func runUntilDone(ctx context.Context, application *fx.App) error {
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
