// Command repairctl runs one-off administrative tasks against the configured
// storage backend.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/repair-desk/internal/app"
	"github.com/jwalitptl/repair-desk/internal/config"
	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
	authService "github.com/jwalitptl/repair-desk/internal/service/auth"
	"github.com/jwalitptl/repair-desk/internal/service/technician"
	"github.com/jwalitptl/repair-desk/pkg/auth"
	"github.com/jwalitptl/repair-desk/pkg/logger"
	"github.com/jwalitptl/repair-desk/pkg/security"
)

type cli struct {
	configPath string
	cfg        *config.Config
	log        *logger.Logger
	ctx        context.Context
}

func main() {
	c := &cli{ctx: context.Background()}

	rootCmd := &cobra.Command{
		Use:          "repairctl",
		Short:        "Repair desk administration",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = app.NewLogger(cfg.Logging)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to the YAML config file")

	rootCmd.AddCommand(c.migrateCmd())
	rootCmd.AddCommand(c.seedUserCmd())
	rootCmd.AddCommand(c.tokenCmd())
	rootCmd.AddCommand(c.technicianCmd())
	rootCmd.AddCommand(c.outboxCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withStore opens the store for the duration of fn.
func (c *cli) withStore(fn func(store *repository.Store) error) error {
	store, err := app.OpenStore(c.ctx, c.cfg.Storage, c.log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(c.ctx) }()
	return fn(store)
}

func (c *cli) authService(store *repository.Store) *authService.Service {
	jwtSvc := auth.NewJWTService(c.cfg.JWT.Secret, c.cfg.JWT.Issuer, time.Duration(c.cfg.JWT.ExpiryHours)*time.Hour)
	return authService.NewService(store.Users, jwtSvc, security.NewBcryptHasher(0), c.log)
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables or indexes for the configured storage driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.cfg.Storage.Postgres.AutoMigrate = true
			c.cfg.Storage.Mongo.EnsureIndex = true
			return c.withStore(func(*repository.Store) error {
				fmt.Printf("Schema ready for %s\n", c.cfg.Storage.Driver)
				return nil
			})
		},
	}
}

func (c *cli) seedUserCmd() *cobra.Command {
	var req model.CreateUserRequest
	var role string
	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Role = model.Role(role)
			return c.withStore(func(store *repository.Store) error {
				user, err := c.authService(store).CreateUser(c.ctx, &req)
				if err != nil {
					return fmt.Errorf("failed to create user: %w", err)
				}
				fmt.Printf("Created %s %s (%s)\n", user.Role, user.Email, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "login email")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(model.RoleAdmin), "customer, technician, service_manager or admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <email>",
		Short: "Issue an access token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(store *repository.Store) error {
				user, err := store.Users.GetByEmail(c.ctx, strings.ToLower(args[0]))
				if err != nil {
					return fmt.Errorf("failed to find user: %w", err)
				}
				tok, err := c.authService(store).IssueToken(user)
				if err != nil {
					return err
				}
				fmt.Println(tok.AccessToken)
				return nil
			})
		},
	}
}

func (c *cli) technicianCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "technician",
		Short: "Manage technician profiles",
	}

	var skills []string
	create := &cobra.Command{
		Use:   "create <user-id>",
		Short: "Create the technician profile of a technician user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(store *repository.Store) error {
				t, err := technician.NewService(store, c.log).Create(c.ctx, &model.CreateTechnicianRequest{
					UserID: args[0],
					Skills: skills,
				})
				if err != nil {
					return fmt.Errorf("failed to create technician: %w", err)
				}
				return printJSON(t)
			})
		},
	}
	create.Flags().StringSliceVar(&skills, "skills", nil, "equipment skills, comma separated")

	workload := &cobra.Command{
		Use:   "workload <technician-id>",
		Short: "Show active repairs against the capacity limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(store *repository.Store) error {
				w, err := technician.NewService(store, c.log).Workload(c.ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(w)
			})
		},
	}

	cmd.AddCommand(create, workload)
	return cmd
}

func (c *cli) outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drive the event outbox",
	}

	drain := &cobra.Command{
		Use:   "drain",
		Short: "Process every due outbox event and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(c.ctx, c.cfg, c.log)
			defer a.Close(c.ctx)
			if err != nil {
				return err
			}
			n, err := a.Outbox.Drain(c.ctx)
			if err != nil {
				return fmt.Errorf("drain stopped after %d events: %w", n, err)
			}
			fmt.Printf("Processed %d events\n", n)
			return nil
		},
	}

	var olderThan time.Duration
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete processed events older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				olderThan = c.cfg.Outbox.Retention
			}
			return c.withStore(func(store *repository.Store) error {
				n, err := store.Outbox.DeleteProcessedBefore(c.ctx, time.Now().UTC().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d events\n", n)
				return nil
			})
		},
	}
	cleanup.Flags().DurationVar(&olderThan, "older-than", 0, "override the configured retention")

	cmd.AddCommand(drain, cleanup)
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
