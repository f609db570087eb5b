package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/internal/config"
	"github.com/intergroup-dev/volunteer-shifts/pkg/clients/gmailclient"
	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
	"github.com/intergroup-dev/volunteer-shifts/pkg/core/services"
	"github.com/intergroup-dev/volunteer-shifts/pkg/httpserver"
	"github.com/intergroup-dev/volunteer-shifts/pkg/mailer"
	"github.com/intergroup-dev/volunteer-shifts/pkg/postgres"
	"github.com/intergroup-dev/volunteer-shifts/pkg/tokens"
	"github.com/intergroup-dev/volunteer-shifts/pkg/utils/logging"
)

// App holds the application dependencies
type App struct {
	cfg         *config.Config
	oauthCfg    *config.OAuthClientConfig
	gmailClient *gmailclient.Client
	database    *postgres.DB
	issuer      *tokens.Issuer
	notifier    *mailer.Mailer
	logger      *zap.Logger
	ctx         context.Context
}

var (
	env string
	app *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Volunteer Shifts CLI - Manage shift scheduling and reminders",
		Long:  `A CLI tool for managing volunteer shifts, confirmation reminders, and the self-service request flow.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if app.database != nil {
					app.database.Close()
				}
				if app.logger != nil {
					app.logger.Sync()
				}
			}
		},
	}

	// Add persistent environment flag
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	// Add all commands
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(publishMonthCmd())
	rootCmd.AddCommand(cleanupTokensCmd())
	rootCmd.AddCommand(listVolunteersCmd())
	rootCmd.AddCommand(listRequestsCmd())
	rootCmd.AddCommand(resolveRequestCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, clients, and database
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	// Initialize logger
	app.logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.logger.Info("Loading configuration")
	app.cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.logger.Debug("Configuration loaded successfully")

	// Load OAuth client configuration
	app.logger.Info("Loading OAuth client configuration")
	app.oauthCfg, err = config.LoadOAuthClientWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load OAuth client config: %w", err)
	}
	app.logger.Debug("OAuth configuration loaded successfully")

	// Initialize gmail client
	app.logger.Info("Initializing gmail client")
	app.gmailClient, err = gmailclient.NewClient(app.ctx, app.oauthCfg, env, app.cfg.GmailSender)
	if err != nil {
		return fmt.Errorf("failed to create gmail client: %w", err)
	}
	app.logger.Debug("Gmail client initialized successfully")

	// Connect to the database and apply pending migrations
	app.logger.Info("Connecting to database")
	app.database, err = postgres.NewDB(app.ctx, app.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := app.database.RunMigrations(app.ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	app.logger.Info("Database initialized successfully")

	// Wire token issuing and outbound mail
	app.issuer = tokens.NewIssuer(app.database, app.cfg.BaseURL, app.cfg.TokenExpirationDays)
	app.notifier = mailer.New(app.gmailClient, app.issuer, app.cfg.AdminEmails, app.logger)

	return nil
}

// Command definitions

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with periodic reminder sweeps and token cleanup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(app.ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go runSweepLoop(ctx)

			server := httpserver.New(app.database, app.notifier, app.logger)
			fmt.Printf("\n✓ Serving on %s (Ctrl+C to stop)\n\n", app.cfg.ListenAddr)
			return server.Run(ctx, app.cfg.ListenAddr)
		},
	}
}

// runSweepLoop runs all sweeps on the configured interval and cleans up spent
// tokens once a day. The first sweep fires one interval after startup, not
// immediately, so a crash-looping process doesn't hammer the mailbox.
func runSweepLoop(ctx context.Context) {
	interval := time.Duration(app.cfg.SweepIntervalMinutes) * time.Minute
	sweepTicker := time.NewTicker(interval)
	defer sweepTicker.Stop()
	cleanupTicker := time.NewTicker(24 * time.Hour)
	defer cleanupTicker.Stop()

	app.logger.Info("Sweep loop started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			app.logger.Info("Sweep loop stopped")
			return
		case <-sweepTicker.C:
			runAllSweeps(ctx)
		case <-cleanupTicker.C:
			if _, err := services.CleanupExpiredTokens(ctx, app.database, app.logger, time.Now()); err != nil {
				app.logger.Error("Token cleanup failed", zap.Error(err))
			}
		}
	}
}

// runAllSweeps runs the three sweeps in dependency order: auto-reopen first so
// a just-vacated shift is not also sent a reminder in the same pass
func runAllSweeps(ctx context.Context) {
	now := time.Now()

	if _, err := services.AutoReopenUnconfirmedShifts(ctx, app.database, app.notifier, app.logger, now); err != nil {
		app.logger.Error("Auto-reopen sweep failed", zap.Error(err))
	}
	if _, err := services.SendSevenDayReminders(ctx, app.database, app.notifier, app.logger, now); err != nil {
		app.logger.Error("7-day reminder sweep failed", zap.Error(err))
	}
	if _, err := services.SendTwentyFourHourReminders(ctx, app.database, app.notifier, app.logger, now); err != nil {
		app.logger.Error("24-hour reminder sweep failed", zap.Error(err))
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep <seven-day|twenty-four-hour|auto-reopen|all>",
		Short: "Run a reminder or auto-reopen sweep once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()

			switch args[0] {
			case "seven-day":
				result, err := services.SendSevenDayReminders(app.ctx, app.database, app.notifier, app.logger, now)
				if err != nil {
					return err
				}
				printSweepResult("7-day reminder", result)

			case "twenty-four-hour":
				result, err := services.SendTwentyFourHourReminders(app.ctx, app.database, app.notifier, app.logger, now)
				if err != nil {
					return err
				}
				printSweepResult("24-hour reminder", result)

			case "auto-reopen":
				result, err := services.AutoReopenUnconfirmedShifts(app.ctx, app.database, app.notifier, app.logger, now)
				if err != nil {
					return err
				}

				fmt.Printf("\n✓ Auto-reopen sweep completed!\n\n")
				fmt.Printf("Candidates: %d\n", result.Candidates)
				fmt.Printf("Reopened:   %d\n", len(result.Reopened))
				for _, shiftID := range result.Reopened {
					fmt.Printf("  ✓ %s\n", shiftID)
				}
				printFailures(result.Failed)

			case "all":
				runAllSweeps(app.ctx)
				fmt.Printf("\n✓ All sweeps completed (see logs for details)\n\n")

			default:
				return fmt.Errorf("unknown sweep %q: must be seven-day, twenty-four-hour, auto-reopen or all", args[0])
			}

			return nil
		},
	}
}

func printSweepResult(name string, result *services.SweepResult) {
	fmt.Printf("\n✓ %s sweep completed!\n\n", name)
	fmt.Printf("Candidates: %d\n", result.Candidates)
	fmt.Printf("Sent:       %d\n", result.Sent)
	printFailures(result.Failed)
}

func printFailures(failed []services.FailedNotification) {
	if len(failed) == 0 {
		fmt.Println()
		return
	}
	fmt.Printf("\n⚠️  Failed to send %d emails:\n", len(failed))
	for _, f := range failed {
		fmt.Printf("  ✗ %s (shift %s): %s\n", f.Email, f.ShiftID, f.Error)
	}
	fmt.Println()
}

func publishMonthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publishMonth <year> <month>",
		Short: "Publish a month's assignments and email volunteers their shifts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("year must be a number: %w", err)
			}
			monthNum, err := strconv.Atoi(args[1])
			if err != nil || monthNum < 1 || monthNum > 12 {
				return fmt.Errorf("month must be a number from 1 to 12")
			}

			result, err := services.PublishMonth(app.ctx, app.database, app.notifier, app.logger, year, time.Month(monthNum), time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Month published!\n\n")
			fmt.Printf("Shifts published: %d\n", result.Shifts)
			fmt.Printf("Emails sent:      %d\n", result.Sent)
			printFailures(result.Failed)

			return nil
		},
	}
}

func cleanupTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanupTokens",
		Short: "Delete used and expired action tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := services.CleanupExpiredTokens(app.ctx, app.database, app.logger, time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Deleted %d spent tokens\n\n", deleted)
			return nil
		},
	}
}

func listVolunteersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listVolunteers",
		Short: "List all volunteers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteers, err := app.database.ListVolunteers(app.ctx)
			if err != nil {
				return fmt.Errorf("failed to list volunteers: %w", err)
			}

			app.logger.Info("Volunteers fetched successfully", zap.Int("count", len(volunteers)))

			fmt.Printf("\nFound %d volunteers:\n\n", len(volunteers))
			for _, v := range volunteers {
				status := "inactive"
				if v.IsActive {
					status = "active"
				}
				backupInfo := ""
				if v.IsBackup {
					backupInfo = " [backup pool]"
				}
				fmt.Printf("- %s (%s) - %s - %s%s\n",
					v.Name,
					v.ID,
					status,
					v.Email,
					backupInfo,
				)
			}

			return nil
		},
	}
}

func listRequestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listRequests",
		Short: "List pending shift requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			requests, err := app.database.ListShiftRequests(app.ctx, model.RequestPending)
			if err != nil {
				return fmt.Errorf("failed to list requests: %w", err)
			}

			if len(requests) == 0 {
				fmt.Println("\nNo pending requests.")
				return nil
			}

			fmt.Printf("\nFound %d pending requests:\n\n", len(requests))
			for _, r := range requests {
				shift, err := app.database.GetShift(app.ctx, r.ShiftID)
				if err != nil {
					return fmt.Errorf("failed to load shift %s: %w", r.ShiftID, err)
				}
				volunteer, err := app.database.GetVolunteer(app.ctx, r.VolunteerID)
				if err != nil {
					return fmt.Errorf("failed to load volunteer %s: %w", r.VolunteerID, err)
				}
				fmt.Printf("- %s: %s (%s) wants %s on %s\n",
					r.ID,
					volunteer.Name,
					volunteer.Email,
					r.RequestedSlot.Label(),
					shift.Date,
				)
			}
			fmt.Println()

			return nil
		},
	}
}

func resolveRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolveRequest <request_id> <approve|reject>",
		Short: "Approve or reject a pending shift request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminEmail, _ := cmd.Flags().GetString("admin")
			decision := services.Decision(args[1])
			if decision != services.DecisionApprove && decision != services.DecisionReject {
				return fmt.Errorf("decision must be approve or reject")
			}

			result, err := services.ResolveShiftRequest(app.ctx, app.database, app.notifier, app.logger, args[0], decision, adminEmail, time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Request %s %sd\n\n", result.Request.ID, decision)
			if decision == services.DecisionApprove {
				fmt.Printf("Shift:  %s on %s\n", result.Shift.ID, result.Shift.Date)
				fmt.Printf("Status: %s\n", result.Shift.Status)
			}
			if result.NotificationFailed {
				fmt.Println("⚠️  The decision email could not be sent; the volunteer has not been notified.")
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().String("admin", "", "Email of the resolving admin, recorded in the audit trail")

	return cmd
}
