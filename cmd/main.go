package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/victornm/coursequiz/internal/config"
	"github.com/victornm/coursequiz/internal/database"
	"github.com/victornm/coursequiz/internal/domain"
	"github.com/victornm/coursequiz/internal/question"
	"github.com/victornm/coursequiz/internal/server"
)

var (
	configFile string
	debugMode  bool
)

func main() {
	rootCommand := cobra.Command{
		Use:           "coursequiz",
		Short:         "Course module quizzes with attempt limits, timed sessions and certificates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCommand.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_PATH"), "config file path (default $CONFIG_PATH)")
	rootCommand.PersistentFlags().BoolVar(&debugMode, "debug", false, "log at debug level")

	rootCommand.AddCommand(
		newServeCommand(),
		newSeedCommand(),
	)

	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

			s, err := server.Init(c)
			if err != nil {
				return fmt.Errorf("init server: %w", err)
			}

			errc := make(chan error, 1)
			go func() { errc <- s.Start() }()

			select {
			case <-shutdown:
			case err = <-errc:
				slog.Error("server: stopped with error", "error", err)
			}

			s.Shutdown()
			return err
		},
	}
}

func newSeedCommand() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "seed MODULE_ID...",
		Short: "Store generated sample questions for modules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			db, err := database.Open(ctx, database.Config{
				Driver:       c.Database.Driver,
				DSN:          c.Database.DSN,
				PingAttempts: c.Database.PingAttempts,
			})
			if err != nil {
				return err
			}
			defer db.Close()

			qc := question.Config{DB: db, Prefix: c.Redis.Quiz.Prefix}
			// Without Redis the cache simply expires on its own.
			if r, err := server.ConnectRedis(c.Redis.Quiz, 1); err != nil {
				slog.WarnContext(ctx, "seed: redis unavailable, question cache is not invalidated", "error", err)
			} else {
				defer r.Close()
				qc.Redis = r
			}

			qs := question.NewService(qc)
			for _, m := range args {
				resp, err := qs.Seed(ctx, question.SeedRequest{ModuleID: m, Count: count})
				if err != nil {
					return fmt.Errorf("seed module %s: %w", m, err)
				}

				status := color.GreenString("ready")
				if resp.Stored < domain.MinStoredQuestions {
					status = color.YellowString("below minimum, synthetic questions will be served")
				}
				fmt.Printf("%s: inserted %d, stored %d (%s)\n", color.CyanString(resp.ModuleID), resp.Inserted, resp.Stored, status)
			}

			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 50, "number of questions to insert per module")

	return cmd
}

func loadConfig() (server.Config, error) {
	c := server.DefaultConfig()

	if configFile == "" {
		return c, fmt.Errorf("config file not set, use --config or CONFIG_PATH")
	}

	if err := config.Load(configFile, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	setupLogger(c.Log.Level)
	return c, nil
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if debugMode {
		lvl = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
