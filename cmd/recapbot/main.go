// recapbot writes and publishes a daily NBA recap.
//
// Usage:
//
//	recapbot run --date 2024-01-15   # fetch, write and publish one day
//	recapbot serve                   # operator studio
//	recapbot schedule --at 09:00     # daily run for the previous game day
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/config"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/scheduler"
	"github.com/RobinCoderZhao/hoopsrecap/internal/studio"
	appconfig "github.com/RobinCoderZhao/hoopsrecap/pkg/config"
)

var version = "dev"

var (
	cfgPath string
	envFile string
	dateArg string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "recapbot",
		Short:         "Daily NBA recap writer",
		Long:          "recapbot fetches the results of an NBA game day, finds coverage for every game, writes a recap article with an LLM and uploads it to the blog over SFTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(verbose)
			return appconfig.LoadDotEnv(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(publishCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(hashPasswordCmd())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func addDateFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dateArg, "date", "", "game date YYYY-MM-DD (default: yesterday, US Eastern)")
}

func collectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch games and news for a date and save them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			date, err := a.gameDate(dateArg)
			if err != nil {
				return err
			}

			items, err := a.pipeline.Collect(cmd.Context(), date)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Printf("No games on %s.\n", date.Format("2006-01-02"))
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "GAME\tSCORE\tWINNER\tARTICLES")
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", it.Game.ID, it.Game.Score(), it.Game.Winner, len(it.News))
			}
			return w.Flush()
		},
	}
	addDateFlag(cmd)
	return cmd
}

func generateCmd() *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the recap from the saved collection and print it",
		Long:  "Writes the recap for a date from the games and news saved by `collect` (collecting first when nothing is saved) and prints the markdown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			date, err := a.gameDate(dateArg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if fresh {
				items, err := a.pipeline.Collect(ctx, date)
				if err != nil {
					return err
				}
				article, err := a.pipeline.Generate(ctx, date, items)
				if err != nil {
					return err
				}
				fmt.Print(article.Markdown())
				return nil
			}
			article, err := a.pipeline.GenerateStored(ctx, date)
			if err != nil {
				return err
			}
			fmt.Print(article.Markdown())
			return nil
		},
	}
	addDateFlag(cmd)
	cmd.Flags().BoolVar(&fresh, "fresh", false, "collect again instead of reading the saved collection")
	return cmd
}

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the saved recap for a date without regenerating it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			date, err := a.gameDate(dateArg)
			if err != nil {
				return err
			}

			receipt, err := a.pipeline.Republish(cmd.Context(), date)
			if err != nil {
				return err
			}
			fmt.Printf("Published %s\n", receipt.URL)
			for _, f := range receipt.Files {
				fmt.Printf("  %s\n", f)
			}
			return nil
		},
	}
	addDateFlag(cmd)
	return cmd
}

func runCmd() *cobra.Command {
	var noPublish, outputJSON bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, write and publish the recap for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			date, err := a.gameDate(dateArg)
			if err != nil {
				return err
			}

			res, err := a.pipeline.Run(cmd.Context(), date, !noPublish)
			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(res); encErr != nil {
					return encErr
				}
				return err
			}
			if err != nil {
				if res != nil && len(res.Games) > 0 {
					fmt.Fprintf(os.Stderr, "%d game(s) were fetched before the failure:\n", len(res.Games))
					for _, g := range res.Games {
						fmt.Fprintf(os.Stderr, "  %s\n", g.Score())
					}
				}
				return err
			}
			fmt.Print(res.Article.Markdown())
			if res.Receipt != nil {
				fmt.Printf("\nPublished %s\n", res.Receipt.URL)
			}
			return nil
		},
	}
	addDateFlag(cmd)
	cmd.Flags().BoolVar(&noPublish, "no-publish", false, "write the recap but do not upload it")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "print the run result as JSON")
	return cmd
}

func scheduleCmd() *cobra.Command {
	var at string
	var runNow bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the recap every day for the previous game day",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if at == "" {
				at = a.cfg.Schedule.At
			}
			spec, err := scheduler.DailySpec(at)
			if err != nil {
				return err
			}
			s, err := scheduler.New(a.cfg.Schedule.Timezone)
			if err != nil {
				return err
			}
			publish := a.cfg.Schedule.Publish
			err = s.Add(scheduler.Job{
				Name: "daily-recap",
				Spec: spec,
				Fn: func(ctx context.Context, now time.Time) error {
					_, err := a.pipeline.Run(ctx, scheduler.GameDay(now, s.Location()), publish)
					return err
				},
			})
			if err != nil {
				return err
			}

			if runNow {
				if err := s.RunOnce(cmd.Context()); err != nil {
					slog.Error("initial run failed", "error", err)
				}
			}
			slog.Info("waiting for schedule", "at", at, "timezone", a.cfg.Schedule.Timezone, "publish", publish)
			return s.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "daily run time HH:MM (default from config)")
	cmd.Flags().BoolVar(&runNow, "now", false, "also run once immediately")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the operator studio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Studio.Addr
			}
			server := studio.NewServer(studio.Config{
				Username:     a.cfg.Studio.Username,
				PasswordHash: a.cfg.Studio.PasswordHash,
				JWTSecret:    a.cfg.Studio.JWTSecret,
				SessionTTL:   a.cfg.Studio.SessionTTL,
				Location:     a.loc,
			}, a.pipeline, a.store)
			if !server.AuthEnabled() {
				slog.Warn("STUDIO_PASSWORD_HASH not set; the studio is open to anyone who can reach it")
			} else if a.cfg.Studio.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is required when STUDIO_PASSWORD_HASH is set")
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           server.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				slog.Info("starting studio", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}
			slog.Info("shutting down studio")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List generated recaps and where they were published",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.store.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No recaps yet.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tGAMES\tTOKENS\tCOST\tPUBLISHED\tTITLE")
			for _, e := range entries {
				published := "-"
				if e.PublishedAt != nil {
					published = e.PublishedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t$%.4f\t%s\t%s\n", e.Date, e.Games, e.TokensUsed, e.Cost, published, e.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 30, "number of recaps to show")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for STUDIO_PASSWORD_HASH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(os.Stderr, "Password: ")
			pw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			hash, err := studio.HashPassword(string(pw))
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("recapbot %s\n", version)
		},
	}
}
