package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mpataki/crudflow/internal/datastore"
	"github.com/mpataki/crudflow/internal/httpapi"
	"github.com/mpataki/crudflow/internal/orchestrator"
	"github.com/mpataki/crudflow/internal/tui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "crudflow",
		Short:         "Natural-language questions and changes over a SQL database",
		Long:          "crudflow turns plain-language requests into SQL, asks for approval before changing data, and answers in plain language.",
		RunE:          runTUI,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default from CRUDFLOW_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (default from CRUDFLOW_LOG_FORMAT)")

	rootCmd.AddCommand(newAskCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newDecisionCommand("approve", true))
	rootCmd.AddCommand(newDecisionCommand("decline", false))
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newSeedCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logFile, err := tuiLogFile(cfg)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	rt, err := openRuntime(cmd.Context(), cfg, logFile, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	app := tui.NewApp(cmd.Context(), rt.orch)
	p := tea.NewProgram(app, tea.WithAltScreen())

	_, err = p.Run()
	return err
}

func newAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <request>",
		Short: "Run one request",
		Long: "Run one request. Changes to data stop for approval unless --approve or --decline is given;\n" +
			"resubmitting with a decision runs the whole request again.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			approve, _ := cmd.Flags().GetBool("approve")
			decline, _ := cmd.Flags().GetBool("decline")
			asJSON, _ := cmd.Flags().GetBool("json")

			req := orchestrator.Request{Input: strings.Join(args, " ")}
			switch {
			case approve:
				req.HumanVerified = boolPtr(true)
			case decline:
				req.HumanVerified = boolPtr(false)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg, os.Stderr, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.orch.Ask(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			return printResponse(resp, asJSON)
		},
	}

	cmd.Flags().Bool("approve", false, "Approve the change this request makes")
	cmd.Flags().Bool("decline", false, "Decline the change this request makes")
	cmd.Flags().Bool("json", false, "Print the response as JSON")
	cmd.MarkFlagsMutuallyExclusive("approve", "decline")
	return cmd
}

func newDecisionCommand(name string, approve bool) *cobra.Command {
	verb := "Approve"
	if !approve {
		verb = "Decline"
	}

	cmd := &cobra.Command{
		Use:   name + " <run-id>",
		Short: verb + " a run waiting for approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}
			asJSON, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg, os.Stderr, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.orch.Decide(cmd.Context(), runID, approve)
			if err != nil {
				return fmt.Errorf("failed to %s run: %w", name, err)
			}
			return printResponse(resp, asJSON)
		},
	}

	cmd.Flags().Bool("json", false, "Print the response as JSON")
	return cmd
}

func printResponse(resp *orchestrator.Response, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Printf("Run #%d [%s] intent=%s\n", resp.RunID, resp.Status, orDash(resp.Intent))
	if resp.ValidatedQuery != "" {
		fmt.Printf("Query: %s\n", resp.ValidatedQuery)
	}
	if resp.Status == orchestrator.StatusPending {
		fmt.Printf("\nThis change needs approval. Run:\n  crudflow approve %d\n  crudflow decline %d\n", resp.RunID, resp.RunID)
		return nil
	}
	if resp.Results != "" {
		fmt.Printf("Results: %s\n", resp.Results)
	}
	if resp.FinalAnswer != "" {
		fmt.Printf("\n%s\n", resp.FinalAnswer)
	}
	return nil
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.HTTPAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx, cfg, os.Stderr, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			server := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           httpapi.NewRouter(rt.orch, rt.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("http server listening", "addr", cfg.HTTPAddr, "generator", cfg.Generator)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			rt.logger.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from CRUDFLOW_HTTP_ADDR)")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show a run and its audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg, os.Stderr, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			run, err := rt.orch.GetRun(cmd.Context(), runID)
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			fmt.Printf("Run #%d (%s)\n", run.ID, run.UUID)
			fmt.Printf("Status: %s\n", run.Status)
			fmt.Printf("Input: %s\n", run.Input)
			fmt.Printf("Intent: %s\n", orDash(run.Intent))
			fmt.Printf("Decision: %s\n", run.Decision)
			if run.ValidatedQuery != "" {
				fmt.Printf("Query: %s\n", run.ValidatedQuery)
			}
			if run.Results != "" {
				fmt.Printf("Results: %s\n", run.Results)
			}
			if run.Answer != "" {
				fmt.Printf("Answer: %s\n", run.Answer)
			}
			if run.Error != "" {
				fmt.Printf("Error: %s\n", run.Error)
			}

			steps, err := rt.orch.GetStepsForRun(cmd.Context(), runID)
			if err != nil {
				return err
			}

			if len(steps) > 0 {
				fmt.Println("\nAudit log:")
				for _, step := range steps {
					fmt.Printf("  %d. %s: %s\n", step.Seq, step.Label, truncate(step.Detail, 80))
				}
			}

			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg, os.Stderr, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			runs, err := rt.orch.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			for _, run := range runs {
				fmt.Printf("#%d %-7s [%s] %s\n",
					run.ID, orDash(run.Intent), run.Status,
					truncate(run.Input, 50))
			}

			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg, os.Stderr, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.orch.DeleteRun(cmd.Context(), runID); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}

			fmt.Printf("Deleted run #%d\n", runID)
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo tables and rows in the data store",
		RunE: func(cmd *cobra.Command, args []string) error {
			reset, _ := cmd.Flags().GetBool("reset")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			store, err := datastore.Open(cfg.StorePath)
			if err != nil {
				return fmt.Errorf("failed to open data store: %w", err)
			}
			defer store.Close()

			if err := store.Seed(cmd.Context(), reset); err != nil {
				return fmt.Errorf("failed to seed data store: %w", err)
			}

			schema, err := store.Schema(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %s\n\n%s\n", cfg.StorePath, schema)
			return nil
		},
	}

	cmd.Flags().Bool("reset", false, "Drop the demo tables first")
	return cmd
}

func boolPtr(v bool) *bool { return &v }

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
