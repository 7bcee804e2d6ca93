package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"kbgate/internal/engine"
	"kbgate/internal/tui"
	"kbgate/internal/version"
)

var (
	cfgFile  string
	tenantID int64
	userID   string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kbgate",
	Short: "kbgate - multi-tenant knowledge base gateway",
	Long: `kbgate indexes each tenant's documents and websites into a vector
store and answers questions about them over HTTP, WebSocket, Telegram,
or an interactive terminal chat.`,
	Version: version.Full(),
}

// serverCmd starts the gateway server.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the kbgate server",
	Long: `Start the HTTP gateway, the configured message channels, and the
re-indexing scheduler. This is the main server mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// indexCmd runs ingestion for one tenant and exits.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a tenant's documents and websites",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cfgFile)
		if err != nil {
			return err
		}
		defer app.Close()

		tenant, ok := app.cfg.Tenant(tenantID)
		if !ok {
			return fmt.Errorf("tenant %d is not configured", tenantID)
		}

		summary, err := app.ingestor.Ingest(cmd.Context(), engine.IngestRequest{
			TenantID:  tenant.ID,
			UploadDir: tenant.UploadDir,
			URLs:      tenant.URLs,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Indexed tenant %d: %d chunks from %d files and %d pages\n",
			tenant.ID, summary.ChunksAdded, summary.FilesLoaded, summary.PagesCrawled)
		for _, f := range summary.Failures {
			fmt.Printf("  failed: %s: %v\n", f.Input, f.Err)
		}
		return nil
	},
}

// askCmd answers a single question and exits.
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the knowledge base a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cfgFile)
		if err != nil {
			return err
		}
		defer app.Close()

		question := strings.Join(args, " ")
		answer, err := app.engine.Answer(cmd.Context(), tenantID, userID, question)
		if err != nil {
			return err
		}

		fmt.Println(answer.Text)
		if len(answer.Sources) > 0 {
			fmt.Println("sources:", strings.Join(answer.Sources, ", "))
		}
		return nil
	},
}

// chatCmd opens the interactive terminal chat.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the knowledge base in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cfgFile)
		if err != nil {
			return err
		}
		defer app.Close()

		return tui.Run(app.engine, tenantID, userID)
	},
}

// versionCmd prints build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kbgate %s\n", version.Full())
		if version.BuildDate != "unknown" {
			fmt.Printf("Build date: %s\n", version.BuildDate)
		}
		fmt.Printf("Go version: %s\n", version.GoVersion)
	},
}

// tenantsCmd lists the configured tenants and their indexed sizes.
var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "List configured tenants",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cfgFile)
		if err != nil {
			return err
		}
		defer app.Close()

		type row struct {
			ID     int64  `json:"id"`
			Name   string `json:"name,omitempty"`
			Chunks int    `json:"chunks"`
		}
		var rows []row
		for _, t := range app.cfg.Tenants {
			rows = append(rows, row{ID: t.ID, Name: t.Name, Chunks: app.store.Count(t.ID)})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	},
}

func init() {
	cobra.OnInitialize(func() {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.json", "config file path")
	rootCmd.PersistentFlags().Int64Var(&tenantID, "tenant", 1, "tenant id")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "cli", "user id for conversation memory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(tenantsCmd)
	rootCmd.AddCommand(versionCmd)

	// If no command is specified, default to server
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}
}

func runServer() error {
	app, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.gateway.Start()
	}()

	select {
	case sig := <-sigCh:
		log.Printf("[Main] received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	return app.Stop(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
