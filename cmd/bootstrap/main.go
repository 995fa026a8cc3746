// Package main 账本初始化与巡检工具
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"llm-ledger-api/internal/config"
	"llm-ledger-api/internal/domain/entity"
	"llm-ledger-api/internal/domain/repository"
	"llm-ledger-api/internal/infrastructure/persistence/postgres"
	"llm-ledger-api/internal/wire"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Prepare and inspect the invocation ledger database",
	// 不带子命令时执行迁移
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context())
	},
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the invocation_records table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context())
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print ledger record counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default $CONFIG_DIR or ./configs)")
	rootCmd.AddCommand(migrateCmd, statsCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configDir != "" {
		return config.LoadFrom(configDir)
	}
	return config.Load()
}

// openDatabase 打开账本数据库，memory 驱动返回 nil
func openDatabase(ctx context.Context) (*postgres.Client, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.Driver == config.DriverMemory {
		return nil, func() {}, nil
	}
	client, cleanup, err := wire.InitializeDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return client, cleanup, nil
}

func runMigrate(ctx context.Context) error {
	fmt.Println("Starting ledger bootstrap...")

	client, cleanup, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	if client == nil {
		fmt.Println("Ledger driver is memory, nothing to migrate.")
		return nil
	}

	fmt.Printf("Migrating schema on %s...\n", client.Driver())
	if err := client.AutoMigrate(ctx); err != nil {
		return err
	}

	total, err := postgres.NewLedgerRepository(client).Count(ctx, repository.LedgerFilter{})
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}
	fmt.Printf("Ledger ready with %d records.\n", total)
	fmt.Println("Bootstrap completed successfully.")
	return nil
}

func runStats(ctx context.Context) error {
	client, cleanup, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	if client == nil {
		fmt.Println("Ledger driver is memory, no persisted records.")
		return nil
	}

	repo := postgres.NewLedgerRepository(client)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "STATUS\tRECORDS")
	for _, status := range []string{entity.InvocationStatusOK, entity.InvocationStatusError, ""} {
		n, err := repo.Count(ctx, repository.LedgerFilter{Status: status})
		if err != nil {
			return fmt.Errorf("failed to count %q records: %w", status, err)
		}
		label := status
		if label == "" {
			label = "total"
		}
		fmt.Fprintf(w, "%s\t%d\n", label, n)
	}
	return nil
}
