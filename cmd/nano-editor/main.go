package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/config"
	"github.com/aliskhannn/nano-editor/internal/repository/migrations"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nano-editor",
	Short: "AI photo editor backend",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the export workers",
	Run: func(cmd *cobra.Command, args []string) {
		serve(configPath)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		zlog.Init()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Database.Master.Host == "" {
			return errors.New("database.master.host is not configured")
		}

		db, err := openDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Master.Close()

		if err := migrations.Up(db.Master); err != nil {
			return err
		}

		zlog.Logger.Info().Msg("database is up to date")
		return nil
	},
}

// openDB connects to the master and slave databases.
func openDB(cfg *config.Database) (*dbpg.DB, error) {
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Slaves))
	for _, s := range cfg.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	return dbpg.New(cfg.Master.DSN(), slaveDSNs, opts)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config/config.yml", "path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
