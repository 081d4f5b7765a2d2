package main

import (
	"fmt"
	"os"

	"shieldline/internal/app"
	"shieldline/internal/config"
	"shieldline/internal/db"
	"shieldline/internal/geoip"
	"shieldline/internal/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var cfgFile string
var verbose bool
var logFile string

var rootCmd = &cobra.Command{
	Use:           "shieldline",
	Short:         "Manage proxy profiles and run a sing-box tunnel",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(verbose, logFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (overwrites file)")
}

// session bundles what one command invocation opens.
type session struct {
	cfg      *config.Config
	svc      *app.Service
	database *gorm.DB
}

func (s *session) Close() {
	db.Close(s.database)
	geoip.Close()
}

// openSession loads the config, opens the session journal and builds the
// service. Any failure is fatal for the command.
func openSession() *session {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.Log.Fatalf("Error loading config: %v", err)
	}

	database, err := db.Connect(cfg.DatabasePath())
	if err != nil {
		logger.Log.Fatalf("Error connecting to DB: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		logger.Log.Fatalf("Error migrating DB: %v", err)
	}

	if cfg.GeoIP.CountryPath != "" || cfg.GeoIP.ASNPath != "" {
		if err := geoip.Init(cfg.GeoIP.CountryPath, cfg.GeoIP.ASNPath); err != nil {
			logger.Log.Warnf("GeoIP disabled: %v", err)
		}
	}

	svc, err := app.New(cfg, app.Options{Journal: db.NewJournal(database)})
	if err != nil {
		db.Close(database)
		logger.Log.Fatalf("Error initializing: %v", err)
	}
	return &session{cfg: cfg, svc: svc, database: database}
}
