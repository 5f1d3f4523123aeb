// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-journey CLI and API
// server.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-journey/internal/secrets"
	"github.com/pdiddy/research-journey/internal/session"
	"github.com/pdiddy/research-journey/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the resolved configuration: defaults, config file, environment,
	// then .secrets/.
	cfg types.Config

	logger = zap.NewNop()

	// newLogger builds the process logger from the log config.
	newLogger = func(c types.LogConfig) (*zap.Logger, error) {
		if c.Development {
			return zap.NewDevelopment()
		}
		return zap.NewProduction()
	}
)

// rootCmd is the base command for the research-journey CLI.
var rootCmd = &cobra.Command{
	Use:   "research-journey",
	Short: "Gamified research journeys: projects, phases, points and communities",
	Long: `research-journey guides a research project through four phases
(discovery, design, development, evaluation), awarding points and
achievements along the way, and connects researchers with communities
and resources.

Run "research-journey serve" for the HTTP API. The other subcommands act
directly on the local store as the user given by --user.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-journey.yaml or ~/.config/research-journey/research-journey.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of secret files")
	rootCmd.PersistentFlags().String("db", "", "sqlite database path (overrides store.path)")
	rootCmd.PersistentFlags().String("user", os.Getenv("USER"), "user id local commands act as")
}

func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-journey")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-journey"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_JOURNEY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvs(viper.GetViper(), "", reflect.TypeOf(types.Config{}))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindEnvs registers every mapstructure key of t so that Unmarshal sees
// values that only come from the environment.
func bindEnvs(v *viper.Viper, prefix string, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		name, opts, _ := strings.Cut(tag, ",")
		if opts == "squash" {
			bindEnvs(v, prefix, f.Type)
			continue
		}
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() != "time" {
			bindEnvs(v, key, f.Type)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// setup resolves the configuration and the logger before any subcommand
// runs. The logger is built first so secret loading can report through it.
func setup(cmd *cobra.Command) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}

	var err error
	logger, err = newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	secretsDir, _ := cmd.Flags().GetString("secrets-dir")
	s, err := secrets.Load(secretsDir, logger)
	if err != nil {
		return err
	}
	if len(s) > 0 {
		fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Keys())
	}
	s.Apply(&cfg)
	return nil
}

func loadConfig(cmd *cobra.Command) error {
	cfg = types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	return nil
}

// actingSession returns the session for --user.
func actingSession(cmd *cobra.Command) (session.Session, error) {
	id, _ := cmd.Flags().GetString("user")
	if strings.TrimSpace(id) == "" {
		return session.Anonymous(), fmt.Errorf("--user is required: %w", session.ErrNotAuthenticated)
	}
	return session.ForUser(session.User{ID: id, DisplayName: id}), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
