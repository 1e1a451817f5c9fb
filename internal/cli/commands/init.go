package commands

import (
	"fmt"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/omegaorm/omega/internal/cli/config"
	"github.com/omegaorm/omega/internal/cli/ui"
)

var (
	initDriver string
	initDSN    string
	initCache  string
	initYes    bool
	initForce  bool
)

var drivers = []string{"sqlite", "sqlite3", "postgres", "pq", "mysql"}

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an omega.yml configuration",
		Long: `Write omega.yml into the project directory.

Without --yes the driver, connection string and cache backend are asked
for interactively. Flags preset the answers.`,
		Example: `  # Interactive setup
  omega init

  # Non-interactive PostgreSQL setup
  omega init --yes --driver postgres --dsn postgresql://localhost/shop

  # Overwrite an existing configuration
  omega init --yes --force`,
		RunE: runInit,
	}

	cmd.Flags().StringVar(&initDriver, "driver", "", "Database driver ("+fmt.Sprint(drivers)+")")
	cmd.Flags().StringVar(&initDSN, "dsn", "", "Database connection string")
	cmd.Flags().StringVar(&initCache, "cache", "", "Object cache backend (memory or redis)")
	cmd.Flags().BoolVarP(&initYes, "yes", "y", false, "Accept defaults without prompting")
	cmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing omega.yml")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if config.Exists(configDir) && !initForce {
		ui.Failure(out, "omega.yml already exists", "Use --force to overwrite it")
		return fmt.Errorf("configuration already exists in %s", configDir)
	}

	cfg := config.Default()
	if initDriver != "" {
		cfg.Database.Driver = initDriver
	}
	if initDSN != "" {
		cfg.Database.DSN = initDSN
	}
	if initCache != "" {
		cfg.Cache.Backend = initCache
	}

	if !initYes {
		if err := askConfig(cfg); err != nil {
			return err
		}
	}

	path := filepath.Join(configDir, config.FileName)
	if err := config.Save(cfg, path); err != nil {
		return err
	}

	// Reload so an invalid answer is reported now rather than on first use
	if _, err := config.LoadFrom(configDir); err != nil {
		ui.Warning(out, "omega.yml was written but does not validate: %v", err)
		return err
	}

	ui.Success(out, "Wrote %s", path)
	kv := ui.NewKeyValueTable(out, noColor)
	kv.AddRow("driver", cfg.Database.Driver)
	kv.AddRow("dsn", cfg.Database.DSN)
	kv.AddRow("cache", cfg.Cache.Backend)
	kv.Render()
	return nil
}

func askConfig(cfg *config.Config) error {
	questions := []*survey.Question{
		{
			Name: "driver",
			Prompt: &survey.Select{
				Message: "Database driver:",
				Options: drivers,
				Default: cfg.Database.Driver,
			},
		},
		{
			Name:     "dsn",
			Prompt:   &survey.Input{Message: "Connection string:", Default: cfg.Database.DSN},
			Validate: survey.Required,
		},
		{
			Name: "cache",
			Prompt: &survey.Select{
				Message: "Object cache backend:",
				Options: []string{"memory", "redis"},
				Default: cfg.Cache.Backend,
			},
		},
	}

	answers := struct {
		Driver string `survey:"driver"`
		DSN    string `survey:"dsn"`
		Cache  string `survey:"cache"`
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	cfg.Database.Driver = answers.Driver
	cfg.Database.DSN = answers.DSN
	cfg.Cache.Backend = answers.Cache

	if cfg.Cache.Backend == "redis" {
		prompt := &survey.Input{Message: "Redis address:", Default: cfg.Cache.Redis.Addr}
		if err := survey.AskOne(prompt, &cfg.Cache.Redis.Addr, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}
	return nil
}
