package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/desertthunder/relsort/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes a starter config when none exists, then creates the history database and applies
// pending migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmp.Or(cmd.String("config"), r.configPath, "config.toml")

	config := r.config
	switch _, err := os.Stat(configPath); {
	case errors.Is(err, fs.ErrNotExist):
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Created %s from template; add your Spotify client_id and client_secret\n", configPath)
		config = shared.DefaultConfig()
	case err != nil:
		return fmt.Errorf("failed to read config: %w", err)
	case configPath != r.configPath:
		if config, err = shared.LoadConfig(configPath); err != nil {
			return err
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	return r.writePlain("✓ Database ready at %s\n", config.Database.Path)
}
