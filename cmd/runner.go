package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/reconcile"
	"github.com/desertthunder/relsort/internal/services"
	"github.com/desertthunder/relsort/internal/shared"
	"github.com/desertthunder/relsort/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Catalog is the playlist source the commands read and rewrite.
type Catalog interface {
	tasks.CatalogSource
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)
}

// History records sort runs and lists them back.
type History interface {
	tasks.RunRecorder
	List(criteria map[string]any) ([]*models.SortRun, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	catalog     Catalog
	auth        services.OAuthService
	credentials reconcile.CredentialProvider
	history     History
	logger      *log.Logger
	output      io.Writer
	engine      *tasks.SortEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Catalog     Catalog
	Auth        services.OAuthService
	Credentials reconcile.CredentialProvider
	History     History
	Logger      *log.Logger
	Output      io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		catalog:     opts.Catalog,
		auth:        opts.Auth,
		credentials: opts.Credentials,
		history:     opts.History,
		logger:      opts.Logger,
		output:      opts.Output,
	}
	r.engine = r.newEngine(r.config.Sort.BatchSize)
	return r
}

// SetLogger replaces the logger used by the runner and its sort engine.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.engine = r.newEngine(r.config.Sort.BatchSize)
}

func (r *Runner) newEngine(batchSize int) *tasks.SortEngine {
	opts := []tasks.Option{tasks.WithLogger(r.logger)}
	if batchSize > 0 {
		opts = append(opts, tasks.WithBatchSize(batchSize))
	}
	if r.history != nil {
		opts = append(opts, tasks.WithRunRecorder(r.history))
	}

	var catalog tasks.CatalogSource
	if r.catalog != nil {
		catalog = r.catalog
	}
	return tasks.NewSortEngine(catalog, r.credentials, opts...)
}

// engineFor returns the shared engine, or a dedicated one when batchSize overrides the configured size.
func (r *Runner) engineFor(batchSize int) *tasks.SortEngine {
	if batchSize <= 0 || batchSize == r.config.Sort.BatchSize {
		return r.engine
	}
	return r.newEngine(batchSize)
}

// direction resolves the sort direction from the --desc flag, falling back to the configured default.
func (r *Runner) direction(desc bool) (models.Direction, error) {
	if desc {
		return models.Descending, nil
	}
	return models.ParseDirection(r.config.Sort.Direction)
}

// logProgress logs updates until progress is closed, then closes the returned channel.
func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()
	return done
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, sortCommand, statsCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
