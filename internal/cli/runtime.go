package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/SudharsunRavi/etracker-drive/internal/app"
	"github.com/SudharsunRavi/etracker-drive/internal/auth"
	"github.com/SudharsunRavi/etracker-drive/internal/config"
	"github.com/SudharsunRavi/etracker-drive/internal/drive"
	"github.com/SudharsunRavi/etracker-drive/internal/log"
	"github.com/SudharsunRavi/etracker-drive/internal/storage"
)

var (
	loadConfigFn = config.Load
	openStoreFn  = storage.Open
	tokenSource  = auth.TokenSource(auth.FromEnv(""))
)

type GlobalOptions struct {
	ConfigPath string
	StorePath  string
	JSON       bool
}

type commandDeps struct {
	out     io.Writer
	globals *GlobalOptions
	build   BuildInfo
}

// withService loads config, opens the store, and hands a ready Service to
// fn. The store is always closed before returning and errors are mapped to
// exit codes.
func withService(cmdCtx context.Context, deps commandDeps, fn func(context.Context, *app.Service, config.Config) error) error {
	cfg, err := loadDepsConfig(deps)
	if err != nil {
		return mapCommandError(fmt.Errorf("load config: %w", err))
	}

	logger, logCloser, err := log.New(log.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	if err != nil {
		return mapCommandError(fmt.Errorf("configure logging: %w", err))
	}
	defer func() { _ = logCloser.Close() }()

	store, err := openStoreFn(cfg.Store.Path)
	if err != nil {
		return mapCommandError(fmt.Errorf("open store: %w", err))
	}

	service, err := app.New(store, logger)
	if err != nil {
		_ = store.Close()
		return mapCommandError(err)
	}
	defer func() { _ = service.Close() }()

	return mapCommandError(fn(cmdCtx, service, cfg))
}

func loadDepsConfig(deps commandDeps) (config.Config, error) {
	loadOpts := config.LoadOptions{}
	if deps.globals != nil {
		if configPath := strings.TrimSpace(deps.globals.ConfigPath); configPath != "" {
			loadOpts.ConfigPath = configPath
		}
		if storePath := strings.TrimSpace(deps.globals.StorePath); storePath != "" {
			loadOpts.Flags.StorePath = &storePath
		}
	}
	return loadConfigFn(loadOpts)
}

func newDriveClient(cfg config.Config) *drive.Client {
	return drive.NewClient(cfg.Drive.BaseURL, cfg.Drive.UploadURL, nil)
}

func requestToken(ctx context.Context) (string, error) {
	return tokenSource.Token(ctx)
}

func outputValue(w io.Writer, asJSON bool, value any) error {
	if asJSON {
		return printJSON(w, value)
	}
	_, err := fmt.Fprintln(w, value)
	return err
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
