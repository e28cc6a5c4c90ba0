package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"clipforge/internal/blobstore"
	"clipforge/internal/compose"
	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/progress"
	"clipforge/internal/thumbnail"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// pipeline bundles the wired collaborators one command invocation uses.
type pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *blobstore.Store
	tracker  *progress.Tracker
	composer *compose.Composer
}

// buildPipeline assembles the composer stack from configuration. Logs
// go to stderr so stdout stays parseable command output.
func (c *commandContext) buildPipeline() (*pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewWithFile(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir, os.Stderr)
	if err != nil {
		return nil, err
	}

	toolkit := media.NewFFmpeg(
		media.WithFFmpegBinary(cfg.FFmpegBinary()),
		media.WithFFprobeBinary(cfg.FFprobeBinary()),
	)
	store := blobstore.New(cfg, logger)
	uploader, err := blobstore.NewUploaderFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	tracker := progress.NewTracker(cfg, logger)
	thumbs := thumbnail.NewGenerator(cfg, toolkit, store, uploader, logger)
	composer := compose.New(cfg, toolkit, store, uploader, tracker, thumbs, logger)

	return &pipeline{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		tracker:  tracker,
		composer: composer,
	}, nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
