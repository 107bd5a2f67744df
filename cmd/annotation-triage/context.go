package main

import (
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/menta2k/annotation-triage/internal/config"
	"github.com/menta2k/annotation-triage/internal/logging"
)

type commandContext struct {
	configFlag *string
	logLevel   *string
	logFormat  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevel, logFormat *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		logLevel:   logLevel,
		logFormat:  logFormat,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevel != nil && *c.logLevel != "" {
			cfg.Logging.Level = *c.logLevel
		}
		if c.logFormat != nil && *c.logFormat != "" {
			cfg.Logging.Format = *c.logFormat
		}
		cfg.Normalize()
		c.config = cfg
	})
	return c.config, c.configErr
}

// newLogger builds the logger described by the logging section, writing console output to out
func (c *commandContext) newLogger(cfg *config.Config, out io.Writer) (zerolog.Logger, func() error, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Out:    out,
	})
}
