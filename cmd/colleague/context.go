package main

import (
	"sync"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

type commandContext struct {
	dev bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

// log builds a development logger outside production
func (c *commandContext) log() *zap.Logger {
	c.loggerOnce.Do(func() {
		var err error
		if cfg, _ := c.ensureConfig(); c.dev || (cfg != nil && cfg.IsDevelopment()) {
			c.logger, err = zap.NewDevelopment()
		} else {
			c.logger, err = zap.NewProduction()
		}
		if err != nil {
			c.logger = zap.NewNop()
		}
	})
	return c.logger
}

func (c *commandContext) sync() {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// withApp builds the full object graph, runs fn and tears it down
func (c *commandContext) withApp(fn func(*app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, c.log())
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
