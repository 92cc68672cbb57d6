package main

import (
	"strings"

	"github.com/spf13/cobra"

	"scribed/internal/config"
	"scribed/internal/queue"
)

// commandContext lazily loads configuration for CLI commands and hands
// out queue stores bound to it. Commands run sequentially, so no
// locking is needed around the cached config.
type commandContext struct {
	configFlag *string

	loaded    bool
	config    *config.Config
	configErr error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.loaded {
		return c.config, c.configErr
	}
	c.loaded = true

	var path string
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, _, _, err := config.Load(path)
	if err == nil {
		err = cfg.EnsureDirectories()
	}
	if err != nil {
		c.configErr = err
		return nil, err
	}
	c.config = cfg
	return cfg, nil
}

func (c *commandContext) withStore(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// shouldSkipConfig reports whether cmd or any ancestor opted out of
// config loading via the skipConfigLoad annotation.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
