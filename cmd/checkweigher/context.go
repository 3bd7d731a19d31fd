package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"checkweigher/internal/config"
	"checkweigher/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// newLogger builds the run logger. Diagnostic mode tees every record at debug
// level into a per-run JSON file under the log directory.
func (c *commandContext) newLogger(cfg *config.Config, diagnostic bool) (*slog.Logger, string, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("init logger: %w", err)
	}
	if !diagnostic {
		return logger, "", nil
	}
	debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
	if err := os.MkdirAll(debugDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create debug log directory: %w", err)
	}
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	debugPath := filepath.Join(debugDir, fmt.Sprintf("checkweigher-%s.log", stamp))
	debugLogger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "json",
		OutputPaths:      []string{debugPath},
		ErrorOutputPaths: []string{debugPath},
		Development:      true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("init debug logger: %w", err)
	}
	return logging.TeeLogger(logger, debugLogger.Handler()), debugPath, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
