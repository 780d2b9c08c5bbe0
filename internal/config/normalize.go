package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeTools() {
	if strings.TrimSpace(c.Tools.YtdlpBinary) == "" {
		c.Tools.YtdlpBinary = defaultYtdlpBinary
	}
	if strings.TrimSpace(c.Tools.DemucsBinary) == "" {
		c.Tools.DemucsBinary = defaultDemucsBinary
	}
	if strings.TrimSpace(c.Tools.FFmpegBinary) == "" {
		c.Tools.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Tools.WhisperModel) == "" {
		c.Tools.WhisperModel = defaultWhisperModel
	}
	if c.Tools.FetchTimeout <= 0 {
		c.Tools.FetchTimeout = defaultFetchTimeout
	}
	if c.Tools.IsolationTimeout <= 0 {
		c.Tools.IsolationTimeout = defaultIsolationTimeout
	}
	if c.Tools.TranscribeTimeout <= 0 {
		c.Tools.TranscribeTimeout = defaultTranscribeTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.MaxConcurrentJobs <= 0 {
		c.Workflow.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if c.Workflow.ProgressPollInterval <= 0 {
		c.Workflow.ProgressPollInterval = defaultProgressPollInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
