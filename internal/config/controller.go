package config

import (
	"strconv"
	"strings"
)

// ControllerConfig holds configuration for the controller API and CLI.
type ControllerConfig struct {
	CDPAddress       string
	CDPPort          int
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool
	TabURLFilter     string
	EvalTimeoutMS    int
	RenderTimeoutMS  int
	RenderInBrowser  bool
	LogLevel         string
	LogFile          string
	JournalDir       string
	JournalMaxSizeMB int
	HostProfilesFile string

	BrowserLaunch     bool
	BrowserProfileDir string
	BrowserStartURL   string
	BrowserHeadless   bool
}

// LoadController reads controller configuration from the environment and
// an optional .env file.
func LoadController() (*ControllerConfig, error) {
	loadDotEnv()

	cfg := &ControllerConfig{
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		BindAddr:         getEnvOrDefault("CONTROLLER_BIND_ADDR", "127.0.0.1:8189"),
		PortCandidates:   getEnvListOrDefault("CONTROLLER_PORT_CANDIDATES", []string{"127.0.0.1:8190", "127.0.0.1:8191", "127.0.0.1:8192"}),
		PortAutoFallback: getEnvBoolOrDefault("CONTROLLER_PORT_AUTO_FALLBACK", true),
		TabURLFilter:     getEnvOrDefault("CONTROLLER_TAB_URL_FILTER", "github.com"),
		EvalTimeoutMS:    getEnvIntOrDefault("CONTROLLER_EVAL_TIMEOUT_MS", 5000),
		RenderTimeoutMS:  getEnvIntOrDefault("RENDER_TIMEOUT_MS", 30000),
		RenderInBrowser:  getEnvBoolOrDefault("RENDER_IN_BROWSER", false),
		LogLevel:         strings.ToLower(getEnvOrDefault("CONTROLLER_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("CONTROLLER_LOG_FILE", "logs/codehost_controller.log"),
		JournalDir:       getEnvOrDefault("JOURNAL_DIR", "./journal"),
		JournalMaxSizeMB: getEnvIntOrDefault("JOURNAL_MAX_SIZE_MB", 50),
		HostProfilesFile: getEnvOrDefault("HOST_PROFILES_FILE", ""),

		BrowserLaunch:     getEnvBoolOrDefault("BROWSER_LAUNCH", false),
		BrowserProfileDir: getEnvOrDefault("BROWSER_PROFILE_DIR", "./browser_profile"),
		BrowserStartURL:   getEnvOrDefault("BROWSER_START_URL", "https://github.com"),
		BrowserHeadless:   getEnvBoolOrDefault("BROWSER_HEADLESS", false),
	}
	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if cfg.RenderTimeoutMS < 1000 {
		cfg.RenderTimeoutMS = 1000
	}
	if cfg.JournalMaxSizeMB < 1 {
		cfg.JournalMaxSizeMB = 1
	}
	return cfg, nil
}

// ControllerCDPURL returns the DevTools HTTP endpoint.
func (c *ControllerConfig) ControllerCDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}
