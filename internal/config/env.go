package config

import "os"

// ApplyEnv overlays secrets and the log level from the environment.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("CTXMETER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CTXMETER_JIRA_BASE_URL"); v != "" {
		cfg.Jira.BaseURL = v
	}
	if v := os.Getenv("CTXMETER_JIRA_USERNAME"); v != "" {
		cfg.Jira.Username = v
	}
	if v := os.Getenv("CTXMETER_JIRA_PASSWORD"); v != "" {
		cfg.Jira.Password = v
	}
	if v := os.Getenv("CTXMETER_REGISTRY_API_KEY"); v != "" {
		cfg.Registry.APIKey = v
	}
	return cfg
}
