package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates,
// and unmarshals it into a Config. A missing file is not an error: it
// yields the zero Config, which resolves entirely to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := expandEnvTemplates(string(data))

	var cfg Config
	if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// proxyVars are the variables ScrubProxyEnv unsets from the process
// environment. The supervisor's pipeline step and the gated executor's
// per-call scrubbing for network.none agents each use their own list.
var proxyVars = []string{
	"http_proxy", "https_proxy", "HTTP_PROXY", "HTTPS_PROXY",
	"all_proxy", "ALL_PROXY",
}

// ScrubProxyEnv unsets proxy-related variables on the current process
// environment and sets no_proxy=*. The supervisor does not call it: its
// task pipeline unsets proxy variables itself at step 2, and per-call
// scrubbing for network.none agents happens in the gated executor.
func ScrubProxyEnv() {
	for _, v := range proxyVars {
		os.Unsetenv(v)
	}
	os.Setenv("no_proxy", "*")
}
