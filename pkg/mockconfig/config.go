// Package mockconfig holds the startup configuration for the mock
// server: listen address, optional default proxy URL, and optional
// OpenAPI spec to ingest at boot. Values come from CLI flags with
// environment-variable fallback; flags take precedence.
package mockconfig

import (
	"fmt"
	"os"
)

// Defaults for the server listen address.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8090
)

// Environment variables consulted when the matching flag is not set.
const (
	// EnvOpenAPIFile names an OpenAPI spec file ingested at startup.
	EnvOpenAPIFile = "OPENAPI_FILE"

	// EnvDefaultProxyURL sets the initial default proxy URL.
	EnvDefaultProxyURL = "DEFAULT_PROXY_URL"
)

// ServerConfig is the resolved startup configuration.
type ServerConfig struct {
	// Host is the listen address.
	Host string

	// Port is the listen port.
	Port int

	// DefaultProxyURL is the initial default upstream, empty if unset.
	DefaultProxyURL string

	// OpenAPIFile is the path of a spec to import at startup, empty if unset.
	OpenAPIFile string
}

// Default returns a ServerConfig with the default listen address and no
// proxy or spec file.
func Default() *ServerConfig {
	return &ServerConfig{
		Host: DefaultHost,
		Port: DefaultPort,
	}
}

// ApplyEnv fills unset fields from the environment. Fields already set
// (by CLI flags) win over environment values.
func (c *ServerConfig) ApplyEnv() {
	c.applyEnv(os.Getenv)
}

// applyEnv is the testable core of ApplyEnv.
func (c *ServerConfig) applyEnv(getenv func(string) string) {
	if c.DefaultProxyURL == "" {
		c.DefaultProxyURL = getenv(EnvDefaultProxyURL)
	}
	if c.OpenAPIFile == "" {
		c.OpenAPIFile = getenv(EnvOpenAPIFile)
	}
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
