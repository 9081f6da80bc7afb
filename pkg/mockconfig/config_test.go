package mockconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8090, cfg.Port)
	assert.Empty(t, cfg.DefaultProxyURL)
	assert.Empty(t, cfg.OpenAPIFile)
}

func TestAddr(t *testing.T) {
	cfg := &ServerConfig{Host: "127.0.0.1", Port: 3000}
	assert.Equal(t, "127.0.0.1:3000", cfg.Addr())
}

func TestApplyEnvFillsUnsetFields(t *testing.T) {
	env := map[string]string{
		EnvDefaultProxyURL: "http://upstream",
		EnvOpenAPIFile:     "/tmp/spec.yaml",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://upstream", cfg.DefaultProxyURL)
	assert.Equal(t, "/tmp/spec.yaml", cfg.OpenAPIFile)
}

func TestFlagsWinOverEnv(t *testing.T) {
	env := map[string]string{
		EnvDefaultProxyURL: "http://from-env",
		EnvOpenAPIFile:     "/env/spec.yaml",
	}
	cfg := Default()
	cfg.DefaultProxyURL = "http://from-flag"
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://from-flag", cfg.DefaultProxyURL)
	assert.Equal(t, "/env/spec.yaml", cfg.OpenAPIFile)
}

func TestApplyEnvEmptyEnvironment(t *testing.T) {
	cfg := Default()
	cfg.applyEnv(func(string) string { return "" })
	assert.Empty(t, cfg.DefaultProxyURL)
	assert.Empty(t, cfg.OpenAPIFile)
}
