// Package logutil configures the op/go-logging backend shared by all
// gwresolver packages.
package logutil

import (
	"os"
	"strings"

	"github.com/op/go-logging"
)

// EnvLevel overrides the configured level when set.
const EnvLevel = "GWRESOLVER_LOG_LEVEL"

var format = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{module} %{level:.6s} ▶ %{message}`,
)

// Library use and tests log at WARNING until Setup is called.
func init() {
	Setup("")
}

// Logger returns the named module logger.
func Logger(module string) *logging.Logger {
	return logging.MustGetLogger(module)
}

// Setup installs a leveled stderr backend. level is one of the go-logging
// level names; unknown or empty names fall back to WARNING.
func Setup(level string) logging.Level {
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), format)
	leveled := logging.AddModuleLevel(backend)

	if env := os.Getenv(EnvLevel); env != "" {
		level = env
	}
	lvl, err := logging.LogLevel(strings.ToUpper(level))
	if err != nil || level == "" {
		lvl = logging.WARNING
	}
	leveled.SetLevel(lvl, "")

	logging.SetBackend(leveled)
	return lvl
}
