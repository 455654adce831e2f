// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - Bool: Boolean-Getter
// - String: String-Getter
// - Uint: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
package envconfig

import (
	"log/slog"
	"strconv"
)

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	return func() bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return false
	}
}

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// EnvVar beschreibt eine Environment-Variable fuer die CLI-Hilfe
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"AF_DEBUG":      {"AF_DEBUG", LogLevel(), "Show debug messages (e.g. 1)"},
		"AF_PRETRAINED": {"AF_PRETRAINED", Pretrained(), "Directory holding the pretrained submodule defaults"},
		"AF_OUTPUT":     {"AF_OUTPUT", OutputDir(), "Root directory for timestamped run directories"},
		"AF_GRID_ROWS":  {"AF_GRID_ROWS", GridRows(), "Row count of the aggregate grid artifact"},
		"AF_ENGINE":     {"AF_ENGINE", Engine(), "Name of the registered sampling backend"},
	}
}
