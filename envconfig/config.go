// config.go - Haupt-Konfigurationsfunktionen fuer animforge
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (AF_DEBUG)
// - Pretrained: Gibt Verzeichnis der Pretrained-Defaults zurueck (AF_PRETRAINED)
// - OutputDir: Gibt Wurzelverzeichnis fuer Run-Verzeichnisse zurueck (AF_OUTPUT)
// - GridRows: Gibt Zeilenzahl fuer das Grid-Artefakt zurueck (AF_GRID_ROWS)
// - Engine: Gibt Namen des Sampling-Backends zurueck (AF_ENGINE)
//
// Utility-Getter sind ausgelagert in config_utils.go.
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via AF_DEBUG
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("AF_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Pretrained gibt das Verzeichnis der Pretrained-Defaults zurueck
// Konfigurierbar via AF_PRETRAINED
func Pretrained() string {
	if s := Var("AF_PRETRAINED"); s != "" {
		return s
	}
	return "models/StableDiffusion/stable-diffusion-v1-5"
}

// OutputDir gibt das Wurzelverzeichnis fuer Run-Verzeichnisse zurueck
// Konfigurierbar via AF_OUTPUT
func OutputDir() string {
	if s := Var("AF_OUTPUT"); s != "" {
		return s
	}
	return "samples"
}

// GridRows gibt die Zeilenzahl fuer das aggregierte Grid-Artefakt zurueck
// Konfigurierbar via AF_GRID_ROWS
var GridRows = Uint("AF_GRID_ROWS", 4)

// Engine gibt den Namen des Sampling-Backends zurueck
// Konfigurierbar via AF_ENGINE
var Engine = String("AF_ENGINE")

// Var liest eine Umgebungsvariable und entfernt Quotes und Whitespace
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
