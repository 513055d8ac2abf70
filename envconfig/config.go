// config.go - Environment-Konfiguration fuer flowmatch
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (FLOWMATCH_DEBUG)
// - NumThreads: Worker-Goroutinen fuer Batch-Kernels (FLOWMATCH_NUM_THREADS)
// - Backend: Name des Tensor-Backends (FLOWMATCH_BACKEND)
// - AsMap/Values: Export aller Konfigurationen fuer CLI-Dokumentation
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via FLOWMATCH_DEBUG (bool oder numerisches slog-Level)
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("FLOWMATCH_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Debug meldet, ob Debug-Ausgaben aktiv sind
func Debug() bool {
	return LogLevel() <= slog.LevelDebug
}

// NumThreads gibt die Anzahl der Worker-Goroutinen fuer Batch-Kernels zurueck
// Konfigurierbar via FLOWMATCH_NUM_THREADS, Default: Anzahl der CPUs
func NumThreads() int {
	if s := Var("FLOWMATCH_NUM_THREADS"); s != "" {
		if n, err := strconv.Atoi(s); err != nil || n <= 0 {
			slog.Warn("invalid environment variable, using default", "key", "FLOWMATCH_NUM_THREADS", "value", s)
		} else {
			return n
		}
	}
	return runtime.NumCPU()
}

// Backend gibt den Namen des Tensor-Backends zurueck
// Konfigurierbar via FLOWMATCH_BACKEND, Default: "cpu"
func Backend() string {
	if s := Var("FLOWMATCH_BACKEND"); s != "" {
		return s
	}
	return "cpu"
}

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"FLOWMATCH_DEBUG":       {"FLOWMATCH_DEBUG", LogLevel(), "Show additional debug information (e.g. FLOWMATCH_DEBUG=1)"},
		"FLOWMATCH_NUM_THREADS": {"FLOWMATCH_NUM_THREADS", NumThreads(), "Number of worker goroutines for batched tensor kernels"},
		"FLOWMATCH_BACKEND":     {"FLOWMATCH_BACKEND", Backend(), "Tensor backend to use (default \"cpu\")"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
