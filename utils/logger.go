package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
)

func init() {
	// Los paquetes del núcleo loguean aunque nadie haya llamado a InicializarLogger (tests)
	InicializarLoggerEn(io.Discard, "error", "")
}

// InicializarLogger configura los loggers globales sobre stdout
func InicializarLogger(logLevel string, moduleName string) {
	InicializarLoggerEn(os.Stdout, logLevel, moduleName)
}

// InicializarLoggerEn configura los loggers globales sobre un destino arbitrario
func InicializarLoggerEn(destino io.Writer, logLevel string, moduleName string) {
	handler := slog.NewTextHandler(destino, &slog.HandlerOptions{
		Level: NivelLog(logLevel),
	})

	logger := slog.New(handler)
	if moduleName != "" {
		logger = logger.With("modulo", moduleName)
	}

	InfoLog = logger
	ErrorLog = logger
}

// NivelLog traduce el LOG_LEVEL de la configuración
func NivelLog(logLevel string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
