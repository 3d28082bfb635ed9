package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const (
	ServiceName    = "agentconsole"
	ServiceVersion = "1.0.0"
)

func rotatingFile(dir, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    10, // 10 MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// InitLogger initializes structured logging with rotation.
// Logs go only to the file so console output stays readable.
func InitLogger(logDir string, debug bool) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	logFile := rotatingFile(logDir, "agentconsole.log")

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, logFile, nil
}

// MetricInterval is how often metrics are exported.
const MetricInterval = 10 * time.Second

// Telemetry owns the trace and metric providers and the files they export to.
type Telemetry struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	closers []func(context.Context) error
}

// Shutdown flushes pending spans and metrics and closes the export files.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, c := range t.closers {
		errs = append(errs, c(ctx))
	}
	t.closers = nil
	return errors.Join(errs...)
}

// InitTelemetry installs OpenTelemetry tracing and metrics as the global
// providers. Spans are written to <logDir>/agentconsole_traces.log and metrics
// to <logDir>/agentconsole_metrics.log every interval.
func InitTelemetry(ctx context.Context, logDir string, interval time.Duration) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	if interval <= 0 {
		interval = MetricInterval
	}

	spans := rotatingFile(logDir, "agentconsole_traces.log")
	spanExporter, err := stdouttrace.New(stdouttrace.WithWriter(spans))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)

	metrics := rotatingFile(logDir, "agentconsole_metrics.log")
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metrics))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	// Providers flush into the files, so they shut down first.
	return &Telemetry{
		Tracer: tp.Tracer(ServiceName),
		Meter:  mp.Meter(ServiceName),
		closers: []func(context.Context) error{
			tp.Shutdown,
			mp.Shutdown,
			func(context.Context) error { return spans.Close() },
			func(context.Context) error { return metrics.Close() },
		},
	}, nil
}

// NoopTelemetry returns the global tracer and meter without installing any
// provider. Until a provider is set these are no-ops.
func NoopTelemetry() (trace.Tracer, metric.Meter) {
	return otel.Tracer(ServiceName), otel.Meter(ServiceName)
}

// InitDB opens the SQLite state database at path and creates its schema.
func InitDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createStateTable := `
	CREATE TABLE IF NOT EXISTS client_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME
	);`

	if _, err := db.Exec(createStateTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create client_state table: %w", err)
	}

	// The token lives here; keep the file private to the user.
	if err := os.Chmod(path, 0600); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to restrict state file permissions", "path", path, "error", err)
	}

	return db, nil
}
