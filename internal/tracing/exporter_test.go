package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewFileExporter_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")

	exporter, err := NewFileExporter(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = exporter.Shutdown(context.Background()) })

	_, err = os.Stat(path)
	require.NoError(t, err, "trace file should be created immediately")
}

func TestNewFileExporter_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "traces.jsonl")

	exporter, err := NewFileExporter(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = exporter.Shutdown(context.Background()) })

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestFileExporter_WritesValidJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")

	exporter, err := NewFileExporter(path)
	require.NoError(t, err)

	// Drive the exporter through a real provider so spans carry valid IDs.
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	tracer := provider.Tracer("test")

	_, span := tracer.Start(context.Background(), SpanProcessJob)
	span.SetAttributes(attribute.Int64(AttrJobID, 42))
	span.End()

	_, child := tracer.Start(context.Background(), SpanValidate)
	child.End()

	require.NoError(t, provider.Shutdown(context.Background()))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	var records []SpanRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec SpanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec), "each line should be valid JSON")
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, records, 2)

	require.Equal(t, SpanProcessJob, records[0].Name)
	require.NotEmpty(t, records[0].TraceID)
	require.NotEmpty(t, records[0].SpanID)
	require.Equal(t, float64(42), records[0].Attributes[AttrJobID])
	require.Equal(t, SpanValidate, records[1].Name)
}

func TestFileExporter_ExportAfterShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")

	exporter, err := NewFileExporter(path)
	require.NoError(t, err)

	require.NoError(t, exporter.Shutdown(context.Background()))
	// Second shutdown is a no-op.
	require.NoError(t, exporter.Shutdown(context.Background()))
}
