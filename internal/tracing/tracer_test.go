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
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.False(t, cfg.Enabled)
	require.Equal(t, ExporterFile, cfg.Exporter)
	require.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	require.Equal(t, 1.0, cfg.SampleRate)
	require.Equal(t, "claudecode", cfg.ServiceName)
}

func TestNewProvider_DisabledIsNoop(t *testing.T) {
	p, err := NewProvider(Config{})
	require.NoError(t, err)
	require.False(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), SpanChat)
	require.False(t, span.IsRecording())
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_FileExporterWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "traces.jsonl")

	p, err := NewProvider(Config{Enabled: true, Exporter: ExporterFile, FilePath: path})
	require.NoError(t, err)
	require.True(t, p.Enabled())

	ctx, parent := p.Tracer().Start(context.Background(), SpanChat)
	_, child := p.Tracer().Start(ctx, SpanAttempt)
	child.SetAttributes(attribute.Int(AttrAttempt, 1), attribute.Int(AttrExitCode, 0))
	child.AddEvent(EventFirstToken)
	child.End()
	parent.SetStatus(codes.Error, "boom")
	parent.End()

	require.NoError(t, p.Shutdown(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	byName := map[string]SpanRecord{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec SpanRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		byName[rec.Name] = rec
	}

	require.Len(t, byName, 2)
	attempt := byName[SpanAttempt]
	require.Equal(t, byName[SpanChat].SpanID, attempt.ParentID)
	require.EqualValues(t, 1, attempt.Attributes[AttrAttempt])
	require.Len(t, attempt.Events, 1)
	require.Equal(t, "ERROR", byName[SpanChat].Status)
	require.Equal(t, "boom", byName[SpanChat].StatusMsg)
}

func TestNewProvider_Errors(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: ExporterFile})
	require.Error(t, err)

	_, err = NewProvider(Config{Enabled: true, Exporter: "zipkin"})
	require.Error(t, err)
}

func TestNewProvider_NoneExporterStillRecords(t *testing.T) {
	p, err := NewProvider(Config{Enabled: true, Exporter: ExporterNone})
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	_, span := p.Tracer().Start(context.Background(), SpanStream)
	require.True(t, span.IsRecording())
	span.End()
}

func TestFileExporter_ShutdownIdempotent(t *testing.T) {
	exp, err := NewFileExporter(filepath.Join(t.TempDir(), "t.jsonl"))
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(context.Background()))
	require.NoError(t, exp.Shutdown(context.Background()))
	require.Error(t, exp.ExportSpans(context.Background(), nil))
}
