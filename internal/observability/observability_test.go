package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"

	arcerrors "github.com/gezibash/arc-contract/pkg/errors"
)

// --- Shutdown Coordinator ---

func TestShutdownCoordinatorLIFO(t *testing.T) {
	var order []int
	sc := &ShutdownCoordinator{}
	for i := 1; i <= 3; i++ {
		sc.Register(fmt.Sprintf("h%d", i), func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	if err := sc.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Fatalf("expected LIFO [3,2,1], got %v", order)
	}

	// Handlers are consumed.
	if err := sc.Shutdown(context.Background()); err != nil || len(order) != 3 {
		t.Fatalf("second shutdown ran handlers again: %v %v", order, err)
	}
}

func TestShutdownCoordinatorError(t *testing.T) {
	ran := 0
	boom := errors.New("fail")
	sc := &ShutdownCoordinator{}
	sc.Register("first", func(context.Context) error { ran++; return nil })
	sc.Register("bad", func(context.Context) error { ran++; return boom })
	sc.Register("third", func(context.Context) error { ran++; return nil })

	err := sc.Shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error wrapping boom, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Fatalf("error should name the component: %v", err)
	}
	if ran != 3 {
		t.Fatalf("expected all handlers to run, got %d", ran)
	}
}

// --- Metrics ---

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	m.OperationTotal.WithLabelValues("contract.create", "ok").Inc()
	m.RecordDecision("permit")
	m.RecordConflict("contract.sign")

	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues("contract.create", "ok")); got != 1 {
		t.Fatalf("operation total = %f", got)
	}
	if got := testutil.ToFloat64(m.Decisions.WithLabelValues("permit")); got != 1 {
		t.Fatalf("decisions = %f", got)
	}
	if got := testutil.ToFloat64(m.StoreConflicts.WithLabelValues("contract.sign")); got != 1 {
		t.Fatalf("conflicts = %f", got)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"arc_contract_operation_total", "arc_contract_policy_decisions_total", "go_goroutines"} {
		if !names[want] {
			t.Errorf("missing metric family %s", want)
		}
	}
}

func TestNilMetricsHelpers(t *testing.T) {
	var m *Metrics
	m.RecordDecision("permit")
	m.RecordConflict("x")
}

// --- Logging ---

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("info", "json", &buf)
	logger.Info("hello", "key", "val")

	var entry map[string]any
	if err := json.NewDecoder(&buf).Decode(&entry); err != nil {
		t.Fatalf("output not valid JSON: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "hello" || entry["key"] != "val" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestSetupLoggerTextHasNoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	SetupLogger("info", "text", &buf)
	slog.Info("testmsg", "contract", "c-1")

	out := buf.String()
	if !strings.Contains(out, "INF testmsg contract=c-1") {
		t.Fatalf("unexpected output: %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Fatalf("buffer output should not carry ANSI codes: %q", out)
	}
}

func TestSetupLoggerLevels(t *testing.T) {
	tests := []struct {
		level      string
		logAt      slog.Level
		shouldShow bool
	}{
		{"debug", slog.LevelDebug, true},
		{"info", slog.LevelDebug, false},
		{"info", slog.LevelInfo, true},
		{"WARNING", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelWarn, false},
		{"error", slog.LevelError, true},
		{"bogus", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.level, tt.logAt), func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(tt.level, "json", &buf)
			logger.Log(context.Background(), tt.logAt, "test")
			if got := buf.Len() > 0; got != tt.shouldShow {
				t.Fatalf("visible = %v, want %v", got, tt.shouldShow)
			}
		})
	}
}

func TestPrettyHandlerAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(h).With("svc", "arc").WithGroup("req")
	logger.Info("hello world", "path", "/contracts", "note", "two words")

	out := buf.String()
	for _, want := range []string{"hello world", "req.svc=arc", "req.path=/contracts", `req.note="two words"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestPrettyHandlerEnabled(t *testing.T) {
	h := NewPrettyHandler(io.Discard, nil)
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled by default")
	}
	h = NewPrettyHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn})
	if h.Enabled(context.Background(), slog.LevelInfo) || !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("warn threshold not honoured")
	}
}

func TestPrettyHandlerColorLevel(t *testing.T) {
	h := NewPrettyHandler(io.Discard, nil)
	h.color = true
	for lvl, tag := range map[slog.Level]string{
		slog.LevelDebug: "DBG",
		slog.LevelInfo:  "INF",
		slog.LevelWarn:  "WRN",
		slog.LevelError: "ERR",
	} {
		got := h.level(lvl)
		if !strings.Contains(got, tag) || !strings.Contains(got, "\033[") {
			t.Errorf("level(%v) = %q", lvl, got)
		}
	}
}

func TestTraceHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	h := &TraceHandler{Handler: slog.NewJSONHandler(&buf, nil)}

	traceID, _ := trace.TraceIDFromHex("00000000000000000000000000000001")
	spanID, _ := trace.SpanIDFromHex("0000000000000001")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	slog.New(h).With("a", 1).InfoContext(ctx, "traced")
	out := buf.String()
	if !strings.Contains(out, `"trace_id":"00000000000000000000000000000001"`) || !strings.Contains(out, "span_id") {
		t.Fatalf("missing trace ids: %s", out)
	}
}

// --- Operation ---

func TestStartOperationEnd(t *testing.T) {
	m := NewMetrics()
	op, ctx := StartOperation(context.Background(), m, "contract.get", ContractID("c-1"))
	if ctx == nil {
		t.Fatal("nil context")
	}
	op.End(nil)

	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues("contract.get", "ok")); got != 1 {
		t.Fatalf("ok count = %f", got)
	}
}

func TestStartOperationEndErrorKinds(t *testing.T) {
	m := NewMetrics()

	op, _ := StartOperation(context.Background(), m, "contract.sign")
	op.End(fmt.Errorf("load: %w", arcerrors.ErrNotFound))

	op, _ = StartOperation(context.Background(), m, "contract.sign")
	op.End(errors.New("disk on fire"))

	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues("contract.sign", "error")); got != 2 {
		t.Fatalf("error count = %f", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("contract.sign", "not_found")); got != 1 {
		t.Fatalf("not_found = %f", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("contract.sign", "internal")); got != 1 {
		t.Fatalf("internal = %f", got)
	}
}

func TestStartOperationNilMetrics(t *testing.T) {
	op, _ := StartOperation(context.Background(), nil, "noop", attribute.String("k", "v"))
	op.End(errors.New("ignored"))
}

// --- Observability ---

func TestNewObservabilityNoOTLP(t *testing.T) {
	obs, err := New(context.Background(), ObsConfig{LogLevel: "info", LogFormat: "json", ServiceName: "test"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Logger == nil || obs.Metrics == nil {
		t.Fatal("logger or metrics is nil")
	}
	switch obs.TracerProvider.(type) {
	case *tracenoop.TracerProvider, tracenoop.TracerProvider:
	default:
		t.Fatalf("expected noop tracer provider, got %T", obs.TracerProvider)
	}
	if err := obs.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestNewObservabilityWithOTLP(t *testing.T) {
	for _, proto := range []string{"http", "grpc"} {
		t.Run(proto, func(t *testing.T) {
			obs, err := New(context.Background(), ObsConfig{
				LogLevel:     "error",
				LogFormat:    "json",
				OTLPEndpoint: "localhost:4318",
				OTLPProtocol: proto,
				OTLPInsecure: true,
				SampleRatio:  0.5,
				ServiceName:  "test",
			}, io.Discard)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if obs.sdkTP == nil {
				t.Fatal("expected sdk tracer provider")
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = obs.Close(ctx)
		})
	}
}

func TestServeMetricsEndpoints(t *testing.T) {
	obs, err := New(context.Background(), ObsConfig{LogLevel: "error", LogFormat: "json"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	obs.ServeMetrics(context.Background(), addr)
	t.Cleanup(func() { _ = obs.Close(context.Background()) })

	var resp *http.Response
	for range 50 {
		resp, err = http.Get("http://" + addr + "/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Fatalf("health = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
}

// --- gRPC interceptor ---

func TestUnaryServerInterceptor(t *testing.T) {
	m := NewMetrics()
	interceptor := UnaryServerInterceptor(m)

	md := metadata.New(map[string]string{
		"traceparent": "00-00000000000000000000000000000001-0000000000000001-01",
	})
	ctx := metadata.NewIncomingContext(context.Background(), md)

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	resp, err := interceptor(ctx, "req", info, func(context.Context, any) (any, error) { return "ok", nil })
	if err != nil || resp != "ok" {
		t.Fatalf("resp = %v, err = %v", resp, err)
	}
	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues(info.FullMethod, "OK")); got != 1 {
		t.Fatalf("OK count = %f", got)
	}

	_, err = interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, grpcstatus.Error(grpccodes.NotFound, "unknown service")
	})
	if grpcstatus.Code(err) != grpccodes.NotFound {
		t.Fatalf("err = %v", err)
	}
	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues(info.FullMethod, "NotFound")); got != 1 {
		t.Fatalf("NotFound count = %f", got)
	}
}

func TestMetadataCarrier(t *testing.T) {
	c := metadataCarrier(metadata.New(map[string]string{"traceparent": "x"}))
	if c.Get("traceparent") != "x" || c.Get("missing") != "" {
		t.Fatal("Get mismatch")
	}
	c.Set("baggage", "k=v")
	if len(c.Keys()) != 2 {
		t.Fatalf("keys = %v", c.Keys())
	}
}
