// Integration tests for the JoinService gRPC server
package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nainya/parajoin/internal/editor"
	"github.com/nainya/parajoin/internal/logger"
	"github.com/nainya/parajoin/internal/metrics"
	"github.com/nainya/parajoin/pkg/document"
	"github.com/nainya/parajoin/pkg/repo"
)

const bufSize = 1024 * 1024

type testServer struct {
	client   *JoinServiceClient
	repo     *repo.Repo
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

// book has a flowing paragraph split across pages 1 and 2 with a figure between,
// plus two paragraphs sharing joined text for alignment.
func testBook() *document.Document {
	doc := &document.Document{}
	p1 := doc.AddPage("1")
	doc.AddParagraph(p1, document.Paragraph{Key: "1_1", PageNumber: 1, Order: 1, BlockTag: "p", SrcText: "The quick", SrcJoined: "The quick"})
	doc.AddParagraph(p1, document.Paragraph{Key: "1_2", PageNumber: 1, Order: 2, BlockTag: "figure", SrcText: "Fig. 1", SrcJoined: "Fig. 1"})
	p2 := doc.AddPage("2")
	doc.AddParagraph(p2, document.Paragraph{Key: "2_1", PageNumber: 2, Order: 1, BlockTag: "p", SrcText: " brown fox", SrcJoined: " brown fox"})
	doc.AddParagraph(p2, document.Paragraph{Key: "2_2", PageNumber: 2, Order: 2, BlockTag: "p", SrcText: "Chapter", SrcJoined: "Chapter", TransStatus: document.StatusDraft, TransText: "Kapitel"})
	doc.AddParagraph(p2, document.Paragraph{Key: "2_3", PageNumber: 2, Order: 3, BlockTag: "p", SrcText: "Chapter", SrcJoined: "Chapter", TransStatus: document.StatusAuto, TransText: "Kap."})
	return doc
}

func setupTestServer(t *testing.T) (*testServer, func()) {
	r, err := repo.New(repo.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create repo: %v", err)
	}
	if err := r.Save("book", testBook()); err != nil {
		t.Fatalf("Failed to save book: %v", err)
	}

	log := logger.NewLogger(logger.Config{Level: "error", Output: io.Discard})
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	ed, err := editor.New(editor.Config{Repo: r, Logger: log, Metrics: m})
	if err != nil {
		t.Fatalf("Failed to create editor: %v", err)
	}

	// Create a new listener for this test
	lis := bufconn.Listen(bufSize)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(GrpcMetricsInterceptor(m, log)))
	RegisterJoinServiceServer(grpcServer, NewServer(ed))

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			// Server closed is expected during cleanup
		}
	}()

	// Create client with custom dialer
	bufDialer := func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}

	ctx := context.Background()
	conn, err := grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(bufDialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial bufnet: %v", err)
	}

	ts := &testServer{
		client:   NewJoinServiceClient(conn),
		repo:     r,
		metrics:  m,
		registry: registry,
	}

	cleanup := func() {
		conn.Close()
		grpcServer.Stop()
		lis.Close()
	}

	return ts, cleanup
}

func TestApplyToggleAcrossPages(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	ctx := context.Background()
	resp, err := ts.client.ApplyToggle(ctx, "book", "2", "2_1", true)
	if err != nil {
		t.Fatalf("ApplyToggle failed: %v", err)
	}

	fields := resp.GetFields()
	if fields["rejected"].GetBoolValue() || fields["no_op"].GetBoolValue() {
		t.Errorf("unexpected toggle outcome: %v", resp)
	}
	if got := fields["changed"].GetNumberValue(); got != 2 {
		t.Errorf("changed = %v, want 2", got)
	}
	bases := fields["bases"].GetListValue().GetValues()
	if len(bases) != 1 || bases[0].GetStringValue() != "1/1_1" {
		t.Errorf("bases = %v, want [1/1_1]", bases)
	}

	base, err := ts.client.GetParagraph(ctx, "book", "1", "1_1")
	if err != nil {
		t.Fatalf("GetParagraph failed: %v", err)
	}
	if got := base.GetFields()["src_joined"].GetStringValue(); got != "The quick brown fox" {
		t.Errorf("src_joined = %q, want %q", got, "The quick brown fox")
	}

	figure, err := ts.client.GetParagraph(ctx, "book", "1", "1_2")
	if err != nil {
		t.Fatalf("GetParagraph failed: %v", err)
	}
	if got := figure.GetFields()["src_joined"].GetStringValue(); got != "Fig. 1" {
		t.Errorf("figure joined text changed: %q", got)
	}

	cont, err := ts.client.GetParagraph(ctx, "book", "2", "2_1")
	if err != nil {
		t.Fatalf("GetParagraph failed: %v", err)
	}
	if cont.GetFields()["join"].GetNumberValue() != 1 || cont.GetFields()["src_joined"].GetStringValue() != "" {
		t.Errorf("unexpected continuation: %v", cont)
	}
}

func TestRebuildAllIsIdempotent(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	ctx := context.Background()
	resp, err := ts.client.RebuildAll(ctx, "book")
	if err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}
	if got := resp.GetFields()["paragraphs"].GetNumberValue(); got != 5 {
		t.Errorf("paragraphs = %v, want 5", got)
	}
	if got := resp.GetFields()["changed"].GetNumberValue(); got != 0 {
		t.Errorf("changed = %v, want 0 on a consistent book", got)
	}
}

func TestAlignStatus(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	ctx := context.Background()
	resp, err := ts.client.AlignStatus(ctx, "book")
	if err != nil {
		t.Fatalf("AlignStatus failed: %v", err)
	}
	if got := resp.GetFields()["aligned"].GetNumberValue(); got != 1 {
		t.Errorf("aligned = %v, want 1", got)
	}

	p, err := ts.client.GetParagraph(ctx, "book", "2", "2_3")
	if err != nil {
		t.Fatalf("GetParagraph failed: %v", err)
	}
	if p.GetFields()["trans_status"].GetStringValue() != "draft" || p.GetFields()["trans_text"].GetStringValue() != "Kapitel" {
		t.Errorf("translation not aligned: %v", p)
	}

	stats, err := ts.client.Stats(ctx, "book")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	counts := stats.GetFields()["trans_status_counts"].GetStructValue().GetFields()
	if counts["draft"].GetNumberValue() != 2 || counts["none"].GetNumberValue() != 3 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestErrorCodes(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	ctx := context.Background()
	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{"missing doc", func() error { _, err := ts.client.RebuildAll(ctx, ""); return err }, codes.InvalidArgument},
		{"unknown doc", func() error { _, err := ts.client.RebuildAll(ctx, "nope"); return err }, codes.NotFound},
		{"path escape", func() error { _, err := ts.client.Stats(ctx, "../etc/passwd"); return err }, codes.InvalidArgument},
		{"unknown paragraph", func() error { _, err := ts.client.ApplyToggle(ctx, "book", "9", "9_9", true); return err }, codes.NotFound},
		{"missing para", func() error { _, err := ts.client.GetParagraph(ctx, "book", "1", ""); return err }, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if status.Code(err) != tt.code {
				t.Errorf("code = %v, want %v (err: %v)", status.Code(err), tt.code, err)
			}
		})
	}
}

func TestInterceptorRecordsMetrics(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := ts.client.Stats(ctx, "book"); err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	ts.client.Stats(ctx, "nope")

	method := "/" + ServiceName + "/Stats"
	if got := testutil.ToFloat64(ts.metrics.GrpcRequestsTotal.WithLabelValues(method, "OK")); got != 1 {
		t.Errorf("OK requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ts.metrics.GrpcRequestsTotal.WithLabelValues(method, "NotFound")); got != 1 {
		t.Errorf("NotFound requests = %v, want 1", got)
	}
}

func TestInterceptorLogsMethod(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: "debug", Output: &buf})
	m := metrics.NewMetrics(prometheus.NewRegistry())

	interceptor := GrpcMetricsInterceptor(m, log)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/GetParagraph"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "missing")
	}
	if _, err := interceptor(context.Background(), nil, info, handler); status.Code(err) != codes.NotFound {
		t.Fatalf("interceptor changed the handler error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"msg":"gRPC request received"`) || !strings.Contains(out, `"component":"grpc"`) {
		t.Errorf("request not logged with gRPC context: %s", out)
	}
	if !strings.Contains(out, `"method":"/`+ServiceName+`/GetParagraph"`) {
		t.Errorf("method missing from log: %s", out)
	}
	if got := testutil.ToFloat64(m.GrpcRequestsInFlight); got != 0 {
		t.Errorf("in-flight = %v after the call, want 0", got)
	}
}

func TestObservabilityEndpoints(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	if _, err := ts.client.RebuildAll(context.Background(), "book"); err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}

	log := logger.NewLogger(logger.Config{Level: "error", Output: io.Discard})
	obs := NewObservabilityServer(0, ts.registry, nil, log)
	srv := httptest.NewServer(obs.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "parajoin_edits_total") {
		t.Error("/metrics does not expose parajoin_edits_total")
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}
}

func TestReadyReportsFailure(t *testing.T) {
	log := logger.NewLogger(logger.Config{Level: "error", Output: io.Discard})
	obs := NewObservabilityServer(0, prometheus.NewRegistry(), func() error { return io.ErrClosedPipe }, log)

	rec := httptest.NewRecorder()
	obs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready status = %d, want 503", rec.Code)
	}
}
