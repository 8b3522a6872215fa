package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/yashv6655/journalai/pkg/provider/embeddings"
	"github.com/yashv6655/journalai/pkg/provider/llm"
)

type stubLLM struct {
	err error
}

func (s *stubLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: "ok"}, nil
}

func (s *stubLLM) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk)
	close(ch)
	return ch, nil
}

func (s *stubLLM) CountTokens(messages []llm.Message) (int, error) { return 0, nil }

func (s *stubLLM) Capabilities() llm.ModelCapabilities { return llm.ModelCapabilities{} }

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}

func (s *stubEmbedder) Dimensions() int { return 2 }

func (s *stubEmbedder) ModelID() string { return "stub" }

// sumValue totals all data points of an int64 sum metric.
func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		return 0
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s is not an int64 sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestInstrumentLLM_RecordsRequestsErrorsAndLatency(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	stub := &stubLLM{}
	p := InstrumentLLM(stub, m, "openai")

	if _, err := p.Complete(ctx, llm.CompletionRequest{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	stub.err = errors.New("rate limited")
	if _, err := p.Complete(ctx, llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error from failing provider")
	}

	rm := collect(t, reader)
	if got := sumValue(t, rm, "journalai.provider.requests"); got != 2 {
		t.Errorf("provider requests = %d, want 2", got)
	}
	if got := sumValue(t, rm, "journalai.provider.errors"); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
	met := findMetric(rm, "journalai.llm.duration")
	if met == nil {
		t.Fatal("llm duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("llm duration is not a histogram")
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("llm duration observations = %d, want 2", count)
	}
}

func TestInstrumentEmbeddings_RecordsLatencyAndErrors(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	var p embeddings.Provider = InstrumentEmbeddings(&stubEmbedder{err: errors.New("down")}, m, "ollama")
	if _, err := p.Embed(ctx, "hello"); err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if got := p.Dimensions(); got != 2 {
		t.Errorf("Dimensions = %d, want passthrough 2", got)
	}

	rm := collect(t, reader)
	if got := sumValue(t, rm, "journalai.provider.errors"); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
	met := findMetric(rm, "journalai.embedding.duration")
	if met == nil {
		t.Fatal("embedding duration metric not found")
	}
}
