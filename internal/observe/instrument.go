package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yashv6655/journalai/pkg/provider/embeddings"
	"github.com/yashv6655/journalai/pkg/provider/llm"
)

// InstrumentLLM wraps p so every completion records request count, errors,
// and latency under the given provider name. Streaming and metadata calls
// pass through untouched.
func InstrumentLLM(p llm.Provider, m *Metrics, name string) llm.Provider {
	return &instrumentedLLM{next: p, metrics: m, name: name}
}

type instrumentedLLM struct {
	next    llm.Provider
	metrics *Metrics
	name    string
}

func (p *instrumentedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := p.next.Complete(ctx, req)
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", p.name)),
	)
	if err != nil {
		p.metrics.RecordProviderRequest(ctx, p.name, "llm", "error")
		p.metrics.RecordProviderError(ctx, p.name, "llm")
		return nil, err
	}
	p.metrics.RecordProviderRequest(ctx, p.name, "llm", "ok")
	return resp, nil
}

func (p *instrumentedLLM) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return p.next.StreamCompletion(ctx, req)
}

func (p *instrumentedLLM) CountTokens(messages []llm.Message) (int, error) {
	return p.next.CountTokens(messages)
}

func (p *instrumentedLLM) Capabilities() llm.ModelCapabilities {
	return p.next.Capabilities()
}

// InstrumentEmbeddings wraps p so every embedding call records request
// count, errors, and latency under the given provider name.
func InstrumentEmbeddings(p embeddings.Provider, m *Metrics, name string) embeddings.Provider {
	return &instrumentedEmbeddings{next: p, metrics: m, name: name}
}

type instrumentedEmbeddings struct {
	next    embeddings.Provider
	metrics *Metrics
	name    string
}

func (p *instrumentedEmbeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := p.next.Embed(ctx, text)
	p.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", p.name)),
	)
	if err != nil {
		p.metrics.RecordProviderRequest(ctx, p.name, "embeddings", "error")
		p.metrics.RecordProviderError(ctx, p.name, "embeddings")
		return nil, err
	}
	p.metrics.RecordProviderRequest(ctx, p.name, "embeddings", "ok")
	return vec, nil
}

func (p *instrumentedEmbeddings) Dimensions() int { return p.next.Dimensions() }

func (p *instrumentedEmbeddings) ModelID() string { return p.next.ModelID() }
