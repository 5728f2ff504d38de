package aicarousel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aicarousel/aicarousel/internal/logging"
	"github.com/aicarousel/aicarousel/internal/metrics"
	"github.com/aicarousel/aicarousel/providers"
)

var (
	// ErrNoProviders means zero providers were active at dispatch time.
	ErrNoProviders = errors.New("no AI providers configured")
	// ErrAllFailed means every active (provider, model) attempt failed.
	ErrAllFailed = errors.New("all providers failed")
)

// firstChunkTimeout bounds the wait for the first upstream chunk so a hung
// upstream cannot stall dispatch past its fallback candidates.
const firstChunkTimeout = 30 * time.Second

// ChatResult is a successful dispatch. The stream is handed over only
// after its first non-empty chunk was observed, so the consumer always
// sees at least one chunk of text before any error or close.
type ChatResult struct {
	Stream      <-chan providers.Chunk
	ServiceName string
	Model       string
	ProviderKey string
}

// ActiveLister is the slice of the registry the dispatcher needs.
type ActiveLister interface {
	ListActive() ([]ActiveProvider, error)
}

// Dispatcher routes a message list to the next healthy upstream. It owns
// the process-wide round-robin cursor; all other dispatch state is
// request-local.
type Dispatcher struct {
	registry ActiveLister
	build    providers.BuildFunc

	// next is read at dispatch start and stored after success. Concurrent
	// dispatches may race and reuse an index; each dispatch is independent
	// so fairness degrades gracefully without affecting correctness.
	next atomic.Uint64
}

// NewDispatcher builds a dispatcher over the registry and adapter factory.
func NewDispatcher(registry ActiveLister, build providers.BuildFunc) *Dispatcher {
	return &Dispatcher{registry: registry, build: build}
}

// Dispatch selects a provider round-robin, walks its model fallback order,
// and fails over to the next provider until one produces a first chunk.
// A failing provider does not consume its round-robin slot.
func (d *Dispatcher) Dispatch(ctx context.Context, messages []providers.ChatMessage) (*ChatResult, error) {
	log := logging.FromContext(ctx)

	actives, err := d.registry.ListActive()
	if err != nil {
		return nil, fmt.Errorf("listing active providers: %w", err)
	}
	if len(actives) == 0 {
		metrics.DispatchTotal.WithLabelValues("", "", "no_providers").Inc()
		return nil, ErrNoProviders
	}

	n := uint64(len(actives))
	start := d.next.Load() % n

	var lastErr error
	for i := uint64(0); i < n; i++ {
		p := actives[(start+i)%n]
		result, err := d.tryProvider(ctx, &p, messages)
		if result != nil {
			d.next.Store((start + i + 1) % n)
			metrics.DispatchTotal.WithLabelValues(result.ProviderKey, result.Model, "success").Inc()
			return result, nil
		}
		if err != nil {
			lastErr = err
			log.Warn("provider failed, trying next",
				"provider", p.Key, "error", err.Error())
		}
	}

	metrics.DispatchTotal.WithLabelValues("", "", "all_failed").Inc()
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
	}
	return nil, ErrAllFailed
}

// tryProvider walks the provider's model order. Each model is attempted at
// most once; without fallback only the default model is tried.
func (d *Dispatcher) tryProvider(ctx context.Context, p *ActiveProvider, messages []providers.ChatMessage) (*ChatResult, error) {
	var lastErr error
	for _, model := range p.FallbackModels() {
		began := time.Now()
		adapter, err := d.build(p.Key, model)
		if err != nil {
			lastErr = err
			metrics.FallbackAttempts.WithLabelValues(p.Key, model).Inc()
			continue
		}
		stream, err := d.tryModel(ctx, adapter, messages)
		if stream != nil {
			metrics.DispatchDuration.WithLabelValues(p.Key, model).Observe(time.Since(began).Seconds())
			return &ChatResult{
				Stream:      stream,
				ServiceName: p.Name,
				Model:       model,
				ProviderKey: p.Key,
			}, nil
		}
		if err != nil {
			lastErr = err
		}
		metrics.FallbackAttempts.WithLabelValues(p.Key, model).Inc()
		if !p.EnableFallback {
			break
		}
	}
	return nil, lastErr
}

// errEmptyStream marks an upstream that closed before yielding any text.
var errEmptyStream = errors.New("upstream produced an empty stream")

// tryModel opens the upstream stream and validates its first chunk. Empty
// keep-alive chunks are skipped during validation; the stream is accepted
// on the first non-empty chunk, which is prepended to the returned channel
// so the consumer still sees it. On any failure the attempt's context is
// cancelled to release the upstream connection.
func (d *Dispatcher) tryModel(ctx context.Context, adapter providers.Adapter, messages []providers.ChatMessage) (<-chan providers.Chunk, error) {
	attemptCtx, cancel := context.WithCancel(ctx)

	upstream, err := adapter.Chat(attemptCtx, messages)
	if err != nil {
		cancel()
		return nil, err
	}

	timeout := time.NewTimer(firstChunkTimeout)
	defer timeout.Stop()

	var first providers.Chunk
	for {
		select {
		case c, ok := <-upstream:
			if !ok {
				cancel()
				return nil, errEmptyStream
			}
			if c.Err != nil {
				cancel()
				return nil, c.Err
			}
			if c.Text == "" {
				continue
			}
			first = c
		case <-timeout.C:
			cancel()
			return nil, fmt.Errorf("timed out waiting for first chunk after %s", firstChunkTimeout)
		case <-ctx.Done():
			cancel()
			return nil, ctx.Err()
		}
		break
	}

	out := make(chan providers.Chunk)
	go func() {
		defer cancel()
		defer close(out)
		select {
		case out <- first:
		case <-ctx.Done():
			return
		}
		for c := range upstream {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
