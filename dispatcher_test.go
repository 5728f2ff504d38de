package aicarousel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aicarousel/aicarousel/providers"
)

type staticRegistry struct {
	actives []ActiveProvider
}

func (r *staticRegistry) ListActive() ([]ActiveProvider, error) {
	return r.actives, nil
}

// scriptAdapter plays back a fixed chunk script.
type scriptAdapter struct {
	chunks []providers.Chunk
}

func (a *scriptAdapter) Chat(ctx context.Context, _ []providers.ChatMessage) (<-chan providers.Chunk, error) {
	ch := make(chan providers.Chunk)
	go func() {
		defer close(ch)
		for _, c := range a.chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// scriptBuild routes (provider, model) pairs to canned behaviors and
// records the attempt order.
type scriptBuild struct {
	behaviors map[string]func() (providers.Adapter, error)
	attempts  []string
}

func (b *scriptBuild) fn(key, model string) (providers.Adapter, error) {
	pair := key + "/" + model
	b.attempts = append(b.attempts, pair)
	if f, ok := b.behaviors[pair]; ok {
		return f()
	}
	return nil, fmt.Errorf("no behavior for %s", pair)
}

func healthy(texts ...string) func() (providers.Adapter, error) {
	chunks := make([]providers.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = providers.Chunk{Text: t}
	}
	return func() (providers.Adapter, error) {
		return &scriptAdapter{chunks: chunks}, nil
	}
}

func failsSync(msg string) func() (providers.Adapter, error) {
	return func() (providers.Adapter, error) {
		return nil, errors.New(msg)
	}
}

func emptyStream() func() (providers.Adapter, error) {
	return func() (providers.Adapter, error) {
		return &scriptAdapter{}, nil
	}
}

func provider(key string, fallback bool, models ...string) ActiveProvider {
	return ActiveProvider{
		Key:            key,
		Name:           key + " Service",
		Models:         models,
		DefaultModel:   models[0],
		EnableFallback: fallback,
	}
}

func collect(t *testing.T, stream <-chan providers.Chunk) string {
	t.Helper()
	var out string
	for c := range stream {
		if c.Err != nil {
			t.Fatalf("chunk error: %v", c.Err)
		}
		out += c.Text
	}
	return out
}

func TestDispatch_RoundRobin(t *testing.T) {
	reg := &staticRegistry{actives: []ActiveProvider{
		provider("a", false, "m"),
		provider("b", false, "m"),
	}}
	build := &scriptBuild{behaviors: map[string]func() (providers.Adapter, error){
		"a/m": healthy("from-a"),
		"b/m": healthy("from-b"),
	}}
	d := NewDispatcher(reg, build.fn)

	var picked []string
	for i := 0; i < 4; i++ {
		res, err := d.Dispatch(context.Background(), nil)
		if err != nil {
			t.Fatalf("Dispatch() %d error: %v", i, err)
		}
		picked = append(picked, res.ProviderKey)
		collect(t, res.Stream)
	}
	want := []string{"a", "b", "a", "b"}
	for i := range want {
		if picked[i] != want[i] {
			t.Fatalf("picked = %v, want %v", picked, want)
		}
	}
}

func TestDispatch_FirstChunkPrepended(t *testing.T) {
	reg := &staticRegistry{actives: []ActiveProvider{provider("a", false, "m")}}
	build := &scriptBuild{behaviors: map[string]func() (providers.Adapter, error){
		// Leading empty keep-alives are skipped during validation.
		"a/m": healthy("", "", "Hel", "lo"),
	}}
	d := NewDispatcher(reg, build.fn)

	res, err := d.Dispatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	first, ok := <-res.Stream
	if !ok || first.Text != "Hel" {
		t.Fatalf("first chunk = %+v, want Hel", first)
	}
	rest := collect(t, res.Stream)
	if rest != "lo" {
		t.Errorf("rest = %q, want lo", rest)
	}
}

func TestDispatch_ModelFallback(t *testing.T) {
	reg := &staticRegistry{actives: []ActiveProvider{provider("a", true, "m1", "m2")}}
	build := &scriptBuild{behaviors: map[string]func() (providers.Adapter, error){
		"a/m1": failsSync("m1 down"),
		"a/m2": healthy("ok"),
	}}
	d := NewDispatcher(reg, build.fn)

	res, err := d.Dispatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if res.ProviderKey != "a" || res.Model != "m2" {
		t.Errorf("result = %s/%s, want a/m2", res.ProviderKey, res.Model)
	}
	want := []string{"a/m1", "a/m2"}
	for i := range want {
		if build.attempts[i] != want[i] {
			t.Fatalf("attempts = %v, want %v", build.attempts, want)
		}
	}
	collect(t, res.Stream)
}

func TestDispatch_FallbackOrderStartsAtDefault(t *testing.T) {
	p := provider("a", true, "m1", "m2", "m3")
	p.DefaultModel = "m2"
	reg := &staticRegistry{actives: []ActiveProvider{p}}
	build := &scriptBuild{behaviors: map[string]func() (providers.Adapter, error){
		"a/m2": failsSync("down"),
		"a/m1": failsSync("down"),
		"a/m3": healthy("x"),
	}}
	d := NewDispatcher(reg, build.fn)

	if _, err := d.Dispatch(context.Background(), nil); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	// Default first, then remaining models in list order.
	want := []string{"a/m2", "a/m1", "a/m3"}
	if len(build.attempts) != len(want) {
		t.Fatalf("attempts = %v, want %v", build.attempts, want)
	}
	for i := range want {
		if build.attempts[i] != want[i] {
			t.Fatalf("attempts = %v, want %v", build.attempts, want)
		}
	}
}

func TestDispatch_NoFallbackSingleAttempt(t *testing.T) {
	reg := &staticRegistry{actives: []ActiveProvider{provider("a", false, "m1", "m2")}}
	build := &scriptBuild{behaviors: map[string]func() (providers.Adapter, error){
		"a/m1": failsSync("down"),
	}}
	d := NewDispatcher(reg, build.fn)

	if _, err := d.Dispatch(context.Background(), nil); err == nil {
		t.Fatal("Dispatch() should fail when the only attempted model is down")
	}
	if len(build.attempts) != 1 || build.attempts[0] != "a/m1" {
		t.Errorf("attempts = %v, want just a/m1", build.attempts)
	}
}

func TestDispatch_CrossProviderFailover(t *testing.T) {
	reg := &staticRegistry{actives: []ActiveProvider{
		provider("a", false, "m"),
		provider("b", false, "m"),
	}}
	build := &scriptBuild{behaviors: map[string]func() (providers.Adapter, error){
		"a/m": emptyStream(),
		"b/m": healthy("x"),
	}}
	d := NewDispatcher(reg, build.fn)

	res, err := d.Dispatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if res.ProviderKey != "b" {
		t.Errorf("provider = %s, want b", res.ProviderKey)
	}
	collect(t, res.Stream)

	// b succeeded at index 1, so the cursor wraps back to a.
	build.behaviors["a/m"] = healthy("y")
	res, err = d.Dispatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Dispatch() error: %v", err)
	}
	if res.ProviderKey != "a" {
		t.Errorf("second provider = %s, want a after wrap", res.ProviderKey)
	}
	collect(t, res.Stream)
}

func TestDispatch_FailingProviderKeepsSlot(t *testing.T) {
	reg := &staticRegistry{actives: []ActiveProvider{
		provider("a", false, "m"),
		provider("b", false, "m"),
	}}
	build := &scriptBuild{behaviors: map[string]func() (providers.Adapter, error){
		"a/m": failsSync("down"),
		"b/m": healthy("x"),
	}}
	d := NewDispatcher(reg, build.fn)

	res, err := d.Dispatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if res.ProviderKey != "b" {
		t.Fatalf("provider = %s, want b", res.ProviderKey)
	}
	collect(t, res.Stream)

	// a recovers; the next dispatch starts at a again because b's success
	// advanced the cursor past index 1 back to 0.
	build.behaviors["a/m"] = healthy("y")
	res, err = d.Dispatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Dispatch() error: %v", err)
	}
	if res.ProviderKey != "a" {
		t.Errorf("second provider = %s, want a", res.ProviderKey)
	}
	collect(t, res.Stream)
}

func TestDispatch_AllFailed(t *testing.T) {
	reg := &staticRegistry{actives: []ActiveProvider{
		provider("a", false, "m"),
		provider("b", false, "m"),
	}}
	build := &scriptBuild{behaviors: map[string]func() (providers.Adapter, error){
		"a/m": failsSync("a down"),
		"b/m": failsSync("b down"),
	}}
	d := NewDispatcher(reg, build.fn)

	_, err := d.Dispatch(context.Background(), nil)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("error = %v, want ErrAllFailed", err)
	}
	// The last upstream error message is preserved for the client.
	if !strings.Contains(err.Error(), "b down") {
		t.Errorf("error = %q, want it to carry the last upstream message", err)
	}
}

func TestDispatch_NoProviders(t *testing.T) {
	d := NewDispatcher(&staticRegistry{}, func(string, string) (providers.Adapter, error) {
		t.Fatal("build must not be called with no active providers")
		return nil, nil
	})
	_, err := d.Dispatch(context.Background(), nil)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("error = %v, want ErrNoProviders", err)
	}
}

func TestDispatch_ErroringFirstChunkTriggersFallback(t *testing.T) {
	reg := &staticRegistry{actives: []ActiveProvider{
		provider("a", false, "m"),
		provider("b", false, "m"),
	}}
	build := &scriptBuild{behaviors: map[string]func() (providers.Adapter, error){
		"a/m": func() (providers.Adapter, error) {
			return &scriptAdapter{chunks: []providers.Chunk{{Err: errors.New("reset")}}}, nil
		},
		"b/m": healthy("x"),
	}}
	d := NewDispatcher(reg, build.fn)

	res, err := d.Dispatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if res.ProviderKey != "b" {
		t.Errorf("provider = %s, want b after erroring first chunk", res.ProviderKey)
	}
	collect(t, res.Stream)
}

func TestFallbackModels(t *testing.T) {
	p := provider("a", true, "m1", "m2", "m3")
	p.DefaultModel = "m2"
	got := p.FallbackModels()
	want := []string{"m2", "m1", "m3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FallbackModels() = %v, want %v", got, want)
		}
	}

	p.EnableFallback = false
	got = p.FallbackModels()
	if len(got) != 1 || got[0] != "m2" {
		t.Errorf("FallbackModels() without fallback = %v, want [m2]", got)
	}
}
