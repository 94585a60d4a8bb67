package telemetry

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"

	"github.com/josephgoksu/jenos-mcp/mcp"
)

// sink is the part of the PostHog client the reporter needs.
type sink interface {
	Enqueue(msg posthog.Message) error
	Close() error
}

// Options describes the gateway a Reporter speaks for.
type Options struct {
	APIKey   string
	Endpoint string

	Version   string
	Transport string
	Backend   string

	// SampleEvery sends one successful dispatch out of every SampleEvery per
	// operation. Failures are always sent. Values below 1 mean 1.
	SampleEvery int
}

// Reporter sends gateway usage events. Every event carries the same base
// properties, fixed when the reporter is built. A nil *Reporter is valid and
// sends nothing.
type Reporter struct {
	sink       sink
	distinctID string
	base       posthog.Properties
	every      int

	mu     sync.Mutex
	seen   map[string]int
	closed bool
}

// NewReporter starts a PostHog-backed reporter. It returns nil without error
// when there is no API key or the persisted state has telemetry turned off.
func NewReporter(state *Config, opts Options) (*Reporter, error) {
	if opts.APIKey == "" || !state.IsEnabled() {
		return nil, nil
	}
	client, err := posthog.NewWithConfig(opts.APIKey, posthog.Config{
		Endpoint:  opts.Endpoint,
		BatchSize: 50,
		Interval:  10 * time.Second,
		// stdout may carry JSON-RPC.
		Logger: silentLogger{},
	})
	if err != nil {
		return nil, fmt.Errorf("start posthog client: %w", err)
	}
	return newReporter(client, state.AnonymousID, opts), nil
}

func newReporter(s sink, distinctID string, opts Options) *Reporter {
	every := opts.SampleEvery
	if every < 1 {
		every = 1
	}
	return &Reporter{
		sink:       s,
		distinctID: distinctID,
		every:      every,
		seen:       make(map[string]int),
		base: posthog.NewProperties().
			Set("server_version", opts.Version).
			Set("transport", opts.Transport).
			Set("backend", opts.Backend).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH).
			Set("$process_person_profile", false),
	}
}

// ServerStarted records that the gateway came up.
func (r *Reporter) ServerStarted() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture(EventServerStarted, Properties{"sample_every": r.every})
}

// ObserveDispatch implements mcp.Observer.
func (r *Reporter) ObserveDispatch(_ context.Context, e mcp.Event) {
	if r == nil {
		return
	}
	props := dispatchProperties(e)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Outcome == mcp.OutcomeOK {
		tool := props["tool"].(string)
		n := r.seen[tool]
		r.seen[tool] = n + 1
		if n%r.every != 0 {
			return
		}
		props["sample_every"] = r.every
	}
	r.capture(EventToolInvoked, props)
}

// capture enqueues one event. The caller holds r.mu.
func (r *Reporter) capture(event string, props Properties) {
	if r.closed {
		return
	}
	merged := posthog.NewProperties().Merge(r.base)
	for k, v := range props {
		merged.Set(k, v)
	}
	_ = r.sink.Enqueue(posthog.Capture{
		DistinctId: r.distinctID,
		Event:      event,
		Properties: merged,
	})
}

// Close flushes pending events. Later events are discarded.
func (r *Reporter) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.sink.Close()
}

type silentLogger struct{}

func (silentLogger) Debugf(string, ...interface{}) {}
func (silentLogger) Logf(string, ...interface{})   {}
func (silentLogger) Warnf(string, ...interface{})  {}
func (silentLogger) Errorf(string, ...interface{}) {}
