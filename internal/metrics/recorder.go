// Package metrics exposes loader observability hooks. Components receive a
// Recorder; NoopRecorder is the default when metrics are disabled.
package metrics

import "time"

// Outcome labels a load result.
type Outcome string

const (
	OutcomeHit      Outcome = "hit"
	OutcomeShared   Outcome = "shared"
	OutcomeLoaded   Outcome = "loaded"
	OutcomeNotFound Outcome = "not_found"
	OutcomeCycle    Outcome = "cycle"
	OutcomeFailed   Outcome = "failed"
)

// Recorder defines the hooks the loader and serializers call.
type Recorder interface {
	IncLoad(outcome Outcome)
	ObserveStageDuration(stage string, d time.Duration)
	SetInflight(n int)
	SetCacheSize(n int)
	IncUnsupportedNode(format, kind string)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncLoad(Outcome)                            {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) SetInflight(int)                            {}
func (NoopRecorder) SetCacheSize(int)                           {}
func (NoopRecorder) IncUnsupportedNode(string, string)          {}
