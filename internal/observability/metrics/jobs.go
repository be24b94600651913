// Package metrics defines standardized metric emission for the job lifecycle.
package metrics

import (
	"time"

	obserrors "github.com/carga-pendencia/cnpj-queue/internal/observability/errors"
	"github.com/carga-pendencia/cnpj-queue/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
	ResultNoop    = "noop"
)

// Transition constants covering every lifecycle move a job can make.
const (
	TransitionEnqueued  = "enqueued"
	TransitionDeduped   = "deduped"
	TransitionClaimed   = "claimed"
	TransitionCompleted = "completed"
	TransitionFailed    = "failed"
	TransitionIgnored   = "ignored"
	TransitionReaped    = "reaped"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	Mode       string // "stream" or "batch", empty outside workers
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits standardised job lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Mode != "" {
		tags["mode"] = in.Mode
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitQueueDepth records the current dispatch channel depth.
func EmitQueueDepth(sink statsd.Sink, depth int64) {
	if sink == nil {
		return
	}
	sink.Gauge("dispatch.depth", float64(depth), nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
