package model

// SpanKind mirrors OTLP's span kind enum. It serializes as PascalCase, per
// §6: "SpanKind uses PascalCase".
type SpanKind string

const (
	SpanKindUnspecified SpanKind = "Unspecified"
	SpanKindInternal    SpanKind = "Internal"
	SpanKindServer      SpanKind = "Server"
	SpanKindClient      SpanKind = "Client"
	SpanKindProducer    SpanKind = "Producer"
	SpanKindConsumer    SpanKind = "Consumer"
)

// StatusCode mirrors OTLP's status code enum.
type StatusCode string

const (
	StatusCodeUnset StatusCode = "Unset"
	StatusCodeOk    StatusCode = "Ok"
	StatusCodeError StatusCode = "Error"
)

// Status is a span's terminal status. A nil *Status means Unset.
type Status struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"message,omitempty"`
}

// SpanEvent is a timestamped annotation attached to a span.
type SpanEvent struct {
	Name       string       `json:"name"`
	Timestamp  Timestamp    `json:"timestamp"`
	Attributes AttributeMap `json:"attributes,omitempty"`
}

// SpanLink references another span, possibly in a different trace.
type SpanLink struct {
	TraceID    TraceID      `json:"trace_id"`
	SpanID     SpanID       `json:"span_id"`
	TraceState string       `json:"trace_state,omitempty"`
	Attributes AttributeMap `json:"attributes,omitempty"`
	Flags      uint32       `json:"flags,omitempty"`
}

// Span is the atomic unit of storage: a single timed operation.
type Span struct {
	TraceID      TraceID   `json:"trace_id"`
	SpanID       SpanID    `json:"span_id"`
	ParentSpanID *SpanID   `json:"parent_span_id,omitempty"`
	Name         string    `json:"name"`
	TraceState   string    `json:"trace_state,omitempty"`
	Flags        uint32    `json:"flags,omitempty"`
	Kind         SpanKind  `json:"kind"`
	ScopeName    *string   `json:"scope_name,omitempty"`
	ScopeVersion *string   `json:"scope_version,omitempty"`
	StartTime    Timestamp `json:"start_time"`
	EndTime      Timestamp `json:"end_time"`

	Attributes         AttributeMap `json:"attributes,omitempty"`
	ScopeAttributes    AttributeMap `json:"scope_attributes,omitempty"`
	ResourceAttributes AttributeMap `json:"resource_attributes,omitempty"`

	Status *Status     `json:"status,omitempty"`
	Events []SpanEvent `json:"events,omitempty"`
	Links  []SpanLink  `json:"links,omitempty"`
}

// IsFailed reports whether the span's status is Error, per the insights
// engine's success classification (§4.6): Unset, Ok, and missing status are
// all successes.
func (s *Span) IsFailed() bool {
	return s.Status != nil && s.Status.Code == StatusCodeError
}

// IsRoot reports whether the span has no visible parent, i.e. it is eligible
// to be the root of its trace summary.
func (s *Span) IsRoot() bool {
	return s.ParentSpanID == nil
}

// TraceSummary is the computed entity described in §3: not an independent
// row, but derived from the set of spans sharing a trace id.
type TraceSummary struct {
	TraceID   TraceID   `json:"trace_id"`
	RootSpan  *Span     `json:"root_span,omitempty"`
	StartTime Timestamp `json:"start_time"`
	EndTime   Timestamp `json:"end_time"`
	SpanCount int       `json:"span_count"`
}

// SummarizeTrace derives a TraceSummary from the complete set of spans
// sharing a trace id. spans must be non-empty and must all share the same
// TraceID; callers (the store) are responsible for that invariant.
func SummarizeTrace(traceID TraceID, spans []Span) TraceSummary {
	summary := TraceSummary{TraceID: traceID, SpanCount: len(spans)}
	var root *Span
	for i := range spans {
		sp := &spans[i]
		if i == 0 || sp.StartTime.Before(summary.StartTime.Time) {
			summary.StartTime = sp.StartTime
		}
		if i == 0 || sp.EndTime.After(summary.EndTime.Time) {
			summary.EndTime = sp.EndTime
		}
		if sp.IsRoot() {
			if root == nil || sp.StartTime.Before(root.StartTime.Time) {
				root = sp
			}
		}
	}
	summary.RootSpan = root
	return summary
}
