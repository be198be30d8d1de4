// Package otlp converts between OTLP's generated protobuf types
// (go.opentelemetry.io/proto/otlp) and the internal model package. It is the
// only place in the codebase that maps OTLP trace, common and resource
// messages onto model types; the ingestor and the API packages use the
// collector request/response types directly (§4.2 / §4.3).
package otlp

import (
	"time"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/localtrace/studio/internal/model"
)

// unixNanoToTime converts OTLP's uint64 nanoseconds-since-epoch into a
// time.Time, clamping rather than erroring — used only for event timestamps,
// which are advisory annotations, unlike a span's own start/end time (those
// go through model.FromUnixNano in the ingestor so overflow surfaces there).
func unixNanoToTime(nanos uint64) time.Time {
	const maxInt64 = 1<<63 - 1
	if nanos > maxInt64 {
		nanos = maxInt64
	}
	return time.Unix(0, int64(nanos)).UTC()
}

// FlatSpan is one Span paired with the raw OTLP nanosecond timestamps it
// carried, so the caller (the ingestor) can apply its own overflow handling
// instead of silently truncating here. HasInvalidIDs is set when the source
// span had an empty trace_id or span_id; the ingestor rejects these rather
// than persisting a span with an empty-string id (§3: every persisted span
// has well-formed hex ids).
type FlatSpan struct {
	Span          model.Span
	StartUnixNano uint64
	EndUnixNano   uint64
	HasInvalidIDs bool
}

// Flatten walks a ResourceSpans tree (§4.3's flattening algorithm) and
// returns one FlatSpan per leaf tracepb.Span, with resource- and
// scope-level attributes copied onto each span in their own
// ResourceAttributes and ScopeAttributes fields (not merged into Attributes).
func Flatten(rs *tracepb.ResourceSpans) []FlatSpan {
	if rs == nil {
		return nil
	}
	resourceAttrs := keyValuesToMap(resourceAttributes(rs.Resource))

	var out []FlatSpan
	for _, ss := range rs.ScopeSpans {
		var scopeName, scopeVersion *string
		var scopeAttrs model.AttributeMap
		if ss.Scope != nil {
			name := ss.Scope.Name
			scopeName = &name
			if ss.Scope.Version != "" {
				version := ss.Scope.Version
				scopeVersion = &version
			}
			scopeAttrs = keyValuesToMap(ss.Scope.Attributes)
		}
		for _, sp := range ss.Spans {
			out = append(out, spanToFlatSpan(sp, scopeName, scopeVersion, scopeAttrs, resourceAttrs))
		}
	}
	return out
}

func resourceAttributes(r *resourcepb.Resource) []*commonpb.KeyValue {
	if r == nil {
		return nil
	}
	return r.Attributes
}

func spanToFlatSpan(sp *tracepb.Span, scopeName, scopeVersion *string, scopeAttrs, resourceAttrs model.AttributeMap) FlatSpan {
	traceID := model.BytesToTraceID(sp.TraceId)
	spanID := model.BytesToSpanID(sp.SpanId)

	var parentSpanID *model.SpanID
	if len(sp.ParentSpanId) > 0 {
		id := model.BytesToSpanID(sp.ParentSpanId)
		parentSpanID = &id
	}

	m := model.Span{
		TraceID:            traceID,
		SpanID:             spanID,
		ParentSpanID:       parentSpanID,
		Name:               sp.Name,
		TraceState:         sp.TraceState,
		Flags:              sp.Flags,
		Kind:               spanKindToModel(sp.Kind),
		ScopeName:          scopeName,
		ScopeVersion:       scopeVersion,
		Attributes:         keyValuesToMap(sp.Attributes),
		ScopeAttributes:    scopeAttrs,
		ResourceAttributes: resourceAttrs,
		Status:             statusToModel(sp.Status),
		Events:             eventsToModel(sp.Events),
		Links:              linksToModel(sp.Links),
	}

	return FlatSpan{
		Span:          m,
		StartUnixNano: sp.StartTimeUnixNano,
		EndUnixNano:   sp.EndTimeUnixNano,
		HasInvalidIDs: len(sp.TraceId) == 0 || len(sp.SpanId) == 0,
	}
}

func spanKindToModel(k tracepb.Span_SpanKind) model.SpanKind {
	switch k {
	case tracepb.Span_SPAN_KIND_INTERNAL:
		return model.SpanKindInternal
	case tracepb.Span_SPAN_KIND_SERVER:
		return model.SpanKindServer
	case tracepb.Span_SPAN_KIND_CLIENT:
		return model.SpanKindClient
	case tracepb.Span_SPAN_KIND_PRODUCER:
		return model.SpanKindProducer
	case tracepb.Span_SPAN_KIND_CONSUMER:
		return model.SpanKindConsumer
	default:
		return model.SpanKindUnspecified
	}
}

func statusToModel(s *tracepb.Status) *model.Status {
	if s == nil {
		return nil
	}
	code := model.StatusCodeUnset
	switch s.Code {
	case tracepb.Status_STATUS_CODE_OK:
		code = model.StatusCodeOk
	case tracepb.Status_STATUS_CODE_ERROR:
		code = model.StatusCodeError
	}
	return &model.Status{Code: code, Message: s.Message}
}

func eventsToModel(events []*tracepb.Span_Event) []model.SpanEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]model.SpanEvent, len(events))
	for i, ev := range events {
		out[i] = model.SpanEvent{
			Name:       ev.Name,
			Timestamp:  model.NewTimestamp(unixNanoToTime(ev.TimeUnixNano)),
			Attributes: keyValuesToMap(ev.Attributes),
		}
	}
	return out
}

func linksToModel(links []*tracepb.Span_Link) []model.SpanLink {
	if len(links) == 0 {
		return nil
	}
	out := make([]model.SpanLink, len(links))
	for i, l := range links {
		out[i] = model.SpanLink{
			TraceID:    model.BytesToTraceID(l.TraceId),
			SpanID:     model.BytesToSpanID(l.SpanId),
			TraceState: l.TraceState,
			Attributes: keyValuesToMap(l.Attributes),
			Flags:      l.Flags,
		}
	}
	return out
}

func keyValuesToMap(kvs []*commonpb.KeyValue) model.AttributeMap {
	if len(kvs) == 0 {
		return nil
	}
	m := make(model.AttributeMap, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = anyValueToModel(kv.Value)
	}
	return m
}

func anyValueToModel(v *commonpb.AnyValue) *model.AttributeValue {
	if v == nil {
		return nil
	}
	switch val := v.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return model.NewString(val.StringValue)
	case *commonpb.AnyValue_BoolValue:
		return model.NewBool(val.BoolValue)
	case *commonpb.AnyValue_IntValue:
		return model.NewInt(val.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return model.NewDouble(val.DoubleValue)
	case *commonpb.AnyValue_BytesValue:
		return model.NewBytes(val.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		if val.ArrayValue == nil {
			return model.NewArray(nil)
		}
		arr := make([]*model.AttributeValue, len(val.ArrayValue.Values))
		for i, e := range val.ArrayValue.Values {
			arr[i] = anyValueToModel(e)
		}
		return model.NewArray(arr)
	case *commonpb.AnyValue_KvlistValue:
		if val.KvlistValue == nil {
			return model.NewKeyValueList(nil)
		}
		return model.NewKeyValueList(keyValuesToMap(val.KvlistValue.Values))
	default:
		return nil
	}
}
