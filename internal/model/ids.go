// Package model holds the span/trace data model shared by the store, the
// ingestor, and the HTTP/gRPC APIs.
package model

import (
	"encoding/hex"
	"fmt"
)

// TraceID is a validated lowercase hex string identifying a trace.
type TraceID string

// SpanID is a validated lowercase hex string identifying a span within a trace.
type SpanID string

// ParseTraceID validates s as a trace id: even length, characters [0-9a-f].
// Validation failure is distinct from "not found" — callers should map it to
// apierr.Validation, never apierr.NotFound.
func ParseTraceID(s string) (TraceID, error) {
	if err := validateHexID(s); err != nil {
		return "", fmt.Errorf("invalid trace id %q: %w", s, err)
	}
	return TraceID(s), nil
}

// ParseSpanID validates s as a span id the same way ParseTraceID does.
func ParseSpanID(s string) (SpanID, error) {
	if err := validateHexID(s); err != nil {
		return "", fmt.Errorf("invalid span id %q: %w", s, err)
	}
	return SpanID(s), nil
}

func validateHexID(s string) error {
	if s == "" {
		return fmt.Errorf("empty id")
	}
	if len(s)%2 != 0 {
		return fmt.Errorf("odd-length id")
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return fmt.Errorf("non-hex character %q", r)
		}
	}
	return nil
}

// BytesToTraceID lowercases-hex-encodes raw OTLP trace id bytes.
func BytesToTraceID(b []byte) TraceID {
	return TraceID(hex.EncodeToString(b))
}

// BytesToSpanID lowercase-hex-encodes raw OTLP span id bytes.
func BytesToSpanID(b []byte) SpanID {
	return SpanID(hex.EncodeToString(b))
}
