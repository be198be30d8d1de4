package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Timestamp carries nanosecond-precision instants internally and is
// serialized as an RFC 3339 string on output. Per §9, the legacy
// fractional-Unix-seconds form (a bare JSON number) is also accepted on
// input so older clients and the compatibility schema keep working.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t, truncating to nanosecond precision (the
// representation time.Time already carries).
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// FromUnixNano converts unsigned OTLP nanoseconds-since-epoch into a
// Timestamp. It reports an error if the value overflows what time.Time can
// represent, per the ingestor's §4.3 timestamp handling.
func FromUnixNano(nanos uint64) (Timestamp, error) {
	if nanos > uint64(math.MaxInt64) {
		return Timestamp{}, fmt.Errorf("model: unix nanos %d overflows int64", nanos)
	}
	sec := int64(nanos / 1e9)
	nsec := int64(nanos % 1e9)
	return NewTimestamp(time.Unix(sec, nsec)), nil
}

// UnixSeconds returns the fractional-seconds-since-epoch form used by the
// legacy wire representation.
func (t Timestamp) UnixSeconds() float64 {
	return float64(t.UnixNano()) / 1e9
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, s)
			if err != nil {
				return fmt.Errorf("model: parsing timestamp %q: %w", s, err)
			}
		}
		*t = NewTimestamp(parsed)
		return nil
	}
	// Legacy compact form: fractional Unix seconds as a bare number.
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("model: parsing legacy timestamp %q: %w", data, err)
	}
	whole := int64(secs)
	frac := secs - float64(whole)
	*t = NewTimestamp(time.Unix(whole, int64(frac*1e9)))
	return nil
}
