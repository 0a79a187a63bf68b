package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DefaultBrightness is used when a message carries no brightness.
const DefaultBrightness = 100

// Message is a decoded control message. It is immutable once returned by
// Decode.
type Message struct {
	Text       string
	Brightness int
	Timestamp  time.Time
	Status     string
	Color      *RGB   // nil when absent or invalid
	Font       string // empty when absent
}

func (m Message) String() string {
	color := "none"
	if m.Color != nil {
		color = m.Color.String()
	}
	return fmt.Sprintf("Message(text=%q, brightness=%d, timestamp=%s, status=%q, color=%s, font=%q)",
		m.Text, m.Brightness, m.Timestamp.Format(time.RFC3339), m.Status, color, m.Font)
}

// wireMessage is the JSON shape published by the feed.
type wireMessage struct {
	Message    string          `json:"message"`
	Brightness *int            `json:"brightness"`
	Timestamp  string          `json:"timestamp"`
	Status     string          `json:"status"`
	Color      json.RawMessage `json:"color"`
	Font       string          `json:"font"`
}

// Timestamp layouts accepted for the timestamp field, most specific first.
// Layouts without a zone are interpreted in local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Decode parses payload into a Message. receivedAt is used when the payload
// carries no usable timestamp.
//
// A payload that is not a JSON object, or whose fields have the wrong types,
// returns a *DecodeError of kind Malformed and a zero Message. An unparseable
// color returns the rest of the message with Color nil, together with a
// *DecodeError of kind InvalidColor.
func Decode(payload []byte, receivedAt time.Time) (Message, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Message{}, &DecodeError{Kind: Malformed, Payload: payload, Err: fmt.Errorf("expected a JSON object")}
	}

	var w wireMessage
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Message{}, &DecodeError{Kind: Malformed, Payload: payload, Err: err}
	}

	msg := Message{
		Text:       norm.NFC.String(w.Message),
		Brightness: DefaultBrightness,
		Timestamp:  parseTimestamp(w.Timestamp, receivedAt),
		Status:     w.Status,
		Font:       w.Font,
	}
	if w.Brightness != nil {
		msg.Brightness = clampBrightness(*w.Brightness)
	}

	c, present, err := decodeColor(w.Color)
	if err != nil {
		return msg, &DecodeError{Kind: InvalidColor, Payload: payload, Err: err}
	}
	if present {
		msg.Color = &c
	}

	return msg, nil
}

// decodeColor accepts either a string literal ("[r,g,b]") or a JSON array.
// null and "" mean absent.
func decodeColor(raw json.RawMessage) (RGB, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return RGB{}, false, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return RGB{}, false, err
		}
		if s == "" {
			return RGB{}, false, nil
		}
		c, err := ParseRGB(s)
		if err != nil {
			return RGB{}, false, err
		}
		return c, true, nil
	case '[':
		var v []int
		if err := json.Unmarshal(raw, &v); err != nil {
			return RGB{}, false, fmt.Errorf("color %s: %w", raw, err)
		}
		c, err := rgbFromInts(v)
		if err != nil {
			return RGB{}, false, fmt.Errorf("color %s: %w", raw, err)
		}
		return c, true, nil
	default:
		return RGB{}, false, fmt.Errorf("color %s: expected string or array", raw)
	}
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return fallback
}

func clampBrightness(b int) int {
	switch {
	case b < 0:
		return 0
	case b > 255:
		return 255
	default:
		return b
	}
}
