// SPDX-License-Identifier: GPL-3.0-or-later

package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Serializer encodes/decodes a [Message] to/from its wire representation
// (the payload carried inside a frame; see frame.go for the outer
// length/version/flags envelope). §4.1 leaves the concrete choice open:
// "structured-text, compact-binary, schema-based binary".
type Serializer interface {
	Encode(msg *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)
	Name() string
}

// wireMessage is the JSON-friendly shape shared by [JSONSerializer] and
// [CompactBinarySerializer] (the latter binary-packs these same fields).
type wireMessage struct {
	ID            int64             `json:"id"`
	Origin        string            `json:"origin,omitempty"`
	Destination   string            `json:"destination,omitempty"`
	Kind          Kind              `json:"kind"`
	Priority      Priority          `json:"priority"`
	Route         string            `json:"route,omitempty"`
	Timestamp     int64             `json:"t"` // unix nanoseconds
	TTLMillis     int64             `json:"ttlMs,omitempty"`
	CorrelationID int64             `json:"correlationId,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
}

func toWire(msg *Message) (*wireMessage, error) {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding payload: %v", ErrProtocol, err)
	}
	return &wireMessage{
		ID:            msg.ID,
		Origin:        msg.Origin,
		Destination:   msg.Destination,
		Kind:          msg.Kind,
		Priority:      msg.Priority,
		Route:         msg.Route,
		Timestamp:     msg.Timestamp.UnixNano(),
		TTLMillis:     msg.TTL.Milliseconds(),
		CorrelationID: msg.CorrelationID,
		Metadata:      msg.Metadata,
		Payload:       payload,
	}, nil
}

func fromWire(w *wireMessage) (*Message, error) {
	var payload any
	if len(w.Payload) > 0 {
		if err := json.Unmarshal(w.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: decoding payload: %v", ErrProtocol, err)
		}
	}
	msg := &Message{
		ID:            w.ID,
		Origin:        w.Origin,
		Destination:   w.Destination,
		Kind:          w.Kind,
		Priority:      w.Priority,
		Route:         w.Route,
		Timestamp:     time.Unix(0, w.Timestamp),
		TTL:           time.Duration(w.TTLMillis) * time.Millisecond,
		CorrelationID: w.CorrelationID,
		Metadata:      w.Metadata,
		Payload:       payload,
	}
	return msg, msg.Validate()
}

// JSONSerializer implements the "structured-text" serialization choice.
type JSONSerializer struct{}

var _ Serializer = JSONSerializer{}

func (JSONSerializer) Name() string { return "structured-text" }

func (JSONSerializer) Encode(msg *Message) ([]byte, error) {
	w, err := toWire(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (JSONSerializer) Decode(data []byte) (*Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return fromWire(&w)
}

// CompactBinarySerializer implements the "compact-binary" serialization
// choice: fixed-width/varint header fields followed by the JSON-encoded
// payload and metadata, avoiding field-name repetition on the wire while
// not requiring a schema compiler.
type CompactBinarySerializer struct{}

var _ Serializer = CompactBinarySerializer{}

func (CompactBinarySerializer) Name() string { return "compact-binary" }

func (CompactBinarySerializer) Encode(msg *Message) ([]byte, error) {
	w, err := toWire(msg)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(w.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding metadata: %v", ErrProtocol, err)
	}

	buf := make([]byte, 0, 64+len(w.Payload)+len(meta))
	buf = binary.AppendVarint(buf, w.ID)
	buf = appendString(buf, w.Origin)
	buf = appendString(buf, w.Destination)
	buf = binary.AppendVarint(buf, int64(w.Kind))
	buf = binary.AppendVarint(buf, int64(w.Priority))
	buf = appendString(buf, w.Route)
	buf = binary.AppendVarint(buf, w.Timestamp)
	buf = binary.AppendVarint(buf, w.TTLMillis)
	buf = binary.AppendVarint(buf, w.CorrelationID)
	buf = appendBytes(buf, meta)
	buf = appendBytes(buf, w.Payload)
	return buf, nil
}

func (CompactBinarySerializer) Decode(data []byte) (*Message, error) {
	r := &byteReader{data: data}
	var w wireMessage
	w.ID = r.varint()
	w.Origin = r.string()
	w.Destination = r.string()
	w.Kind = Kind(r.varint())
	w.Priority = Priority(r.varint())
	w.Route = r.string()
	w.Timestamp = r.varint()
	w.TTLMillis = r.varint()
	w.CorrelationID = r.varint()
	meta := r.bytes()
	w.Payload = r.bytes()
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, r.err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &w.Metadata); err != nil {
			return nil, fmt.Errorf("%w: decoding metadata: %v", ErrProtocol, err)
		}
	}
	return fromWire(&w)
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = binary.AppendVarint(buf, int64(len(b)))
	return append(buf, b...)
}

// byteReader sequentially decodes the fields CompactBinarySerializer wrote.
type byteReader struct {
	data []byte
	pos  int
	err  error
}

func (r *byteReader) varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.data[r.pos:])
	if n <= 0 {
		r.err = fmt.Errorf("malformed varint at offset %d", r.pos)
		return 0
	}
	r.pos += n
	return v
}

func (r *byteReader) bytes() []byte {
	if r.err != nil {
		return nil
	}
	n := r.varint()
	if r.err != nil {
		return nil
	}
	if n < 0 || int(n) > len(r.data)-r.pos {
		r.err = fmt.Errorf("malformed length-prefixed field at offset %d", r.pos)
		return nil
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b
}

func (r *byteReader) string() string {
	return string(r.bytes())
}

// ProtoSerializer implements the "schema-based binary" serialization
// choice using the protobuf wire format. Rather than requiring a
// hand-maintained .proto/.pb.go pair for a message shape that is still
// evolving, it represents the [Message] as a [structpb.Struct] (the
// well-known dynamic-value type from google.golang.org/protobuf), which
// gives forward/backward field compatibility "for free" at the cost of the
// dense one-byte-per-field-number packing the fixed schema variant would
// give. Use this when renderer/network/GPU processes may be built from
// slightly different versions of this module.
type ProtoSerializer struct{}

var _ Serializer = ProtoSerializer{}

func (ProtoSerializer) Name() string { return "schema-based binary" }

func (ProtoSerializer) Encode(msg *Message) ([]byte, error) {
	w, err := toWire(msg)
	if err != nil {
		return nil, err
	}
	var payload any
	if len(w.Payload) > 0 {
		if err := json.Unmarshal(w.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
	}
	fields := map[string]any{
		"id":            w.ID,
		"origin":        w.Origin,
		"destination":   w.Destination,
		"kind":          float64(w.Kind),
		"priority":      float64(w.Priority),
		"route":         w.Route,
		"t":             float64(w.Timestamp),
		"ttlMs":         float64(w.TTLMillis),
		"correlationId": float64(w.CorrelationID),
		"payload":       payload,
	}
	if len(w.Metadata) > 0 {
		meta := make(map[string]any, len(w.Metadata))
		for k, v := range w.Metadata {
			meta[k] = v
		}
		fields["metadata"] = meta
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: building protobuf struct: %v", ErrProtocol, err)
	}
	return proto.Marshal(s)
}

func (ProtoSerializer) Decode(data []byte) (*Message, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	fields := s.AsMap()
	w := wireMessage{Metadata: make(map[string]string)}
	if v, ok := fields["id"].(float64); ok {
		w.ID = int64(v)
	}
	w.Origin, _ = fields["origin"].(string)
	w.Destination, _ = fields["destination"].(string)
	if v, ok := fields["kind"].(float64); ok {
		w.Kind = Kind(int(v))
	}
	if v, ok := fields["priority"].(float64); ok {
		w.Priority = Priority(int(v))
	}
	w.Route, _ = fields["route"].(string)
	if v, ok := fields["t"].(float64); ok {
		w.Timestamp = int64(v)
	}
	if v, ok := fields["ttlMs"].(float64); ok {
		w.TTLMillis = int64(v)
	}
	if v, ok := fields["correlationId"].(float64); ok {
		w.CorrelationID = int64(v)
	}
	if meta, ok := fields["metadata"].(map[string]any); ok {
		for k, v := range meta {
			if sv, ok := v.(string); ok {
				w.Metadata[k] = sv
			}
		}
	}
	payload, err := json.Marshal(fields["payload"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	w.Payload = payload
	return fromWire(&w)
}
