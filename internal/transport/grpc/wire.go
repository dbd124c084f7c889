package grpc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// message is implemented by every request and response of BookingService.
// fields exposes pointers into the receiver so one encoder and one decoder
// serve all message types.
type message interface {
	fields() []field
}

type field struct {
	num  protowire.Number
	str  *string
	strs *[]string
	i64  *int64
	data *[]byte
	ts   **timestamppb.Timestamp
	msg  nested
}

type nested interface {
	encode(b []byte, num protowire.Number) ([]byte, error)
	decode(v []byte) error
	isList() bool
}

func marshal(m message) ([]byte, error) {
	var b []byte
	for _, f := range m.fields() {
		var err error
		switch {
		case f.str != nil:
			if *f.str != "" {
				b = protowire.AppendTag(b, f.num, protowire.BytesType)
				b = protowire.AppendString(b, *f.str)
			}
		case f.strs != nil:
			for _, s := range *f.strs {
				b = protowire.AppendTag(b, f.num, protowire.BytesType)
				b = protowire.AppendString(b, s)
			}
		case f.i64 != nil:
			if *f.i64 != 0 {
				b = protowire.AppendTag(b, f.num, protowire.VarintType)
				b = protowire.AppendVarint(b, uint64(*f.i64))
			}
		case f.data != nil:
			if len(*f.data) > 0 {
				b = protowire.AppendTag(b, f.num, protowire.BytesType)
				b = protowire.AppendBytes(b, *f.data)
			}
		case f.ts != nil:
			if *f.ts != nil {
				var enc []byte
				enc, err = proto.Marshal(*f.ts)
				b = protowire.AppendTag(b, f.num, protowire.BytesType)
				b = protowire.AppendBytes(b, enc)
			}
		case f.msg != nil:
			b, err = f.msg.encode(b, f.num)
		}
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", f.num, err)
		}
	}
	return b, nil
}

func unmarshal(b []byte, m message) error {
	fs := m.fields()
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f, ok := lookup(fs, num)
		if !ok || typ != f.wireType() {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}

		if f.i64 != nil {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			*f.i64 = int64(v)
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := f.decode(v); err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
	}
	return nil
}

func lookup(fs []field, num protowire.Number) (field, bool) {
	for _, f := range fs {
		if f.num == num {
			return f, true
		}
	}
	return field{}, false
}

func (f field) wireType() protowire.Type {
	if f.i64 != nil {
		return protowire.VarintType
	}
	return protowire.BytesType
}

func (f field) decode(v []byte) error {
	switch {
	case f.str != nil:
		*f.str = string(v)
	case f.strs != nil:
		*f.strs = append(*f.strs, string(v))
	case f.data != nil:
		*f.data = append([]byte(nil), v...)
	case f.ts != nil:
		ts := &timestamppb.Timestamp{}
		if err := proto.Unmarshal(v, ts); err != nil {
			return err
		}
		*f.ts = ts
	case f.msg != nil:
		return f.msg.decode(v)
	}
	return nil
}

func appendMessage(b []byte, num protowire.Number, m message) ([]byte, error) {
	enc, err := marshal(m)
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, enc), nil
}

type messagePtr[T any] interface {
	*T
	message
}

type single[T any, P messagePtr[T]] struct{ p **T }

func one[T any, P messagePtr[T]](p **T) nested { return single[T, P]{p: p} }

func (single[T, P]) isList() bool { return false }

func (s single[T, P]) encode(b []byte, num protowire.Number) ([]byte, error) {
	if *s.p == nil {
		return b, nil
	}
	return appendMessage(b, num, P(*s.p))
}

func (s single[T, P]) decode(v []byte) error {
	m := new(T)
	if err := unmarshal(v, P(m)); err != nil {
		return err
	}
	*s.p = m
	return nil
}

type repeated[T any, P messagePtr[T]] struct{ p *[]*T }

func many[T any, P messagePtr[T]](p *[]*T) nested { return repeated[T, P]{p: p} }

func (repeated[T, P]) isList() bool { return true }

func (r repeated[T, P]) encode(b []byte, num protowire.Number) ([]byte, error) {
	for _, m := range *r.p {
		if m == nil {
			continue
		}
		var err error
		if b, err = appendMessage(b, num, P(m)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (r repeated[T, P]) decode(v []byte) error {
	m := new(T)
	if err := unmarshal(v, P(m)); err != nil {
		return err
	}
	*r.p = append(*r.p, m)
	return nil
}

// Codec encodes BookingService messages with the protobuf wire format. It is
// named "proto" so clients built from the .proto definition interoperate.
type Codec struct{}

func (Codec) Name() string { return "proto" }

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("codec: unsupported message type %T", v)
	}
	return marshal(m)
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("codec: unsupported message type %T", v)
	}
	return unmarshal(data, m)
}
