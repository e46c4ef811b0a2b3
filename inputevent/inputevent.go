package inputevent

import (
	"encoding/binary"
	"fmt"
	"iter"
)

// Record sizes of struct input_event. The tablet kernels we talk to use a
// 32-bit timeval (16 bytes); 64-bit kernels use 24.
const (
	RecordSize   = 16
	RecordSize64 = 24
)

type Kind uint8

const (
	KindOther Kind = iota
	KindKey
	KindAbsoluteAxis
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindAbsoluteAxis:
		return "abs"
	default:
		return "other"
	}
}

// RawEvent is one decoded input_event record. The timestamp is not kept.
type RawEvent struct {
	Type  uint16 `cbor:"1,keyasint" json:"type"`
	Code  uint16 `cbor:"2,keyasint" json:"code"`
	Value int32  `cbor:"3,keyasint" json:"value"`
}

func (e RawEvent) Kind() Kind {
	switch e.Type {
	case EvKey:
		return KindKey
	case EvAbs:
		return KindAbsoluteAxis
	default:
		return KindOther
	}
}

func (e RawEvent) String() string {
	return fmt.Sprintf("%s type=%d code=%d value=%d", e.Kind(), e.Type, e.Code, e.Value)
}

// Decode decodes a 16-byte little-endian record. ok is false for any other
// buffer length.
func Decode(b []byte) (RawEvent, bool) {
	return DecodeRecord(b, RecordSize)
}

// DecodeRecord decodes a record of the given size. Every bit pattern of a
// correctly sized buffer decodes.
func DecodeRecord(b []byte, size int) (RawEvent, bool) {
	if len(b) != size || (size != RecordSize && size != RecordSize64) {
		return RawEvent{}, false
	}
	off := size - 8
	return RawEvent{
		Type:  binary.LittleEndian.Uint16(b[off : off+2]),
		Code:  binary.LittleEndian.Uint16(b[off+2 : off+4]),
		Value: int32(binary.LittleEndian.Uint32(b[off+4 : off+8])),
	}, true
}

// Encode produces a record of the given size with a zero timestamp.
func Encode(e RawEvent, size int) []byte {
	if size != RecordSize64 {
		size = RecordSize
	}
	b := make([]byte, size)
	off := size - 8
	binary.LittleEndian.PutUint16(b[off:off+2], e.Type)
	binary.LittleEndian.PutUint16(b[off+2:off+4], e.Code)
	binary.LittleEndian.PutUint32(b[off+4:off+8], uint32(e.Value))
	return b
}

// Parser reassembles records from a byte stream that may be split at any
// offset.
type Parser struct {
	size int
	buf  []byte
}

func NewParser(size int) *Parser {
	if size != RecordSize64 {
		size = RecordSize
	}
	return &Parser{size: size}
}

func (p *Parser) Size() int {
	return p.size
}

// Pending returns the number of buffered bytes that do not yet form a record.
func (p *Parser) Pending() int {
	return len(p.buf)
}

// Feed buffers chunk and yields every complete record. Records not consumed
// because iteration stopped early stay buffered.
func (p *Parser) Feed(chunk []byte) iter.Seq[RawEvent] {
	p.buf = append(p.buf, chunk...)
	return func(yield func(RawEvent) bool) {
		for len(p.buf) >= p.size {
			ev, _ := DecodeRecord(p.buf[:p.size], p.size)
			p.buf = p.buf[p.size:]
			if !yield(ev) {
				return
			}
		}
		if len(p.buf) == 0 {
			p.buf = nil
		}
	}
}
