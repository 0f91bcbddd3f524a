// Copyright 2025 SCION Association
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package objstream implements the length-prefixed binary framing used by
// the classifier image: a stream is a concatenation of blobs, each preceded
// by a little-endian u32 length. A sub-stream can be carved out of a parent
// stream and parsed recursively, which is how the image nests iSet and
// remainder objects inside the top-level engine object.
package objstream

import (
	"encoding/binary"
	"math"

	"github.com/theojepsen/nuevomatch/pkg/private/serrors"
)

// ErrImageCorrupt is returned whenever the stream ends early or a length
// prefix describes more bytes than remain. It is the sole error kind
// produced by this package; callers wrap it with their own context.
var ErrImageCorrupt = serrors.New("image corrupt")

// Reader parses a length-prefixed binary stream. The zero value is not
// usable; construct with NewReader.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential, length-checked reads.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Buffer returns the full backing slice of the reader (not just the
// unconsumed remainder). Used when an object needs to retain a copy of its
// own serialized form for later re-packing.
func (r *Reader) Buffer() []byte { return r.buf }

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if n < 0 || r.Remaining() < n {
		return serrors.WrapStr("truncated stream", ErrImageCorrupt,
			"need", n, "have", r.Remaining())
	}
	return nil
}

// Uint32 reads one little-endian u32.
func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// Uint32Slice reads n little-endian u32 values.
func (r *Reader) Uint32Slice(n int) ([]uint32, error) {
	if n < 0 {
		return nil, serrors.WrapStr("negative slice length", ErrImageCorrupt, "n", n)
	}
	if err := r.need(4 * n); err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(r.buf[r.pos:])
		r.pos += 4
	}
	return out, nil
}

// Float64 reads one little-endian IEEE-754 double via its u64 bit pattern.
func (r *Reader) Float64() (float64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	bits := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return math.Float64frombits(bits), nil
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// SubReader consumes one length-prefixed blob and returns a Reader scoped to
// it, ready for recursive parsing.
func (r *Reader) SubReader() (*Reader, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, serrors.WrapStr("reading sub-object length", err)
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return nil, serrors.WrapStr("reading sub-object body", err, "length", n)
	}
	return NewReader(b), nil
}

// Writer accumulates a buffer and length-prefixes nested sub-objects.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty writer.
func NewWriter() *Writer { return &Writer{} }

// PutUint32 appends one little-endian u32.
func (w *Writer) PutUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutUint32Slice appends a sequence of little-endian u32 values.
func (w *Writer) PutUint32Slice(vs []uint32) {
	for _, v := range vs {
		w.PutUint32(v)
	}
}

// PutFloat64 appends one little-endian IEEE-754 double via its u64 bit pattern.
func (w *Writer) PutFloat64(v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	w.buf = append(w.buf, tmp[:]...)
}

// PutBytes appends raw bytes verbatim (no length prefix).
func (w *Writer) PutBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutSub length-prefixes and appends a nested object's bytes.
func (w *Writer) PutSub(b []byte) {
	w.PutUint32(uint32(len(b)))
	w.PutBytes(b)
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }
