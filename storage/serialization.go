// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/learnbot/core"
)

// Timestamps are stored as Unix microseconds.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(id), nil
}

// MarshalFragment serializes a Fragment to bytes.
func MarshalFragment(f *core.Fragment) []byte {
	size := varint.Uint64.Size(uint64(f.Id)) +
		ord.String.Size(f.Content) +
		sizeStringMap(f.Metadata) +
		sizeVector(f.Vector) +
		ord.String.Size(f.EmbeddingModel) +
		sizeTime(f.InsertedAt) +
		sizeTime(f.UpdatedAt)

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(f.Id), buf)
	n += ord.String.Marshal(f.Content, buf[n:])
	n += marshalStringMap(f.Metadata, buf[n:])
	n += marshalVector(f.Vector, buf[n:])
	n += ord.String.Marshal(f.EmbeddingModel, buf[n:])
	n += marshalTime(f.InsertedAt, buf[n:])
	marshalTime(f.UpdatedAt, buf[n:])
	return buf
}

// UnmarshalFragment deserializes a Fragment from bytes.
func UnmarshalFragment(data []byte) (*core.Fragment, error) {
	r := &reader{data: data}
	f := &core.Fragment{
		Id:             core.ID(r.uint64()),
		Content:        r.string(),
		Metadata:       r.stringMap(),
		Vector:         r.vector(),
		EmbeddingModel: r.string(),
		InsertedAt:     r.time(),
		UpdatedAt:      r.time(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}

// MarshalTurn serializes a Turn to bytes.
func MarshalTurn(t *core.Turn) []byte {
	size := varint.Uint64.Size(uint64(t.Id)) +
		ord.String.Size(t.SessionID) +
		ord.String.Size(t.Input) +
		ord.String.Size(t.Response) +
		ord.String.Size(string(t.Intent)) +
		ord.Bool.Size(t.IsValid) +
		ord.String.Size(t.Error) +
		sizeTime(t.Timestamp) +
		sizeTime(t.InsertedAt)

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(t.Id), buf)
	n += ord.String.Marshal(t.SessionID, buf[n:])
	n += ord.String.Marshal(t.Input, buf[n:])
	n += ord.String.Marshal(t.Response, buf[n:])
	n += ord.String.Marshal(string(t.Intent), buf[n:])
	n += ord.Bool.Marshal(t.IsValid, buf[n:])
	n += ord.String.Marshal(t.Error, buf[n:])
	n += marshalTime(t.Timestamp, buf[n:])
	marshalTime(t.InsertedAt, buf[n:])
	return buf
}

// UnmarshalTurn deserializes a Turn from bytes.
func UnmarshalTurn(data []byte) (*core.Turn, error) {
	r := &reader{data: data}
	t := &core.Turn{
		Id:         core.ID(r.uint64()),
		SessionID:  r.string(),
		Input:      r.string(),
		Response:   r.string(),
		Intent:     core.Intent(r.string()),
		IsValid:    r.bool(),
		Error:      r.string(),
		Timestamp:  r.time(),
		InsertedAt: r.time(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return t, nil
}

// MarshalVector serializes an embedding vector to bytes.
func MarshalVector(v []float32) []byte {
	buf := make([]byte, sizeVector(v))
	marshalVector(v, buf)
	return buf
}

// UnmarshalVector deserializes an embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	r := &reader{data: data}
	v := r.vector()
	if r.err != nil {
		return nil, r.err
	}
	return v, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func sizeVector(v []float32) int {
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalVector(v []float32, bs []byte) int {
	n := varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

// sizeStringMap and marshalStringMap write entries in sorted key order so
// equal maps encode to equal bytes.
func sizeStringMap(m map[string]string) int {
	size := varint.Int.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	return size
}

func marshalStringMap(m map[string]string, bs []byte) int {
	n := varint.Int.Marshal(len(m), bs)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(m[k], bs[n:])
	}
	return n
}

// reader decodes sequential fields and keeps the first error.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) fail(err error) {
	if r.err == nil && err != nil {
		r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

func (r *reader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.data[r.off:])
	r.off += n
	r.fail(err)
	return v
}

func (r *reader) int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.data[r.off:])
	r.off += n
	r.fail(err)
	return v
}

func (r *reader) length() int {
	l := r.int()
	if r.err == nil && (l < 0 || l > len(r.data)-r.off) {
		r.fail(ErrTruncatedData)
		return 0
	}
	return l
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.data[r.off:])
	r.off += n
	r.fail(err)
	return v
}

func (r *reader) bool() bool {
	if r.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(r.data[r.off:])
	r.off += n
	r.fail(err)
	return v
}

func (r *reader) time() time.Time {
	if r.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(r.data[r.off:])
	r.off += n
	r.fail(err)
	return time.UnixMicro(v).UTC()
}

func (r *reader) vector() []float32 {
	l := r.length()
	if r.err != nil || l == 0 {
		return nil
	}
	v := make([]float32, l)
	for i := range v {
		f, n, err := raw.Float32.Unmarshal(r.data[r.off:])
		r.off += n
		if err != nil {
			r.fail(err)
			return nil
		}
		v[i] = f
	}
	return v
}

func (r *reader) stringMap() map[string]string {
	l := r.length()
	if r.err != nil || l == 0 {
		return nil
	}
	m := make(map[string]string, l)
	for i := 0; i < l; i++ {
		k := r.string()
		v := r.string()
		if r.err != nil {
			return nil
		}
		m[k] = v
	}
	return m
}
