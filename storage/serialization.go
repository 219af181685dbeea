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
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/counsel/core"
)

// Records are encoded field by field with MUS primitives in declaration order.
// Field order is part of the on-disk format: append new fields, never reorder.

var (
	idMUS           = idSer{}
	timeMUS         = timeSer{}
	sessionMUS      = sessionSer{}
	messageMUS      = messageSer{}
	evidenceMUS     = evidenceSer{}
	documentMUS     = documentSer{}
	chunkMUS        = chunkSer{}
	cachedAnswerMUS = cachedAnswerSer{}
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, idMUS.Size(id))
	idMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := idMUS.Unmarshal(data)
	return id, wrapDecode(err)
}

// MarshalSession serializes a Session to bytes.
func MarshalSession(session *core.Session) []byte {
	buf := make([]byte, sessionMUS.Size(*session))
	sessionMUS.Marshal(*session, buf)
	return buf
}

// UnmarshalSession deserializes a Session from bytes.
func UnmarshalSession(data []byte) (*core.Session, error) {
	session, _, err := sessionMUS.Unmarshal(data)
	if err != nil {
		return nil, wrapDecode(err)
	}
	return &session, nil
}

// MarshalMessage serializes a Message to bytes.
func MarshalMessage(msg *core.Message) []byte {
	buf := make([]byte, messageMUS.Size(*msg))
	messageMUS.Marshal(*msg, buf)
	return buf
}

// UnmarshalMessage deserializes a Message from bytes.
func UnmarshalMessage(data []byte) (*core.Message, error) {
	msg, _, err := messageMUS.Unmarshal(data)
	if err != nil {
		return nil, wrapDecode(err)
	}
	return &msg, nil
}

// MarshalEvidence serializes an Evidence record to bytes.
func MarshalEvidence(ev *core.Evidence) []byte {
	buf := make([]byte, evidenceMUS.Size(*ev))
	evidenceMUS.Marshal(*ev, buf)
	return buf
}

// UnmarshalEvidence deserializes an Evidence record from bytes.
func UnmarshalEvidence(data []byte) (*core.Evidence, error) {
	ev, _, err := evidenceMUS.Unmarshal(data)
	if err != nil {
		return nil, wrapDecode(err)
	}
	return &ev, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, documentMUS.Size(*doc))
	documentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := documentMUS.Unmarshal(data)
	if err != nil {
		return nil, wrapDecode(err)
	}
	return &doc, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, chunkMUS.Size(*chunk))
	chunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := chunkMUS.Unmarshal(data)
	if err != nil {
		return nil, wrapDecode(err)
	}
	return &chunk, nil
}

// MarshalCachedAnswer serializes a CachedAnswer to bytes.
func MarshalCachedAnswer(answer *core.CachedAnswer) []byte {
	buf := make([]byte, cachedAnswerMUS.Size(*answer))
	cachedAnswerMUS.Marshal(*answer, buf)
	return buf
}

// UnmarshalCachedAnswer deserializes a CachedAnswer from bytes.
func UnmarshalCachedAnswer(data []byte) (*core.CachedAnswer, error) {
	answer, _, err := cachedAnswerMUS.Unmarshal(data)
	if err != nil {
		return nil, wrapDecode(err)
	}
	return &answer, nil
}

func wrapDecode(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
}

// idSer

type idSer struct{}

func (idSer) Marshal(v core.ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idSer) Unmarshal(bs []byte) (core.ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return core.ID(v), n, err
}

func (idSer) Size(v core.ID) int {
	return varint.Uint64.Size(uint64(v))
}

// TimePrecision is the resolution timestamps survive a round trip with.
const TimePrecision = time.Microsecond

// Now returns the current UTC time truncated to TimePrecision, so a record
// handed back on write equals the one read back later.
func Now() time.Time {
	return time.Now().UTC().Truncate(TimePrecision)
}

// timeSer stores UTC microseconds; the zero time is stored as 0.

type timeSer struct{}

func (timeSer) micros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func (s timeSer) Marshal(v time.Time, bs []byte) int {
	return varint.Int64.Marshal(s.micros(v), bs)
}

func (timeSer) Unmarshal(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || v == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func (s timeSer) Size(v time.Time) int {
	return varint.Int64.Size(s.micros(v))
}

// sessionSer

type sessionSer struct{}

func (sessionSer) Marshal(v core.Session, bs []byte) (n int) {
	n = ord.String.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.UserId, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += timeMUS.Marshal(v.CreatedAt, bs[n:])
	n += timeMUS.Marshal(v.UpdatedAt, bs[n:])
	n += timeMUS.Marshal(v.LastMessageAt, bs[n:])
	return
}

func (sessionSer) Unmarshal(bs []byte) (v core.Session, n int, err error) {
	var n1 int
	v.Id, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.UserId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = timeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = timeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastMessageAt, n1, err = timeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (sessionSer) Size(v core.Session) (size int) {
	size = ord.String.Size(v.Id)
	size += ord.String.Size(v.UserId)
	size += ord.String.Size(v.Title)
	size += timeMUS.Size(v.CreatedAt)
	size += timeMUS.Size(v.UpdatedAt)
	return size + timeMUS.Size(v.LastMessageAt)
}

// messageSer

type messageSer struct{}

func (messageSer) Marshal(v core.Message, bs []byte) (n int) {
	n = idMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.SessionId, bs[n:])
	n += varint.Int.Marshal(int(v.Role), bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += ord.String.Marshal(v.Model, bs[n:])
	n += varint.Int.Marshal(v.TokensUsed, bs[n:])
	n += varint.Int64.Marshal(v.ResponseTimeMs, bs[n:])
	n += ord.Bool.Marshal(v.Cached, bs[n:])
	n += ord.Bool.Marshal(v.HasReferences, bs[n:])
	n += timeMUS.Marshal(v.CreatedAt, bs[n:])
	return
}

func (messageSer) Unmarshal(bs []byte) (v core.Message, n int, err error) {
	var (
		n1   int
		role int
	)
	v.Id, n, err = idMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.SessionId, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	role, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Role = core.Role(role)
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Model, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.TokensUsed, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ResponseTimeMs, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Cached, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.HasReferences, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = timeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (messageSer) Size(v core.Message) (size int) {
	size = idMUS.Size(v.Id)
	size += ord.String.Size(v.SessionId)
	size += varint.Int.Size(int(v.Role))
	size += ord.String.Size(v.Content)
	size += ord.String.Size(v.Model)
	size += varint.Int.Size(v.TokensUsed)
	size += varint.Int64.Size(v.ResponseTimeMs)
	size += ord.Bool.Size(v.Cached)
	size += ord.Bool.Size(v.HasReferences)
	return size + timeMUS.Size(v.CreatedAt)
}

// evidenceSer

type evidenceSer struct{}

func (evidenceSer) Marshal(v core.Evidence, bs []byte) (n int) {
	n = idMUS.Marshal(v.Id, bs)
	n += idMUS.Marshal(v.MessageId, bs[n:])
	n += idMUS.Marshal(v.DocumentId, bs[n:])
	n += ord.String.Marshal(v.ChunkText, bs[n:])
	n += ord.String.Marshal(v.ChunkPosition, bs[n:])
	n += varint.Float64.Marshal(v.SimilarityScore, bs[n:])
	n += varint.Int.Marshal(v.PageNumber, bs[n:])
	n += timeMUS.Marshal(v.CreatedAt, bs[n:])
	return
}

func (evidenceSer) Unmarshal(bs []byte) (v core.Evidence, n int, err error) {
	var n1 int
	v.Id, n, err = idMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.MessageId, n1, err = idMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.DocumentId, n1, err = idMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ChunkText, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ChunkPosition, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SimilarityScore, n1, err = varint.Float64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.PageNumber, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = timeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (evidenceSer) Size(v core.Evidence) (size int) {
	size = idMUS.Size(v.Id)
	size += idMUS.Size(v.MessageId)
	size += idMUS.Size(v.DocumentId)
	size += ord.String.Size(v.ChunkText)
	size += ord.String.Size(v.ChunkPosition)
	size += varint.Float64.Size(v.SimilarityScore)
	size += varint.Int.Size(v.PageNumber)
	return size + timeMUS.Size(v.CreatedAt)
}

// documentSer

type documentSer struct{}

func (documentSer) Marshal(v core.Document, bs []byte) (n int) {
	n = idMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Category, bs[n:])
	n += ord.String.Marshal(v.FileName, bs[n:])
	n += ord.String.Marshal(v.FilePath, bs[n:])
	n += ord.String.Marshal(v.FileType, bs[n:])
	n += varint.Int64.Marshal(v.FileSize, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += varint.Int.Marshal(int(v.Status), bs[n:])
	n += varint.Int.Marshal(v.ParseProgress, bs[n:])
	n += ord.String.Marshal(v.ParseError, bs[n:])
	n += varint.Int.Marshal(v.VectorCount, bs[n:])
	n += timeMUS.Marshal(v.UploadedAt, bs[n:])
	n += timeMUS.Marshal(v.ParsedAt, bs[n:])
	return
}

func (documentSer) Unmarshal(bs []byte) (v core.Document, n int, err error) {
	var (
		n1     int
		status int
	)
	v.Id, n, err = idMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	for _, field := range []*string{&v.Title, &v.Category, &v.FileName, &v.FilePath, &v.FileType} {
		*field, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	v.FileSize, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	status, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Status = core.DocumentStatus(status)
	v.ParseProgress, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ParseError, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.VectorCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UploadedAt, n1, err = timeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ParsedAt, n1, err = timeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (documentSer) Size(v core.Document) (size int) {
	size = idMUS.Size(v.Id)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Category)
	size += ord.String.Size(v.FileName)
	size += ord.String.Size(v.FilePath)
	size += ord.String.Size(v.FileType)
	size += varint.Int64.Size(v.FileSize)
	size += ord.String.Size(v.Content)
	size += varint.Int.Size(int(v.Status))
	size += varint.Int.Size(v.ParseProgress)
	size += ord.String.Size(v.ParseError)
	size += varint.Int.Size(v.VectorCount)
	size += timeMUS.Size(v.UploadedAt)
	return size + timeMUS.Size(v.ParsedAt)
}

// chunkSer

type chunkSer struct{}

func (chunkSer) Marshal(v core.Chunk, bs []byte) (n int) {
	n = idMUS.Marshal(v.Id, bs)
	n += idMUS.Marshal(v.DocumentId, bs[n:])
	n += varint.Int.Marshal(v.Index, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += ord.String.Marshal(v.Position, bs[n:])
	n += varint.Int.Marshal(v.PageNumber, bs[n:])
	n += varint.Int.Marshal(len(v.Vector), bs[n:])
	for _, f := range v.Vector {
		n += varint.Float32.Marshal(f, bs[n:])
	}
	return
}

func (chunkSer) Unmarshal(bs []byte) (v core.Chunk, n int, err error) {
	var (
		n1     int
		length int
	)
	v.Id, n, err = idMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.DocumentId, n1, err = idMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Index, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Position, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.PageNumber, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	length, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if length < 0 || length > len(bs)-n {
		err = ErrBadLength
		return
	}
	if length > 0 {
		v.Vector = make([]float32, length)
		for i := range v.Vector {
			v.Vector[i], n1, err = varint.Float32.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
		}
	}
	return
}

func (chunkSer) Size(v core.Chunk) (size int) {
	size = idMUS.Size(v.Id)
	size += idMUS.Size(v.DocumentId)
	size += varint.Int.Size(v.Index)
	size += ord.String.Size(v.Text)
	size += ord.String.Size(v.Position)
	size += varint.Int.Size(v.PageNumber)
	size += varint.Int.Size(len(v.Vector))
	for _, f := range v.Vector {
		size += varint.Float32.Size(f)
	}
	return
}

// cachedAnswerSer

type cachedAnswerSer struct{}

func (cachedAnswerSer) Marshal(v core.CachedAnswer, bs []byte) (n int) {
	n = ord.String.Marshal(v.Answer, bs)
	n += ord.String.Marshal(v.Model, bs[n:])
	n += varint.Int.Marshal(len(v.References), bs[n:])
	for _, ref := range v.References {
		n += idMUS.Marshal(ref.DocumentId, bs[n:])
		n += ord.String.Marshal(ref.ChunkText, bs[n:])
		n += ord.String.Marshal(ref.ChunkPosition, bs[n:])
		n += varint.Float64.Marshal(ref.SimilarityScore, bs[n:])
		n += varint.Int.Marshal(ref.PageNumber, bs[n:])
	}
	return
}

func (cachedAnswerSer) Unmarshal(bs []byte) (v core.CachedAnswer, n int, err error) {
	var (
		n1     int
		length int
	)
	v.Answer, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Model, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	length, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if length < 0 || length > len(bs)-n {
		err = ErrBadLength
		return
	}
	if length > 0 {
		v.References = make([]core.CachedReference, length)
	}
	for i := range v.References {
		ref := &v.References[i]
		ref.DocumentId, n1, err = idMUS.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		ref.ChunkText, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		ref.ChunkPosition, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		ref.SimilarityScore, n1, err = varint.Float64.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		ref.PageNumber, n1, err = varint.Int.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (cachedAnswerSer) Size(v core.CachedAnswer) (size int) {
	size = ord.String.Size(v.Answer)
	size += ord.String.Size(v.Model)
	size += varint.Int.Size(len(v.References))
	for _, ref := range v.References {
		size += idMUS.Size(ref.DocumentId)
		size += ord.String.Size(ref.ChunkText)
		size += ord.String.Size(ref.ChunkPosition)
		size += varint.Float64.Size(ref.SimilarityScore)
		size += varint.Int.Size(ref.PageNumber)
	}
	return
}
