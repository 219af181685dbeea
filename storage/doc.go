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


// Package storage provides the storage abstraction layer for counsel.
//
// This package defines repository interfaces that decouple persistence
// from the query orchestration logic. The only implementation shipped
// is BadgerDB (package storage/badger).
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - SessionRepository: conversation sessions (lazy, idempotent creation)
//   - MessageRepository: per-session ordered message log
//   - EvidenceRepository: ranked excerpts attached to assistant messages
//   - DocumentRepository: document metadata and parse status
//   - ChunkRepository: embedded chunks for in-process vector search
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	repos, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer repos.Close()
//
// # Serialization
//
// Records are stored in a compact binary form produced by the MUS
// serializers in serialization.go.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
