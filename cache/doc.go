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


// Package cache provides the content-addressed answer cache.
//
// Answers are keyed by a hash of the whitespace-normalized question, so two
// questions that differ only in spacing share an entry while letter case is
// significant. Entries hold the answer text, the model that produced it, and
// the full reference content so a hit can be re-linked as fresh evidence.
//
// The byte-level store is pluggable:
//
//   - storage/badger.CacheStore keeps entries in the main database with per-entry TTL
//   - cache/rediscache shares entries between processes through Redis
//   - cache/sqlitecache keeps entries in a standalone SQLite file
package cache
