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


// Package search provides hybrid keyword and semantic document search.
//
// The Searcher runs two legs concurrently:
//
//   - a keyword match over document titles and content, restricted to
//     documents whose parsing completed
//   - a semantic search delegated to the generation backend
//
// Keyword results enter with a fixed score. Documents found by both legs are
// merged into one hybrid result whose score is the better of the two plus a
// bonus. A failing semantic leg degrades the search to keyword results only.
package search
