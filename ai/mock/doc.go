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


// Package mock provides test doubles for the ai interfaces.
//
// Behavior is injected through exported function fields; when a field is nil
// the mock falls back to a deterministic default.
//
//	gen := mock.NewMockGenerator()
//	gen.GenerateFunc = func(ctx context.Context, system, prompt string) (*ai.Generation, error) {
//	    return &ai.Generation{Text: "stub"}, nil
//	}
//
//	// Check call counts
//	count := gen.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockGenerator: Echoes the prompt length in a fixed answer
//   - MockProvider: Aggregates mock embedder and generator
package mock
