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


// Package ai provides abstractions for the model services used by counsel's
// in-process backend.
//
// Two capabilities are modelled:
//
//   - Embedder: turns text into vectors for semantic search
//   - Generator: answers a prompt with a language model
//
// AIProvider bundles both so they share configuration and lifecycle.
//
// # Implementation Packages
//
//   - ai/openai: langchaingo clients for OpenAI-compatible services
//   - ai/mock: test doubles with injectable behavior
//
// Production constructors return interfaces; mock constructors return
// concrete types so tests can inject behavior and inspect call counts.
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "force majeure")
//	gen, err := provider.Generator().Generate(ctx, system, prompt)
package ai
