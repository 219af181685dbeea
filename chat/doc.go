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


// Package chat answers questions within persistent sessions.
//
// Service.Ask records the question, answers it from the response cache when
// possible and otherwise from the generation backend, then records the answer
// together with the document excerpts that support it.
//
// Basic usage:
//
//	svc, err := chat.NewService(repos.Sessions, repos.Messages, repos.Evidence,
//		repos.Documents, be, chat.WithCache(responses))
//	if err != nil {
//		return err
//	}
//	answer, err := svc.Ask(ctx, "", "What excuses performance of a contract?")
//
// Backend failures are reported as ErrGenerationFailed. The question stays in
// the session history either way.
package chat
