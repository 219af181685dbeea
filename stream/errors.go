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


package stream

import "errors"

var (
	// ErrBusy is returned when every streaming worker is occupied.
	ErrBusy = errors.New("too many concurrent streams")

	// ErrClosed is returned by Stream after Close.
	ErrClosed = errors.New("streamer closed")

	// ErrAskerRequired is returned when no question answerer is provided.
	ErrAskerRequired = errors.New("asker required")
)
