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


package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/poiesic/counsel/chat"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
	"github.com/poiesic/counsel/stream"
)

var (
	// ErrChatServiceRequired is returned when a chat service is not provided.
	ErrChatServiceRequired = errors.New("chat service required")

	// ErrStreamerRequired is returned when a streamer is not provided.
	ErrStreamerRequired = errors.New("streamer required")

	// ErrSearcherRequired is returned when a searcher is not provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrDocumentServiceRequired is returned when a document service is not provided.
	ErrDocumentServiceRequired = errors.New("document service required")
)

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrGenerationFailed):
		return http.StatusBadGateway
	case errors.Is(err, stream.ErrBusy), errors.Is(err, stream.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
