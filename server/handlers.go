package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/poiesic/counsel/backend"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/stream"
)

type askRequest struct {
	SessionId string `json:"sessionId"`
	Question  string `json:"question"`
}

type searchRequest struct {
	Query    string `json:"query" query:"query"`
	Category string `json:"category" query:"category"`
	Limit    int    `json:"limit" query:"limit"`
}

type documentRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	FilePath string `json:"filePath"`
	FileType string `json:"fileType"`
	Content  string `json:"content"`
}

type parseStatusResponse struct {
	DocumentId    core.ID             `json:"documentId"`
	ParseStatus   core.DocumentStatus `json:"parseStatus"`
	ParseProgress int                 `json:"parseProgress"`
	ParseError    string              `json:"parseError,omitempty"`
	VectorCount   int                 `json:"vectorCount"`
}

func badRequest(format string, args ...any) error {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	answer, err := s.chat.Ask(c.Request().Context(), req.SessionId, req.Question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, answer)
}

func (s *Server) references(c echo.Context) error {
	id, err := parseID(c.Param("messageId"))
	if err != nil {
		return err
	}
	refs, err := s.chat.References(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, refs)
}

func (s *Server) history(c echo.Context) error {
	limit, err := queryInt(c, "limit", s.limits.History)
	if err != nil {
		return err
	}
	messages, err := s.chat.History(c.Request().Context(), c.QueryParam("sessionId"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messages)
}

func (s *Server) sessions(c echo.Context) error {
	limit, err := queryInt(c, "limit", s.limits.Sessions)
	if err != nil {
		return err
	}
	sessions, err := s.chat.Sessions(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) search(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid search request")
	}
	// An absent limit takes the default; an explicit non-positive one is rejected
	if req.Limit == 0 && !hasLimit(c) {
		req.Limit = s.limits.Search
	}
	results, err := s.searcher.HybridSearch(c.Request().Context(), req.Query, req.Category, req.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

func hasLimit(c echo.Context) bool {
	if c.Request().Method == http.MethodGet {
		return c.QueryParam("limit") != ""
	}
	return false
}

func (s *Server) stream(c echo.Context) error {
	question := c.QueryParam("question")
	if err := core.ValidateQuestion(question); err != nil {
		return err
	}

	ctx := c.Request().Context()
	events, err := s.streamer.Stream(ctx, c.QueryParam("sessionId"), question)
	if err != nil {
		return err
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	for ev := range events {
		if err := writeEvent(resp, ev); err != nil {
			// The consumer is gone; drain so the worker can finish
			s.logger.Debug("stream write failed", "err", err)
			for range events {
			}
			return nil
		}
		resp.Flush()
	}
	return nil
}

// writeEvent renders ev as one server-sent event frame.
func writeEvent(resp *echo.Response, ev stream.Event) error {
	var data string
	switch ev.Kind {
	case stream.EventMessage:
		data = ev.Data
	case stream.EventComplete:
		payload, err := json.Marshal(ev.Answer)
		if err != nil {
			return err
		}
		data = string(payload)
	case stream.EventError:
		data = ev.Err
	default:
		return fmt.Errorf("unknown event kind %s", ev.Kind)
	}

	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(ev.Kind.String())
	b.WriteByte('\n')
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := resp.Write([]byte(b.String()))
	return err
}

func (s *Server) registerDocument(c echo.Context) error {
	var req documentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid document request")
	}
	ctx := c.Request().Context()

	doc, err := s.documents.Register(ctx, &core.Document{
		Title:    req.Title,
		Category: req.Category,
		FilePath: req.FilePath,
		FileType: req.FileType,
		Content:  req.Content,
	})
	if err != nil {
		return err
	}

	// A rejected parse is recorded on the document itself
	if err := s.documents.TriggerParse(ctx, doc.Id); err != nil {
		s.logger.Warn("parse not started", "document", doc.Id, "err", err)
	}
	doc, err = s.documents.Get(ctx, doc.Id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

func (s *Server) getDocument(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	doc, err := s.documents.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) updateParseStatus(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	status, err := core.ParseDocumentStatus(strings.ToUpper(c.QueryParam("status")))
	if err != nil {
		return badRequest("invalid status %q", c.QueryParam("status"))
	}
	progress, err := queryInt(c, "progress", 0)
	if err != nil {
		return err
	}
	vectors, err := queryInt(c, "vectorCount", 0)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	err = s.documents.UpdateParseStatus(ctx, backend.StatusUpdate{
		DocumentId:  id,
		Status:      status,
		Progress:    progress,
		Error:       c.QueryParam("error"),
		VectorCount: vectors,
	})
	if err != nil {
		return err
	}

	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, parseStatusResponse{
		DocumentId:    doc.Id,
		ParseStatus:   doc.Status,
		ParseProgress: doc.ParseProgress,
		ParseError:    doc.ParseError,
		VectorCount:   doc.VectorCount,
	})
}

func parseID(raw string) (core.ID, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid id %q", raw)
	}
	return core.ID(id), nil
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return n, nil
}
