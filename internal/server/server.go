// Package server exposes the chat core over HTTP. Chat turns stream as
// newline-delimited JSON events; everything else is plain JSON.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pageassist/internal/auth"
	"pageassist/internal/chat"
	pkgerrors "pageassist/internal/errors"
	"pageassist/internal/history"
	"pageassist/internal/logging"
	"pageassist/internal/prompts"
	"pageassist/internal/provider"
)

// Options wires the server's collaborators.
type Options struct {
	Orchestrator *chat.Orchestrator
	History      *history.Store
	Providers    *provider.Registry
	Prompts      *prompts.Store
	Auth         *auth.Manager
	Indexer      chat.PageIndexer
}

// Server is the HTTP surface.
type Server struct {
	opts   Options
	engine *gin.Engine
	logger logging.Logger
}

// New builds the server and its routes.
func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		opts:   opts,
		engine: engine,
		logger: logging.NewComponentLogger("server"),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("listening on %s", addr)
	return s.engine.Run(addr)
}

func (s *Server) routes() {
	api := s.engine.Group("/api")

	api.POST("/chat", s.handleChat)
	api.POST("/chat/stop", s.handleStop)

	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id", s.handleGetSession)
	api.DELETE("/sessions/:id", s.handleDeleteSession)
	api.POST("/sessions/:id/branch", s.handleBranch)
	api.PUT("/sessions/:id/messages/:index", s.handleEditMessage)
	api.POST("/sessions/:id/regenerate", s.handleRegenerate)

	api.GET("/providers", s.handleListProviders)
	api.POST("/providers", s.handlePutProvider)
	api.DELETE("/providers/:id", s.handleDeleteProvider)

	api.GET("/prompts", s.handleListPrompts)
	api.POST("/prompts", s.handleSavePrompt)
	api.DELETE("/prompts/:id", s.handleDeletePrompt)

	api.POST("/index", s.handleIndex)
	api.POST("/login", s.handleLogin)
}

// handleChat streams a turn as NDJSON. The connection stays open until the
// turn reaches a terminal state; closing it cancels the turn.
func (s *Server) handleChat(c *gin.Context) {
	var turn chat.Turn
	if err := c.ShouldBindJSON(&turn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")

	writer := c.Writer
	encoder := json.NewEncoder(writer)
	emit := func(event chat.Event) {
		if err := encoder.Encode(event); err != nil {
			return
		}
		writer.Flush()
	}

	_, err := s.opts.Orchestrator.Submit(c.Request.Context(), turn, emit)
	if err != nil && err == chat.ErrBusy {
		// Nothing streamed yet; a plain status still applies.
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleStop(c *gin.Context) {
	s.opts.Orchestrator.StopStreaming()
	c.JSON(http.StatusOK, gin.H{"state": s.opts.Orchestrator.State()})
}

func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.opts.History.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.opts.History.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.opts.History.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBranch(c *gin.Context) {
	var req struct {
		Index int `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	branchID, err := s.opts.Orchestrator.CreateBranch(c.Request.Context(), c.Param("id"), req.Index)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": branchID})
}

func (s *Server) handleEditMessage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message index"})
		return
	}
	var req struct {
		Text   string `json:"text"`
		IsUser bool   `json:"is_user"`
		Model  string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// An assistant edit mutates in place; a user edit resubmits and streams
	// the regenerated answer.
	if !req.IsUser {
		if _, err := s.opts.Orchestrator.EditMessage(c.Request.Context(), c.Param("id"), index, req.Text, false, "", nil); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	writer := c.Writer
	encoder := json.NewEncoder(writer)
	wrote := false
	emit := func(event chat.Event) {
		if err := encoder.Encode(event); err != nil {
			return
		}
		wrote = true
		writer.Flush()
	}
	_, err = s.opts.Orchestrator.EditMessage(c.Request.Context(), c.Param("id"), index, req.Text, true, req.Model, emit)
	if err != nil && !wrote {
		if err == chat.ErrBusy {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.fail(c, err)
	}
}

func (s *Server) handleRegenerate(c *gin.Context) {
	var req struct {
		Model string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	writer := c.Writer
	encoder := json.NewEncoder(writer)
	emit := func(event chat.Event) {
		if err := encoder.Encode(event); err != nil {
			return
		}
		writer.Flush()
	}

	_, err := s.opts.Orchestrator.RegenerateLast(c.Request.Context(), c.Param("id"), req.Model, emit)
	if err != nil && err == chat.ErrBusy {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleListProviders(c *gin.Context) {
	descs, err := s.opts.Providers.List()
	if err != nil {
		s.fail(c, err)
		return
	}
	for i := range descs {
		descs[i].APIKey = ""
	}
	c.JSON(http.StatusOK, descs)
}

func (s *Server) handlePutProvider(c *gin.Context) {
	var desc provider.Descriptor
	if err := c.ShouldBindJSON(&desc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.opts.Providers.Put(desc); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": desc.ID})
}

func (s *Server) handleDeleteProvider(c *gin.Context) {
	if err := s.opts.Providers.Remove(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListPrompts(c *gin.Context) {
	list, err := s.opts.Prompts.List()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleSavePrompt(c *gin.Context) {
	var p prompts.Prompt
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := s.opts.Prompts.Save(p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (s *Server) handleDeletePrompt(c *gin.Context) {
	if err := s.opts.Prompts.Delete(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleIndex(c *gin.Context) {
	if s.opts.Indexer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "indexing is not configured"})
		return
	}
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.opts.Indexer.IndexURL(c.Request.Context(), req.URL); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": req.URL})
}

func (s *Server) handleLogin(c *gin.Context) {
	if s.opts.Auth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "SSO is not configured"})
		return
	}
	var creds auth.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.opts.Auth.SetCredentials(creds); err != nil {
		s.fail(c, err)
		return
	}
	if _, err := s.opts.Auth.GetValidToken(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "authenticated"})
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case pkgerrors.IsConfig(err):
		status = http.StatusUnprocessableEntity
	case pkgerrors.IsAuth(err):
		status = http.StatusUnauthorized
	case pkgerrors.IsCancellation(err):
		status = 499
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
