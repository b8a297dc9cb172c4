// Package server exposes the core over HTTP for the web client: JSON
// endpoints for the request/response operations and an SSE endpoint
// bridging the live change streams.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fightr/fightr-core/internal/app"
	"github.com/fightr/fightr-core/internal/config"
	svcErr "github.com/fightr/fightr-core/internal/errors"
	"github.com/fightr/fightr-core/internal/service/profile"
	"github.com/fightr/fightr-core/internal/session"
	"github.com/fightr/fightr-core/internal/stream"
)

const (
	userHeader   = "X-User-ID"
	maxImageSize = 8 << 20
)

type Server struct {
	appCtx   *app.AppContext
	sessions *session.Manager
	engine   *gin.Engine
	http     *http.Server
}

// NewServer builds the router. Identity comes from the X-User-ID header;
// authentication itself lives in the identity provider upstream.
func NewServer(cfg *config.Config, appCtx *app.AppContext, sessions *session.Manager) *Server {
	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		appCtx:   appCtx,
		sessions: sessions,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes(cfg)

	s.http = &http.Server{
		Addr:    cfg.HTTP.Host + ":" + cfg.HTTP.Port,
		Handler: s.engine,
	}
	return s
}

func (s *Server) routes(cfg *config.Config) {
	s.engine.GET("/healthz", s.health)
	s.engine.Static(cfg.Blob.BaseURL, cfg.Blob.Dir)

	api := s.engine.Group("/api", s.identity)
	{
		api.GET("/feed", s.feed)

		api.POST("/likes", s.like)
		api.GET("/likes/count", s.likeCount)

		api.GET("/matches", s.matches)
		api.POST("/matches/:id/arrange", s.arrangeFight)

		api.GET("/conversations/:userId", s.conversation)
		api.POST("/conversations/:userId/messages", s.sendMessage)
		api.POST("/conversations/:userId/read", s.markRead)
		api.GET("/conversations/:userId/unread", s.unreadCount)

		api.GET("/profile", s.getProfile)
		api.PUT("/profile", s.saveProfile)
		api.POST("/profile/image", s.uploadImage)

		api.GET("/events", s.events)
		api.DELETE("/session", s.logout)
	}
}

// Handler exposes the router, used by tests driving requests in-process.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.appCtx.Logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and tears down every session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.sessions.CloseAll()
	return err
}

// identity binds the request to a session. Every /api route requires it.
func (s *Server) identity(c *gin.Context) {
	userID := c.GetHeader(userHeader)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + userHeader + " header"})
		return
	}
	c.Set("session", s.sessions.Open(userID))
	c.Next()
}

func sess(c *gin.Context) *session.Session {
	return c.MustGet("session").(*session.Session)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := svcErr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.appCtx.Logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": svcErr.Message(err)})
}

func (s *Server) health(c *gin.Context) {
	if err := s.appCtx.RedisCache.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func pageParams(c *gin.Context) (*string, int) {
	var token *string
	if v := c.Query("cursor"); v != "" {
		token = &v
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	return token, limit
}

func (s *Server) feed(c *gin.Context) {
	token, limit := pageParams(c)
	profiles, next, err := sess(c).Candidates(c.Request.Context(), token, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles, "nextCursor": next})
}

func (s *Server) like(c *gin.Context) {
	var body struct {
		TargetID string `json:"targetId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "targetId is required"})
		return
	}
	res, err := sess(c).Like(c.Request.Context(), body.TargetID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) likeCount(c *gin.Context) {
	count, err := sess(c).LikeCount(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) matches(c *gin.Context) {
	token, limit := pageParams(c)
	list, next, err := sess(c).Matches(c.Request.Context(), token, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": list, "nextCursor": next})
}

func (s *Server) arrangeFight(c *gin.Context) {
	view, err := sess(c).ArrangeFight(c.Request.Context(), c.Param("id"))
	if err != nil && !errors.Is(err, svcErr.ErrCounterpartMissing) {
		s.fail(c, err)
		return
	}
	// counterpart-missing still updated the caller's half
	c.JSON(svcErr.HTTPStatus(err), view)
}

func (s *Server) conversation(c *gin.Context) {
	msgs, err := sess(c).Conversation(c.Request.Context(), c.Param("userId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) sendMessage(c *gin.Context) {
	var body struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid message body"})
		return
	}
	msg, err := sess(c).Send(c.Request.Context(), c.Param("userId"), body.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) markRead(c *gin.Context) {
	if err := sess(c).MarkRead(c.Request.Context(), c.Param("userId")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) unreadCount(c *gin.Context) {
	count, err := sess(c).UnreadCount(c.Request.Context(), c.Param("userId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) getProfile(c *gin.Context) {
	p, err := sess(c).Profile(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) saveProfile(c *gin.Context) {
	var in profile.SaveInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid profile body"})
		return
	}
	p, err := sess(c).SaveProfile(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// uploadImage accepts a multipart image and re-saves the profile with the
// resolved media URL.
func (s *Server) uploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if file.Size > maxImageSize {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, err)
		return
	}

	ss := sess(c)
	current, err := ss.Profile(c.Request.Context())
	if err != nil && !errors.Is(err, svcErr.ErrProfileNotFound) {
		s.fail(c, err)
		return
	}

	in := profile.SaveInput{Image: data, ImageName: file.Filename}
	if current != nil {
		in.Name = current.Name
		in.Age = current.Age
		in.Contact = current.Contact
		in.Bio = current.Bio
		in.Height = current.Height
		in.Weight = current.Weight
		in.Training = current.Training
	}
	p, err := ss.SaveProfile(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// events streams document changes over SSE. Collections are selected with
// ?collections=matches,messages,profiles; all three when omitted.
func (s *Server) events(c *gin.Context) {
	ss := sess(c)
	ctx := c.Request.Context()

	wanted := map[string]bool{}
	if raw := c.Query("collections"); raw != "" {
		for _, col := range splitCollections(raw) {
			wanted[col] = true
		}
	} else {
		wanted[stream.CollectionMatches] = true
		wanted[stream.CollectionMessages] = true
		wanted[stream.CollectionProfiles] = true
	}

	merged := make(chan stream.DocumentChange, 16)
	var subs []*stream.Subscription
	open := func(sub *stream.Subscription, err error) error {
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		go func() {
			for change := range sub.Events() {
				select {
				case merged <- change:
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}

	var err error
	if wanted[stream.CollectionMatches] && err == nil {
		err = open(ss.MatchEvents(ctx))
	}
	if wanted[stream.CollectionMessages] && err == nil {
		err = open(ss.MessageEvents(ctx))
	}
	if wanted[stream.CollectionProfiles] && err == nil {
		err = open(ss.ProfileEvents(ctx))
	}
	if err != nil {
		for _, sub := range subs {
			_ = sub.Close()
		}
		s.fail(c, err)
		return
	}
	defer func() {
		for _, sub := range subs {
			_ = sub.Close()
		}
	}()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case change := <-merged:
			c.SSEvent("change", change)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (s *Server) logout(c *gin.Context) {
	sess(c).Close()
	c.Status(http.StatusNoContent)
}

func splitCollections(raw string) []string {
	var out []string
	for _, col := range strings.Split(raw, ",") {
		if col = strings.TrimSpace(col); col != "" {
			out = append(out, col)
		}
	}
	return out
}
