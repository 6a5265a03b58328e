// Package httpapi exposes the command surface over HTTP. Routes are
// thin: decode, delegate, map the failure kind to a status code.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"okinoko-rps/internal/match"
	"okinoko-rps/internal/service"
)

// Server carries the handler dependencies.
type Server struct {
	svc *service.Service
	log *zap.Logger
}

// New builds the server.
func New(svc *service.Service, log *zap.Logger) *Server {
	return &Server{svc: svc, log: log}
}

// Router assembles the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/players", s.registerPlayer)
	r.GET("/players/:id/stats", s.playerStats)
	r.GET("/players/:id/matches", s.recentMatches)

	r.POST("/matches", s.createMatch)
	r.POST("/matches/join", s.joinOpenQuick)
	r.GET("/matches/:id", s.getMatch)
	r.POST("/matches/:id/join", s.joinByID)
	r.POST("/matches/:id/moves", s.submitMove)
	r.POST("/matches/:id/cancel", s.cancelMatch)
	r.POST("/matches/:id/resign", s.resignMatch)
	r.GET("/matches/:id/watch", s.watchMatch)

	return r
}

// statusFor maps failure kinds to HTTP status codes.
func statusFor(err error) int {
	switch match.KindOf(err) {
	case match.KindInvalidArgument:
		return http.StatusBadRequest
	case match.KindNotFound, match.KindNoMatchAvailable:
		return http.StatusNotFound
	case match.KindNotParticipant:
		return http.StatusForbidden
	case match.KindIllegalState, match.KindSelfJoin, match.KindPlayerBusy,
		match.KindDoubleSubmit, match.KindConflict:
		return http.StatusConflict
	case match.KindDeadlineExceeded:
		return http.StatusGone
	case match.KindTransientBackend:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(code, gin.H{"error": "internal error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error(), "kind": match.KindOf(err).String()})
}

type registerReq struct {
	ExternalID  int64  `json:"externalId" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
}

func (s *Server) registerPlayer(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := s.svc.RegisterPlayer(c.Request.Context(), req.ExternalID, req.DisplayName)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) playerStats(c *gin.Context) {
	v, err := s.svc.GetPlayerStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) recentMatches(c *gin.Context) {
	limit := 10
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
			return
		}
		limit = n
	}
	sums, err := s.svc.ListRecentMatches(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": sums})
}

type createMatchReq struct {
	PlayerID string `json:"playerId" binding:"required"`
	Mode     string `json:"mode"`
	BestOf   int    `json:"bestOf"`
}

func (s *Server) createMatch(c *gin.Context) {
	var req createMatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var (
		v   *match.View
		err error
	)
	switch req.Mode {
	case "", "quick":
		v, err = s.svc.CreateQuickMatch(c.Request.Context(), req.PlayerID, req.BestOf)
	case "private":
		v, err = s.svc.CreatePrivateMatch(c.Request.Context(), req.PlayerID, req.BestOf)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be quick or private"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

type playerReq struct {
	PlayerID string `json:"playerId" binding:"required"`
}

func (s *Server) joinOpenQuick(c *gin.Context) {
	var req playerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := s.svc.JoinOpenQuickMatch(c.Request.Context(), req.PlayerID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) joinByID(c *gin.Context) {
	var req playerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := s.svc.JoinMatchByID(c.Request.Context(), req.PlayerID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type moveReq struct {
	PlayerID string `json:"playerId" binding:"required"`
	Move     string `json:"move" binding:"required"`
}

func (s *Server) submitMove(c *gin.Context) {
	var req moveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := s.svc.SubmitMove(c.Request.Context(), req.PlayerID, c.Param("id"), req.Move)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) getMatch(c *gin.Context) {
	viewer := c.Query("playerId")
	if viewer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "playerId query parameter required"})
		return
	}
	v, err := s.svc.GetMatchView(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) cancelMatch(c *gin.Context) {
	var req playerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := s.svc.CancelMatch(c.Request.Context(), req.PlayerID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) resignMatch(c *gin.Context) {
	var req playerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := s.svc.ResignMatch(c.Request.Context(), req.PlayerID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
