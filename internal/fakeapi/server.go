package fakeapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/matheus3301/inbox/internal/remote"
	"go.uber.org/zap"
)

// DefaultTokenTTL is how long issued tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

const ctxUserID = "userID"

type authClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Server exposes a Backend over HTTP under /api.
type Server struct {
	backend  *Backend
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.Logger
	engine   *gin.Engine
}

// NewServer builds the router. secret signs the bearer tokens.
func NewServer(b *Backend, secret string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		backend:  b,
		secret:   []byte(secret),
		tokenTTL: DefaultTokenTTL,
		logger:   logger,
		engine:   gin.New(),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.Use(gin.Recovery(), s.requestLogger())

	api := s.engine.Group("/api")
	api.POST("/auth/login", s.login)

	authed := api.Group("", s.authMiddleware())
	authed.GET("/auth/me", s.me)
	authed.POST("/auth/logout", s.logout)

	authed.GET("/conversations", s.listConversations)
	authed.POST("/conversations", s.createConversation)
	authed.GET("/conversations/user/:id", s.conversationWith)
	authed.GET("/conversations/:id", s.getConversation)
	authed.PUT("/conversations/:id", s.updateConversation)
	authed.DELETE("/conversations/:id", s.deleteConversation)

	authed.GET("/messages/unread/count", s.unreadCount)
	authed.GET("/messages/search", s.searchMessages)
	authed.GET("/messages/conversation/:id", s.listMessages)
	authed.POST("/messages", s.sendMessage)
	authed.PUT("/messages/:id", s.updateMessage)
	authed.PUT("/messages/:id/read", s.markRead)
	authed.DELETE("/messages/:id", s.deleteMessage)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Server) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := authClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(raw string) (*authClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &authClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims := token.Claims.(*authClaims)
	if s.backend.isRevoked(claims.ID) {
		return nil, errors.New("token revoked")
	}
	return claims, nil
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			abort(c, http.StatusUnauthorized, "missing token")
			return
		}
		claims, err := s.parseToken(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			abort(c, http.StatusUnauthorized, err.Error())
			return
		}
		if _, err := s.backend.user(claims.UserID); err != nil {
			abort(c, http.StatusUnauthorized, "unknown user")
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set("tokenID", claims.ID)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.MustGet(ctxUserID).(string)
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "message": "ok", "data": data})
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}

func respondErr(c *gin.Context, err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		abort(c, ae.status, ae.msg)
		return
	}
	abort(c, http.StatusInternalServerError, err.Error())
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid body")
		return
	}
	u, err := s.backend.authenticate(req.Email, req.Password)
	if err != nil {
		respondErr(c, err)
		return
	}
	token, err := s.issueToken(u.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, remote.Session{Token: token, User: u})
}

func (s *Server) me(c *gin.Context) {
	u, err := s.backend.user(userID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

func (s *Server) logout(c *gin.Context) {
	s.backend.revoke(c.GetString("tokenID"))
	ok(c, http.StatusOK, nil)
}

func (s *Server) listConversations(c *gin.Context) {
	ok(c, http.StatusOK, s.backend.listConversations(userID(c), queryInt(c, "page"), queryInt(c, "limit")))
}

func (s *Server) getConversation(c *gin.Context) {
	conv, err := s.backend.getConversation(userID(c), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, conv)
}

func (s *Server) conversationWith(c *gin.Context) {
	conv, err := s.backend.conversationWith(userID(c), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, conv)
}

type createConversationReq struct {
	ParticipantIDs []string `json:"participantIds" binding:"required"`
}

func (s *Server) createConversation(c *gin.Context) {
	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid body")
		return
	}
	conv, err := s.backend.createConversation(userID(c), req.ParticipantIDs)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusCreated, conv)
}

type updateConversationReq struct {
	Action remote.MembershipAction `json:"action" binding:"required"`
	UserID string                  `json:"userId" binding:"required"`
}

func (s *Server) updateConversation(c *gin.Context) {
	var req updateConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid body")
		return
	}
	conv, err := s.backend.updateConversation(userID(c), c.Param("id"), req.Action, req.UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, conv)
}

func (s *Server) deleteConversation(c *gin.Context) {
	if err := s.backend.deleteConversation(userID(c), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

func (s *Server) listMessages(c *gin.Context) {
	msgs, err := s.backend.listMessages(userID(c), c.Param("id"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, msgs)
}

type sendMessageReq struct {
	ReceiverID string   `json:"receiverId" binding:"required"`
	Message    string   `json:"message"`
	Files      []string `json:"files"`
}

func (s *Server) sendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid body")
		return
	}
	m, err := s.backend.sendMessage(userID(c), remote.SendMessageRequest{
		ReceiverID: req.ReceiverID,
		Message:    req.Message,
		Files:      req.Files,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

type updateMessageReq struct {
	Message string `json:"message" binding:"required"`
}

func (s *Server) updateMessage(c *gin.Context) {
	var req updateMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid body")
		return
	}
	m, err := s.backend.updateMessage(userID(c), c.Param("id"), req.Message)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

func (s *Server) markRead(c *gin.Context) {
	m, err := s.backend.markRead(userID(c), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

func (s *Server) deleteMessage(c *gin.Context) {
	if err := s.backend.deleteMessage(userID(c), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

func (s *Server) unreadCount(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"unreadCount": s.backend.unreadCount(userID(c))})
}

func (s *Server) searchMessages(c *gin.Context) {
	msgs, err := s.backend.searchMessages(userID(c), c.Query("query"), c.Query("conversationId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, msgs)
}
