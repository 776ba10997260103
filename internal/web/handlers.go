package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"brandguard/internal/events"
	"brandguard/internal/model"
	"brandguard/internal/session"
	"brandguard/internal/stream"
)

const (
	defaultBins = 20
	maxBins     = 200
)

// Pages

func (s *Server) handleIndex(c *gin.Context) {
	if _, err := s.lookupSession(c); err == nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

func (s *Server) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	if err := s.users.Authenticate(username, password); err != nil {
		s.logger.Info("login rejected", zap.String("username", username))
		c.HTML(http.StatusOK, "login.html", gin.H{"error": "Invalid Credentials"})
		return
	}

	// A fresh token on every login.
	if old, err := c.Cookie(s.opts.SessionCookie); err == nil && old != "" {
		if err := s.sessions.Delete(c.Request.Context(), old); err != nil {
			s.logger.Warn("failed to drop previous session", zap.Error(err))
		}
	}

	sess, err := s.sessions.Create(c.Request.Context(), username)
	if err != nil {
		s.logger.Error("failed to create session", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{"error": "Login unavailable, try again later"})
		return
	}
	s.setSessionCookie(c, sess.Token)
	s.logger.Info("login", zap.String("username", username))
	c.Redirect(http.StatusFound, "/dashboard")
}

func (s *Server) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(s.opts.SessionCookie); err == nil && token != "" {
		if err := s.sessions.Delete(c.Request.Context(), token); err != nil {
			s.logger.Error("failed to delete session", zap.Error(err))
		}
	}
	s.clearSessionCookie(c)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleDashboard(c *gin.Context) {
	sess := currentSession(c)
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"username": sess.Username,
		"brands":   s.mentions.Brands(),
		"columns":  s.mentions.Mapping(),
		"rows":     s.mentions.Head(s.opts.SampleRows),
		"total":    s.mentions.Len(),
	})
}

func (s *Server) handleStreamPage(c *gin.Context) {
	c.HTML(http.StatusOK, "stream.html", gin.H{
		"username":     currentSession(c).Username,
		"threshold":    stream.ClampThreshold(s.opts.Stream.Threshold),
		"minThreshold": stream.MinThreshold,
		"maxThreshold": stream.MaxThreshold,
		"iterations":   s.opts.Stream.Iterations,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"mentions": s.mentions.Len(),
	})
}

// API handlers

func (s *Server) handlePredict(c *gin.Context) {
	// Decoded into a map rather than bound to a struct: an empty object counts
	// as no input, which ShouldBindJSON cannot tell apart from {"comment":""}.
	var body map[string]any
	raw, err := c.GetRawData()
	if err == nil {
		err = json.Unmarshal(raw, &body)
	}
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No input provided"})
		return
	}

	comment := strings.TrimSpace(stringField(body, "comment"))
	brand := strings.TrimSpace(stringField(body, "brand"))
	if comment == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment cannot be empty"})
		return
	}

	ctx := c.Request.Context()
	pred, err := s.predictor.Predict(ctx, comment)
	if err != nil {
		s.logger.Error("prediction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sess := currentSession(c)
	level := model.Risk(pred.Label)
	now := time.Now().UTC()

	entry := session.Entry{
		Brand:      brand,
		Comment:    comment,
		Label:      pred.Label,
		Risk:       level,
		Confidence: pred.Confidence,
		At:         now,
	}
	if err := s.sessions.AppendHistory(ctx, sess.Token, entry); err != nil {
		s.logger.Warn("failed to record history", zap.Error(err))
	}

	event := events.PredictionEvent{
		Username:   sess.Username,
		Brand:      brand,
		Comment:    comment,
		Label:      pred.Label,
		Risk:       level,
		Confidence: pred.Confidence,
		At:         now,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish prediction event", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"brand":      brand,
		"risk":       pred.Label,
		"confidence": pred.Confidence,
		"level":      level,
	})
}

func stringField(body map[string]any, key string) string {
	v, _ := body[key].(string)
	return v
}

func (s *Server) handleBrandStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.mentions.Stats(c.Param("brand")))
}

func (s *Server) handleHistogram(c *gin.Context) {
	bins := defaultBins
	if raw := c.Query("bins"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxBins {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bins must be between 1 and 200"})
			return
		}
		bins = n
	}
	c.JSON(http.StatusOK, s.mentions.LengthHistogram(c.Param("brand"), bins))
}

func (s *Server) handleHistory(c *gin.Context) {
	entries, err := s.sessions.History(c.Request.Context(), currentSession(c).Token)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []session.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}
