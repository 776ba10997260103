package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"brandguard/internal/stream"
)

// handleStreamEvents pushes stream snapshots as server-sent events until the
// configured number of iterations is reached or the client goes away.
func (s *Server) handleStreamEvents(c *gin.Context) {
	threshold := s.opts.Stream.Threshold
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a number"})
			return
		}
		threshold = v
	}

	sim := stream.NewSimulator(s.mentions, stream.Options{
		BatchSize: s.opts.Stream.BatchSize,
		Window:    s.opts.Stream.Window,
		Threshold: stream.ClampThreshold(threshold),
	}, nil)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	err := sim.Run(ctx, s.opts.Stream.Interval, s.opts.Stream.Iterations, func(snap stream.Snapshot) error {
		c.SSEvent("snapshot", snap)
		c.Writer.Flush()
		return ctx.Err()
	})
	if err != nil {
		s.logger.Debug("stream closed early", zap.Error(err))
		return
	}
	c.SSEvent("done", gin.H{"iterations": s.opts.Stream.Iterations})
	c.Writer.Flush()
}
