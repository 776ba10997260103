package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"brandguard/internal/events"
	"brandguard/internal/logging"
	"brandguard/internal/mentions"
	"brandguard/internal/model"
	"brandguard/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Authenticator checks a username and password pair.
type Authenticator interface {
	Authenticate(username, password string) error
}

// StreamOptions configures the live mention stream.
type StreamOptions struct {
	BatchSize  int
	Interval   time.Duration
	Iterations int
	Window     int
	Threshold  float64
}

// Options configures the server.
type Options struct {
	SessionCookie string
	SecureCookies bool
	SampleRows    int
	Stream        StreamOptions
}

// Server is the dashboard and prediction API.
type Server struct {
	mentions  *mentions.Table
	users     Authenticator
	sessions  session.Store
	predictor model.Predictor
	events    events.Publisher
	logger    *zap.Logger
	opts      Options
	router    *gin.Engine
}

// NewServer wires the routes. A nil publisher disables prediction events.
func NewServer(table *mentions.Table, users Authenticator, sessions session.Store, predictor model.Predictor, publisher events.Publisher, logger *zap.Logger, opts Options) (*Server, error) {
	if opts.SessionCookie == "" {
		opts.SessionCookie = "brandguard_session"
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = 20
	}
	if opts.Stream.Interval <= 0 {
		opts.Stream.Interval = 3 * time.Second
	}
	if opts.Stream.Iterations <= 0 {
		opts.Stream.Iterations = 50
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	router := gin.New()
	// Brand names are path parameters and may contain an escaped "/".
	router.UseRawPath = true
	router.Use(gin.Recovery(), logging.RequestLogger(logger))

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}
	router.StaticFS("/static", http.FS(static))

	s := &Server{
		mentions:  table,
		users:     users,
		sessions:  sessions,
		predictor: predictor,
		events:    publisher,
		logger:    logger,
		opts:      opts,
		router:    router,
	}

	// Pages
	router.GET("/", s.handleIndex)
	router.POST("/login", s.handleLogin)
	router.GET("/logout", s.handleLogout)
	router.GET("/health", s.handleHealth)

	pages := router.Group("/", s.requireSession(false))
	{
		pages.GET("/dashboard", s.handleDashboard)
		pages.GET("/stream", s.handleStreamPage)
	}

	// API routes
	api := router.Group("/", s.requireSession(true))
	{
		api.POST("/predict", s.handlePredict)
		api.GET("/brand_stats/:brand", s.handleBrandStats)
		api.GET("/histogram/:brand", s.handleHistogram)
		api.GET("/history", s.handleHistory)
		api.GET("/stream/events", s.handleStreamEvents)
	}

	return s, nil
}

// Handler exposes the router for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
