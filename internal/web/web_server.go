package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/pscan/internal/config"
	"github.com/BetterCallFirewall/pscan/internal/middlewares"
	"github.com/BetterCallFirewall/pscan/internal/models"
	"github.com/BetterCallFirewall/pscan/internal/pscan"
	"github.com/BetterCallFirewall/pscan/internal/websocket"
)

type storageI interface {
	GetAllAlerts() []models.Alert
	GetAlert(id string) (models.Alert, bool)
	GetAllMessages() []*models.HTTPMessage
	GetMessage(id string) (*models.HTTPMessage, bool)
}

type statsProvider interface {
	GetSummaryStats() models.StatsDTO
}

type ruleLister interface {
	All() []pscan.RuleStatus
}

// RuleView правило в ответе /api/rules
type RuleView struct {
	models.RuleInfo
	Threshold string `json:"threshold"`
	Enabled   bool   `json:"enabled"`
}

type Server struct {
	config  config.WebConfig
	storage storageI
	stats   statsProvider
	rules   ruleLister
	alerts  <-chan models.Alert
	hub     *websocket.Hub
	server  *http.Server
	logger  *zap.Logger

	alertSchema []byte
	startOnce   sync.Once
	done        chan struct{}
}

// NewServer создает API сервер. Находки из alerts рассылаются WebSocket клиентам.
func NewServer(
	cfg config.WebConfig,
	store storageI,
	stats statsProvider,
	rules ruleLister,
	alerts <-chan models.Alert,
	logger *zap.Logger,
) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	schema, err := json.Marshal(jsonschema.Reflect(&models.Alert{}))
	if err != nil {
		return nil, fmt.Errorf("alert schema: %w", err)
	}

	return &Server{
		config:      cfg,
		storage:     store,
		stats:       stats,
		rules:       rules,
		alerts:      alerts,
		hub:         websocket.NewHub(logger.Named("ws")),
		logger:      logger,
		alertSchema: schema,
		done:        make(chan struct{}),
	}, nil
}

// Run запускает WebSocket hub и пересылку находок, без HTTP листенера
func (s *Server) Run() {
	s.startOnce.Do(func() {
		go s.hub.Run()
		go s.forwardAlerts()
	})
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/alerts", s.handleGetAlerts)
	mux.HandleFunc("/api/alerts/", s.handleGetAlert)
	mux.HandleFunc("/api/rules", s.handleGetRules)
	mux.HandleFunc("/api/requests", s.handleGetRequests)
	mux.HandleFunc("/api/requests/", s.handleGetRequest)
	mux.HandleFunc("/api/stats", s.handleGetStats)
	mux.HandleFunc("/api/schema/alert", s.handleAlertSchema)

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.hub.ServeWS)

	mux.HandleFunc("/", s.handleDashboard)

	// Health check
	mux.HandleFunc(
		"/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
	)

	return middlewares.CORS(mux)
}

func (s *Server) Start() error {
	s.Run()

	s.server = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
	}

	s.logger.Info("📊 Web API listening", zap.String("addr", s.config.ListenAddr))
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	select {
	case <-s.done:
	default:
		close(s.done)
		s.hub.Stop()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) forwardAlerts() {
	if s.alerts == nil {
		return
	}
	for {
		select {
		case <-s.done:
			return
		case alert, ok := <-s.alerts:
			if !ok {
				return
			}
			s.hub.Broadcast("alert", alert)
		}
	}
}

func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.storage.GetAllAlerts())
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Path[len("/api/alerts/"):]
	alert, ok := s.storage.GetAlert(id)
	if !ok {
		http.Error(w, "Alert not found", http.StatusNotFound)
		return
	}
	writeJSON(w, alert)
}

func (s *Server) handleGetRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := s.rules.All()
	res := make([]RuleView, 0, len(all))
	for _, st := range all {
		res = append(res, RuleView{
			RuleInfo:  st.Rule.Info(),
			Threshold: st.Threshold.String(),
			Enabled:   st.Enabled(),
		})
	}
	writeJSON(w, res)
}

func (s *Server) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.storage.GetAllMessages())
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Path[len("/api/requests/"):]
	msg, ok := s.storage.GetMessage(id)
	if !ok {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	writeJSON(w, msg)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.stats.GetSummaryStats())
}

func (s *Server) handleAlertSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.Write(s.alertSchema)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}
