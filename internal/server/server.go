package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/collabkit/server/internal/collab"
	"github.com/collabkit/server/internal/config"
	"github.com/collabkit/server/internal/security"
	"github.com/collabkit/server/internal/storage"
	"github.com/collabkit/server/internal/websocket"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Configure CORS properly
	},
}

// Server wires the HTTP endpoints, websocket hub, collaboration service and
// persistence backends together.
type Server struct {
	config   *config.Config
	logger   *zap.Logger
	hub      *websocket.Hub
	collab   *collab.Service
	store    storage.Gateway
	bridge   *storage.RedisBridge
	security *security.SecurityManager
	server   *http.Server
	cancel   context.CancelFunc
}

// New creates a server, connecting the configured persistence backends.
// Without a DATABASE_URL the server runs on in-memory storage; without a
// REDIS_URL it runs single-instance.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var store storage.Gateway
	if cfg.DatabaseURL != "" {
		pg := storage.NewPostgresGateway(&storage.Config{
			ConnectionString:  cfg.DatabaseURL,
			PoolMinConns:      2,
			PoolMaxConns:      10,
			ConnectionTimeout: 5 * time.Second,
		})
		if err := pg.Connect(ctx); err != nil {
			return nil, err
		}
		store = pg
		logger.Info("connected to PostgreSQL")
	} else {
		mem := storage.NewMemoryGateway()
		mem.Connect(ctx)
		store = mem
		logger.Info("running with in-memory storage")
	}

	var bridge *storage.RedisBridge
	if cfg.RedisURL != "" {
		b, err := storage.NewRedisBridge(&storage.RedisBridgeConfig{
			URL:           cfg.RedisURL,
			ChannelPrefix: cfg.RedisChannelPrefix,
			ServerID:      uuid.NewString(),
		})
		if err != nil {
			return nil, err
		}
		if err := b.Connect(ctx); err != nil {
			return nil, err
		}
		bridge = b
		logger.Info("connected to Redis event bridge")
	}

	hub := websocket.NewHub(cfg.JWTSecret, logger)
	svc := collab.New(logger, hub, store, bridge, collab.Options{
		HistorySize:     cfg.HistorySize,
		IdleThreshold:   cfg.IdleThreshold,
		AwayThreshold:   cfg.AwayThreshold,
		SweepInterval:   cfg.LivenessSweep,
		PersistQueueLen: cfg.PersistQueueLen,
	})
	hub.SetCollab(svc)

	runCtx, runCancel := context.WithCancel(context.Background())
	go hub.Run()
	go svc.Run(runCtx)

	return &Server{
		config:   cfg,
		logger:   logger,
		hub:      hub,
		collab:   svc,
		store:    store,
		bridge:   bridge,
		security: security.NewSecurityManager(),
		cancel:   runCancel,
	}, nil
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.corsMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and tears down the
// collaboration service and its backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)

	s.cancel()
	s.collab.Close()
	s.security.Dispose()
	if s.bridge != nil {
		s.bridge.Disconnect(ctx)
	}
	s.store.Disconnect(ctx)

	return err
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"name":        "CollabKit Server",
		"version":     "1.0.0",
		"description": "Real-time collaborative document synchronization server",
		"endpoints": map[string]string{
			"health": "/health",
			"ws":     "/ws",
		},
		"features": map[string]string{
			"presence":   "Cursors, selections and activity status per workspace",
			"locks":      "Exclusive write locks per document element",
			"operations": "Versioned path-addressed document mutations",
			"comments":   "Element-anchored annotations",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	storageOK, _ := s.store.HealthCheck(ctx)
	if !storageOK {
		status = "degraded"
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"storage":   storageOK,
	}
	if s.bridge != nil {
		redisOK, _ := s.bridge.HealthCheck(ctx)
		response["redis"] = redisOK
		if !redisOK {
			status = "degraded"
			response["status"] = status
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := s.remoteIP(r)
	if !s.security.ConnectionLimiter.CanConnect(clientIP) {
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.security.ConnectionLimiter.AddConnection(clientIP)

	conn := websocket.NewConnection(generateConnID(), ws, s.hub)
	conn.ClientIP = clientIP
	conn.SecurityManager = s.security
	s.hub.Register <- conn

	go conn.WritePump()
	go conn.ReadPump()
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// remoteIP resolves the client address the connection limiter keys on.
// X-Forwarded-For is client-controlled, so it is only honored when the
// deployment declares a trusted reverse proxy, and only its first entry
// (the originating client) is used.
func (s *Server) remoteIP(r *http.Request) string {
	if s.config.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if i := strings.IndexByte(fwd, ','); i >= 0 {
				fwd = fwd[:i]
			}
			if ip := strings.TrimSpace(fwd); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func generateConnID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
