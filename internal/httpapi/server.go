// Package httpapi embeds the checkout orchestrator behind the HTTP surface
// the marketplace front end consumes: session endpoints, gateway widget event
// ingress, the out-of-band order-status read, and the realtime stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"tollgate/internal/checkout"
	"tollgate/internal/gateway"
	"tollgate/internal/observability"
	"tollgate/internal/orderapi"
	"tollgate/internal/realtime"
)

const clientIDHeader = "X-Client-ID"

// OrderReader reads order status for the standalone status surface.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (orderapi.GetOrderResponse, error)
}

// Config holds the router's rate limiting settings.
type Config struct {
	RateLimitInterval time.Duration
	RateLimitBurst    int
}

// Server wires the checkout endpoints.
type Server struct {
	manager *Manager
	bridge  *gateway.Bridge
	orders  OrderReader
	hub     *realtime.Hub
	metrics *observability.Metrics
	logf    func(format string, args ...any)

	upgrader websocket.Upgrader
}

// NewServer constructs a Server.
func NewServer(manager *Manager, bridge *gateway.Bridge, orders OrderReader, hub *realtime.Hub, metrics *observability.Metrics) *Server {
	if manager == nil || bridge == nil || orders == nil {
		panic("httpapi: manager, bridge, and order reader are required")
	}
	return &Server{
		manager: manager,
		bridge:  bridge,
		orders:  orders,
		hub:     hub,
		metrics: metrics,
		logf:    log.Printf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Router builds the chi router with rate limiting and per-route metrics.
func (s *Server) Router(cfg Config) http.Handler {
	limiter := newTokenBucketLimiter(cfg.RateLimitInterval, cfg.RateLimitBurst, s.metrics.AddRateLimitWait)

	r := chi.NewRouter()
	r.Use(metricsMiddleware(s.metrics))
	r.Use(rateLimitMiddleware(limiter))

	r.Route("/api", func(r chi.Router) {
		r.Post("/checkout", s.handleStart)
		r.Route("/checkout/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Post("/gateway/success", s.handleGatewaySuccess)
			r.Post("/gateway/failure", s.handleGatewayFailure)
			r.Post("/gateway/dismiss", s.handleGatewayDismiss)
			r.Post("/close", s.handleClose)
			r.Post("/retry", s.handleRetry)
		})
		r.Get("/orders/{orderID}", s.handleOrderStatus)
	})
	r.Get("/ws", s.handleWebsocket)

	return r
}

type startRequest struct {
	DatasetID    string  `json:"datasetId"`
	DatasetTitle string  `json:"datasetTitle"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get(clientIDHeader)
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "client id header is required")
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DatasetID == "" {
		writeError(w, http.StatusBadRequest, "datasetId is required")
		return
	}

	orch := s.manager.ForClient(clientID)
	snap, err := orch.Start(r.Context(), checkout.Purchase{
		DatasetID:    req.DatasetID,
		DatasetTitle: req.DatasetTitle,
		Amount:       req.Amount,
		Currency:     req.Currency,
	})
	if errors.Is(err, checkout.ErrSessionActive) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logf("checkout start failed: %v", err)
		writeError(w, http.StatusInternalServerError, "checkout could not be started")
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGatewaySuccess(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var payload gateway.SuccessPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.bridge.DeliverSuccess(r.Context(), sessionID, payload); err != nil {
		s.deliverError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type failureRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleGatewayFailure(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req failureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.bridge.DeliverFailure(r.Context(), sessionID, req.Reason); err != nil {
		s.deliverError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGatewayDismiss(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.bridge.DeliverDismiss(r.Context(), sessionID); err != nil {
		s.deliverError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type closeRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	orch, _, ok := s.sessionFor(w, r)
	if !ok {
		return
	}

	var req closeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := orch.RequestClose(r.Context(), req.Force); err != nil {
		if errors.Is(err, checkout.ErrProcessing) {
			writeError(w, http.StatusConflict, checkout.MsgProcessing)
			return
		}
		s.logf("checkout close failed: %v", err)
		writeError(w, http.StatusInternalServerError, "close failed")
		return
	}
	writeJSON(w, http.StatusOK, orch.Snapshot())
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	orch, _, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	if err := orch.Retry(r.Context()); err != nil {
		if errors.Is(err, checkout.ErrProcessing) {
			writeError(w, http.StatusConflict, checkout.MsgProcessing)
			return
		}
		if errors.Is(err, checkout.ErrNotRetryable) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logf("checkout retry failed: %v", err)
		writeError(w, http.StatusInternalServerError, "retry failed")
		return
	}
	writeJSON(w, http.StatusOK, orch.Snapshot())
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	read, err := s.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		var apiErr *orderapi.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.logf("order status read failed for %s: %v", orderID, err)
		writeError(w, http.StatusBadGateway, "order status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, read)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotImplemented, "realtime stream disabled")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.hub.Register <- conn

	// Drain client frames so pings are answered; unregister on first error.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.Unregister <- conn
				return
			}
		}
	}()
}

// sessionFor resolves the client's orchestrator and checks the session id in
// the path still names the live session.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*checkout.Orchestrator, checkout.Snapshot, bool) {
	clientID := r.Header.Get(clientIDHeader)
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "client id header is required")
		return nil, checkout.Snapshot{}, false
	}
	orch := s.manager.ForClient(clientID)
	snap := orch.Snapshot()
	if snap.SessionID != chi.URLParam(r, "sessionID") {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, checkout.Snapshot{}, false
	}
	return orch, snap, true
}

func (s *Server) deliverError(w http.ResponseWriter, err error) {
	if errors.Is(err, gateway.ErrNoOpenWidget) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "gateway event delivery failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
