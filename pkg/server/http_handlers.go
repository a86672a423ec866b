package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/erain9/meshmock/pkg/api"
	"github.com/erain9/meshmock/pkg/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is handled by the router wrapper.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ErrorResponse is the body of every non-2xx HTTP reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HTTPHandler serves the JSON and websocket API.
type HTTPHandler struct {
	service *QueryService
	router  *mux.Router
}

// NewHTTPHandler builds the router for service.
func NewHTTPHandler(service *QueryService) *HTTPHandler {
	h := &HTTPHandler{
		service: service,
		router:  mux.NewRouter(),
	}
	h.setupRoutes()
	return h
}

func (h *HTTPHandler) setupRoutes() {
	h.router.Use(logging.HTTPMiddleware)

	v1 := h.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/orders", h.handleListOrders).Methods(http.MethodGet)
	v1.HandleFunc("/orders", h.handleAddOrders).Methods(http.MethodPost)
	v1.HandleFunc("/orders/query", h.handleQueryOrders).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{hash}", h.handleGetOrder).Methods(http.MethodGet)
	v1.HandleFunc("/stats", h.handleStats).Methods(http.MethodGet)
	v1.HandleFunc("/events", h.handleEvents)

	h.router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
}

// Handler returns the router wrapped with CORS.
func (h *HTTPHandler) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", logging.RequestIDHeader},
		ExposedHeaders: []string{logging.RequestIDHeader},
	})
	return c.Handler(h.router)
}

func (h *HTTPHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	order, err := h.service.Order(r.Context(), hash)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, api.OrderResponse{Order: order})
}

// handleListOrders runs the default query. An optional limit parameter
// overrides the default limit.
func (h *HTTPHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	req := &api.OrdersRequest{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		req.Limit = &limit
	}
	h.listOrders(w, r, req)
}

func (h *HTTPHandler) handleQueryOrders(w http.ResponseWriter, r *http.Request) {
	req := &api.OrdersRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	h.listOrders(w, r, req)
}

func (h *HTTPHandler) listOrders(w http.ResponseWriter, r *http.Request, req *api.OrdersRequest) {
	orders, err := h.service.Orders(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, api.OrdersResponse{Orders: orders})
}

func (h *HTTPHandler) handleAddOrders(w http.ResponseWriter, r *http.Request) {
	req := &api.AddOrdersRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	results, err := h.service.AddOrders(r.Context(), req.Orders, req.IsPinned())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvents upgrades to a websocket and writes one JSON order event per
// text message until either side goes away.
func (h *HTTPHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	id := logging.RequestID(r.Context())
	sub := h.service.Subscribe(id)
	if sub == nil {
		respondError(w, http.StatusServiceUnavailable, "events_disabled", "order events are not enabled")
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// The read side only services control frames and notices disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug().Err(err).Msg("Websocket read error")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// respondServiceError maps service errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch kind := errorKind(err); kind {
	case "invalid_query":
		respondError(w, http.StatusBadRequest, kind, err.Error())
	case "deadline":
		respondError(w, http.StatusGatewayTimeout, kind, err.Error())
	case "canceled":
		// client went away; nobody reads the reply
		w.WriteHeader(499)
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
