package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"bracket-trader/internal/errors"
	"bracket-trader/internal/models"
)

// createOrderRequest is the intake payload for a new bracket intent. The
// caller supplies a trading symbol; the server resolves it to an instrument
// identifier before storing.
type createOrderRequest struct {
	Symbol       string  `json:"symbol"`
	Quantity     int     `json:"quantity"`
	TriggerPrice float64 `json:"trigger_price"`
	LimitPrice   float64 `json:"limit_price"`
	StopLoss     float64 `json:"stop_loss"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decoding request"))
		return
	}

	instrument, err := s.resolver.Resolve(req.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrapf(err, "symbol %q", req.Symbol))
		return
	}

	intent := &models.Intent{
		Instrument:   instrument,
		Quantity:     req.Quantity,
		TriggerPrice: req.TriggerPrice,
		LimitPrice:   req.LimitPrice,
		StopLoss:     req.StopLoss,
	}
	id, err := s.store.CreateIntent(r.Context(), intent)
	if err != nil {
		var verr *errors.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	created, err := s.store.GetIntent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	var (
		intents []models.Intent
		err     error
	)
	if r.URL.Query().Get("status") == string(models.StatusPending) {
		intents, err = s.store.ListPending(r.Context())
	} else {
		intents, err = s.store.ListIntents(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if intents == nil {
		intents = []models.Intent{}
	}
	writeJSON(w, http.StatusOK, intents)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	intent, err := s.store.GetIntent(r.Context(), id)
	if errors.Is(err, errors.ErrIntentNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.actions.CancelIntent(r.Context(), id); err != nil {
		writeActionError(w, err)
		return
	}
	intent, err := s.store.GetIntent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (s *Server) handleForceExit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.actions.ForceExit(r.Context(), id); err != nil {
		writeActionError(w, err)
		return
	}
	intent, err := s.store.GetIntent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (s *Server) handleSearchInstruments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, s.resolver.Search(query, limit))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.gateway.CheckConnectivity(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connected":      true,
		"account_id":     info.AccountID,
		"available_cash": info.AvailableCash,
		"open_positions": info.OpenPositions,
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents streams lifecycle events to the client over a websocket until
// either side disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub.ID)

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Channel:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parsing order id")
	}
	return id, nil
}

func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrIntentNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, errors.ErrNotPending), errors.Is(err, errors.ErrNotExecuted):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}
