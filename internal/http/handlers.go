package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Mrigank923/Voy/internal/dispatch"
	"github.com/Mrigank923/Voy/internal/engine"
	"github.com/Mrigank923/Voy/internal/match"
	"github.com/Mrigank923/Voy/internal/models"
	"github.com/Mrigank923/Voy/internal/ride"
)

type Server struct {
	Engine *engine.Engine
	WSReg  *dispatch.WSRegistry

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(e *engine.Engine, wsreg *dispatch.WSRegistry, logger *slog.Logger) *Server {
	s := &Server{Engine: e, WSReg: wsreg, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/rides/request", s.handleRideRequest).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{request_id}/cancel", s.handleRideCancel).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{request_id}/start", s.handleTripStart).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{request_id}/complete", s.handleTripComplete).Methods("POST")
	s.mux.HandleFunc("/api/v1/offers/{offer_id}/respond", s.handleOfferRespond).Methods("POST")
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/internal/driver/{driver_id}/offline", s.handleDriverOffline).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleRideRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RiderID string              `json:"rider_id"`
		Pickup  models.Coord        `json:"pickup"`
		Class   models.VehicleClass `json:"class"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.RiderID == "" {
		http.Error(w, "rider_id required", http.StatusBadRequest)
		return
	}
	id, err := s.Engine.SubmitRideRequest(body.RiderID, body.Pickup, body.Class)
	if err != nil {
		http.Error(w, "could not register request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"request_id": id})
}

func (s *Server) handleRideCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["request_id"]
	switch err := s.Engine.CancelRideRequest(id); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, match.ErrUnknownRequest):
		http.Error(w, "unknown request", http.StatusNotFound)
	case errors.Is(err, ride.ErrInvalidTransition):
		http.Error(w, "request already finished", http.StatusConflict)
	default:
		http.Error(w, "cancel failed", http.StatusInternalServerError)
	}
}

func (s *Server) handleTripStart(w http.ResponseWriter, r *http.Request) {
	s.applyTripCall(w, mux.Vars(r)["request_id"], s.Engine.StartTrip)
}

func (s *Server) handleTripComplete(w http.ResponseWriter, r *http.Request) {
	s.applyTripCall(w, mux.Vars(r)["request_id"], s.Engine.CompleteTrip)
}

func (s *Server) applyTripCall(w http.ResponseWriter, id string, fn func(string) error) {
	switch err := fn(id); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, match.ErrUnknownRequest):
		http.Error(w, "unknown request", http.StatusNotFound)
	case errors.Is(err, ride.ErrInvalidTransition):
		http.Error(w, "invalid transition", http.StatusConflict)
	default:
		http.Error(w, "update failed", http.StatusInternalServerError)
	}
}

func (s *Server) handleOfferRespond(w http.ResponseWriter, r *http.Request) {
	offerID := mux.Vars(r)["offer_id"]
	var body struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch err := s.Engine.DriverRespond(offerID, body.Accept); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, match.ErrOfferExpired):
		http.Error(w, "offer expired", http.StatusGone)
	case errors.Is(err, match.ErrRequestCancelled):
		http.Error(w, "request cancelled", http.StatusGone)
	default:
		http.Error(w, "respond failed", http.StatusInternalServerError)
	}
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var p models.LocationPing
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	// stale pings are dropped inside the feed, never errored
	s.Engine.DriverPing(p)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDriverOffline(w http.ResponseWriter, r *http.Request) {
	s.Engine.DriverOffline(mux.Vars(r)["driver_id"])
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	sess := s.WSReg.Add(id, conn)
	go func() {
		defer func() {
			s.WSReg.Remove(id, sess)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
