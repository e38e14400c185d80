// Package dispatch delivers offers to drivers and lifecycle events to
// riders. Delivery transports (websocket, HTTP push) are collaborators the
// engine treats as opaque; a failed delivery never fails the match itself.
package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Mrigank923/Voy/internal/models"
)

type DriverNotifier interface {
	NotifyDriver(driverID string, offer models.Offer) error
}

type RiderNotifier interface {
	NotifyRider(ev models.RiderEvent) error
}

// HTTPNotifier posts offers and rider events to a downstream notification
// service.
type HTTPNotifier struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPNotifier(endpoint string) *HTTPNotifier {
	return &HTTPNotifier{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (h *HTTPNotifier) NotifyDriver(driverID string, offer models.Offer) error {
	return h.post(map[string]any{"driver_id": driverID, "offer": offer})
}

func (h *HTTPNotifier) NotifyRider(ev models.RiderEvent) error {
	return h.post(map[string]any{"rider_event": ev})
}

func (h *HTTPNotifier) post(payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := h.Client.Post(h.Endpoint, "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// FallbackDriverNotifier tries the websocket session first and falls back to
// HTTP push when the driver has no live connection.
type FallbackDriverNotifier struct {
	Primary  DriverNotifier
	Fallback DriverNotifier
}

func (f *FallbackDriverNotifier) NotifyDriver(driverID string, offer models.Offer) error {
	if err := f.Primary.NotifyDriver(driverID, offer); err == nil {
		return nil
	}
	if f.Fallback == nil {
		return ErrNoSession
	}
	return f.Fallback.NotifyDriver(driverID, offer)
}
