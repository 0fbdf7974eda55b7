package httpapi

import (
	"net/http"

	"pwsproxy/internal/utils"
)

// ConnectionState is satisfied by the MQTT publisher.
type ConnectionState interface {
	IsConnected() bool
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	mqtt ConnectionState
}

// NewHealthchecker reports liveness. mqtt is nil when publishing is disabled.
func NewHealthchecker(mqtt ConnectionState) healthchecker {
	return &healthcheckerImpl{mqtt: mqtt}
}

type healthBody struct {
	Status string `json:"status"`
	MQTT   string `json:"mqtt"`
}

// The broker is optional, so a disconnected publisher never fails the check.
func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	body := healthBody{Status: "ok", MQTT: "disabled"}
	if h.mqtt != nil {
		body.MQTT = "disconnected"
		if h.mqtt.IsConnected() {
			body.MQTT = "connected"
		}
	}
	utils.WriteJSON(w, http.StatusOK, body)
}

func registerHealthcheck(mux *http.ServeMux, mqtt ConnectionState) {
	healthchecker := NewHealthchecker(mqtt)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
