package controller

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"pwsproxy/internal/modules/weather/service"
	"pwsproxy/internal/modules/weather/views"
	"pwsproxy/internal/utils"
)

const msgInternal = "internal server error"

func (c *weatherControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := views.RenderIndex(&buf, &views.IndexData{StationID: r.URL.Query().Get("station_id")}); err != nil {
		slog.Error("index template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("index: write response failed", "error", err)
	}
}

func (c *weatherControllerImpl) handleWeather(w http.ResponseWriter, r *http.Request) {
	stationID := r.URL.Query().Get("station_id")

	weather, err := c.service.Current(r.Context(), stationID)
	if err != nil {
		var se *service.Error
		if errors.As(err, &se) {
			utils.WriteError(w, se.HTTPStatus(), se.Message)
			return
		}
		slog.Error("weather: unexpected error", "station_id", stationID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	utils.WriteJSON(w, http.StatusOK, weather)
}
