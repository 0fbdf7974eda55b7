package controller

import (
	"context"
	"net/http"

	"pwsproxy/internal/modules/weather/types"
)

// WeatherService is the pipeline behind /api/weather. *service.Service satisfies it.
type WeatherService interface {
	Current(ctx context.Context, stationID string) (types.Weather, error)
}

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type weatherControllerImpl struct {
	service WeatherService
}

func NewWeatherController(service WeatherService) WeatherController {
	return &weatherControllerImpl{service: service}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleIndex)
	mux.HandleFunc("GET /api/weather", c.handleWeather)
}
