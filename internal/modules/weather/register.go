package weather

import (
	"net/http"

	"pwsproxy/internal/modules/weather/controller"
	"pwsproxy/internal/modules/weather/service"
)

func RegisterFeature(mux *http.ServeMux, svc *service.Service) {
	weatherController := controller.NewWeatherController(svc)
	weatherController.RegisterRoutes(mux)
}
