package types

// UpstreamResponse is the envelope returned by the PWS current-conditions API.
// Observations is a pointer so a missing or null list can be told apart from
// an explicit empty one.
type UpstreamResponse struct {
	Observations *[]UpstreamObservation `json:"observations"`
}

// UpstreamObservation is one station record. Required fields are pointers so
// their absence is detectable after decoding.
type UpstreamObservation struct {
	StationID    *string        `json:"stationID"`
	ObsTimeLocal *string        `json:"obsTimeLocal"`
	Neighborhood *string        `json:"neighborhood,omitempty"`
	Imperial     *ImperialBlock `json:"imperial"`
}

// ImperialBlock holds the measurements requested with units=e.
type ImperialBlock struct {
	Temp       *float64 `json:"temp"`
	Humidity   *float64 `json:"humidity"`
	WindSpeed  *float64 `json:"windSpeed"`
	WindGust   *float64 `json:"windGust"`
	WindDir    *float64 `json:"windDir,omitempty"`
	Pressure   *float64 `json:"pressure"`
	PrecipRate *float64 `json:"precipRate"`
}

// Weather is the normalized response served by /api/weather.
type Weather struct {
	StationID    string   `json:"station_id"`
	ObservedAt   string   `json:"observed_at"`
	TemperatureF float64  `json:"temperature_f"`
	HumidityPct  float64  `json:"humidity_pct"`
	WindMph      float64  `json:"wind_mph"`
	WindGustMph  float64  `json:"wind_gust_mph"`
	WindDirDeg   *float64 `json:"wind_dir_deg,omitempty"`
	PressureIn   float64  `json:"pressure_in"`
	PrecipInHr   float64  `json:"precip_in_hr"`
	Neighborhood *string  `json:"neighborhood,omitempty"`
}
