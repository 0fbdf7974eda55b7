package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pwsproxy/internal/modules/weather/client"
	"pwsproxy/internal/modules/weather/types"
)

const maxExcerptBytes = 512

// Sentinel bodies some upstream deployments send instead of JSON when a
// station has no current reading. Compared case-insensitively after trimming.
var noDataSentinels = []string{"data expired", "no data"}

// Fetcher is the upstream call. *client.Client satisfies it.
type Fetcher interface {
	FetchCurrent(ctx context.Context, stationID string) (client.Response, error)
}

// Publisher receives every successfully normalized observation.
type Publisher interface {
	PublishObservation(ctx context.Context, w types.Weather) error
}

type Service struct {
	fetcher   Fetcher
	publisher Publisher
	logger    *slog.Logger
}

// NewService wires the pipeline. publisher may be nil.
func NewService(fetcher Fetcher, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fetcher: fetcher, publisher: publisher, logger: logger}
}

// Current validates the station id, fetches its current conditions and
// normalizes them. Every failure is a *Error.
func (s *Service) Current(ctx context.Context, rawStationID string) (types.Weather, error) {
	stationID := strings.TrimSpace(rawStationID)
	if stationID == "" {
		e := invalidInput()
		s.logger.Warn("rejected weather request", "station_id", rawStationID, "kind", e.Kind.String())
		return types.Weather{}, e
	}

	resp, err := s.fetcher.FetchCurrent(ctx, stationID)
	if err != nil {
		e := unreachable(err)
		s.logger.Error("weather provider unreachable",
			"station_id", stationID,
			"kind", e.Kind.String(),
			"error", err,
		)
		return types.Weather{}, e
	}

	if e := classify(resp, stationID); e != nil {
		s.logFailure(stationID, e, resp)
		return types.Weather{}, e
	}

	obs, e := parse(resp.Body, stationID)
	if e != nil {
		s.logFailure(stationID, e, resp)
		return types.Weather{}, e
	}

	weather := mapObservation(obs)

	if s.publisher != nil {
		if err := s.publisher.PublishObservation(ctx, weather); err != nil {
			s.logger.Warn("publish observation failed", "station_id", stationID, "error", err)
		}
	}

	return weather, nil
}

func (s *Service) logFailure(stationID string, e *Error, resp client.Response) {
	attrs := []any{
		"station_id", stationID,
		"kind", e.Kind.String(),
		"upstream_status", resp.StatusCode,
		"body_excerpt", excerpt(resp.Body),
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err)
	}

	if e.Kind == KindNoObservationData {
		s.logger.Warn("no current observation", attrs...)
		return
	}
	s.logger.Error("weather provider failure", attrs...)
}

// classify decides from status and body whether the response can be parsed.
// A nil result means the body should go to parse.
func classify(resp client.Response, stationID string) *Error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(resp.StatusCode)
	}
	if isNoDataBody(resp.Body) {
		return noObservation(stationID)
	}
	return nil
}

func isNoDataBody(body []byte) bool {
	trimmed := string(bytes.TrimSpace(body))
	if trimmed == "" {
		return true
	}
	for _, sentinel := range noDataSentinels {
		if strings.EqualFold(trimmed, sentinel) {
			return true
		}
	}
	return false
}

// parse decodes the envelope and returns its first observation.
func parse(body []byte, stationID string) (types.UpstreamObservation, *Error) {
	var env types.UpstreamResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return types.UpstreamObservation{}, malformed(fmt.Errorf("decode envelope: %w", err))
	}
	if env.Observations == nil {
		return types.UpstreamObservation{}, malformed(errors.New("decode envelope: missing observations list"))
	}
	if len(*env.Observations) == 0 {
		return types.UpstreamObservation{}, noObservation(stationID)
	}

	first := (*env.Observations)[0]
	if err := validateObservation(first); err != nil {
		return types.UpstreamObservation{}, malformed(err)
	}
	return first, nil
}

func validateObservation(o types.UpstreamObservation) error {
	var missing []string
	if o.StationID == nil {
		missing = append(missing, "stationID")
	}
	if o.ObsTimeLocal == nil {
		missing = append(missing, "obsTimeLocal")
	}
	if o.Imperial == nil {
		missing = append(missing, "imperial")
	} else {
		im := o.Imperial
		for _, f := range []struct {
			name string
			v    *float64
		}{
			{"temp", im.Temp},
			{"humidity", im.Humidity},
			{"windSpeed", im.WindSpeed},
			{"windGust", im.WindGust},
			{"pressure", im.Pressure},
			{"precipRate", im.PrecipRate},
		} {
			if f.v == nil {
				missing = append(missing, "imperial."+f.name)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("observation missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// mapObservation projects a validated record onto the output schema. The
// imperial block is already in output units.
func mapObservation(o types.UpstreamObservation) types.Weather {
	im := o.Imperial
	return types.Weather{
		StationID:    *o.StationID,
		ObservedAt:   *o.ObsTimeLocal,
		TemperatureF: *im.Temp,
		HumidityPct:  *im.Humidity,
		WindMph:      *im.WindSpeed,
		WindGustMph:  *im.WindGust,
		WindDirDeg:   copyFloat(im.WindDir),
		PressureIn:   *im.Pressure,
		PrecipInHr:   *im.PrecipRate,
		Neighborhood: copyString(o.Neighborhood),
	}
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func excerpt(body []byte) string {
	if len(body) > maxExcerptBytes {
		body = body[:maxExcerptBytes]
	}
	return strings.ToValidUTF8(string(body), "")
}
