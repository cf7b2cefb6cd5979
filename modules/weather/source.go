package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kstrand/dashkit/common"
	"github.com/kstrand/dashkit/common/model"
	"github.com/kstrand/dashkit/modules/source"
)

// defaultEndpoint is the OpenWeatherMap current-weather API.
const defaultEndpoint = "https://api.openweathermap.org/data/2.5/weather"

// Source fetches the weather screen's data from OpenWeatherMap, or
// generates synthetic data when no API key is configured, mock mode is on,
// or the live API fails. Synthetic payloads are wrapped in
// source.Synthetic so the manager tags them StatusMock.
//
// Implements source.Fetcher.
type Source struct {
	cfg      *common.Config
	client   common.HttpClient
	endpoint string
	mock     *mockGenerator
}

// New constructs the weather source. The endpoint can be overridden through
// "weather.endpoint" (tests point it at an httptest server).
func New(cfg *common.Config, client common.HttpClient) *Source {
	return &Source{
		cfg:      cfg,
		client:   client,
		endpoint: cfg.GetString("weather.endpoint", defaultEndpoint),
		mock:     newMockGenerator(),
	}
}

// Fetch returns a WeatherReport, live or synthetic.
func (s *Source) Fetch(ctx context.Context) (interface{}, error) {
	apiKey := s.cfg.GetString("weather.api_key", "")
	useMock := s.cfg.GetBool("weather.mock_mode", true)

	if apiKey == "" || useMock {
		return source.Synthetic{Data: s.mockReport()}, nil
	}

	report, err := s.fetchLive(ctx, apiKey)
	if err != nil {
		// A broken weather API should not blank the screen; synthetic data
		// with the mock tag is more useful than an error dot.
		log.Printf("weather: live fetch failed, using mock data: %v", err)
		return source.Synthetic{Data: s.mockReport()}, nil
	}
	return report, nil
}

// owmResponse is the subset of the OpenWeatherMap response the screen uses.
type owmResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
		Pressure int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Visibility int    `json:"visibility"`
	Name       string `json:"name"`
	Sys        struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
}

func (s *Source) fetchLive(ctx context.Context, apiKey string) (*model.WeatherReport, error) {
	city := s.cfg.GetString("weather.city", "London,UK")
	units := s.cfg.GetString("weather.units", "metric")

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", apiKey)
	q.Set("units", units)
	if lang := s.cfg.GetString("weather.lang", ""); lang != "" {
		q.Set("lang", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &common.HTTPError{StatusCode: resp.StatusCode, Body: data}
	}

	var payload owmResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding weather response: %w", err)
	}
	if len(payload.Weather) == 0 {
		return nil, fmt.Errorf("weather response missing conditions")
	}

	condCode := payload.Weather[0].Main
	return &model.WeatherReport{
		Temperature:          payload.Main.Temp,
		TemperatureFormatted: formatTemperature(payload.Main.Temp, units),
		Condition:            titleCase(payload.Weather[0].Description),
		ConditionCode:        condCode,
		Humidity:             payload.Main.Humidity,
		Pressure:             payload.Main.Pressure,
		WindSpeed:            payload.Wind.Speed,
		WindDirection:        payload.Wind.Deg,
		VisibilityKM:         float64(payload.Visibility) / 1000,
		Icon:                 iconFor(condCode),
		Units:                units,
		City:                 payload.Name,
		Country:              payload.Sys.Country,
		Sunrise:              payload.Sys.Sunrise,
		Sunset:               payload.Sys.Sunset,
		DataSource:           "openweathermap",
	}, nil
}

// formatTemperature renders "18.5°C" / "65.3°F".
func formatTemperature(temp float64, units string) string {
	unit := "C"
	if units == "imperial" {
		unit = "F"
	}
	return fmt.Sprintf("%.1f°%s", temp, unit)
}

// titleCase uppercases the first letter of each word, matching how the
// screen has always shown conditions ("Light Rain"). Descriptions come back
// localized when "weather.lang" is set, so the first letter may be a
// multi-byte rune.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// weatherIcons maps OpenWeatherMap condition codes to display glyphs.
var weatherIcons = map[string]string{
	"Clear":        "☀️",
	"Clouds":       "☁️",
	"Rain":         "🌧️",
	"Drizzle":      "🌦️",
	"Thunderstorm": "⛈️",
	"Snow":         "❄️",
	"Mist":         "🌫️",
	"Fog":          "🌫️",
}

func iconFor(condition string) string {
	if icon, ok := weatherIcons[condition]; ok {
		return icon
	}
	return "🌤️"
}
