package weather

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/kstrand/dashkit/common/model"
)

// mockRotation is how often the generator moves to the next base condition,
// so an unconfigured kiosk still shows some variety.
const mockRotation = 2 * time.Minute

// mockCondition is one base entry in the synthetic weather table.
type mockCondition struct {
	condition   string
	temperature float64
	humidity    int
	windSpeed   float64
}

var mockTable = []mockCondition{
	{condition: "Clear", temperature: 21.0, humidity: 45, windSpeed: 2.5},
	{condition: "Clouds", temperature: 17.5, humidity: 60, windSpeed: 4.0},
	{condition: "Rain", temperature: 13.0, humidity: 85, windSpeed: 6.5},
	{condition: "Snow", temperature: -2.0, humidity: 75, windSpeed: 3.0},
}

// mockGenerator produces synthetic weather reports: a slowly rotating base
// condition plus small random jitter per call.
type mockGenerator struct {
	mu         sync.Mutex
	index      int
	lastRotate time.Time
	rng        *rand.Rand
}

func newMockGenerator() *mockGenerator {
	return &mockGenerator{
		lastRotate: time.Now(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *mockGenerator) next() (mockCondition, *rand.Rand) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if time.Since(g.lastRotate) > mockRotation {
		g.index = (g.index + 1) % len(mockTable)
		g.lastRotate = time.Now()
	}
	return mockTable[g.index], g.rng
}

// mockReport builds a full WeatherReport from the current mock condition
// and the configured city/units, with config overrides for the headline
// numbers.
func (s *Source) mockReport() *model.WeatherReport {
	base, rng := s.mock.next()

	city := s.cfg.GetString("weather.city", "Demo City,UK")
	units := s.cfg.GetString("weather.units", "metric")

	temperature := s.cfg.GetFloat("weather.mock_temperature", base.temperature)
	condition := s.cfg.GetString("weather.mock_condition", base.condition)
	humidity := s.cfg.GetInt("weather.mock_humidity", base.humidity)
	windSpeed := s.cfg.GetFloat("weather.mock_wind_speed", base.windSpeed)

	// Small jitter so consecutive refreshes look alive.
	g := s.mock
	g.mu.Lock()
	temperature += rng.Float64()*3 - 1.5
	humidity = clamp(humidity+rng.Intn(11)-5, 0, 100)
	windSpeed += rng.Float64() - 0.5
	if windSpeed < 0 {
		windSpeed = 0
	}
	pressure := 1010 + rng.Intn(11)
	windDir := rng.Intn(361)
	visibility := 8 + rng.Float64()*7
	g.mu.Unlock()

	name, country := splitCity(city)
	now := time.Now()
	return &model.WeatherReport{
		Temperature:          temperature,
		TemperatureFormatted: formatTemperature(temperature, units),
		Condition:            condition,
		ConditionCode:        condition,
		Humidity:             humidity,
		Pressure:             pressure,
		WindSpeed:            windSpeed,
		WindDirection:        windDir,
		VisibilityKM:         visibility,
		Icon:                 iconFor(condition),
		Units:                units,
		City:                 name,
		Country:              country,
		Sunrise:              now.Add(-time.Hour).Unix(),
		Sunset:               now.Add(2 * time.Hour).Unix(),
		DataSource:           "mock",
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// splitCity separates "London,UK" into name and country code.
func splitCity(city string) (string, string) {
	if i := strings.Index(city, ","); i >= 0 {
		return city[:i], city[i+1:]
	}
	return city, "XX"
}
