package model

import "time"

// ----------------------------------------------------------------------
// Fetch outcome
// ----------------------------------------------------------------------

// Status tags a FetchResult. The rendering layer branches on this tag and
// nothing else; the data layer never hands it an error to catch.
type Status string

const (
	// StatusSuccess marks a freshly fetched payload.
	StatusSuccess Status = "success"
	// StatusCached marks a stale payload served after a fetch failure.
	StatusCached Status = "cached"
	// StatusError marks a failure with no cached payload to fall back on.
	StatusError Status = "error"
	// StatusMock marks synthetic data generated in place of a live fetch.
	StatusMock Status = "mock"
)

// FetchResult is the uniform value every source returns, whatever its
// payload shape. Data is nil only when Status is StatusError.
type FetchResult struct {
	Status    Status      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	FetchedAt time.Time   `json:"fetched_at"`
	Err       string      `json:"error,omitempty"`
}

// ----------------------------------------------------------------------
// Crypto screen payload
// ----------------------------------------------------------------------

// CryptoStats aggregates six independent upstream endpoints into the data
// for one screen. A failed sub-fetch leaves its fields at their zero values
// and appends the section name to Degraded; the aggregate is still reported
// as a success.
type CryptoStats struct {
	PriceUSD       float64 `json:"price_usd"`
	PriceFormatted string  `json:"price_formatted"`

	FastestFee  int `json:"fastest_fee"` // sat/vB for next-block inclusion
	HalfHourFee int `json:"half_hour_fee"`
	HourFee     int `json:"hour_fee"`
	EconomyFee  int `json:"economy_fee"`

	Difficulty float64 `json:"difficulty"`

	// Network hashrate in EH/s.
	HashrateEHS float64 `json:"hashrate_ehs"`

	BlockHeight    int64  `json:"block_height"`
	BlockHash      string `json:"block_hash"`
	BlockHashShort string `json:"block_hash_short"`
	BlockTime      int64  `json:"block_time"`

	RecentBlocks []BlockSummary `json:"recent_blocks"`

	MempoolTxCount int     `json:"mempool_tx_count"`
	MempoolVsizeMB float64 `json:"mempool_vsize_mb"`

	// Degraded names the sub-sections whose fetch failed this cycle.
	Degraded []string `json:"degraded,omitempty"`
}

// BlockSummary is one recently mined block on the crypto screen.
type BlockSummary struct {
	Height  int64  `json:"height"`
	Hash    string `json:"hash"`
	Time    int64  `json:"time"`
	TxCount int    `json:"tx_count"`
}

// ----------------------------------------------------------------------
// Weather screen payload
// ----------------------------------------------------------------------

// WeatherReport is the weather screen's data, from OpenWeatherMap or the
// synthetic generator.
type WeatherReport struct {
	Temperature          float64 `json:"temperature"`
	TemperatureFormatted string  `json:"temperature_formatted"`
	Condition            string  `json:"condition"`
	ConditionCode        string  `json:"condition_code"`
	Humidity             int     `json:"humidity"`
	Pressure             int     `json:"pressure"`
	WindSpeed            float64 `json:"wind_speed"`
	WindDirection        int     `json:"wind_direction"`
	VisibilityKM         float64 `json:"visibility_km"`
	Icon                 string  `json:"icon"`
	Units                string  `json:"units"`
	City                 string  `json:"city"`
	Country              string  `json:"country"`
	Sunrise              int64   `json:"sunrise"`
	Sunset               int64   `json:"sunset"`
	DataSource           string  `json:"data_source"`
}

// ----------------------------------------------------------------------
// Calendar screen payload
// ----------------------------------------------------------------------

// CalendarEvent is a single upcoming event, formatted for display.
type CalendarEvent struct {
	Summary  string    `json:"summary"`
	Location string    `json:"location,omitempty"`
	Start    time.Time `json:"start"`
	AllDay   bool      `json:"all_day"`
	// When is the human-readable start ("Today 14:30", "Tomorrow", "Mon Jan 2").
	When string `json:"when"`
}

// CalendarEvents is the calendar screen's data.
type CalendarEvents struct {
	Events      []CalendarEvent `json:"events"`
	TotalEvents int             `json:"total_events"`
}

// ----------------------------------------------------------------------
// News ticker payload
// ----------------------------------------------------------------------

// Headline is one item on the news ticker.
type Headline struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
}

// Headlines is the news ticker's data.
type Headlines struct {
	FeedTitle string     `json:"feed_title"`
	Items     []Headline `json:"items"`
}
