package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// WeatherClient returns reference evapotranspiration and expected rain (both
// mm) for a given day.
type WeatherClient interface {
	DailyET0AndRain(ctx context.Context, day time.Time) (etoMM, rainMM float64, err error)
}

const owmBaseURL = "https://api.openweathermap.org/data/3.0/onecall"

type owmDaily struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temp"`
	Rain float64 `json:"rain"`
}

type owmResponse struct {
	Daily []owmDaily `json:"daily"`
}

// OWMClient estimates ET0 from OpenWeather daily forecasts via the Hargreaves
// equation. Latitude/longitude are fixed at construction; the controller
// serves a single plot.
type OWMClient struct {
	apiKey   string
	lat, lon float64
	baseURL  string
	http     *http.Client
}

func NewOWMClient(apiKey string, lat, lon float64) *OWMClient {
	return &OWMClient{
		apiKey:  apiKey,
		lat:     lat,
		lon:     lon,
		baseURL: owmBaseURL,
		http:    &http.Client{Timeout: 8 * time.Second},
	}
}

func (c *OWMClient) DailyET0AndRain(ctx context.Context, day time.Time) (float64, float64, error) {
	if c.apiKey == "" {
		return 0, 0, fmt.Errorf("weather: missing api key")
	}
	url := fmt.Sprintf("%s?lat=%f&lon=%f&exclude=current,minutely,hourly,alerts&units=metric&appid=%s",
		c.baseURL, c.lat, c.lon, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return 0, 0, fmt.Errorf("weather: status %d: %s", resp.StatusCode, string(b))
	}
	var out owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, 0, err
	}
	if len(out.Daily) == 0 {
		return 0, 0, fmt.Errorf("weather: no daily data")
	}

	chosen := closestDay(out.Daily, day)
	et0 := etoHargreaves(chosen.Temp.Min, chosen.Temp.Max)
	return et0, chosen.Rain, nil
}

func closestDay(daily []owmDaily, day time.Time) owmDaily {
	target := day.UTC().Truncate(24 * time.Hour)
	chosen := daily[0]
	best := time.Duration(math.MaxInt64)
	for _, d := range daily {
		date := time.Unix(d.Dt, 0).UTC().Truncate(24 * time.Hour)
		delta := target.Sub(date)
		if delta < 0 {
			delta = -delta
		}
		if delta < best {
			best = delta
			chosen = d
		}
	}
	return chosen
}

// etoHargreaves is the simplified Hargreaves-Samani estimate with a constant
// extraterrestrial radiation term, good enough to scale a daily dose budget.
func etoHargreaves(tmin, tmax float64) float64 {
	const ra = 0.408
	tmean := (tmin + tmax) / 2
	return 0.0023 * (tmean + 17.8) * math.Sqrt(math.Max(tmax-tmin, 0)) * ra
}
