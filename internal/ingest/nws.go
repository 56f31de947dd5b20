// Package ingest fetches hourly weather forecasts from the NOAA/NWS API and
// shapes them into model-ready weather series.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pvcast/pvcast/internal/httputil"
	"github.com/pvcast/pvcast/internal/metrics"
	"github.com/pvcast/pvcast/internal/models"
)

const defaultBaseURL = "https://api.weather.gov"

// Client talks to the NOAA/NWS forecast API.
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient builds an NWS client. The API requires a contact User-Agent.
func NewClient(userAgent string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		client:  httputil.NewClientWithUserAgent(userAgent),
	}
}

// FetchMeta records provenance for a fetched series.
type FetchMeta struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
	Timezone string `json:"timezone"`
	Hours    int    `json:"n_hours"`
}

type pointsResponse struct {
	Properties struct {
		TimeZone         string `json:"timeZone"`
		ForecastHourly   string `json:"forecastHourly"`
		ForecastGridData string `json:"forecastGridData"`
	} `json:"properties"`
}

type hourlyResponse struct {
	Properties struct {
		Periods []hourlyPeriod `json:"periods"`
	} `json:"properties"`
}

type hourlyPeriod struct {
	StartTime       string   `json:"startTime"`
	Temperature     float64  `json:"temperature"`
	TemperatureUnit string   `json:"temperatureUnit"`
	WindSpeed       string   `json:"windSpeed"`
	SkyCover        *float64 `json:"skyCover"`
	ShortForecast   string   `json:"shortForecast"`
}

type gridResponse struct {
	Properties struct {
		Temperature gridSeries `json:"temperature"`
		WindSpeed   gridSeries `json:"windSpeed"`
		SkyCover    gridSeries `json:"skyCover"`
	} `json:"properties"`
}

type gridSeries struct {
	Values []gridValue `json:"values"`
}

type gridValue struct {
	ValidTime string   `json:"validTime"`
	Value     *float64 `json:"value"`
}

func (c *Client) getJSON(endpoint, url string, out any) error {
	var body []byte
	operation := func() error {
		start := time.Now()
		resp, err := c.client.Get(url)
		metrics.NWSAPILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.NWSAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", endpoint, err))
		}
		defer resp.Body.Close()

		metrics.NWSAPICallsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch %s: status %d", endpoint, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", endpoint, resp.StatusCode, truncate(string(b), 200)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) lookupPoint(lat, lon float64) (*pointsResponse, error) {
	var points pointsResponse
	url := fmt.Sprintf("%s/points/%.4f,%.4f", c.BaseURL, lat, lon)
	if err := c.getJSON("points", url, &points); err != nil {
		return nil, err
	}
	return &points, nil
}

// FetchHourly returns the NWS hourly forecast (typically ~7 days) for a
// location, plus the site's IANA timezone.
func (c *Client) FetchHourly(lat, lon float64) (models.WeatherSeries, string, *FetchMeta, error) {
	points, err := c.lookupPoint(lat, lon)
	if err != nil {
		return nil, "", nil, err
	}
	return c.fetchHourly(points)
}

func (c *Client) fetchHourly(points *pointsResponse) (models.WeatherSeries, string, *FetchMeta, error) {
	tz := points.Properties.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	if points.Properties.ForecastHourly == "" {
		return nil, "", nil, fmt.Errorf("points response missing forecastHourly URL")
	}

	var hourly hourlyResponse
	if err := c.getJSON("hourly", points.Properties.ForecastHourly, &hourly); err != nil {
		return nil, "", nil, err
	}
	if len(hourly.Properties.Periods) == 0 {
		return nil, "", nil, fmt.Errorf("hourly forecast empty")
	}

	var series models.WeatherSeries
	for _, per := range hourly.Properties.Periods {
		ts, err := time.Parse(time.RFC3339, per.StartTime)
		if err != nil {
			continue
		}
		tempC := per.Temperature
		if per.TemperatureUnit == "F" {
			tempC = (per.Temperature - 32) * 5 / 9
		}
		cloud := cloudFromText(per.ShortForecast)
		if per.SkyCover != nil {
			cloud = *per.SkyCover
		}
		series = append(series, models.WeatherSample{
			Time:     ts,
			TempC:    tempC,
			WindMPS:  parseWindMPH(per.WindSpeed) * 0.44704,
			CloudPct: cloud,
		})
	}

	series = Clean(series)
	meta := &FetchMeta{
		Provider: "NOAA/NWS api.weather.gov hourly",
		URL:      points.Properties.ForecastHourly,
		Timezone: tz,
		Hours:    len(series),
	}
	return series, tz, meta, nil
}

// FetchGrid returns the NWS forecastGridData (NDFD-derived) series, expanded
// to hourly resolution. Fields missing from the grid stay NaN; the model
// clamps them downstream.
func (c *Client) FetchGrid(lat, lon float64) (models.WeatherSeries, string, *FetchMeta, error) {
	points, err := c.lookupPoint(lat, lon)
	if err != nil {
		return nil, "", nil, err
	}
	return c.fetchGrid(points)
}

func (c *Client) fetchGrid(points *pointsResponse) (models.WeatherSeries, string, *FetchMeta, error) {
	tz := points.Properties.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	if points.Properties.ForecastGridData == "" {
		return nil, "", nil, fmt.Errorf("points response missing forecastGridData URL")
	}

	var grid gridResponse
	if err := c.getJSON("grid", points.Properties.ForecastGridData, &grid); err != nil {
		return nil, "", nil, err
	}

	temp := expandValidTimes(grid.Properties.Temperature.Values)
	wind := expandValidTimes(grid.Properties.WindSpeed.Values)
	sky := expandValidTimes(grid.Properties.SkyCover.Values)

	times := make(map[time.Time]bool)
	for t := range temp {
		times[t] = true
	}
	for t := range wind {
		times[t] = true
	}
	for t := range sky {
		times[t] = true
	}

	series := make(models.WeatherSeries, 0, len(times))
	for t := range times {
		sample := models.WeatherSample{Time: t, TempC: math.NaN(), WindMPS: math.NaN(), CloudPct: math.NaN()}
		if v, ok := temp[t]; ok {
			sample.TempC = v
		}
		if v, ok := wind[t]; ok {
			sample.WindMPS = v / 3.6 // NWS grid wind is km/h
		}
		if v, ok := sky[t]; ok {
			sample.CloudPct = v
		}
		series = append(series, sample)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })

	meta := &FetchMeta{
		Provider: "NOAA/NWS api.weather.gov forecastGridData",
		URL:      points.Properties.ForecastGridData,
		Timezone: tz,
		Hours:    len(series),
	}
	return series, tz, meta, nil
}

// FetchBlended fetches the hourly forecast and, when available, refines it
// with grid data. One point lookup serves both products; a grid failure
// degrades to hourly-only rather than failing the request.
func (c *Client) FetchBlended(lat, lon float64) (models.WeatherSeries, string, *FetchMeta, error) {
	points, err := c.lookupPoint(lat, lon)
	if err != nil {
		return nil, "", nil, err
	}
	hourly, tz, meta, err := c.fetchHourly(points)
	if err != nil {
		return nil, "", nil, err
	}
	grid, _, _, err := c.fetchGrid(points)
	if err != nil {
		return hourly, tz, meta, nil
	}
	blended := Clean(Blend(hourly, grid, PreferGridHours))
	meta.Hours = len(blended)
	return blended, tz, meta, nil
}

var windNumRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parseWindMPH averages the numbers in strings like "10 mph" or "5 to 10 mph".
func parseWindMPH(s string) float64 {
	matches := windNumRe.FindAllString(s, -1)
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0
		}
		sum += v
	}
	return sum / float64(len(matches))
}

// cloudFromText maps a short-forecast phrase to cloud cover when the grid's
// skyCover field is absent. Crude, but stable.
func cloudFromText(shortForecast string) float64 {
	t := strings.ToLower(shortForecast)
	switch {
	case strings.Contains(t, "mostly sunny"):
		return 20
	case strings.Contains(t, "partly sunny"), strings.Contains(t, "partly cloudy"):
		return 40
	case strings.Contains(t, "mostly cloudy"):
		return 70
	case strings.Contains(t, "sunny"), strings.Contains(t, "clear"):
		return 5
	case strings.Contains(t, "cloudy"), strings.Contains(t, "overcast"):
		return 90
	case strings.Contains(t, "rain"), strings.Contains(t, "showers"), strings.Contains(t, "thunder"):
		return 85
	default:
		return 50
	}
}

var durationRe = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?`)

// expandValidTimes turns NWS grid entries like
// {"validTime": "2026-02-14T18:00:00+00:00/PT3H", "value": 23} into hourly
// points, forward-filling across multi-hour durations.
func expandValidTimes(values []gridValue) map[time.Time]float64 {
	points := make(map[time.Time]float64)
	for _, v := range values {
		if v.Value == nil {
			continue
		}
		parts := strings.SplitN(v.ValidTime, "/", 2)
		if len(parts) != 2 {
			continue
		}
		start, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			continue
		}
		hours := 1
		if m := durationRe.FindStringSubmatch(parts[1]); m != nil {
			h, _ := strconv.Atoi(m[1])
			mins, _ := strconv.Atoi(m[2])
			hours = h
			if mins >= 30 {
				hours++
			}
			if hours < 1 {
				hours = 1
			}
		}
		for k := 0; k < hours; k++ {
			points[start.Add(time.Duration(k)*time.Hour).UTC()] = *v.Value
		}
	}
	return points
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
