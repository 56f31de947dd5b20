package ingest

import (
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pvcast/pvcast/internal/models"
)

func TestParseWindMPH(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"10 mph", 10},
		{"5 to 10 mph", 7.5},
		{"0 mph", 0},
		{"", 0},
		{"calm", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseWindMPH(tt.in); got != tt.want {
				t.Errorf("parseWindMPH(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCloudFromText(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"Sunny", 5},
		{"Mostly Sunny", 20},
		{"Partly Cloudy", 40},
		{"Mostly Cloudy", 70},
		{"Cloudy", 90},
		{"Chance Rain Showers", 85},
		{"Patchy Fog", 50},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := cloudFromText(tt.in); got != tt.want {
				t.Errorf("cloudFromText(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandValidTimes(t *testing.T) {
	v := 23.0
	points := expandValidTimes([]gridValue{
		{ValidTime: "2026-06-21T18:00:00+00:00/PT3H", Value: &v},
		{ValidTime: "2026-06-21T21:00:00+00:00/PT1H", Value: &v},
		{ValidTime: "garbage", Value: &v},
		{ValidTime: "2026-06-22T00:00:00+00:00/PT1H", Value: nil},
	})

	if len(points) != 4 {
		t.Fatalf("expanded %d points, want 4", len(points))
	}
	for _, h := range []int{18, 19, 20, 21} {
		ts := time.Date(2026, 6, 21, h, 0, 0, 0, time.UTC)
		if got, ok := points[ts]; !ok || got != 23 {
			t.Errorf("point at %02d:00 = %v (present %v), want 23", h, got, ok)
		}
	}
}

func TestClean(t *testing.T) {
	base := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	nan := math.NaN()

	in := models.WeatherSeries{
		{Time: base.Add(time.Hour), TempC: 20, WindMPS: 2, CloudPct: 110},  // cloud clamps
		{Time: base, TempC: 19, WindMPS: 80, CloudPct: 10},                 // wind discarded
		{Time: base, TempC: 99, WindMPS: 0, CloudPct: 0},                   // duplicate dropped
		{Time: base.Add(2 * time.Hour), TempC: nan, WindMPS: nan, CloudPct: nan}, // empty dropped
	}

	got := Clean(in)
	if len(got) != 2 {
		t.Fatalf("cleaned length = %d, want 2", len(got))
	}
	if !got[0].Time.Equal(base) || !got[1].Time.Equal(base.Add(time.Hour)) {
		t.Errorf("not sorted: %v, %v", got[0].Time, got[1].Time)
	}
	if got[0].TempC != 19 {
		t.Errorf("duplicate handling kept temp %v, want 19 (first wins)", got[0].TempC)
	}
	if !math.IsNaN(got[0].WindMPS) {
		t.Errorf("implausible wind = %v, want NaN", got[0].WindMPS)
	}
	if got[1].CloudPct != 100 {
		t.Errorf("cloud = %v, want clamped to 100", got[1].CloudPct)
	}
}

func TestBlend(t *testing.T) {
	base := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	nan := math.NaN()

	primary := models.WeatherSeries{
		{Time: base, TempC: 20, WindMPS: 2, CloudPct: 50},
		{Time: base.Add(time.Hour), TempC: 21, WindMPS: 2, CloudPct: 50},
	}
	refined := models.WeatherSeries{
		{Time: base, TempC: 18, WindMPS: nan, CloudPct: 30},              // partial refinement
		{Time: base.Add(2 * time.Hour), TempC: 22, WindMPS: 3, CloudPct: 40}, // new timestamp
	}

	got := Blend(primary, refined, PreferGridHours)
	if len(got) != 3 {
		t.Fatalf("blended length = %d, want 3", len(got))
	}
	if got[0].TempC != 18 || got[0].CloudPct != 30 {
		t.Errorf("refined values not preferred: %+v", got[0])
	}
	if got[0].WindMPS != 2 {
		t.Errorf("NaN refined wind overwrote primary: %v", got[0].WindMPS)
	}
	if got[1].TempC != 21 {
		t.Errorf("unrefined sample changed: %+v", got[1])
	}
	if got[2].TempC != 22 {
		t.Errorf("refined-only timestamp missing: %+v", got[2])
	}
}

func TestBlendWindowBound(t *testing.T) {
	base := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	far := base.Add(200 * time.Hour)

	primary := models.WeatherSeries{
		{Time: base, TempC: 20, WindMPS: 2, CloudPct: 50},
		{Time: far, TempC: 15, WindMPS: 2, CloudPct: 50},
	}
	refined := models.WeatherSeries{
		{Time: far, TempC: 5, WindMPS: 9, CloudPct: 90},
	}

	got := Blend(primary, refined, PreferGridHours)
	if got[1].TempC != 15 {
		t.Errorf("refinement beyond the window applied: temp = %v, want 15", got[1].TempC)
	}
}

func nwsTestServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server
	pointsCalls := new(int)

	mux.HandleFunc("/points/", func(w http.ResponseWriter, r *http.Request) {
		*pointsCalls++
		if r.Header.Get("User-Agent") != "pvcast-test (test@example.com)" {
			t.Errorf("missing User-Agent, got %q", r.Header.Get("User-Agent"))
		}
		fmt.Fprintf(w, `{"properties": {
			"timeZone": "America/Los_Angeles",
			"forecastHourly": %q,
			"forecastGridData": %q
		}}`, server.URL+"/hourly", server.URL+"/grid")
	})
	mux.HandleFunc("/hourly", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties": {"periods": [
			{"startTime": "2026-06-21T13:00:00-07:00", "temperature": 68, "temperatureUnit": "F",
			 "windSpeed": "5 to 10 mph", "shortForecast": "Mostly Sunny"},
			{"startTime": "2026-06-21T14:00:00-07:00", "temperature": 70, "temperatureUnit": "F",
			 "windSpeed": "10 mph", "shortForecast": "Sunny"}
		]}}`)
	})
	mux.HandleFunc("/grid", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties": {
			"temperature": {"values": [{"validTime": "2026-06-21T20:00:00+00:00/PT2H", "value": 21.5}]},
			"windSpeed":   {"values": [{"validTime": "2026-06-21T20:00:00+00:00/PT2H", "value": 18}]},
			"skyCover":    {"values": [{"validTime": "2026-06-21T20:00:00+00:00/PT2H", "value": 15}]}
		}}`)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, pointsCalls
}

func TestFetchHourly(t *testing.T) {
	server, _ := nwsTestServer(t)
	client := NewClient("pvcast-test (test@example.com)")
	client.BaseURL = server.URL

	wx, tz, meta, err := client.FetchHourly(35.4, -120.0)
	if err != nil {
		t.Fatalf("FetchHourly: %v", err)
	}
	if tz != "America/Los_Angeles" {
		t.Errorf("timezone = %q", tz)
	}
	if len(wx) != 2 {
		t.Fatalf("series length = %d, want 2", len(wx))
	}
	if meta.Hours != 2 {
		t.Errorf("meta hours = %d, want 2", meta.Hours)
	}

	// 68°F is 20°C.
	if math.Abs(wx[0].TempC-20) > 0.01 {
		t.Errorf("temp = %.2f°C, want 20", wx[0].TempC)
	}
	// "5 to 10 mph" averages to 7.5 mph = 3.35 m/s.
	if math.Abs(wx[0].WindMPS-7.5*0.44704) > 0.001 {
		t.Errorf("wind = %.3f m/s", wx[0].WindMPS)
	}
	if wx[0].CloudPct != 20 {
		t.Errorf("cloud from 'Mostly Sunny' = %v, want 20", wx[0].CloudPct)
	}
}

func TestFetchBlended(t *testing.T) {
	server, pointsCalls := nwsTestServer(t)
	client := NewClient("pvcast-test (test@example.com)")
	client.BaseURL = server.URL

	wx, _, _, err := client.FetchBlended(35.4, -120.0)
	if err != nil {
		t.Fatalf("FetchBlended: %v", err)
	}
	if len(wx) != 2 {
		t.Fatalf("series length = %d, want 2", len(wx))
	}
	if *pointsCalls != 1 {
		t.Errorf("point lookups = %d, want 1 shared across hourly and grid", *pointsCalls)
	}

	// Grid skyCover refines the text-derived cloud estimate at 20:00Z.
	if wx[0].CloudPct != 15 {
		t.Errorf("blended cloud = %v, want grid value 15", wx[0].CloudPct)
	}
	if math.Abs(wx[0].WindMPS-5) > 0.001 {
		t.Errorf("blended wind = %v m/s, want 5 (18 km/h)", wx[0].WindMPS)
	}
	if math.Abs(wx[0].TempC-21.5) > 0.001 {
		t.Errorf("blended temp = %v, want grid 21.5", wx[0].TempC)
	}
	if wx[1].CloudPct != 15 || math.Abs(wx[1].TempC-21.5) > 0.001 {
		t.Errorf("second hour not refined: %+v", wx[1])
	}
}
