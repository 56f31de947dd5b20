package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/pvcast/pvcast/internal/equipment"
	"github.com/pvcast/pvcast/internal/ingest"
	"github.com/pvcast/pvcast/internal/metrics"
	"github.com/pvcast/pvcast/internal/models"
	"github.com/pvcast/pvcast/internal/montecarlo"
	"github.com/pvcast/pvcast/internal/pvmodel"
	"github.com/pvcast/pvcast/internal/report"
	"github.com/pvcast/pvcast/internal/store"
)

// ForecastRequest is the POST /api/forecast and /api/report payload. Weather
// is optional; when absent the server fetches an NWS forecast for the site.
type ForecastRequest struct {
	Site        models.Site          `json:"site"`
	Plant       models.PlantConfig   `json:"plant"`
	Losses      *models.LossTree     `json:"losses,omitempty"`
	ModulePAN   string               `json:"module_pan,omitempty"`
	InverterOND string               `json:"inverter_ond,omitempty"`
	Runs        int                  `json:"runs,omitempty"`
	// Seed 0 selects the engine default, so every unseeded request is
	// reproducible.
	Seed        int64                `json:"seed,omitempty"`
	HorizonDays int                  `json:"horizon_days,omitempty"`
	Weather     models.WeatherSeries `json:"weather,omitempty"`
}

type ForecastResponse struct {
	RunID       int64             `json:"run_id,omitempty"`
	PlantName   string            `json:"plant_name"`
	Bands       models.Bands      `json:"bands"`
	Note        string            `json:"note,omitempty"`
	RealDays    int               `json:"real_days"`
	HorizonDays int               `json:"horizon_days"`
	Runs        int               `json:"runs"`
	Seed        int64             `json:"seed"`
	WeatherMeta *ingest.FetchMeta `json:"weather_meta,omitempty"`
}

type ReportResponse struct {
	RunID       int64             `json:"run_id,omitempty"`
	PlantName   string            `json:"plant_name"`
	Daily       []report.DailyKPI `json:"daily"`
	Summary     report.Summary    `json:"summary"`
	LossDiagram []report.LossItem `json:"loss_diagram"`
	WeatherMeta *ingest.FetchMeta `json:"weather_meta,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (*ForecastRequest, bool) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
		return nil, false
	}
	var req ForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	req.Plant.ApplyDefaults()
	if err := req.Site.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	if err := req.Plant.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	if req.Losses != nil {
		if err := req.Losses.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return nil, false
		}
	}
	if len(req.Weather) > 0 {
		if err := req.Weather.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return nil, false
		}
	}
	return &req, true
}

// resolveInputs expands a request into a model engine, its weather series and
// the plant's local timezone.
func (s *Server) resolveInputs(req *ForecastRequest) (*pvmodel.Engine, models.WeatherSeries, *time.Location, *ingest.FetchMeta, error) {
	wx := req.Weather
	var meta *ingest.FetchMeta
	if len(wx) == 0 {
		fetched, tz, m, err := s.weather.FetchBlended(req.Site.Latitude, req.Site.Longitude)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		wx = fetched
		meta = m
		if req.Site.Timezone == "" {
			req.Site.Timezone = tz
		}
	}

	losses := models.DefaultLossTree()
	if req.Losses != nil {
		losses = *req.Losses
	}

	var module *models.ModuleParams
	if req.ModulePAN != "" {
		m := equipment.ParsePAN(req.ModulePAN)
		module = &m
	}
	var inverter *models.InverterParams
	if req.InverterOND != "" {
		inv := equipment.ParseOND(req.InverterOND)
		inverter = &inv
	}

	eng := pvmodel.New(req.Site, req.Plant, losses, module, inverter)
	return eng, wx, req.Site.Location(), meta, nil
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	eng, wx, loc, meta, err := s.resolveInputs(req)
	if err != nil {
		metrics.ForecastRunsTotal.WithLabelValues("forecast", "error").Inc()
		writeError(w, http.StatusBadGateway, err)
		return
	}

	seed := req.Seed
	if seed == 0 {
		seed = montecarlo.DefaultSeed
	}
	horizon := req.HorizonDays
	if horizon <= 0 {
		horizon = montecarlo.TargetHorizonDays
	}

	mc := montecarlo.New(eng, loc, req.Runs, seed)

	start := time.Now()
	bands, err := mc.Run(wx)
	metrics.MonteCarloDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ForecastRunsTotal.WithLabelValues("forecast", "error").Inc()
		status := http.StatusInternalServerError
		if errors.Is(err, pvmodel.ErrDataGap) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}
	realDays := bands.Len()

	var note string
	if realDays < horizon {
		tail, err := eng.Run(wx)
		if err != nil {
			metrics.ForecastRunsTotal.WithLabelValues("forecast", "error").Inc()
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		bands, note, err = mc.ExtendWithPersistence(bands, tail, horizon)
		if err != nil {
			metrics.ForecastRunsTotal.WithLabelValues("forecast", "error").Inc()
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		metrics.ExtendedForecastsTotal.Inc()
	} else if realDays > horizon {
		bands = models.Bands{
			P10: bands.P10[:horizon],
			P50: bands.P50[:horizon],
			P90: bands.P90[:horizon],
		}
	}

	resp := &ForecastResponse{
		PlantName:   req.Plant.PlantName,
		Bands:       bands,
		Note:        note,
		RealDays:    realDays,
		HorizonDays: bands.Len(),
		Runs:        mc.Runs,
		Seed:        seed,
		WeatherMeta: meta,
	}

	run := &store.ForecastRun{
		PlantName:   req.Plant.PlantName,
		Kind:        "forecast",
		Runs:        mc.Runs,
		Seed:        seed,
		HorizonDays: bands.Len(),
		RealDays:    realDays,
		Note:        note,
		Bands:       bands,
	}
	if meta != nil {
		run.WeatherProvider = meta.Provider
	}
	if s.store != nil {
		if err := s.store.UpsertPlant(req.Site, req.Plant); err != nil {
			log.Printf("api: upsert plant: %v", err)
		}
		if id, err := s.store.SaveRun(run); err != nil {
			log.Printf("api: archive run: %v", err)
		} else {
			resp.RunID = id
		}
	}

	metrics.ForecastRunsTotal.WithLabelValues("forecast", "ok").Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	eng, wx, loc, meta, err := s.resolveInputs(req)
	if err != nil {
		metrics.ForecastRunsTotal.WithLabelValues("report", "error").Inc()
		writeError(w, http.StatusBadGateway, err)
		return
	}

	pv, err := eng.Run(wx)
	if err != nil {
		metrics.ForecastRunsTotal.WithLabelValues("report", "error").Inc()
		status := http.StatusInternalServerError
		if errors.Is(err, pvmodel.ErrDataGap) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}

	daily, summary := report.ComputeKPIs(pv, req.Plant.DCCapacityKW, loc)
	resp := &ReportResponse{
		PlantName:   req.Plant.PlantName,
		Daily:       daily,
		Summary:     summary,
		LossDiagram: report.LossDiagram(eng.Losses),
		WeatherMeta: meta,
	}

	if s.store != nil {
		if err := s.store.UpsertPlant(req.Site, req.Plant); err != nil {
			log.Printf("api: upsert plant: %v", err)
		}
		run := &store.ForecastRun{
			PlantName:   req.Plant.PlantName,
			Kind:        "report",
			HorizonDays: len(daily),
			RealDays:    len(daily),
		}
		if meta != nil {
			run.WeatherProvider = meta.Provider
		}
		if id, err := s.store.SaveRun(run); err != nil {
			log.Printf("api: archive report: %v", err)
		} else {
			resp.RunID = id
			if err := s.store.SaveRunKPIs(id, daily); err != nil {
				log.Printf("api: archive kpis: %v", err)
			}
		}
	}

	metrics.ForecastRunsTotal.WithLabelValues("report", "ok").Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, errors.New("GET required"))
		return
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("run archive disabled"))
		return
	}

	if idStr := r.URL.Query().Get("id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		run, err := s.store.GetRun(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if run == nil {
			writeError(w, http.StatusNotFound, errors.New("run not found"))
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRecentRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// PlantResponse is the stored configuration for one plant.
type PlantResponse struct {
	Site  models.Site        `json:"site"`
	Plant models.PlantConfig `json:"plant"`
}

func (s *Server) handlePlants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, errors.New("GET required"))
		return
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("plant archive disabled"))
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, errors.New("name parameter required"))
		return
	}
	site, plant, err := s.store.GetPlant(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if plant == nil {
		writeError(w, http.StatusNotFound, errors.New("plant not found"))
		return
	}
	writeJSON(w, http.StatusOK, PlantResponse{Site: *site, Plant: *plant})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.store != nil {
		if _, err := s.store.MigrationVersion(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}
