package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/pvcast/pvcast/internal/api"
	"github.com/pvcast/pvcast/internal/ingest"
	"github.com/pvcast/pvcast/internal/models"
	"github.com/pvcast/pvcast/internal/montecarlo"
	"github.com/pvcast/pvcast/internal/pvmodel"
	"github.com/pvcast/pvcast/internal/store"
)

type cli struct {
	DB        string `help:"Path to the SQLite database." default:"data/pvcast.db" env:"PVCAST_DB"`
	UserAgent string `help:"Contact User-Agent for the NWS API." default:"pvcast (ops@pvcast.example)" env:"PVCAST_USER_AGENT"`

	Serve    serveCmd    `cmd:"" help:"Run the HTTP API server."`
	Forecast forecastCmd `cmd:"" help:"Run a one-shot forecast from a request file and print the bands."`
}

type appContext struct {
	store  *store.Store
	client *ingest.Client
}

type serveCmd struct {
	Port string `help:"HTTP listen port." default:"8080" env:"PVCAST_PORT"`
}

func (c *serveCmd) Run(app *appContext) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := api.NewServer(app.store, app.client, c.Port)
	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type forecastCmd struct {
	Request string `arg:"" help:"Path to a JSON forecast request (site, plant, optional losses and weather)."`
	Horizon int    `help:"Forecast horizon in days." default:"30"`
	Runs    int    `help:"Monte Carlo ensemble size." default:"40"`
	Seed    int64  `help:"Monte Carlo seed." default:"7"`
}

func (c *forecastCmd) Run(app *appContext) error {
	raw, err := os.ReadFile(c.Request)
	if err != nil {
		return err
	}
	var req api.ForecastRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}
	req.Plant.ApplyDefaults()
	if err := req.Site.Validate(); err != nil {
		return err
	}
	if err := req.Plant.Validate(); err != nil {
		return err
	}

	wx := req.Weather
	if len(wx) == 0 {
		fetched, tz, meta, err := app.client.FetchBlended(req.Site.Latitude, req.Site.Longitude)
		if err != nil {
			return fmt.Errorf("fetch weather: %w", err)
		}
		wx = fetched
		if req.Site.Timezone == "" {
			req.Site.Timezone = tz
		}
		log.Printf("fetched %d hours from %s", meta.Hours, meta.Provider)
	}

	losses := models.DefaultLossTree()
	if req.Losses != nil {
		if err := req.Losses.Validate(); err != nil {
			return err
		}
		losses = *req.Losses
	}

	eng := pvmodel.New(req.Site, req.Plant, losses, nil, nil)
	mc := montecarlo.New(eng, req.Site.Location(), c.Runs, c.Seed)

	bands, err := mc.Run(wx)
	if err != nil {
		return err
	}
	realDays := bands.Len()

	var note string
	if realDays < c.Horizon {
		tail, err := eng.Run(wx)
		if err != nil {
			return err
		}
		bands, note, err = mc.ExtendWithPersistence(bands, tail, c.Horizon)
		if err != nil {
			return err
		}
	}
	if note != "" {
		log.Println(note)
	}

	if app.store != nil {
		run := &store.ForecastRun{
			PlantName:   req.Plant.PlantName,
			Kind:        "forecast",
			Runs:        mc.Runs,
			Seed:        c.Seed,
			HorizonDays: bands.Len(),
			RealDays:    realDays,
			Note:        note,
		}
		run.Bands = bands
		if err := app.store.UpsertPlant(req.Site, req.Plant); err != nil {
			log.Printf("upsert plant: %v", err)
		}
		if id, err := app.store.SaveRun(run); err != nil {
			log.Printf("archive run: %v", err)
		} else {
			log.Printf("archived run %d", id)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(bands)
}

func main() {
	var flags cli
	kctx := kong.Parse(&flags,
		kong.Name("pvcast"),
		kong.Description("Solar plant AC energy forecasts with Monte Carlo uncertainty bands."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	app := &appContext{
		store:  st,
		client: ingest.NewClient(flags.UserAgent),
	}

	kctx.FatalIfErrorf(kctx.Run(app))
}
