package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/groundwatch/internal/adapters/demodata"
	"github.com/samirrijal/groundwatch/internal/adapters/postgres"
	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/pkg/config"
	"github.com/samirrijal/groundwatch/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source string       `json:"source"`
	Layers []LayerEntry `json:"layers"`
}

// LayerEntry names one layer and where its features come from. URL may be
// an http(s) address or a local path.
type LayerEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	GeometryKind string `json:"geometry_kind"`
	URL          string `json:"url"`
	Format       string `json:"format"` // "geojson" (default) or "csv"
}

func (e LayerEntry) layer() domain.Layer {
	l := domain.Layer{ID: e.ID, Name: e.Name, Color: e.Color, GeometryKind: e.GeometryKind}
	if l.Name == "" {
		l.Name = l.ID
	}
	if l.Color == "" {
		l.Color = "#007bff"
	}
	if l.GeometryKind == "" {
		l.GeometryKind = "point"
	}
	return l
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

// usage: ingestor [manifest.json | demo] [layer,ids]
func main() {
	cfg, err := config.Load("groundwatch-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("groundwatch-ingestor", "info", "text")

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	repo := postgres.NewLayerRepo(db, nil)

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	if manifestPath == "demo" {
		if err := seedDemo(ctx, repo); err != nil {
			log.Fatalf("seed demo layers: %v", err)
		}
		log.Println("demo layers ingested")
		return
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	log.Printf("Groundwatch layer ingestor: %d layers from %s", len(manifest.Layers), manifest.Source)

	// Filter layers (optional CLI arg: id list)
	idFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			idFilter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 120 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent downloads

	for _, entry := range manifest.Layers {
		if len(idFilter) > 0 && !idFilter[entry.ID] {
			continue
		}

		wg.Add(1)
		go func(e LayerEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestLayer(ctx, repo, client, e); err != nil {
				log.Printf("ERROR [%s]: %v", e.ID, err)
			}
		}(entry)
	}

	wg.Wait()
	log.Println("ingestion complete")
}

// ---------------------------------------------------------------------------
// Per-layer ingestion
// ---------------------------------------------------------------------------

func ingestLayer(ctx context.Context, repo *postgres.LayerRepo, client *http.Client, e LayerEntry) error {
	if e.ID == "" {
		return fmt.Errorf("layer entry without id")
	}
	log.Printf("[%s] loading %s", e.ID, e.URL)

	body, err := fetch(client, e.URL)
	if err != nil {
		return err
	}

	var fc *geojson.FeatureCollection
	switch strings.ToLower(e.Format) {
	case "", "geojson":
		fc, err = geojson.UnmarshalFeatureCollection(body)
	case "csv":
		fc, err = parsePointsCSV(body)
	default:
		return fmt.Errorf("unknown format %q", e.Format)
	}
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	if err := repo.ReplaceLayer(ctx, e.layer(), fc); err != nil {
		return err
	}
	log.Printf("[%s] %d features", e.ID, len(fc.Features))
	return nil
}

func seedDemo(ctx context.Context, repo *postgres.LayerRepo) error {
	collections := demodata.Collections()
	for _, l := range demodata.Layers() {
		if err := repo.ReplaceLayer(ctx, l, collections[l.ID]); err != nil {
			return fmt.Errorf("%s: %w", l.ID, err)
		}
		log.Printf("[%s] %d features", l.ID, len(collections[l.ID].Features))
	}
	return nil
}
