package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// fetch reads a layer source from an http(s) URL or a local path.
func fetch(client *http.Client, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src, err)
		}
		return data, nil
	}

	resp, err := client.Get(src)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, src)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// parsePointsCSV turns a table of point observations into features. The
// header must name lat/latitude and lon/lng/longitude columns; every other
// column becomes a property, numeric where it parses as one. Rows with bad
// coordinates are skipped.
func parsePointsCSV(data []byte) (*geojson.FeatureCollection, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	latCol, lonCol := -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		header[i] = h
		switch h {
		case "lat", "latitude":
			latCol = i
		case "lon", "lng", "longitude":
			lonCol = i
		}
	}
	if latCol < 0 || lonCol < 0 {
		return nil, fmt.Errorf("header needs latitude and longitude columns, got %v", header)
	}

	fc := geojson.NewFeatureCollection()
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(header) {
			continue
		}

		lat, errLat := strconv.ParseFloat(strings.TrimSpace(record[latCol]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(record[lonCol]), 64)
		if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			continue
		}

		f := geojson.NewFeature(orb.Point{lon, lat})
		for i, v := range record {
			if i == latCol || i == lonCol || header[i] == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				f.Properties[header[i]] = n
			} else {
				f.Properties[header[i]] = v
			}
		}
		fc.Append(f)
	}
	return fc, nil
}
