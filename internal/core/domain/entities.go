package domain

import (
	"time"
)

// Layer identifiers known to the map renderer.
const (
	LayerGroundwaterLevels = "Groundwater Levels"
	LayerAquiferRecharge   = "Aquifer Recharge Zones"
	LayerSoilPermeability  = "Soil Permeability"
	LayerWells             = "Groundwater Wells"
	LayerRainfall          = "Rainfall Zones"
)

// Layer describes a toggleable overlay of geospatial features.
type Layer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	GeometryKind string `json:"geometry_kind"` // "point" | "polygon"
	FeatureCount int    `json:"feature_count"`
}

// Basemap is a tile provider the browser map can draw beneath the layers.
// URL is a Leaflet-style template with {s}, {z}, {x} and {y} placeholders.
type Basemap struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	Default     bool   `json:"default"`
}

// Observation is a single feature of a layer located relative to a point.
type Observation struct {
	LayerID    string         `json:"layer_id"`
	Name       string         `json:"name"`
	Location   GeoPoint       `json:"location"`
	Properties map[string]any `json:"properties,omitempty"`
	Distance   float64        `json:"distance"` // meters
}

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// ChatMessage is one entry of a chat transcript.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnRole is the author of a turn sent to the language model.
type TurnRole string

const (
	RoleUser  TurnRole = "user"
	RoleModel TurnRole = "model"
)

// Turn is one message of a conversation sent to the language model.
type Turn struct {
	Role TurnRole
	Text string
}

// PredictionRequest asks for a groundwater prediction at a point.
type PredictionRequest struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	SelectedLayers []string `json:"selectedLayers"`
}

// Prediction is the model's answer to a PredictionRequest.
type Prediction struct {
	Text   string `json:"prediction"`
	Cached bool   `json:"-"`
}

// AnalysisKind tells chat and prediction analyses apart.
type AnalysisKind string

const (
	AnalysisChat       AnalysisKind = "chat"
	AnalysisPrediction AnalysisKind = "prediction"
)

// Analysis is an archived chat exchange or prediction.
type Analysis struct {
	ID        string       `json:"id"`
	Kind      AnalysisKind `json:"kind"`
	SessionID string       `json:"session_id,omitempty"`
	Prompt    string       `json:"prompt"`
	Response  string       `json:"response"`
	Location  *GeoPoint    `json:"location,omitempty"`
	Layers    []string     `json:"layers,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// DashboardOverview summarises the archive for the signed-in dashboard.
type DashboardOverview struct {
	ActiveSessions int        `json:"active_sessions"`
	Layers         int        `json:"layers"`
	Predictions    int        `json:"predictions"`
	Chats          int        `json:"chats"`
	Recent         []Analysis `json:"recent"`
}
