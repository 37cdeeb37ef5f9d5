package telemetry

// Tracer names, one per instrumented outbound adapter.
const (
	TracerGemini   = "groundwatch/gemini"
	TracerGeocoder = "groundwatch/geocoder"
)
