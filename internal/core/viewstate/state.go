package viewstate

// Center is a viewport centre. Latitude and longitude always travel together.
type Center struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Navigation is a one-shot request to move the viewport.
// A nil Zoom means "keep the renderer's current zoom".
type Navigation struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Zoom      *float64 `json:"zoom"`
}

// ViewState is the map viewport and layer selection of one map page session.
type ViewState struct {
	Latitude          *float64    `json:"latitude"`
	Longitude         *float64    `json:"longitude"`
	Zoom              int         `json:"zoom"`
	SelectedLayers    LayerSet    `json:"selectedLayers"`
	PendingNavigation *Navigation `json:"pendingNavigation"`
}

// Center returns the viewport centre, or false before the map has initialised.
func (v ViewState) Center() (Center, bool) {
	if v.Latitude == nil || v.Longitude == nil {
		return Center{}, false
	}
	return Center{Latitude: *v.Latitude, Longitude: *v.Longitude}, true
}

// clone returns a copy sharing no pointers with v.
func (v ViewState) clone() ViewState {
	out := v
	if v.Latitude != nil {
		lat := *v.Latitude
		out.Latitude = &lat
	}
	if v.Longitude != nil {
		lon := *v.Longitude
		out.Longitude = &lon
	}
	out.SelectedLayers = v.SelectedLayers.clone()
	if v.PendingNavigation != nil {
		nav := v.PendingNavigation.clone()
		out.PendingNavigation = &nav
	}
	return out
}

func (n Navigation) clone() Navigation {
	out := n
	if n.Zoom != nil {
		z := *n.Zoom
		out.Zoom = &z
	}
	return out
}

// Patch names the top-level fields to replace; nil fields are left untouched.
// Navigation is replaced wholesale. ClearNavigation resets it to none and
// wins over Navigation when both are set.
type Patch struct {
	Center          *Center
	Zoom            *int
	SelectedLayers  *LayerSet
	Navigation      *Navigation
	ClearNavigation bool
}

// Empty reports whether the patch names no field.
func (p Patch) Empty() bool {
	return p.Center == nil && p.Zoom == nil && p.SelectedLayers == nil &&
		p.Navigation == nil && !p.ClearNavigation
}

// Viewport returns a patch that moves the centre and zoom together.
func Viewport(lat, lon float64, zoom int) Patch {
	return Patch{Center: &Center{Latitude: lat, Longitude: lon}, Zoom: &zoom}
}

// Layers returns a patch replacing the selected layers.
func Layers(s LayerSet) Patch {
	return Patch{SelectedLayers: &s}
}

func (v *ViewState) apply(p Patch) {
	if p.Center != nil {
		lat, lon := p.Center.Latitude, p.Center.Longitude
		v.Latitude, v.Longitude = &lat, &lon
	}
	if p.Zoom != nil {
		v.Zoom = *p.Zoom
	}
	if p.SelectedLayers != nil {
		v.SelectedLayers = p.SelectedLayers.clone()
	}
	if p.Navigation != nil {
		nav := p.Navigation.clone()
		v.PendingNavigation = &nav
	}
	if p.ClearNavigation {
		v.PendingNavigation = nil
	}
}
