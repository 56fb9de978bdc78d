package view

import (
	"fmt"
	"strconv"
	"time"

	"github.com/danghamo/satwatch/internal/domain/satellite"
)

// Placeholders for absent values
const (
	Loading      = "Loading..."
	NotAvailable = "Not available"
)

const defaultTitle = "ISS Tracker"

// Marker is the map pin for the current position
type Marker struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Label     string  `json:"label"`
}

// Panel is the rendered, human readable view of a snapshot
type Panel struct {
	Title       string  `json:"title"`
	Tracking    bool    `json:"tracking"`
	Status      string  `json:"status"`
	ToggleLabel string  `json:"toggle_label"`
	Latitude    string  `json:"latitude"`
	Longitude   string  `json:"longitude"`
	Altitude    string  `json:"altitude"`
	Velocity    string  `json:"velocity"`
	Country     string  `json:"country"`
	Region      string  `json:"region"`
	UpdatedAt   string  `json:"updated_at"`
	Stale       bool    `json:"stale"`
	Marker      *Marker `json:"marker,omitempty"`
}

// BuildPanel formats s. tracking is the view's own knowledge of the session
// state, which may be newer than s.
func BuildPanel(title string, s satellite.Snapshot, tracking bool) Panel {
	if title == "" {
		title = defaultTitle
	}

	missing := NotAvailable
	if tracking {
		missing = Loading
	}

	p := Panel{
		Title:       title,
		Tracking:    tracking,
		Status:      statusLine(s, tracking),
		ToggleLabel: "Start tracking",
		Latitude:    missing,
		Longitude:   missing,
		Altitude:    missing,
		Velocity:    missing,
		Country:     missing,
		Region:      missing,
		UpdatedAt:   missing,
		Stale:       tracking && s.Stale,
	}
	if tracking {
		p.ToggleLabel = "Stop tracking"
	}

	if !s.HasPosition() {
		return p
	}

	pos := s.Position
	p.Latitude = formatFixed(pos.Latitude)
	p.Longitude = formatFixed(pos.Longitude)
	p.Altitude = formatFixed(pos.AltitudeKm) + " km"
	p.Velocity = formatFixed(pos.VelocityKmh) + " km/h"
	p.UpdatedAt = pos.Timestamp.UTC().Format(time.RFC3339)
	p.Marker = &Marker{Latitude: pos.Latitude, Longitude: pos.Longitude, Label: title}

	if s.HasPlace() {
		p.Country = s.Place.Country
		p.Region = s.Place.Region
	} else {
		p.Country = NotAvailable
		p.Region = NotAvailable
	}
	return p
}

func statusLine(s satellite.Snapshot, tracking bool) string {
	switch {
	case !tracking:
		return "Stopped"
	case s.Stale:
		return fmt.Sprintf("Tracking (stale after %d failed updates)", s.ConsecutiveFailures)
	default:
		return "Tracking"
	}
}

func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
