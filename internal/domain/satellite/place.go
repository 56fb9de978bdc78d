package satellite

import "strings"

// Unknown is used for any place field the geocoder could not resolve
const Unknown = "unknown"

// PlaceInfo describes what lies under the satellite
type PlaceInfo struct {
	Country string `json:"country"`
	Region  string `json:"region"`
}

// NewPlaceInfo trims its inputs and replaces blanks with Unknown
func NewPlaceInfo(country, region string) PlaceInfo {
	return PlaceInfo{
		Country: orUnknown(country),
		Region:  orUnknown(region),
	}
}

// UnknownPlace is the substitute used when geocoding fails
func UnknownPlace() PlaceInfo {
	return PlaceInfo{Country: Unknown, Region: Unknown}
}

// IsUnknown reports whether neither field was resolved
func (p PlaceInfo) IsUnknown() bool {
	return p.Country == Unknown && p.Region == Unknown
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}
