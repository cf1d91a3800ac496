package core

// Position is a WGS84 (EPSG:4326) coordinate pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MarkerInfo is the descriptive payload attached to a map marker alongside
// its position.
type MarkerInfo struct {
	Identifier Identifier `json:"identifier"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	Timestamp  int64      `json:"timestamp"`
}

// UploadMetadata describes a roster export for the web frontend.
type UploadMetadata struct {
	Namespace    string  `json:"namespace"`
	Participants int     `json:"participants"`
	DurationSecs float64 `json:"durationSecs"`
	Tag          string  `json:"tag"`
}
