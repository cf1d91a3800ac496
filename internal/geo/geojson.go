package geo

import (
	"encoding/json"
	"sort"

	"github.com/locshare/locshare/pkg/core"
)

type feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

// FeatureCollection renders a snapshot as a GeoJSON FeatureCollection.
// Records without a valid position are skipped. Features are ordered by
// identifier so exports are stable.
func FeatureCollection(snap core.Snapshot) ([]byte, error) {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	fc := featureCollection{Type: "FeatureCollection", Features: []feature{}}
	for _, k := range keys {
		rec := snap[core.Identifier(k)]
		if !rec.HasValidPosition() {
			continue
		}
		geomJSON, err := json.Marshal(Point4326(rec.Position()).AsGeometry())
		if err != nil {
			return nil, err
		}
		props := map[string]any{
			"identifier": string(rec.Identifier),
			"timestamp":  rec.Timestamp,
		}
		if rec.Accuracy != nil {
			props["accuracy"] = *rec.Accuracy
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Geometry:   geomJSON,
			Properties: props,
		})
	}
	return json.Marshal(fc)
}
