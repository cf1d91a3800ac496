package publisher

import (
	"context"
	"math/rand"
	"time"

	"github.com/locshare/locshare/pkg/core"
)

// RandomWalk is a synthetic source for demo mode: a fix every Interval,
// drifting from Start by up to StepDegrees per step. Latitude is clamped;
// longitude wraps at the antimeridian.
type RandomWalk struct {
	Start       core.Position
	StepDegrees float64
	Interval    time.Duration
}

func (r *RandomWalk) Watch(ctx context.Context) (<-chan core.LocationRecord, error) {
	step := r.StepDegrees
	if step == 0 {
		step = 0.0005
	}
	interval := r.Interval
	if interval == 0 {
		interval = time.Second
	}

	out := make(chan core.LocationRecord)

	go func() {
		defer close(out)

		pos := r.Start
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pos.Lat += (rand.Float64()*2 - 1) * step
				pos.Lon += (rand.Float64()*2 - 1) * step

				if pos.Lat > 90 {
					pos.Lat = 90
				}
				if pos.Lat < -90 {
					pos.Lat = -90
				}
				if pos.Lon > 180 {
					pos.Lon -= 360
				}
				if pos.Lon < -180 {
					pos.Lon += 360
				}

				rec := core.LocationRecord{
					Latitude:  pos.Lat,
					Longitude: pos.Lon,
					Timestamp: time.Now().UnixMilli(),
				}

				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
