// internal/service/geo/sampler.go

package geo

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"geofinder/internal/domain/place"
)

// metersPerDegree approximates the length of one degree of latitude
const metersPerDegree = 111300.0

// Source is a uniform random source in [0, 1)
type Source interface {
	Float64() float64
}

// lockedSource wraps math/rand so a single source can be shared by handlers
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSource creates a goroutine-safe random source. A zero seed picks one from the clock.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// Sampler draws uniform-area random points on a disk around a center
type Sampler struct {
	rnd Source
}

// NewSampler creates a new sampler over the given random source
func NewSampler(rnd Source) *Sampler {
	return &Sampler{rnd: rnd}
}

// Sample returns a random coordinate within radiusMeters of center.
// The longitude offset is scaled by 1/cos(latitude), so fidelity drops towards the poles;
// results are clamped to [-90, 90] latitude and wrapped into [-180, 180] longitude.
func (s *Sampler) Sample(center place.Coordinate, radiusMeters float64) (place.Coordinate, error) {
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters < 0 {
		return place.Coordinate{}, fmt.Errorf("%w: radius %f", place.ErrInvalidArgument, radiusMeters)
	}
	if radiusMeters == 0 {
		return center, nil
	}

	radiusDegrees := radiusMeters / metersPerDegree

	u := s.rnd.Float64()
	v := s.rnd.Float64()

	// sqrt(u) keeps the density uniform over the disk area
	w := radiusDegrees * math.Sqrt(u)
	t := 2 * math.Pi * v

	x := w * math.Cos(t)
	y := w * math.Sin(t)

	return place.Coordinate{
		Latitude:  math.Max(-90, math.Min(90, center.Latitude+y)),
		Longitude: wrapLongitude(center.Longitude + x/math.Cos(center.Latitude*math.Pi/180.0)),
	}, nil
}

// wrapLongitude maps any longitude into [-180, 180]
func wrapLongitude(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}

	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}
