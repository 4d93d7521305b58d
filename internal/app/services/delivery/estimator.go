// Package delivery turns a restaurant's delivery configuration and a customer
// position into a fee/time/feasibility decision.
package delivery

import (
	"fmt"
	"math"
	"time"

	"github.com/sabora/client_layer/internal/app/domain/restaurant"
)

const (
	earthRadiusKm = 6371.0

	// Distance covered by the base fee; every km beyond it adds a linear
	// surcharge.
	baseFeeRadiusKm = 2.0
	perKmSurcharge  = 1.5

	// Average courier speed used for the travel-time estimate.
	avgSpeedKmh = 20.0

	// Orders at or above this value ship free.
	freeDeliveryMinimum = 50.0

	peakFeeMultiplier  = 1.2
	peakTimeMultiplier = 1.3
)

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Calculation is the immutable result of one estimate. Produced fresh per
// call; it has no identity and is never mutated.
type Calculation struct {
	DeliveryFee          float64 `json:"delivery_fee"`
	EstimatedTimeMinutes int     `json:"estimated_time_minutes"`
	DistanceKm           float64 `json:"distance_km"`
	CanDeliver           bool    `json:"can_deliver"`
	Reason               string  `json:"reason,omitempty"`
}

// Estimator computes delivery decisions. The clock is injectable so peak-hour
// behaviour is testable; a nil now falls back to time.Now.
type Estimator struct {
	now func() time.Time
}

// NewEstimator creates an estimator.
func NewEstimator(now func() time.Time) *Estimator {
	if now == nil {
		now = time.Now
	}
	return &Estimator{now: now}
}

// Distance returns the great-circle distance between a and b in kilometers,
// computed with the Haversine formula.
func Distance(a, b Point) float64 {
	latA := a.Latitude * math.Pi / 180
	latB := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Estimate computes the delivery decision for one order.
//
// Invalid inputs return an error rather than a defaulted "deliverable"
// result; masking calculation failures as valid deliveries hid real bugs.
func (e *Estimator) Estimate(r restaurant.Restaurant, customer Point, orderValue float64) (Calculation, error) {
	restaurantPos := Point{Latitude: r.Latitude, Longitude: r.Longitude}
	if err := validatePoint(restaurantPos); err != nil {
		return Calculation{}, fmt.Errorf("restaurant position: %w", err)
	}
	if err := validatePoint(customer); err != nil {
		return Calculation{}, fmt.Errorf("customer position: %w", err)
	}
	if r.DeliveryRadiusKm <= 0 || math.IsNaN(r.DeliveryRadiusKm) {
		return Calculation{}, fmt.Errorf("delivery radius must be positive, got %v", r.DeliveryRadiusKm)
	}
	if r.BaseDeliveryFee < 0 || math.IsNaN(r.BaseDeliveryFee) {
		return Calculation{}, fmt.Errorf("base delivery fee must be non-negative, got %v", r.BaseDeliveryFee)
	}
	if r.BaseEstimatedTime < 0 {
		return Calculation{}, fmt.Errorf("base estimated time must be non-negative, got %d", r.BaseEstimatedTime)
	}
	if orderValue < 0 || math.IsNaN(orderValue) {
		return Calculation{}, fmt.Errorf("order value must be non-negative, got %v", orderValue)
	}

	dist := Distance(restaurantPos, customer)

	if dist > r.DeliveryRadiusKm {
		return Calculation{
			DeliveryFee:          0,
			EstimatedTimeMinutes: 0,
			DistanceKm:           round2(dist),
			CanDeliver:           false,
			Reason: fmt.Sprintf("address is %.1f km away, outside the %.1f km delivery radius",
				dist, r.DeliveryRadiusKm),
		}, nil
	}

	fee := r.BaseDeliveryFee
	if dist > baseFeeRadiusKm {
		fee += perKmSurcharge * (dist - baseFeeRadiusKm)
	}

	minutes := int(math.Ceil(float64(r.BaseEstimatedTime) + dist/avgSpeedKmh*60))

	if isPeakHour(e.now().Hour()) {
		fee *= peakFeeMultiplier
		minutes = int(math.Ceil(float64(minutes) * peakTimeMultiplier))
	}

	minimum := r.FreeDeliveryMinimum
	if minimum <= 0 {
		minimum = freeDeliveryMinimum
	}
	if orderValue >= minimum {
		fee = 0
	}

	return Calculation{
		DeliveryFee:          round2(fee),
		EstimatedTimeMinutes: minutes,
		DistanceKm:           round2(dist),
		CanDeliver:           true,
	}, nil
}

// isPeakHour reports whether the local wall-clock hour falls in the lunch
// (11-14) or dinner (18-21) surcharge windows, inclusive on both ends.
func isPeakHour(hour int) bool {
	return (hour >= 11 && hour <= 14) || (hour >= 18 && hour <= 21)
}

func validatePoint(p Point) error {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return fmt.Errorf("coordinates must be finite")
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", p.Longitude)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
