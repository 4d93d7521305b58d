package delivery

import (
	"math"
	"testing"
	"time"

	"github.com/sabora/client_layer/internal/app/domain/restaurant"
)

func offPeak() time.Time {
	return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
}

func peak() time.Time {
	return time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
}

func testRestaurant() restaurant.Restaurant {
	return restaurant.Restaurant{
		ID:                "r1",
		Name:              "Cantina do Porto",
		Latitude:          0,
		Longitude:         0,
		DeliveryRadiusKm:  10,
		BaseDeliveryFee:   5,
		BaseEstimatedTime: 30,
	}
}

// pointAtKm returns a point due east of the origin at roughly the given
// great-circle distance.
func pointAtKm(km float64) Point {
	return Point{Latitude: 0, Longitude: km / 111.19493}
}

func TestDistance_OneDegreeAtEquator(t *testing.T) {
	d := Distance(Point{0, 0}, Point{0, 1})
	if math.Abs(d-111.19) > 0.1 {
		t.Fatalf("Distance = %v, want ~111.19", d)
	}
}

func TestDistance_ZeroForSamePoint(t *testing.T) {
	p := Point{Latitude: -23.5505, Longitude: -46.6333}
	if d := Distance(p, p); d != 0 {
		t.Fatalf("Distance = %v, want 0", d)
	}
}

func TestEstimate_BaseFeeWithinTwoKm(t *testing.T) {
	e := NewEstimator(offPeak)
	calc, err := e.Estimate(testRestaurant(), pointAtKm(1.5), 20)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if !calc.CanDeliver {
		t.Fatalf("expected deliverable: %+v", calc)
	}
	if calc.DeliveryFee != 5 {
		t.Fatalf("fee = %v, want 5 (base fee, no surcharge)", calc.DeliveryFee)
	}
}

func TestEstimate_LinearSurchargeBeyondTwoKm(t *testing.T) {
	e := NewEstimator(offPeak)
	calc, err := e.Estimate(testRestaurant(), pointAtKm(5), 20)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if calc.DeliveryFee != 9.5 {
		t.Fatalf("fee = %v, want 9.50 (5 + 1.5*3)", calc.DeliveryFee)
	}
	if calc.EstimatedTimeMinutes != 45 {
		t.Fatalf("time = %d, want 45 (30 + 15 travel)", calc.EstimatedTimeMinutes)
	}
	if math.Abs(calc.DistanceKm-5) > 0.01 {
		t.Fatalf("distance = %v, want ~5", calc.DistanceKm)
	}
}

func TestEstimate_OutsideRadius(t *testing.T) {
	e := NewEstimator(offPeak)
	calc, err := e.Estimate(testRestaurant(), pointAtKm(12.3), 20)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if calc.CanDeliver {
		t.Fatalf("expected infeasible: %+v", calc)
	}
	if calc.DeliveryFee != 0 || calc.EstimatedTimeMinutes != 0 {
		t.Fatalf("infeasible result must zero fee and time: %+v", calc)
	}
	if calc.Reason == "" {
		t.Fatalf("infeasible result needs a reason")
	}
}

func TestEstimate_PeakHourSurcharge(t *testing.T) {
	e := NewEstimator(peak)
	calc, err := e.Estimate(testRestaurant(), pointAtKm(5), 20)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if calc.DeliveryFee != 11.4 {
		t.Fatalf("fee = %v, want 11.40 (9.50 * 1.2)", calc.DeliveryFee)
	}
	if calc.EstimatedTimeMinutes != 59 {
		t.Fatalf("time = %d, want 59 (ceil(45 * 1.3))", calc.EstimatedTimeMinutes)
	}
}

func TestEstimate_FreeDeliveryOverridesSurcharges(t *testing.T) {
	e := NewEstimator(peak)
	calc, err := e.Estimate(testRestaurant(), pointAtKm(5), 50)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if calc.DeliveryFee != 0 {
		t.Fatalf("fee = %v, want 0 for order value >= 50", calc.DeliveryFee)
	}
	if calc.EstimatedTimeMinutes != 59 {
		t.Fatalf("free delivery must not change the time estimate, got %d", calc.EstimatedTimeMinutes)
	}
}

func TestEstimate_RestaurantFreeDeliveryMinimumOverride(t *testing.T) {
	e := NewEstimator(offPeak)
	r := testRestaurant()
	r.FreeDeliveryMinimum = 30

	calc, err := e.Estimate(r, pointAtKm(1), 35)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if calc.DeliveryFee != 0 {
		t.Fatalf("fee = %v, want 0 above the restaurant's own threshold", calc.DeliveryFee)
	}

	calc, err = e.Estimate(r, pointAtKm(1), 25)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if calc.DeliveryFee != 5 {
		t.Fatalf("fee = %v, want 5 below the threshold", calc.DeliveryFee)
	}
}

func TestEstimate_InvalidInputsError(t *testing.T) {
	e := NewEstimator(offPeak)

	r := testRestaurant()
	if _, err := e.Estimate(r, Point{Latitude: math.NaN(), Longitude: 0}, 20); err == nil {
		t.Fatalf("NaN latitude must error")
	}
	if _, err := e.Estimate(r, Point{Latitude: 91, Longitude: 0}, 20); err == nil {
		t.Fatalf("out-of-range latitude must error")
	}

	r.DeliveryRadiusKm = 0
	if _, err := e.Estimate(r, pointAtKm(1), 20); err == nil {
		t.Fatalf("zero radius must error")
	}

	r = testRestaurant()
	if _, err := e.Estimate(r, pointAtKm(1), -1); err == nil {
		t.Fatalf("negative order value must error")
	}
}

func TestIsPeakHour_Boundaries(t *testing.T) {
	cases := map[int]bool{
		10: false, 11: true, 14: true, 15: false,
		17: false, 18: true, 21: true, 22: false,
	}
	for hour, want := range cases {
		if got := isPeakHour(hour); got != want {
			t.Fatalf("isPeakHour(%d) = %v, want %v", hour, got, want)
		}
	}
}
