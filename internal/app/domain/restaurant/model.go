package restaurant

// Restaurant carries the subset of restaurant configuration the delivery
// estimator needs: where it is and how it prices delivery.
type Restaurant struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	DeliveryRadiusKm  float64 `json:"delivery_radius_km"`
	BaseDeliveryFee   float64 `json:"base_delivery_fee"`
	BaseEstimatedTime int     `json:"base_estimated_time"`

	// FreeDeliveryMinimum overrides the platform-wide free delivery
	// threshold when positive.
	FreeDeliveryMinimum float64 `json:"free_delivery_minimum,omitempty"`
}
