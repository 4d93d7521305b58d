// Command deliverycheck prints a delivery quote for one restaurant: fee,
// estimated time and whether the customer's position is inside the delivery
// radius. The position comes from flags or, failing that, IP geolocation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/sabora/client_layer/internal/app/services/delivery"
	"github.com/sabora/client_layer/internal/app/services/governor"
	"github.com/sabora/client_layer/internal/app/storage/supabase"
	"github.com/sabora/client_layer/internal/config"
	"github.com/sabora/client_layer/pkg/logger"
	"github.com/sabora/client_layer/supabase/client"
)

func main() {
	var (
		restaurantID = flag.String("restaurant", "", "Restaurant id to quote against (required)")
		orderValue   = flag.Float64("order-value", 0, "Order value used for the free-delivery threshold")
		lat          = flag.Float64("lat", 0, "Customer latitude; 0 means use IP geolocation")
		lon          = flag.Float64("lon", 0, "Customer longitude; 0 means use IP geolocation")
		settingsPath = flag.String("settings", "config/settings.yaml", "Path to the settings file")
	)
	flag.Parse()

	if *restaurantID == "" {
		flag.Usage()
		os.Exit(2)
	}

	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("load environment: %v", err)
	}
	settings, err := config.LoadSettingsFromPath(*settingsPath)
	if err != nil {
		settings = config.DefaultSettings()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	appLog := logger.NewDefault("deliverycheck")

	transport := client.NewResilientTransport(nil, client.DefaultRetryConfig(), client.DefaultBreakerConfig())
	sb, err := client.New(client.Config{
		URL:        env.SupabaseURL,
		APIKey:     env.SupabaseAnonKey,
		HTTPClient: &http.Client{Transport: transport, Timeout: 30 * time.Second},
	})
	if err != nil {
		log.Fatalf("backend client: %v", err)
	}

	gov := governor.New(governor.Policy{
		MaxRequestsPerWindow: settings.Governor.MaxRequestsPerWindow,
		Window:               settings.Governor.Window.Std(),
		RequestDelay:         settings.Governor.RequestDelay.Std(),
	}, appLog.WithField("component", "governor"), nil)
	store := supabase.New(sb, gov)

	r, err := store.GetRestaurant(ctx, *restaurantID)
	if err != nil {
		log.Fatalf("load restaurant: %v", err)
	}

	customer := delivery.Point{Latitude: *lat, Longitude: *lon}
	if *lat == 0 && *lon == 0 {
		locator := delivery.NewIPLocator(settings.Delivery.GeolocateEndpoint, appLog.WithField("component", "locator"))
		pos := locator.CurrentPosition(ctx)
		if pos == nil {
			log.Fatalf("could not determine your position; pass -lat and -lon")
		}
		customer = pos.Point
	}

	est := delivery.NewEstimator(nil)
	quote, err := est.Estimate(r, customer, *orderValue)
	if err != nil {
		log.Fatalf("estimate: %v", err)
	}

	fmt.Printf("Restaurant: %s\n", r.Name)
	fmt.Printf("Distance:   %.2f km\n", quote.DistanceKm)
	if !quote.CanDeliver {
		fmt.Printf("Delivery:   not available (%s)\n", quote.Reason)
		os.Exit(1)
	}
	fmt.Printf("Fee:        %.2f\n", quote.DeliveryFee)
	fmt.Printf("Time:       %d min\n", quote.EstimatedTimeMinutes)
}
