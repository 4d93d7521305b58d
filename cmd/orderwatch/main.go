// Command orderwatch runs the customer-side order companion: it watches the
// backend change feed for order status updates, shows notifications and
// prompts for reviews once orders are delivered.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sabora/client_layer/internal/app"
	"github.com/sabora/client_layer/internal/app/metrics"
	"github.com/sabora/client_layer/internal/app/services/governor"
	"github.com/sabora/client_layer/internal/app/services/notify"
	"github.com/sabora/client_layer/internal/app/storage/supabase"
	"github.com/sabora/client_layer/internal/config"
	"github.com/sabora/client_layer/pkg/logger"
	"github.com/sabora/client_layer/supabase/client"
)

func main() {
	var (
		settingsPath = flag.String("settings", "config/settings.yaml", "Path to the settings file")
		metricsAddr  = flag.String("metrics-addr", ":9090", "Listen address for Prometheus metrics, empty to disable")
	)
	flag.Parse()

	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("load environment: %v", err)
	}

	settings, err := config.LoadSettingsFromPath(*settingsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("settings file unusable, falling back to defaults: %v", err)
		}
		settings = config.DefaultSettings()
	}

	level, err := logrus.ParseLevel(settings.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	appLog := logger.New("orderwatch", os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := client.NewResilientTransport(nil, client.DefaultRetryConfig(), client.DefaultBreakerConfig())
	sb, err := client.New(client.Config{
		URL:        env.SupabaseURL,
		APIKey:     env.SupabaseAnonKey,
		HTTPClient: &http.Client{Transport: transport, Timeout: 30 * time.Second},
	})
	if err != nil {
		log.Fatalf("backend client: %v", err)
	}

	if env.CustomerPassword != "" {
		session, err := sb.Auth().SignInWithPassword(ctx, env.CustomerEmail, env.CustomerPassword)
		if err != nil {
			log.Fatalf("sign in: %v", err)
		}
		sb = sb.WithToken(session.AccessToken)
		appLog.WithField("expires_at", session.ExpiresAt().Format(time.RFC3339)).Info("signed in")
	}

	gov := governor.New(governor.Policy{
		MaxRequestsPerWindow: settings.Governor.MaxRequestsPerWindow,
		Window:               settings.Governor.Window.Std(),
		RequestDelay:         settings.Governor.RequestDelay.Std(),
	}, appLog.WithField("component", "governor"), nil)

	store := supabase.New(sb, gov)

	rt := client.NewRealtime(env.SupabaseURL, env.SupabaseAnonKey, appLog.WithField("component", "realtime"))
	if err := rt.Connect(ctx); err != nil {
		log.Fatalf("realtime connect: %v", err)
	}
	defer rt.Close()

	application, err := app.New(app.Config{
		CustomerEmail:       env.CustomerEmail,
		ReviewPollInterval:  settings.Reviews.PollInterval.Std(),
		ReviewAfter:         settings.Reviews.ReviewAfter.Std(),
		ReviewCouponPercent: settings.Reviews.CouponPercent,
	}, app.Stores{
		Orders:      store,
		Reviews:     store,
		Restaurants: store,
		Coupons:     store,
	}, notify.NewRealtimeFeed(rt), notify.NewLogNotifier(appLog.WithField("component", "notify")), appLog)
	if err != nil {
		log.Fatalf("build application: %v", err)
	}

	if err := application.Start(ctx); err != nil {
		log.Fatalf("start application: %v", err)
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, appLog)
	}

	select {
	case <-ctx.Done():
		appLog.Info("shutting down")
	case <-rt.Done():
		appLog.Warn("realtime connection lost, shutting down")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Stop(stopCtx); err != nil {
		appLog.WithError(err).Warn("shutdown finished with errors")
	}
}

func serveMetrics(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	log.WithField("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Warn("metrics server stopped")
	}
}
