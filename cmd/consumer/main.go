// The consumer mirrors driver location pings from Kafka into Redis GEO so
// processes other than the dispatch engine can see the live fleet.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/Mrigank923/Voy/internal/geo"
	"github.com/Mrigank923/Voy/internal/logging"
	"github.com/Mrigank923/Voy/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_pings_consumed_total",
		Help: "Total location pings consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_pings_invalid_total",
		Help: "Total invalid messages received",
	})
	mirrorUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_mirror_updates_total",
		Help: "Total successful redis mirror updates",
	})
	mirrorErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_mirror_errors_total",
		Help: "Total redis mirror errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, mirrorUpdates, mirrorErrors)
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	logger := logging.NewLogger(os.Getenv("LOG_LEVEL"))

	brokers := splitBrokers(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	topic := envOr("KAFKA_TOPIC", "driver-pings")
	group := envOr("KAFKA_GROUP", "dispatch-geo-mirror")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	geoKey := envOr("REDIS_GEO_KEY", "drivers_geo")

	mirror := geo.NewRedisGeo(redisAddr, os.Getenv("REDIS_PASSWORD"), geoKey)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := mirror.Ping(r.Context()); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = mirror.Close()
	}()

	logger.Info("consumer started", "topic", topic, "brokers", brokers, "group", group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		var p models.LocationPing
		if err := json.Unmarshal(m.Value, &p); err != nil || p.DriverID == "" {
			msgsInvalid.Inc()
			logger.Warn("invalid ping message", "error", err)
			continue
		}

		entry := geo.Entry{DriverID: p.DriverID, Loc: p.Loc, Class: p.Class, UpdatedAt: p.Timestamp}
		if err := mirrorWithRetry(ctx, mirror, entry, 3, 200*time.Millisecond); err != nil {
			mirrorErrors.Inc()
			logger.Warn("redis mirror update failed", "driver_id", p.DriverID, "error", err)
			continue
		}
		mirrorUpdates.Inc()
	}
}

// Mirror is the subset of the redis geo store the consumer needs, kept small
// for tests.
type Mirror interface {
	Upsert(ctx context.Context, e geo.Entry) error
}

// mirrorWithRetry updates the mirror with bounded retry and exponential backoff.
func mirrorWithRetry(ctx context.Context, m Mirror, e geo.Entry, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = m.Upsert(ctx, e); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

func splitBrokers(v string) []string {
	var out []string
	for _, b := range strings.Split(v, ",") {
		if s := strings.TrimSpace(b); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
