// Command rotator-control bridges the hamlib rotctld protocol to a
// JPTH-13M-PoE pan/tilt camera mount, so satellite tracking software
// can drive the mount as an azimuth/elevation rotator.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/interfect/rotator-control/internal/config"
	"github.com/interfect/rotator-control/jpth"
	"github.com/interfect/rotator-control/track"
)

var (
	configPath = flag.String("config", "", "path to YAML config file")
	listenAddr = flag.String("listen", "", "rotctld listen address (overrides config)")
	adminAddr  = flag.String("admin", "", "admin HTTP listen address (overrides config)")
	mountURL   = flag.String("mount", "", "mount HTTP endpoint (overrides config)")
	simulate   = flag.Bool("simulate", false, "run against a built-in mount simulator")
)

func main() {
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}
	if *adminAddr != "" {
		cfg.AdminListen = *adminAddr
	}
	if *mountURL != "" {
		cfg.Mount.Endpoint = *mountURL
	}
	if *simulate {
		cfg.Mount.Simulate = true
	}

	ctx := context.Background()
	g, ctx := errgroup.WithContext(ctx)

	endpoint := cfg.Mount.Endpoint
	if cfg.Mount.Simulate {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Fatalf("starting simulator: %v", err)
		}
		g.Go(func() error {
			return http.Serve(ln, jpth.NewSimulator())
		})
		endpoint = "http://" + ln.Addr().String()
		log.Printf("simulating mount at %s", endpoint)
	}
	mount := jpth.New(endpoint)

	server := NewServer()
	manager, err := track.NewManager(cfg.TransformGeometry(), mount, track.Config{
		Interval: cfg.TickInterval(),
		Deadband: cfg.Tracking.DeadbandDegrees,
		ParkPan:  cfg.Tracking.ParkPan,
		ParkTilt: cfg.Tracking.ParkTilt,
	}, server.statusCallback)
	if err != nil {
		log.Fatalf("mount geometry: %v", err)
	}
	server.manager = manager

	if err := server.ListenRotctld(ctx, cfg.Listen); err != nil {
		log.Fatalf("listening on %s: %v", cfg.Listen, err)
	}
	log.Printf("rotctld listening on %s", cfg.Listen)

	r := mux.NewRouter()
	r.Handle("/api/status", http.HandlerFunc(server.StatusHandler))
	r.Handle("/api/ws", http.HandlerFunc(server.StatusSocketHandler))
	r.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.AdminListen,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	g.Go(func() error {
		log.Printf("admin server listening on %s", cfg.AdminListen)
		return srv.ListenAndServe()
	})
	log.Fatal(g.Wait())
}
