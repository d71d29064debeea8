package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/pathing/internal/api"
	"github.com/banshee-data/pathing/internal/config"
	"github.com/banshee-data/pathing/internal/db"
	"github.com/banshee-data/pathing/internal/detect"
	"github.com/banshee-data/pathing/internal/monitoring"
	"github.com/banshee-data/pathing/internal/serialmux"
	"github.com/banshee-data/pathing/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen  = flag.String("grpc-listen", ":50051", "gRPC health listen address (empty to disable)")
	configFile  = flag.String("config", "", "Planner config file (.json, .yaml or .yml); built-in defaults when empty")
	dbFile      = flag.String("db", "pathing.db", "SQLite database for run history (empty to disable)")
	robotPort   = flag.String("robot", "", "Robot serial port, e.g. /dev/ttyUSB0 (empty to disable the robot link)")
	robotBaud   = flag.Int("robot-baud", serialmux.DefaultBaudRate, "Robot serial baud rate")
	robotSim    = flag.Bool("robot-sim", false, "Simulate a robot that acknowledges every command")
	detectorURL = flag.String("detector", "", "Object-detection endpoint for /api/image (empty to disable)")
	verbose     = flag.Bool("verbose", false, "Log debug output")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := loadPlannerConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load planner config: %v", err)
	}
	opts, err := serverOptions(cfg)
	if err != nil {
		log.Fatalf("invalid planner config: %v", err)
	}

	var database *db.DB
	if *dbFile != "" {
		database, err = db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		opts.Runs = db.NewRunStore(database, nil)
	}

	link, err := openRobotLink(*robotPort, *robotBaud, *robotSim, cfg.GetAckToken())
	if err != nil {
		log.Fatalf("failed to open robot link: %v", err)
	}
	defer link.Close()
	opts.Link = link

	if *detectorURL != "" {
		opts.Classifier = detect.NewHTTPClassifier(*detectorURL, nil)
	}

	log.Printf("%s starting", version.String())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the robot link
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := link.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor robot link: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	if *grpcListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serveHealth(ctx, *grpcListen, link); err != nil {
				log.Printf("gRPC health server error: %v", err)
			}
			log.Printf("gRPC health routine stopped")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(opts).ServeMux()
		link.AttachAdminRoutes(mux)
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach database admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// a dispatch in flight can hold a request open; give it a moment
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// loadPlannerConfig reads path, or returns the built-in defaults when path
// is empty.
func loadPlannerConfig(path string) (*config.PlannerConfig, error) {
	if path == "" {
		return config.DefaultPlannerConfig(), nil
	}
	return config.LoadPlannerConfig(path)
}

// serverOptions builds the compiler, start pose and dispatch settings of cfg.
func serverOptions(cfg *config.PlannerConfig) (api.Options, error) {
	c, err := cfg.NewCompiler()
	if err != nil {
		return api.Options{}, err
	}
	start, err := cfg.StartPose()
	if err != nil {
		return api.Options{}, err
	}
	return api.Options{
		Compiler: c,
		Start:    start,
		Dispatch: serialmux.DispatchOptions{
			Ack:     cfg.GetAckToken(),
			Timeout: cfg.GetAckTimeout(),
		},
	}, nil
}

// openRobotLink returns the simulated robot when sim is set, otherwise a
// link on the serial port at path. An empty path gives a disabled link.
func openRobotLink(path string, baud int, sim bool, ack string) (serialmux.SerialMuxInterface, error) {
	if sim {
		log.Printf("robot link: simulated (acknowledging with %q)", ack)
		return serialmux.NewSerialMux(serialmux.NewSimulatedRobotPort(ack)), nil
	}
	if path == "" {
		log.Print("robot link: disabled")
	}
	return serialmux.NewRobotLink(path, serialmux.PortOptions{BaudRate: baud}, nil)
}
