package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/tagtrail/internal/loadgen"
	"github.com/okian/tagtrail/pkg/logger"
)

// Default configuration constants.
const (
	defaultTags          = 100
	defaultScansPerTag   = 20
	defaultUsers         = 200
	defaultEventsPerUser = 25
	defaultBatchSize     = 250
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:9080", "Base URL of the service")
		tags          = flag.Int("tags", defaultTags, "Number of distinct tags to scan")
		scansPerTag   = flag.Int("scans", defaultScansPerTag, "Scans per tag")
		users         = flag.Int("users", defaultUsers, "Number of distinct event subjects")
		eventsPerUser = flag.Int("events", defaultEventsPerUser, "Events per subject")
		batchSize     = flag.Int("batch", defaultBatchSize, "Events per POST /events (max 500)")
		workers       = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent requests")
		timeout       = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		jsonLogs      = flag.Bool("json", false, "Log as JSON")
		verbose       = flag.Bool("verbose", false, "Log every failed request")
	)
	flag.Parse()

	format := logger.FormatText
	if *jsonLogs {
		format = logger.FormatJSON
	}
	if err := logger.InitWith(os.Stdout, format); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("loadgen")

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	rep, err := loadgen.Run(ctx, &loadgen.Config{
		BaseURL:       *baseURL,
		Tags:          *tags,
		ScansPerTag:   *scansPerTag,
		Users:         *users,
		EventsPerUser: *eventsPerUser,
		BatchSize:     *batchSize,
		Workers:       *workers,
		Timeout:       *timeout,
		Verbose:       *verbose,
	}, log)
	if err != nil {
		log.Error(ctx, "load run failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
	if !rep.OK() {
		cancel()
		os.Exit(2)
	}
}
