// Package main provides the entrypoint for the shuttlewatch monitor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/shuttlewatch/shuttlewatch/internal/database"
	"github.com/shuttlewatch/shuttlewatch/internal/health"
	"github.com/shuttlewatch/shuttlewatch/internal/monitor"
	"github.com/shuttlewatch/shuttlewatch/internal/notify"
	"github.com/shuttlewatch/shuttlewatch/internal/notify/telegram"
	"github.com/shuttlewatch/shuttlewatch/internal/output"
	"github.com/shuttlewatch/shuttlewatch/internal/scrape"
	"github.com/shuttlewatch/shuttlewatch/internal/scrape/ktmb"
	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
	"github.com/shuttlewatch/shuttlewatch/internal/telemetry"
	"github.com/shuttlewatch/shuttlewatch/internal/timeslot"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

type options struct {
	date      string
	year      int
	month     int
	direction string
	slots     string
	interval  int
	once      bool
	roundTrip bool
	returnOn  string
}

func main() {
	const serviceName = "shuttlewatch"

	var opts options
	flag.StringVar(&opts.date, "date", "", "travel date (YYYY-MM-DD)")
	flag.IntVar(&opts.year, "year", 0, "weekend sweep year (with -month, instead of -date)")
	flag.IntVar(&opts.month, "month", 0, "weekend sweep month 1-12 (with -year, instead of -date)")
	flag.StringVar(&opts.direction, "direction", "sg-to-jb", "travel direction: jb-to-sg or sg-to-jb")
	flag.StringVar(&opts.slots, "slots", "", "comma-separated departure slots (early_morning,morning,afternoon,evening,night)")
	flag.IntVar(&opts.interval, "interval", 30, "minutes between searches")
	flag.BoolVar(&opts.once, "once", false, "run one search and exit")
	flag.BoolVar(&opts.roundTrip, "round-trip", false, "search the return leg too")
	flag.StringVar(&opts.returnOn, "return", "", "return date (YYYY-MM-DD), requires -round-trip")
	flag.Parse()

	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting shuttlewatch")

	criteria, sweep, err := buildCriteria(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid arguments")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	instruments, err := monitor.NewInstruments(tp.Meter, tp.Tracer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Browser session
	page, err := ktmb.New(ctx, ktmb.PageConfig{
		BaseURL:  os.Getenv("KTMB_BASE_URL"),
		Headless: os.Getenv("KTMB_HEADLESS") != "false",
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start browser")
	}
	defer page.Close()

	session := scrape.NewSession(scrape.SessionConfig{Page: page, Logger: log})

	// Sinks
	sinks := output.MultiRepository{
		output.NewFileRepository(output.FileRepositoryConfig{
			Path:   os.Getenv("OUTPUT_PATH"),
			Logger: log,
		}),
	}
	if database.Configured() {
		dbConfig := database.ConfigFromEnv()
		pool, dbErr := database.Connect(ctx, dbConfig)
		if dbErr != nil {
			log.Fatal().Err(dbErr).Msg("failed to connect to database")
		}
		defer pool.Close()

		pgRepo := output.NewPostgresRepository(pool)
		if initErr := pgRepo.Init(ctx); initErr != nil {
			log.Fatal().Err(initErr).Msg("failed to prepare search_results table")
		}
		sinks = append(sinks, pgRepo)
		log.Info().Str("host", dbConfig.Host).Str("database", dbConfig.Database).Msg("database sink enabled")
	}

	// Notifications
	var notifier notify.Notifier
	var cache *notify.Cache
	if tgConfig := telegram.ConfigFromEnv(); tgConfig.Enabled() {
		notifier, err = telegram.NewClient(tgConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure telegram")
		}
		cache = notify.NewCache(notify.CacheConfig{
			Path:   os.Getenv("NOTIFY_CACHE_PATH"),
			Logger: log,
		})
		cache.CleanupExpired()
		log.Info().Msg("telegram notifications enabled")
	} else {
		log.Info().Msg("telegram notifications disabled")
	}

	pinger := health.NewPinger(health.PingerConfig{
		URL:    os.Getenv("HEALTHCHECK_URL"),
		Logger: log,
	})

	mon := monitor.New(monitor.Config{
		Searcher:          session,
		Notifier:          notifier,
		Cache:             cache,
		Sink:              sinks,
		Pinger:            pinger,
		Instruments:       instruments,
		Logger:            log,
		Interval:          time.Duration(opts.interval) * time.Minute,
		RetryOnValidation: os.Getenv("RETRY_ON_VALIDATION") == "true",
		NotifyAlways:      os.Getenv("NOTIFY_ALWAYS") == "true",
	})

	// Ops server
	opsServer := health.NewServer(health.ServerConfig{
		Addr:   ":" + envOrDefault("OPS_PORT", "8080"),
		Status: func() any { return mon.Status() },
		Logger: log,
	})
	go func() {
		if serveErr := opsServer.Start(); serveErr != nil {
			log.Error().Err(serveErr).Msg("ops server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := opsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("ops server forced to shutdown")
		}
	}()

	// Optional Pub/Sub trigger for out-of-schedule searches
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" && !opts.once && !sweep {
		handler, psErr := monitor.NewPubSubHandler(ctx, monitor.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: envOrDefault("PUBSUB_SUBSCRIPTION", "shuttlewatch-triggers"),
			Monitor:          mon,
			Criteria:         criteria,
			Logger:           log,
		})
		if psErr != nil {
			log.Fatal().Err(psErr).Msg("failed to start pubsub handler")
		}
		defer handler.Close()
		go func() {
			if recvErr := handler.Start(ctx); recvErr != nil && !errors.Is(recvErr, context.Canceled) {
				log.Error().Err(recvErr).Msg("pubsub handler stopped")
			}
		}()
	}

	switch {
	case sweep && opts.once:
		results, sweepErr := mon.RunWeekendSweep(ctx, opts.year, time.Month(opts.month), criteria)
		if sweepErr != nil {
			log.Warn().Err(sweepErr).Msg("weekend sweep interrupted")
		}
		var matches int
		for _, r := range results {
			matches += len(r.MatchingRecords)
		}
		log.Info().Int("searches", len(results)).Int("matches", matches).Msg("weekend sweep complete")
	case sweep:
		if runErr := mon.RunSweepContinuous(ctx, opts.year, time.Month(opts.month), criteria); runErr != nil {
			log.Fatal().Err(runErr).Msg("monitor stopped")
		}
		log.Info().Msg("monitor stopped")
	case opts.once:
		result := mon.RunOnce(ctx, criteria)
		if !result.Success {
			log.Error().
				Str("kind", string(result.ErrorKind)).
				Str("error", result.ErrorMessage).
				Msg("search failed")
			os.Exit(1)
		}
		log.Info().Int("matches", len(result.MatchingRecords)).Msg("search complete")
	default:
		if runErr := mon.RunContinuous(ctx, criteria); runErr != nil {
			log.Fatal().Err(runErr).Msg("monitor stopped")
		}
		log.Info().Msg("monitor stopped")
	}
}

const dateLayout = "2006-01-02"

// buildCriteria turns flags and environment into search criteria. The
// sweep return value selects the weekend-sweep mode.
func buildCriteria(opts options) (shuttle.SearchCriteria, bool, error) {
	var zero shuttle.SearchCriteria

	sweep := opts.year != 0 || opts.month != 0
	if sweep {
		if opts.date != "" {
			return zero, false, errors.New("-date cannot be combined with -year/-month")
		}
		if opts.year == 0 || opts.month == 0 {
			return zero, false, errors.New("weekend sweep needs both -year and -month")
		}
		if opts.month < 1 || opts.month > 12 {
			return zero, false, fmt.Errorf("month %d out of range", opts.month)
		}
		if opts.roundTrip {
			return zero, false, errors.New("-round-trip is not available for weekend sweeps")
		}
	} else if opts.date == "" {
		return zero, false, errors.New("either -date or -year/-month is required")
	}

	direction, err := shuttle.ParseDirection(opts.direction)
	if err != nil {
		return zero, false, err
	}

	criteria := shuttle.SearchCriteria{
		Direction: direction,
		Adults:    envIntOrDefault("SEARCH_ADULTS", 1),
		Children:  envIntOrDefault("SEARCH_CHILDREN", 0),
		MinSeats:  envIntOrDefault("SEARCH_MIN_SEATS", 1),
	}

	if opts.date != "" {
		criteria.DepartDate, err = time.Parse(dateLayout, opts.date)
		if err != nil {
			return zero, false, fmt.Errorf("parse -date: %w", err)
		}
	} else {
		// Sweep dates are stamped per search; keep a placeholder so
		// early validation passes.
		criteria.DepartDate = time.Date(opts.year, time.Month(opts.month), 1, 0, 0, 0, 0, time.UTC)
	}

	if opts.roundTrip {
		if opts.returnOn == "" {
			return zero, false, errors.New("-round-trip requires -return")
		}
		criteria.ReturnDate, err = time.Parse(dateLayout, opts.returnOn)
		if err != nil {
			return zero, false, fmt.Errorf("parse -return: %w", err)
		}
	} else if opts.returnOn != "" {
		return zero, false, errors.New("-return requires -round-trip")
	}

	if opts.slots != "" {
		for _, name := range strings.Split(opts.slots, ",") {
			slot, slotErr := timeslot.Parse(strings.TrimSpace(name))
			if slotErr != nil {
				return zero, false, slotErr
			}
			criteria.TimeSlots = append(criteria.TimeSlots, slot)
		}
	}

	if err := criteria.Validate(); err != nil {
		return zero, false, err
	}
	return criteria, sweep, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
