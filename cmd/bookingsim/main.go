// Command bookingsim runs one headless customer session against the
// reservation service: it picks a slot, holds tables, watches other
// sessions over the realtime channel and submits a booking.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"barbuddy/internal/availability"
	"barbuddy/internal/bookingflow"
	"barbuddy/internal/governor"
	"barbuddy/internal/holds"
	"barbuddy/internal/realtime"
	"barbuddy/internal/reservation"
	"barbuddy/internal/schedule"
	"barbuddy/internal/shared/config"
	"barbuddy/internal/submission"
	"barbuddy/pkg/cache"
	"barbuddy/pkg/logger"
)

// searchDays bounds how far ahead the simulator looks for an open day
const searchDays = 14

type options struct {
	configPath  string
	date        string
	clock       string
	tableTypeID string
	tables      int
	guests      int
	hold        time.Duration
	submit      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "bookingsim.toml", "engine config file")
	flag.StringVar(&opts.date, "date", "", "first date to try (YYYY-MM-DD), defaults to today")
	flag.StringVar(&opts.clock, "time", "", "slot to book (HH:MM), defaults to the first free slot")
	flag.StringVar(&opts.tableTypeID, "table-type", "", "table type id, empty for every type")
	flag.IntVar(&opts.tables, "tables", 1, "number of tables to hold")
	flag.IntVar(&opts.guests, "guests", 2, "guest count")
	flag.DurationVar(&opts.hold, "hold", 0, "how long to keep the holds before submitting")
	flag.BoolVar(&opts.submit, "submit", true, "submit the booking; false releases the holds instead")
	flag.Parse()

	_ = godotenv.Load()
	log := logger.New()

	if err := run(opts, log); err != nil {
		log.Error("Booking simulation failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(opts options, log *logger.Logger) error {
	cfg, err := config.LoadEngine(opts.configPath)
	if err != nil {
		return err
	}
	if cfg.BarID == "" || cfg.CustomerID == "" {
		return errors.New("bar_id and customer_id are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cache.Config{
		Address:  cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	client := holds.NewClient(cfg.ServiceURL, cfg.RequestTimeout.Duration, holds.WithLogger(log))
	identity, err := client.OpenSession(ctx, cfg.CustomerID)
	if err != nil {
		return err
	}
	log = log.WithSession(identity.HolderID)
	log.Info("Session opened", slog.Time("expires_at", identity.ExpiresAt))

	session := bookingflow.NewSession(client, realtime.NewRedisTransport(rdb, log), bookingflow.Config{
		BarID:          cfg.BarID,
		HolderID:       identity.HolderID,
		MaxTables:      cfg.MaxTables,
		ReleaseTimeout: cfg.ReleaseTimeout.Duration,
	}, log)

	// Whatever happens, leave nothing held behind
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ReleaseTimeout.Duration)
		defer cancel()
		session.Close(closeCtx)
	}()

	unsubscribe := session.Subscribe(func(u governor.Update) {
		log.Debug("View updated",
			slog.String("key", u.Key.String()),
			slog.String("reason", u.Reason),
			slog.Int("selected", len(u.Selection)),
		)
	})
	defer unsubscribe()

	if err := session.Focus(ctx); err != nil {
		return err
	}

	slot, err := pickSlot(ctx, session, opts, log)
	if err != nil {
		return err
	}
	slotLog := log.WithFields(map[string]interface{}{"date": slot.Date, "time": slot.Label})
	slotLog.Info("Slot chosen", slog.Bool("next_day", slot.NextDay))

	if err := session.SearchTables(ctx, slot.Date, slot.Label, opts.tableTypeID); err != nil {
		return err
	}

	holdTables(ctx, session, opts.tables, slotLog)
	selection := session.GetSelection()
	if len(selection) == 0 {
		return errors.New("no table could be held")
	}

	if opts.hold > 0 {
		slotLog.Info("Keeping holds", slog.Duration("for", opts.hold))
		select {
		case <-time.After(opts.hold):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if !opts.submit {
		slotLog.Info("Releasing holds without booking", slog.Int("tables", len(session.GetSelection())))
		return nil
	}

	confirmation, err := session.Submit(ctx, submission.Request{
		GuestCount: opts.guests,
		Note:       "booked by bookingsim",
	})
	if err != nil {
		return err
	}

	slotLog.Info("Booking confirmed",
		slog.String("booking_id", confirmation.BookingID),
		slog.String("booking_ref", confirmation.BookingRef),
	)
	return nil
}

// pickSlot walks forward from the start date to the first day with a
// matching slot
func pickSlot(ctx context.Context, session *bookingflow.Session, opts options, log *logger.Logger) (schedule.TimeSlot, error) {
	start := time.Now()
	if opts.date != "" {
		parsed, err := time.ParseInLocation(reservation.DateFormat, opts.date, time.Local)
		if err != nil {
			return schedule.TimeSlot{}, err
		}
		start = parsed
	}

	for i := 0; i < searchDays; i++ {
		date := start.AddDate(0, 0, i)
		slots, closed, err := session.SelectDate(ctx, date)
		if err != nil {
			return schedule.TimeSlot{}, err
		}
		if closed {
			log.Debug("Bar closed", slog.String("date", date.Format(reservation.DateFormat)))
			continue
		}

		for _, slot := range slots {
			if opts.clock == "" || slot.Label == opts.clock {
				return slot, nil
			}
		}
	}

	return schedule.TimeSlot{}, errors.New("no bookable slot found")
}

// holdTables tries available tables until n are held. Losing a race to
// another session is expected and only logged.
func holdTables(ctx context.Context, session *bookingflow.Session, n int, log *logger.Logger) {
	for _, status := range session.View().Tables {
		if len(session.GetSelection()) >= n {
			return
		}
		if status.State != availability.Available {
			continue
		}

		err := session.ToggleTable(ctx, status.Table.ID)
		switch {
		case err == nil:
			log.Info("Table held", slog.String("table", status.Table.Name))
		case errors.Is(err, reservation.ErrAlreadyHeld), errors.Is(err, reservation.ErrNotAvailable):
			log.Info("Table taken by another session", slog.String("table", status.Table.Name))
		case errors.Is(err, reservation.ErrLimitReached):
			return
		default:
			log.Warn("Failed to hold table", slog.String("table", status.Table.Name), slog.Any("error", err))
		}
	}
}
