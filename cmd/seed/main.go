package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"barbuddy/internal/bars"
	"barbuddy/internal/shared/config"
	"barbuddy/internal/shared/constants"
	"barbuddy/internal/shared/database"
	"barbuddy/pkg/cache"
	"barbuddy/pkg/logger"
)

type Seeder struct {
	db   *database.DB
	repo bars.Repository
}

// Fixed ids so local clients can be pointed at a known bar
var (
	nightOwlID    = uuid.MustParse("6f1c2a3e-0b8d-4c59-9a7e-1d2f3b4c5d60")
	copperStillID = uuid.MustParse("7a2d3b4f-1c9e-4d6a-8b8f-2e3f4c5d6e71")
)

type tableTypeSeed struct {
	name         string
	minimumSpend float64
	tables       []tableSeed
}

type tableSeed struct {
	name      string
	minGuests int
	maxGuests int
}

type barSeed struct {
	id           uuid.UUID
	name         string
	timezone     string
	slotInterval int
	hours        map[time.Weekday][2]string
	tableTypes   []tableTypeSeed
}

var seedBars = []barSeed{
	{
		id:           nightOwlID,
		name:         "Night Owl",
		timezone:     "Europe/London",
		slotInterval: 60,
		hours: map[time.Weekday][2]string{
			time.Wednesday: {"18:00", "00:00"},
			time.Thursday:  {"18:00", "01:00"},
			time.Friday:    {"20:00", "03:00"},
			time.Saturday:  {"20:00", "03:00"},
		},
		tableTypes: []tableTypeSeed{
			{"Booth", 150, []tableSeed{{"B1", 4, 8}, {"B2", 4, 8}, {"B3", 4, 8}}},
			{"High Table", 60, []tableSeed{{"H1", 2, 4}, {"H2", 2, 4}, {"H3", 2, 4}, {"H4", 2, 4}}},
			{"VIP Area", 500, []tableSeed{{"VIP", 8, 16}}},
		},
	},
	{
		id:           copperStillID,
		name:         "Copper Still",
		timezone:     "Europe/London",
		slotInterval: 30,
		hours: map[time.Weekday][2]string{
			time.Monday:    {"17:00", "23:00"},
			time.Tuesday:   {"17:00", "23:00"},
			time.Wednesday: {"17:00", "23:30"},
			time.Thursday:  {"17:00", "23:30"},
			time.Friday:    {"16:00", "02:00"},
			time.Saturday:  {"14:00", "02:00"},
			time.Sunday:    {"14:00", "22:00"},
		},
		tableTypes: []tableTypeSeed{
			{"Bar Seating", 0, []tableSeed{{"Counter 1", 1, 2}, {"Counter 2", 1, 2}}},
			{"Snug", 80, []tableSeed{{"Snug", 4, 6}}},
		},
	},
}

func main() {
	fmt.Println("🌱 Starting BarBuddy Database Seeder...")

	_ = godotenv.Load()
	cfg := config.Load()
	appLogger := logger.New()

	db, err := database.InitDB(context.Background(), cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db, repo: bars.NewRepository(db.PostgreSQL)}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables, dependants first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"booking_drinks",
		"booked_tables",
		"bookings",
		"bar_tables",
		"table_types",
		"opening_hours",
		"bars",
	}

	return s.db.PostgreSQL.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedAll seeds every bar with its hours, table types and tables
func (s *Seeder) SeedAll(ctx context.Context) error {
	for _, seed := range seedBars {
		if err := s.SeedBar(ctx, seed); err != nil {
			return fmt.Errorf("failed to seed bar %s: %w", seed.name, err)
		}
	}

	// Drop cached catalogue entries and any holds left over from earlier runs
	cacheService := cache.NewService(s.db.Redis, logger.GetDefault())
	for _, pattern := range []string{constants.CACHE_PREFIX + ":bars:*", constants.HOLD_KEY_PREFIX + "*", constants.HOLD_SET_PREFIX + "*"} {
		if err := cacheService.DeletePattern(ctx, pattern); err != nil {
			log.Printf("Warning: Failed to clear Redis keys %s: %v", pattern, err)
		}
	}

	return nil
}

func (s *Seeder) SeedBar(ctx context.Context, seed barSeed) error {
	fmt.Printf("  🍸 Seeding bar: %s\n", seed.name)

	bar := &bars.Bar{
		ID:                  seed.id,
		Name:                seed.name,
		Timezone:            seed.timezone,
		SlotIntervalMinutes: seed.slotInterval,
	}
	for weekday, hours := range seed.hours {
		bar.OpeningHours = append(bar.OpeningHours, bars.OpeningHour{
			BarID:   seed.id,
			Weekday: int(weekday),
			Open:    hours[0],
			Close:   hours[1],
		})
	}
	for _, tt := range seed.tableTypes {
		bar.TableTypes = append(bar.TableTypes, bars.TableType{
			ID:           uuid.New(),
			BarID:        seed.id,
			Name:         tt.name,
			MinimumSpend: tt.minimumSpend,
		})
	}

	if err := s.repo.CreateBar(ctx, bar); err != nil {
		return err
	}

	var tables []bars.BarTable
	for i, tt := range seed.tableTypes {
		for _, t := range tt.tables {
			tables = append(tables, bars.BarTable{
				ID:          uuid.New(),
				BarID:       seed.id,
				TableTypeID: bar.TableTypes[i].ID,
				Name:        t.name,
				MinGuests:   t.minGuests,
				MaxGuests:   t.maxGuests,
				IsActive:    true,
			})
		}
	}
	if err := s.repo.CreateTables(ctx, tables); err != nil {
		return err
	}

	fmt.Printf("    ✅ %s (%s): %d opening days, %d table types, %d tables\n",
		bar.Name, bar.ID, len(bar.OpeningHours), len(bar.TableTypes), len(tables))
	return nil
}
