package main

import (
	"context"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-booking/internal/chatbot"
	"github.com/hackgods/dental-booking/internal/config"
	"github.com/hackgods/dental-booking/internal/db"
	"github.com/hackgods/dental-booking/internal/logging"
)

const dentistCount = 24

// Every specialty the chat assistant can recommend, plus general practice.
var specialties = []string{
	chatbot.SpecializationGeneral,
	"Periodontist",
	"Orthodontist",
	"Endodontist",
	"Oral Surgeon",
	"Pediatric Dentist",
	"Prosthodontist",
}

func main() {
	cfg, err := config.Load()
	logger := logging.New("seed", cfg.Env, cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := seedDentists(ctx, pool, dentistCount, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed dentists")
	}

	logger.Info().Msg("seed complete")
}

// seedDentists inserts count dentists, cycling through the specialties so each
// one has at least a few, with weekday hours and a short Saturday for some.
func seedDentists(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding dentists")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.FirstName() + " " + gofakeit.LastName()
		spec := specialties[i%len(specialties)]
		rating := math.Round(gofakeit.Float64Range(3.8, 5.0)*10) / 10

		if _, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, specialization, rating, created_at)
			VALUES ($1, $2, $3, $4, now())
		`, id, name, spec, rating); err != nil {
			return err
		}

		start := gofakeit.RandomString([]string{"08:00", "09:00", "10:00"})
		duration := gofakeit.RandomInt([]int{20, 30, 45})
		for day := time.Monday; day <= time.Friday; day++ {
			if _, err := tx.Exec(ctx, `
				INSERT INTO provider_availability (provider_id, day_of_week, start_time, end_time, slot_duration_minutes, is_available)
				VALUES ($1, $2, $3::text::time, '17:00', $4, TRUE)
			`, id, int(day), start, duration); err != nil {
				return err
			}
		}
		if gofakeit.Bool() {
			if _, err := tx.Exec(ctx, `
				INSERT INTO provider_availability (provider_id, day_of_week, start_time, end_time, slot_duration_minutes, is_available)
				VALUES ($1, $2, '09:00', '13:00', 30, TRUE)
			`, id, int(time.Saturday)); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("dentists seeded")
	return nil
}
