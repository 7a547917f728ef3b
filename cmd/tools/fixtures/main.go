package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-invoicing/internal/booking"
	"github.com/noah-isme/backend-invoicing/internal/statement"
)

type options struct {
	Count             int
	AlternateCurrency bool
	Gross             bool
	Seed              int64
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("tool", "fixtures").Logger()

	defaults, err := envDefaults()
	if err != nil {
		logger.Fatal().Err(err).Msg("read environment")
	}
	opts, err := parseOptions(os.Args[1:], defaults)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse flags")
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	n, err := render(os.Stdout, opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("encode fixtures")
	}
	logger.Info().Int("count", n).Int64("seed", opts.Seed).Msg("fixtures generated")
}

// envDefaults reads FIXTURES_COUNT, FIXTURES_ALTERNATE_CURRENCY, FIXTURES_GROSS and
// FIXTURES_SEED, after an optional .env file. Flags override them.
func envDefaults() (options, error) {
	_ = godotenv.Load()

	opts := options{Count: 10, Gross: true}
	k := koanf.New(".")
	if err := k.Load(env.Provider("FIXTURES_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "FIXTURES_"))
	}), nil); err != nil {
		return opts, fmt.Errorf("load env: %w", err)
	}
	if k.Exists("count") {
		opts.Count = k.Int("count")
	}
	if k.Exists("alternate_currency") {
		opts.AlternateCurrency = k.Bool("alternate_currency")
	}
	if k.Exists("gross") {
		opts.Gross = k.Bool("gross")
	}
	if k.Exists("seed") {
		opts.Seed = k.Int64("seed")
	}
	return opts, nil
}

func parseOptions(args []string, defaults options) (options, error) {
	fs := flag.NewFlagSet("fixtures", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := defaults
	fs.IntVar(&opts.Count, "count", defaults.Count, "number of bookings to generate")
	fs.BoolVar(&opts.AlternateCurrency, "alternate-currency", defaults.AlternateCurrency, "cycle EUR and THB instead of EUR only")
	fs.BoolVar(&opts.Gross, "gross", defaults.Gross, "generate gross prices")
	fs.Int64Var(&opts.Seed, "seed", defaults.Seed, "random seed, 0 picks one from the clock")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.Count < 0 {
		return options{}, fmt.Errorf("count must not be negative, got %d", opts.Count)
	}
	return opts, nil
}

// render writes a statement request body with the generated bookings and returns how many it wrote.
func render(w io.Writer, opts options) (int, error) {
	bookings := booking.RandomFixtures(booking.FixtureOptions{
		Count:             opts.Count,
		AlternateCurrency: opts.AlternateCurrency,
		Gross:             opts.Gross,
		Rand:              rand.New(rand.NewSource(opts.Seed)),
	})
	req := statement.StatementRequest{Bookings: make([]statement.BookingPayload, 0, len(bookings))}
	for _, b := range bookings {
		req.Bookings = append(req.Bookings, statement.NewBookingPayload(b))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(req); err != nil {
		return 0, err
	}
	return len(bookings), nil
}
