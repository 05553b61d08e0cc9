// Command seed populates the eventsocial database with demo data.
package main

import (
	"context"
	"flag"

	"eventsocial/internal/config"
	"eventsocial/internal/database"
	"eventsocial/internal/middleware"
	"eventsocial/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	numPosts := flag.Int("posts", defaults.NumPosts, "Number of posts to create")
	eventRatio := flag.Float64("events", defaults.EventRatio, "Share of posts created as events")
	shouldClean := flag.Bool("clean", defaults.ShouldClean, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Store plain passwords instead of bcrypt hashes")
	dryRun := flag.Bool("dry-run", false, "Build entities without writing to the database")
	preset := flag.String("preset", "", "Built-in preset name or path to a YAML options file")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		middleware.Logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	middleware.InitLogger(middleware.LogOptions{Env: cfg.Env, Level: cfg.LogLevel})

	opts := defaults
	if *preset != "" {
		if opts, err = seed.Preset(*preset); err != nil {
			middleware.Logger.Fatal().Err(err).Msg("Invalid preset")
		}
		middleware.Logger.Info().Str("preset", *preset).Msg("Applying preset (ignoring other flags)")
	} else {
		opts.NumUsers = *numUsers
		opts.NumPosts = *numPosts
		opts.EventRatio = *eventRatio
		opts.ShouldClean = *shouldClean
		opts.SkipBcrypt = *fast
	}
	opts.DryRun = opts.DryRun || *dryRun

	db, err := database.Connect(cfg)
	if err != nil {
		middleware.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		middleware.Logger.Fatal().Err(err).Msg("Failed to migrate database")
	}

	res, err := seed.NewSeeder(db, opts).Run(context.Background())
	if err != nil {
		middleware.Logger.Fatal().Err(err).Msg("Seeding failed")
	}

	middleware.Logger.Info().
		Int("users", res.Users).
		Int("posts", res.Posts).
		Int("events", res.Events).
		Str("password", seed.DefaultPassword).
		Msg("All done! Database populated with demo data")
}
