package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"hostdash/internal/config"
	"hostdash/internal/domain"
	"hostdash/internal/repository"
	"hostdash/internal/util"
)

func main() {
	app := &cli.App{
		Name:  "ingest",
		Usage: "seed the SQLite store with synthetic readings for every category",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "hostdash.yaml", Usage: "path to the YAML configuration file", EnvVars: []string{"HOSTDASH_CONFIG"}},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before reading HOSTDASH_* variables"},
			&cli.StringFlag{Name: "db", Usage: "SQLite database path (overrides the configuration)"},
			&cli.IntFlag{Name: "minutes", Value: 5, Usage: "how many minutes back the synthetic history reaches"},
			&cli.DurationFlag{Name: "step", Value: 10 * time.Second, Usage: "spacing between synthetic readings"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	dbPath, err := resolveDBPath(c.String("config"), c.String("env-file"), c.String("db"))
	if err != nil {
		return err
	}

	step := c.Duration("step")
	if step <= 0 {
		return fmt.Errorf("step must be positive, got %s", step)
	}

	util.CheckAndCreateLogFolder(filepath.Dir(dbPath))

	sqliteStore := repository.NewSQLiteStore(dbPath)
	if err := sqliteStore.Init(); err != nil {
		return fmt.Errorf("failed to initialize SQLite store for ingestion: %w", err)
	}
	defer sqliteStore.Close()

	endTime := time.Now()
	return generateAndIngest(c.Context, sqliteStore, endTime.Add(-time.Duration(c.Int("minutes"))*time.Minute), endTime, step)
}

// resolveDBPath picks the database the API server would open: the db
// flag when given, otherwise the configured path after .env and
// HOSTDASH_* overrides.
func resolveDBPath(configPath, envFile, dbFlag string) (string, error) {
	if dbFlag != "" {
		return dbFlag, nil
	}
	cfg, err := config.LoadWithEnv(configPath, envFile)
	if err != nil {
		return "", err
	}
	if cfg.Storage.Path == "" {
		return "", fmt.Errorf("no SQLite database path configured")
	}
	return cfg.Storage.Path, nil
}

// generateAndIngest writes one random-walk reading per category every
// step between startTime and endTime inclusive.
func generateAndIngest(ctx context.Context, s domain.MetricStore, startTime, endTime time.Time, step time.Duration) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	log.Printf("Ingesting data from %s to %s...", startTime.Format(time.RFC3339), endTime.Format(time.RFC3339))

	current := map[domain.Category]float64{
		domain.CPUTemperature:     45,
		domain.CPUUtilization:     20,
		domain.MemoryUtilization:  40,
		domain.StorageUtilization: 55,
	}

	inserted := 0
	for t := startTime; !t.After(endTime); t = t.Add(step) {
		for _, category := range domain.Categories() {
			v := current[category] + rng.Float64()*4 - 2
			v = min(max(v, 0), 100)
			current[category] = v

			if err := s.Insert(ctx, category, v, t); err != nil {
				log.Printf("Error inserting %s for %s: %v", category, t.Format(domain.TimestampLayout), err)
				continue
			}
			inserted++
		}
	}

	log.Printf("Data ingestion complete. %d readings stored.", inserted)
	return nil
}
