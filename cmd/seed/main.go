// Command main runs the database seeder for project0.
package main

import (
	"context"
	"flag"
	"log"

	"project0/internal/config"
	"project0/internal/database"
	"project0/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	mvps := flag.Int("mvps", 2, "MVPs per user")
	analyses := flag.Int("analyses", 1, "Analyses per user")
	creditEvery := flag.Int("credit-every", 5, "Open a pending credit request for every n-th user (0 disables)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build records without writing them")
	fast := flag.Bool("fast", false, "Skip bcrypt hashing (throwaway databases only)")
	demo := flag.Bool("demo", true, "Ensure the demo account exists")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d MVPs and %d analyses each, clean=%v\n", *numUsers, *mvps, *analyses, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() && *shouldClean {
		log.Fatal("❌ Refusing to clean a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.ApplySchema(context.Background(), db, cfg); err != nil {
		log.Fatalf("❌ Schema apply failed: %v", err)
	}

	if _, err := seed.Seed(db, seed.Options{
		NumUsers:           *numUsers,
		MVPsPerUser:        *mvps,
		AnalysesPerUser:    *analyses,
		CreditRequestEvery: *creditEvery,
		ShouldClean:        *shouldClean,
		SeedOptions: seed.SeedOptions{
			DryRun:     *dryRun,
			SkipBcrypt: *fast,
			MaxDays:    30,
		},
	}); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	if *demo && !*dryRun {
		if err := seed.Demo(db); err != nil {
			log.Fatalf("❌ Demo account failed: %v", err)
		}
	}

	log.Println("✨ All done! Your database is now populated with test data.")
	log.Printf("📧 All test users have the password: %s", seed.DefaultPassword)
}
