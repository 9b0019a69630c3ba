package seed

import (
	"errors"
	"fmt"
	"log"

	"project0/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	MVPsPerUser     int
	AnalysesPerUser int
	// CreditRequestEvery opens a pending credit request for every n-th user; 0 disables.
	CreditRequestEvery int
	ShouldClean        bool
	SeedOptions
}

// Summary counts what a run created.
type Summary struct {
	Users          int
	MVPs           int
	Analyses       int
	CreditRequests int
}

// DemoUsername is the account created by Demo.
const DemoUsername = "demo"

// Seed populates the database with generated users, MVPs and analyses.
func Seed(db *gorm.DB, opts Options) (*Summary, error) {
	log.Printf("🌱 Starting database seeding with %d users...", opts.NumUsers)

	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	f := NewFactory(db, opts.SeedOptions)
	var sum Summary
	for i := 0; i < opts.NumUsers; i++ {
		user, err := f.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		sum.Users++

		for j := 0; j < opts.MVPsPerUser; j++ {
			if _, err := f.CreateMVP(user); err != nil {
				return &sum, fmt.Errorf("failed to create mvp: %w", err)
			}
			sum.MVPs++
		}
		for j := 0; j < opts.AnalysesPerUser; j++ {
			if _, err := f.CreateAnalysis(user); err != nil {
				return &sum, fmt.Errorf("failed to create analysis: %w", err)
			}
			sum.Analyses++
		}
		if opts.CreditRequestEvery > 0 && i%opts.CreditRequestEvery == 0 {
			if _, err := f.CreateCreditRequest(user, 5); err != nil {
				return &sum, fmt.Errorf("failed to create credit request: %w", err)
			}
			sum.CreditRequests++
		}
		if (i+1)%100 == 0 {
			log.Printf("Created %d users...", i+1)
		}
	}

	if !opts.DryRun {
		if err := syncCounters(db); err != nil {
			return &sum, fmt.Errorf("failed to update counters: %w", err)
		}
	}

	log.Printf("🎉 Seeding complete: %d users, %d MVPs, %d analyses, %d credit requests",
		sum.Users, sum.MVPs, sum.Analyses, sum.CreditRequests)
	return &sum, nil
}

// Demo makes sure a demo account with one MVP and one analysis exists.
// It does nothing when the account is already there.
func Demo(db *gorm.DB) error {
	var existing models.User
	err := db.Where("username = ?", DemoUsername).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	f := NewFactory(db, SeedOptions{MaxDays: 7})
	user, err := f.CreateUser(func(u *models.User) {
		u.Username = DemoUsername
		u.Email = "demo@example.com"
		u.FullName = "Demo User"
		u.Credits = 10
	})
	if err != nil {
		return err
	}
	if _, err := f.CreateMVP(user); err != nil {
		return err
	}
	if _, err := f.CreateAnalysis(user); err != nil {
		return err
	}
	log.Printf("demo account ensured (%s / %s)", DemoUsername, DefaultPassword)
	return syncCounters(db)
}

// syncCounters sets the analytics counters to the stored record totals.
func syncCounters(db *gorm.DB) error {
	var mvps, analyses, llm int64
	if err := db.Model(&models.MVP{}).Count(&mvps).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Analysis{}).Count(&analyses).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Analysis{}).Where("engine = ?", models.EngineLLM).Count(&llm).Error; err != nil {
		return err
	}
	counters := []models.AnalyticsCounter{
		{Key: models.CounterMVPs, Value: mvps},
		{Key: models.CounterAnalyses, Value: analyses},
		{Key: models.CounterLLMAnalyses, Value: llm},
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, c := range counters {
			if err := tx.Save(&c).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	tables := []any{
		&models.CreditRequest{}, &models.Analysis{}, &models.MVP{},
		&models.Session{}, &models.AnalyticsCounter{}, &models.User{},
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, t := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
