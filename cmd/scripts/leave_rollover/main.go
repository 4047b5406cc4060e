package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services"
)

// Opens leave balances for a year outside the scheduled January run,
// e.g. after restoring a backup or onboarding a batch of employees.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	year := flag.Int("year", 0, "year to open (defaults to the current year in company time)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := models.InitDB(&cfg.Database); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := models.GetDB()

	loc := cfg.Company.Location()
	if *year == 0 {
		*year = time.Now().In(loc).Year()
	}

	holidays := services.NewHolidayService(db, cfg.Company.HolidayCountry, loc)
	leave := services.NewLeaveService(db, services.NewAuditService(db), nil, nil, holidays)

	result, err := leave.Rollover(*year)
	if err != nil {
		log.Fatalf("Rollover failed: %v", err)
	}
	fmt.Printf("Year %d: %d balances created, %d carry-forward adjusted, %d already present\n",
		result.Year, result.Created, result.Adjusted, result.Skipped)
}
