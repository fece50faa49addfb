package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/api"
	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/models"
	"github.com/sabrisabah/Nutrition-Mays-sub000/db"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations()
			return
		case "clear-db":
			runDatabaseClear()
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer()
}

func runMigrations() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database for migrations")

	if err := performMigrations(DB); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func performMigrations(DB *gorm.DB) error {
	migrations := map[interface{}]string{
		&models.User{}:                "User",
		&models.Doctor{}:              "Doctor",
		&models.AvailabilityWindow{}:  "AvailabilityWindow",
		&models.UnavailabilityRange{}: "UnavailabilityRange",
		&models.Appointment{}:         "Appointment",
		&models.RescheduleRequest{}:   "RescheduleRequest",
		&models.Payment{}:             "Payment",
		&models.Device{}:              "Device",
		&models.NotificationEvent{}:   "NotificationEvent",
	}

	log.Println("Starting database migrations...")
	for model, name := range migrations {
		log.Printf("Migrating %s table...", name)
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", name, err)
		}
		log.Printf("%s migration successful", name)
	}

	// The booking uniqueness constraint is a partial index AutoMigrate cannot
	// express.
	if err := db.EnsureBookingIndex(DB); err != nil {
		return fmt.Errorf("error creating booking index: %w", err)
	}
	log.Println("Booking slot index created/verified")

	return nil
}

func startServer() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()
	log.Println("Connected to the database")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	server := api.NewApiServer(":"+port, DB)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Printf("Server running on port %s", port)

	<-quit
	log.Println("Shutting down server...")
}

func clearDatabase(DB *gorm.DB, tables []interface{}) error {
	if len(tables) == 0 {
		tables = []interface{}{
			&models.RescheduleRequest{},
			&models.Payment{},
			&models.Appointment{},
			&models.AvailabilityWindow{},
			&models.UnavailabilityRange{},
			&models.NotificationEvent{},
			&models.Device{},
			&models.Doctor{},
			&models.User{},
		}
	}

	log.Println("Dropping tables...")

	for _, table := range tables {
		if err := DB.Migrator().DropTable(table); err != nil {
			log.Printf("Warning dropping table %T: %v", table, err)
		} else {
			log.Printf("Table %T dropped", table)
		}
	}

	return nil
}

func runDatabaseClear() {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		log.Println("Database connection closed")
	}()

	log.Println("Preparing to clear database...")

	var confirmation string
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	fmt.Scanln(&confirmation)

	if confirmation != "yes" {
		log.Println("Database clearing cancelled.")
		return
	}

	var tableNames string
	fmt.Print("Enter table names to clear (comma separated) or leave blank to clear all: ")
	fmt.Scanln(&tableNames)

	var tables []interface{}
	if tableNames != "" {
		for _, table := range strings.Split(tableNames, ",") {
			switch strings.TrimSpace(table) {
			case "User":
				tables = append(tables, &models.User{})
			case "Doctor":
				tables = append(tables, &models.Doctor{})
			case "AvailabilityWindow":
				tables = append(tables, &models.AvailabilityWindow{})
			case "UnavailabilityRange":
				tables = append(tables, &models.UnavailabilityRange{})
			case "Appointment":
				tables = append(tables, &models.Appointment{})
			case "RescheduleRequest":
				tables = append(tables, &models.RescheduleRequest{})
			case "Payment":
				tables = append(tables, &models.Payment{})
			case "Device":
				tables = append(tables, &models.Device{})
			case "NotificationEvent":
				tables = append(tables, &models.NotificationEvent{})
			default:
				log.Printf("Unknown table: %s", table)
			}
		}
	}

	if err := clearDatabase(DB, tables); err != nil {
		log.Fatalf("Error clearing database: %v", err)
	}

	log.Println("Database cleared successfully")
}
