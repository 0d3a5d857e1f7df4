package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/codenerix/payments/internal/modules/currencies"
	"github.com/codenerix/payments/internal/modules/payments"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&currencies.Currency{},
		&payments.PaymentRequest{},
		&payments.PaymentConfirmation{},
		&payments.PaymentAnswer{},
	); err != nil {
		log.Fatalf("Failed to migrate tables: %v", err)
	}

	log.Println("✓ currencies table migrated successfully")
	log.Println("✓ payment_requests table migrated successfully")
	log.Println("✓ payment_confirmations table migrated successfully")
	log.Println("✓ payment_answers table migrated successfully")
}
