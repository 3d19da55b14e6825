package database

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// DB is the shared connection, set by SetupDatabase.
var DB *gorm.DB

// GetDB returns the shared connection.
func GetDB() *gorm.DB {
	return DB
}

// DSN builds the MySQL data source name from the environment.
// clientFoundRows makes UPDATE report matched rows, which the billing
// repository relies on for its conditional updates.
func DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)
}

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.BillingWebhookEvent{},
		&models.BillingProcessingRecord{},
		&models.BillingAuditEntry{},
	}
}

func SetupDatabase() {
	var err error
	dsn := DSN()

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), &gorm.Config{})
		if err == nil {
			if err = DB.AutoMigrate(Models()...); err != nil {
				log.Errorf("[Database] AutoMigrate failed: %v", err)
				panic(err)
			}
			log.Info("[Database] Connected and migrated")
			return
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] Retrying in %s...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}
