package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/NutriFox/app/models"
	"github.com/ManuelReschke/NutriFox/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// DB is the shared connection opened by SetupDatabase.
var DB *gorm.DB

// GetDB returns the shared connection.
func GetDB() *gorm.DB {
	return DB
}

// SetDB replaces the shared connection.
func SetDB(db *gorm.DB) {
	DB = db
}

// Driver returns the configured SQL engine, mysql unless DB_DRIVER says otherwise.
func Driver() string {
	switch strings.ToLower(strings.TrimSpace(env.GetEnv("DB_DRIVER", DriverMySQL))) {
	case DriverPostgres, "postgresql", "pgx":
		return DriverPostgres
	default:
		return DriverMySQL
	}
}

// DSN builds the driver specific data source name from DB_* variables.
func DSN(driver string) string {
	user := env.GetEnv("DB_USER", "")
	password := env.GetEnv("DB_PASSWORD", "")
	host := env.GetEnv("DB_HOST", "127.0.0.1")
	name := env.GetEnv("DB_NAME", "")

	if driver == DriverPostgres {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			host, user, password, name,
			env.GetEnv("DB_PORT", "5432"),
			env.GetEnv("DB_SSLMODE", "disable"),
		)
	}
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=UTC"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		user, password, host,
		env.GetEnv("DB_PORT", "3306"),
		name,
	)
}

// Dialector returns the gorm dialector for driver.
func Dialector(driver, dsn string) gorm.Dialector {
	if driver == DriverPostgres {
		return postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: false,
		})
	}
	return mysql.New(mysql.Config{
		DSN:                       dsn,   // data source name
		DefaultStringSize:         256,   // default size for string fields
		DisableDatetimePrecision:  true,  // disable datetime precision, which not supported before MySQL 5.6
		DontSupportRenameIndex:    true,  // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
		DontSupportRenameColumn:   true,  // `change` when rename column, rename column not supported before MySQL 8, MariaDB
		SkipInitializeWithVersion: false, // auto configure based on currently MySQL version
	})
}

// Models lists every table managed by AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserSettings{},
		&models.Subscription{},
		&models.Payment{},
		&models.BillingWebhookDelivery{},
	}
}

func SetupDatabase() {
	var err error
	driver := Driver()
	dsn := DSN(driver)

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(Dialector(driver, dsn), &gorm.Config{
			// Unique violations surface as gorm.ErrDuplicatedKey on both engines.
			TranslateError: true,
		})
		if err == nil {
			if env.GetEnvBool("DB_AUTO_MIGRATE", true) {
				if merr := DB.AutoMigrate(Models()...); merr != nil {
					log.Errorf("[Database] AutoMigrate failed: %v", merr)
				}
			}
			log.Infof("[Database] Connected (%s)", driver)
			return
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}
