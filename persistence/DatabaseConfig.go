package persistence

import (
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
}

// ParseDatabaseConfigFromEnv DB_DRIVER_TYPE=mysql DB_DRIVER_ARGS=root:root@(127.0.0.1:3306)/pilotage?parseTime=True
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	driverType := strings.TrimSpace(os.Getenv("DB_DRIVER_TYPE"))
	if driverType == "" {
		driverType = "mysql"
	}
	driverArgs := strings.TrimSpace(os.Getenv("DB_DRIVER_ARGS"))
	if driverArgs == "" {
		if driverType != "mysql" {
			return nil, errors.New("DB_DRIVER_ARGS is required for driver " + driverType)
		}
		driverArgs = "root:root@(127.0.0.1:3306)/pilotage?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s"
	}
	return &DatabaseConfig{DriverType: driverType, DriverArgs: driverArgs}, nil
}

// PrepareMysqlDatabase creates the database named in the dsn if it does not exist.
func PrepareMysqlDatabase(dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return err
	}
	databaseName := cfg.DBName
	if databaseName == "" {
		return errors.New("database name is missing in dsn")
	}
	cfg.DBName = ""

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` DEFAULT CHARACTER SET utf8mb4")
	return err
}
