package testinfra

import (
	"log"
	"os"
	"path/filepath"
	"pilotage/persistence"
	"strings"

	"github.com/google/uuid"
)

type TestDatabase struct {
	TestDatabaseName string
	DS               *persistence.DataSourceManager

	sqliteFile string
}

// StartTestDatabase starts a throw-away database. A sqlite file under the
// temp directory is used unless TEST_MYSQL_SERVICE (e.g. root:root@(127.0.0.1:3306))
// is set, in which case a fresh mysql database is created.
func StartTestDatabase(baseName string) *TestDatabase {
	databaseName := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	if mysqlSvc := os.Getenv("TEST_MYSQL_SERVICE"); mysqlSvc != "" {
		dbConfig := &persistence.DatabaseConfig{
			DriverType: "mysql", DriverArgs: mysqlSvc + "/" + databaseName + "?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s",
		}
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			log.Fatalf("failed to prepare database %v\n", err)
		}
		return start(dbConfig, databaseName, "")
	}

	file := filepath.Join(os.TempDir(), databaseName+".db")
	dbConfig := &persistence.DatabaseConfig{
		DriverType: "sqlite3",
		DriverArgs: "file:" + file + "?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL",
	}
	return start(dbConfig, databaseName, file)
}

func start(dbConfig *persistence.DatabaseConfig, databaseName, sqliteFile string) *TestDatabase {
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		defer ds.Stop()
		log.Fatalf("database conneciton failed %v\n", err)
	}
	return &TestDatabase{TestDatabaseName: databaseName, DS: ds, sqliteFile: sqliteFile}
}

func StopTestDatabase(testDatabase *TestDatabase) {
	if testDatabase == nil || testDatabase.DS == nil {
		return
	}
	if testDatabase.sqliteFile == "" && testDatabase.DS.GormDB() != nil {
		if err := testDatabase.DS.GormDB().Exec("DROP DATABASE " + testDatabase.TestDatabaseName).Error; err != nil {
			log.Println("failed to drop test database: " + testDatabase.TestDatabaseName)
		} else {
			log.Println("test database " + testDatabase.TestDatabaseName + " dropped")
		}
	}

	// close connection
	testDatabase.DS.Stop()

	if testDatabase.sqliteFile != "" {
		for _, f := range []string{testDatabase.sqliteFile, testDatabase.sqliteFile + "-wal", testDatabase.sqliteFile + "-shm"} {
			_ = os.Remove(f)
		}
	}
}
