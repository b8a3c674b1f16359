package tester

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emrgen/qda/internal/model"
)

var (
	testPath string
	db       *gorm.DB
)

// Setup opens a fresh migrated sqlite database for the calling test.
func Setup() {
	RemoveDBFile()

	_ = os.Setenv("ENV", "test")

	var err error
	testPath, err = os.MkdirTemp("", "qda-test-")
	if err != nil {
		panic(err)
	}

	db, err = gorm.Open(sqlite.Open(filepath.Join(testPath, "qda.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	err = model.Migrate(db)
	if err != nil {
		panic(err)
	}

	logrus.SetLevel(logrus.WarnLevel)
}

func TestDB() *gorm.DB {
	return db
}

func RemoveDBFile() {
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		db = nil
	}
	if testPath == "" {
		return
	}

	err := os.RemoveAll(testPath)
	if err != nil {
		panic(err)
	}
	testPath = ""
}

// Redis starts an in-process redis server that lives as long as the test.
func Redis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:     server.Addr(),
		Protocol: 2,
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, server
}
