package gormstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/store/storetest"
)

// Set MYSQL_TEST_DSN to a disposable database to run these tests.
func openTestDB(t *testing.T) *gorm.DB {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestConformance(t *testing.T) {
	db := openTestDB(t)
	storetest.Run(t, func(t *testing.T) *store.Store {
		for _, table := range []string{"follows", "comments", "posts", "users"} {
			require.NoError(t, db.Exec("DELETE FROM "+table).Error)
		}
		return New(db)
	})
}

func TestIsDuplicate(t *testing.T) {
	require.True(t, isDuplicate(gorm.ErrDuplicatedKey))
	require.False(t, isDuplicate(gorm.ErrRecordNotFound))
	require.False(t, isDuplicate(nil))
}
