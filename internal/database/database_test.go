package database

import (
	"context"
	"testing"
	"time"

	"eventsocial/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, configurePool(db, 10, 5))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
	assert.NoError(t, Ping(context.Background(), db))
}

func TestMigrate_CreatesSchema(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewGormLogger().LogMode(logger.Silent)})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))

	for _, table := range []string{"users", "follows", "posts", "post_interests", "post_attendances",
		"comments", "notifications", "chats", "chat_participants", "messages", "message_reads"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
	assert.True(t, db.Migrator().HasColumn(&models.ChatParticipant{}, "joined_at"))
	assert.True(t, db.Migrator().HasColumn(&models.User{}, "password_hash"))
}

func TestSchemaStatus(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewGormLogger().LogMode(logger.Silent)})
	require.NoError(t, err)

	status, err := SchemaStatus(db)
	require.NoError(t, err)
	require.Len(t, status, len(PersistentModels()))
	for _, s := range status {
		assert.False(t, s.Exists, s.Table)
	}

	require.NoError(t, Migrate(db))
	status, err = SchemaStatus(db)
	require.NoError(t, err)
	assert.Equal(t, "users", status[0].Table)
	for _, s := range status {
		assert.True(t, s.Exists, s.Table)
	}
}

func TestGormLogger_LogMode(t *testing.T) {
	l := NewGormLogger()
	silent := l.LogMode(logger.Silent).(*GormLogger)

	assert.Equal(t, logger.Silent, silent.Config.LogLevel)
	assert.Equal(t, logger.Warn, l.Config.LogLevel)
	assert.Equal(t, 200*time.Millisecond, silent.Config.SlowThreshold)
}

func TestGetReadDB_FallsBackToPrimary(t *testing.T) {
	prevDB, prevRead := DB, ReadDB
	t.Cleanup(func() { DB, ReadDB = prevDB, prevRead })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	DB, ReadDB = db, nil
	assert.Same(t, db, GetReadDB())
}
