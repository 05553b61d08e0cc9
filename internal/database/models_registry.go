package database

import (
	"fmt"

	"eventsocial/internal/models"

	"gorm.io/gorm"
)

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Follow{},
		&models.Post{},
		&models.PostInterest{},
		&models.PostAttendance{},
		&models.Comment{},
		&models.Notification{},
		&models.Chat{},
		&models.ChatParticipant{},
		&models.Message{},
		&models.MessageRead{},
	}
}

// Migrate registers custom join tables and auto-migrates every persistent model.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Chat{}, "Participants", &models.ChatParticipant{}); err != nil {
		return fmt.Errorf("setup chat participants join table: %w", err)
	}
	return db.AutoMigrate(PersistentModels()...)
}

// TableStatus reports whether a persistent model's table exists.
type TableStatus struct {
	Table  string
	Exists bool
}

// SchemaStatus lists every persistent model's table and whether it exists.
func SchemaStatus(db *gorm.DB) ([]TableStatus, error) {
	all := PersistentModels()
	out := make([]TableStatus, 0, len(all))
	for _, m := range all {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("parse %T: %w", m, err)
		}
		out = append(out, TableStatus{Table: stmt.Schema.Table, Exists: db.Migrator().HasTable(m)})
	}
	return out, nil
}
