package guilds

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type guildRow struct {
	ID        string    `gorm:"column:id;primaryKey"`
	ServerID  string    `gorm:"column:server_id;not null"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (guildRow) TableName() string {
	return "guilds"
}

// DatabaseStore persists guilds through GORM.
type DatabaseStore struct {
	db          *gorm.DB
	driverLabel string
}

// NewDatabaseStore migrates the guilds table and wraps the GORM handle.
func NewDatabaseStore(ctx context.Context, db *gorm.DB, driverLabel string) (*DatabaseStore, error) {
	if migrateErr := db.WithContext(ctx).AutoMigrate(&guildRow{}); migrateErr != nil {
		return nil, fmt.Errorf("guild_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseStore{db: db, driverLabel: driverLabel}, nil
}

// Save inserts or replaces a guild row.
func (store *DatabaseStore) Save(ctx context.Context, guild Guild) error {
	row := guildRow{
		ID:        guild.ID,
		ServerID:  guild.ServerID,
		Name:      guild.Name,
		CreatedAt: guild.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("guild_store.save.%s: %w", store.driverLabel, err)
	}
	return nil
}

// List returns all guilds ordered by creation time.
func (store *DatabaseStore) List(ctx context.Context) ([]Guild, error) {
	var rows []guildRow
	if err := store.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("guild_store.list.%s: %w", store.driverLabel, err)
	}
	listed := make([]Guild, 0, len(rows))
	for _, row := range rows {
		listed = append(listed, Guild{
			ID:        row.ID,
			ServerID:  row.ServerID,
			Name:      row.Name,
			CreatedAt: row.CreatedAt,
		})
	}
	return listed, nil
}

// Delete removes a guild by id.
func (store *DatabaseStore) Delete(ctx context.Context, id string) error {
	result := store.db.WithContext(ctx).Where("id = ?", id).Delete(&guildRow{})
	if result.Error != nil {
		return fmt.Errorf("guild_store.delete.%s: %w", store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("guild_store.delete.%s: %w", store.driverLabel, ErrGuildNotFound)
	}
	return nil
}
