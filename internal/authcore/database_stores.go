package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for
	// the database URL scheme.
	ErrUnsupportedDialect = errors.New("database.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("database.empty_url")
	errSQLiteEmptyPath     = errors.New("database.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("database.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("database.unsupported_no_scheme")
)

type userRow struct {
	ID             string    `gorm:"column:id;primaryKey"`
	Email          string    `gorm:"column:email;uniqueIndex;not null"`
	HashedPassword string    `gorm:"column:hashed_password;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

func (userRow) TableName() string {
	return "users"
}

type refreshTokenRow struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    string    `gorm:"column:user_id;uniqueIndex:idx_refresh_tokens_user_hash;not null"`
	TokenHash string    `gorm:"column:token_hash;uniqueIndex:idx_refresh_tokens_user_hash;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;index;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (refreshTokenRow) TableName() string {
	return "refresh_tokens"
}

// OpenDatabase resolves a GORM dialector from the URL scheme, opens the
// connection, and migrates the auth tables. The returned driver label is
// "sqlite" or "postgres".
func OpenDatabase(ctx context.Context, databaseURL string) (*gorm.DB, string, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, "", fmt.Errorf("database.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, resolveErr := resolveDialector(databaseURL)
	if resolveErr != nil {
		return nil, "", resolveErr
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if openErr != nil {
		return nil, "", fmt.Errorf("database.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&userRow{}, &refreshTokenRow{}); migrateErr != nil {
		return nil, "", fmt.Errorf("database.migrate.%s: %w", driverLabel, migrateErr)
	}
	return gormDB, driverLabel, nil
}

// DatabaseUserStore persists users through GORM.
type DatabaseUserStore struct {
	db          *gorm.DB
	driverLabel string
}

// NewDatabaseUserStore wraps an opened GORM handle.
func NewDatabaseUserStore(db *gorm.DB, driverLabel string) *DatabaseUserStore {
	return &DatabaseUserStore{db: db, driverLabel: driverLabel}
}

// Create inserts a user row. The unique email index turns a duplicate into
// ErrDuplicateUser.
func (store *DatabaseUserStore) Create(ctx context.Context, user User) error {
	row := userRow{
		ID:             user.ID,
		Email:          user.Email,
		HashedPassword: user.HashedPassword,
		CreatedAt:      user.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("user_store.create.%s: %w", store.driverLabel, ErrDuplicateUser)
		}
		return fmt.Errorf("user_store.create.%s: %w", store.driverLabel, err)
	}
	return nil
}

// FindByEmail returns the user registered under email.
func (store *DatabaseUserStore) FindByEmail(ctx context.Context, email string) (User, error) {
	var row userRow
	err := store.db.WithContext(ctx).Where("email = ?", email).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, fmt.Errorf("user_store.find_by_email.%s: %w", store.driverLabel, ErrUserNotFound)
		}
		return User{}, fmt.Errorf("user_store.find_by_email.%s: %w", store.driverLabel, err)
	}
	return row.toUser(), nil
}

// FindByID returns the user with the given id.
func (store *DatabaseUserStore) FindByID(ctx context.Context, id string) (User, error) {
	var row userRow
	err := store.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, fmt.Errorf("user_store.find_by_id.%s: %w", store.driverLabel, ErrUserNotFound)
		}
		return User{}, fmt.Errorf("user_store.find_by_id.%s: %w", store.driverLabel, err)
	}
	return row.toUser(), nil
}

func (row userRow) toUser() User {
	return User{
		ID:             row.ID,
		Email:          row.Email,
		HashedPassword: row.HashedPassword,
		CreatedAt:      row.CreatedAt,
	}
}

// DatabaseRefreshTokenStore persists hashed refresh tokens through GORM.
type DatabaseRefreshTokenStore struct {
	db          *gorm.DB
	driverLabel string
}

// NewDatabaseRefreshTokenStore wraps an opened GORM handle.
func NewDatabaseRefreshTokenStore(db *gorm.DB, driverLabel string) *DatabaseRefreshTokenStore {
	return &DatabaseRefreshTokenStore{db: db, driverLabel: driverLabel}
}

// Driver exposes the selected database driver label.
func (store *DatabaseRefreshTokenStore) Driver() string {
	return store.driverLabel
}

// Save inserts a new refresh token record.
func (store *DatabaseRefreshTokenStore) Save(ctx context.Context, record RefreshTokenRecord) error {
	row := refreshTokenRow{
		ID:        record.ID,
		UserID:    record.UserID,
		TokenHash: record.TokenHash,
		ExpiresAt: record.ExpiresAt,
		CreatedAt: record.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("refresh_store.save.%s: %w", store.driverLabel, err)
	}
	return nil
}

// FindByUserAndHash returns the record for the (user, hash) key.
func (store *DatabaseRefreshTokenStore) FindByUserAndHash(ctx context.Context, userID string, tokenHash string) (RefreshTokenRecord, error) {
	var row refreshTokenRow
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND token_hash = ?", userID, tokenHash).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RefreshTokenRecord{}, fmt.Errorf("refresh_store.find.%s: %w", store.driverLabel, ErrRefreshRecordNotFound)
		}
		return RefreshTokenRecord{}, fmt.Errorf("refresh_store.find.%s: %w", store.driverLabel, err)
	}
	return RefreshTokenRecord{
		ID:        row.ID,
		UserID:    row.UserID,
		TokenHash: row.TokenHash,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Consume issues a single conditional DELETE for the (user, hash) key. The
// row count decides the winner between concurrent exchanges of one token.
func (store *DatabaseRefreshTokenStore) Consume(ctx context.Context, userID string, tokenHash string) (bool, error) {
	result := store.db.WithContext(ctx).
		Where("user_id = ? AND token_hash = ?", userID, tokenHash).
		Delete(&refreshTokenRow{})
	if result.Error != nil {
		return false, fmt.Errorf("refresh_store.consume.%s: %w", store.driverLabel, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteExpiredBefore drops rows whose expiry precedes cutoff.
func (store *DatabaseRefreshTokenStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := store.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&refreshTokenRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("refresh_store.sweep.%s: %w", store.driverLabel, result.Error)
	}
	return result.RowsAffected, nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, parseErr := url.Parse(databaseURL)
	if parseErr != nil {
		return nil, "", fmt.Errorf("database.parse_url: %w", parseErr)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("database.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("database.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("database.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
