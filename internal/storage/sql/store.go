package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"educonsult/backend/internal/config"
	"educonsult/backend/internal/domain"
	"educonsult/backend/internal/storage"
)

const contactColumns = "id, name, email, phone, service, message, status, submitted_at, updated_at, source_address"

// Store SQL 数据库存储实现（MySQL 5.7+）
//
// DSN 必须带 parseTime=true，否则时间列无法扫描为 time.Time。
type Store struct {
	db    *sql.DB
	table string
	log   *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore 打开 MySQL 连接、建表并返回存储实例
func NewStore(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if err := storage.CheckTableName(cfg.Collection); err != nil {
		return nil, err
	}

	// 打开数据库连接
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	// 测试连接
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 初始化GORM（仅用于自动建表）
	gormDB, err := gorm.Open(mysql.New(mysql.Config{Conn: db}), storage.GormConfig())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}
	if err := storage.Migrate(gormDB, cfg.Collection); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("connected to MySQL",
		zap.String("table", cfg.Collection),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return newStore(db, cfg.Collection, log), nil
}

func newStore(db *sql.DB, table string, log *zap.Logger) *Store {
	return &Store{
		db:    db,
		table: "`" + table + "`",
		log:   log,
	}
}

// CreateContact 插入一条联系记录
func (s *Store) CreateContact(ctx context.Context, contact *domain.Contact) error {
	id := uuid.NewString()

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, contactColumns)
	_, err := s.db.ExecContext(ctx, query,
		id,
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.Service,
		contact.Message,
		string(contact.Status),
		contact.SubmittedAt.UTC(),
		nullTime(contact.UpdatedAt),
		contact.SourceAddress,
	)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}

	contact.ID = id
	return nil
}

// ListContacts 全表扫描，按 submitted_at 倒序
func (s *Store) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY submitted_at DESC, id DESC", contactColumns, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]domain.Contact, 0)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, storage.ContactFromRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}

// GetContact 根据 ID 获取联系记录
func (s *Store) GetContact(ctx context.Context, id string) (*domain.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get contact %q: %w", id, domain.ErrNotFound)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", contactColumns, s.table)
	row, err := scanRow(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get contact %q: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get contact %q: %w", id, err)
	}

	contact := storage.ContactFromRow(row)
	return &contact, nil
}

// UpdateContactStatus 只更新 status 与 updated_at
func (s *Store) UpdateContactStatus(ctx context.Context, id string, status domain.ContactStatus, updatedAt time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("update contact %q: %w", id, domain.ErrNotFound)
	}

	// MySQL 的 RowsAffected 不计入值未变化的行，因此先确认记录存在
	var exists int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", s.table), id).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update contact %q: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("update contact %q: %w", id, err)
	}

	query := fmt.Sprintf("UPDATE %s SET status = ?, updated_at = ? WHERE id = ?", s.table)
	if _, err := s.db.ExecContext(ctx, query, string(status), updatedAt.UTC(), id); err != nil {
		return fmt.Errorf("update contact %q: %w", id, err)
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.PingContext(ctx)
}

// Close 关闭数据库连接
func (s *Store) Close(_ context.Context) error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.log.Info("MySQL connection closed")
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(row scanner) (storage.ContactRow, error) {
	var (
		r         storage.ContactRow
		updatedAt sql.NullTime
	)
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Email,
		&r.Phone,
		&r.Service,
		&r.Message,
		&r.Status,
		&r.SubmittedAt,
		&updatedAt,
		&r.SourceAddress,
	)
	if err != nil {
		return r, err
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		r.UpdatedAt = &t
	}
	return r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
