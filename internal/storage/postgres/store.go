package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"educonsult/backend/internal/config"
	"educonsult/backend/internal/domain"
	"educonsult/backend/internal/storage"
)

const contactColumns = "id, name, email, phone, service, message, status, submitted_at, updated_at, source_address"

// Store PostgreSQL 存储实现
type Store struct {
	client *Client
	table  string
}

var _ storage.Store = (*Store)(nil)

// New 连接 PostgreSQL、建表并返回存储实例
func New(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if err := storage.CheckTableName(cfg.Collection); err != nil {
		return nil, err
	}

	client, err := NewClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if err := client.Migrate(cfg.Collection); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{
		client: client,
		table:  pgx.Identifier{cfg.Collection}.Sanitize(),
	}, nil
}

// CreateContact 插入一条联系记录
func (s *Store) CreateContact(ctx context.Context, contact *domain.Contact) error {
	id := uuid.NewString()

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, s.table, contactColumns)
	_, err := s.client.Pool().Exec(ctx, query,
		id,
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.Service,
		contact.Message,
		string(contact.Status),
		contact.SubmittedAt,
		contact.UpdatedAt,
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
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY submitted_at DESC, id DESC`, contactColumns, s.table)
	rows, err := s.client.Pool().Query(ctx, query)
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

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, contactColumns, s.table)
	row, err := scanRow(s.client.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

	query := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3`, s.table)
	tag, err := s.client.Pool().Exec(ctx, query, string(status), updatedAt, id)
	if err != nil {
		return fmt.Errorf("update contact %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update contact %q: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Health 测试数据库连接
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close 关闭连接池
func (s *Store) Close(_ context.Context) error {
	s.client.Close()
	return nil
}

func scanRow(row pgx.Row) (storage.ContactRow, error) {
	var r storage.ContactRow
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Email,
		&r.Phone,
		&r.Service,
		&r.Message,
		&r.Status,
		&r.SubmittedAt,
		&r.UpdatedAt,
		&r.SourceAddress,
	)
	return r, err
}
