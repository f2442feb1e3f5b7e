package storage

import (
	"fmt"
	"regexp"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"educonsult/backend/internal/domain"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// CheckTableName 校验表名，SQL 存储会把它直接拼进语句
func CheckTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// ContactRow 是 SQL 存储中联系记录的表结构，仅用于 GORM 建表
//
// 用户填写的字段不限长度：不指定 size，GORM 在 PostgreSQL 上建为 text，
// 在 MySQL 上建为 longtext。
type ContactRow struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)"`
	Name          string     `gorm:"not null"`
	Email         string     `gorm:"not null"`
	Phone         string     `gorm:"not null"`
	Service       string     `gorm:"not null"`
	Message       string     `gorm:"not null"`
	Status        string     `gorm:"type:varchar(32);not null"`
	SubmittedAt   time.Time  `gorm:"not null;index"`
	UpdatedAt     *time.Time `gorm:"autoUpdateTime:false"`
	SourceAddress string
}

// GormConfig 返回建表使用的 GORM 配置（静默日志，UTC 时间）
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Migrate 确保联系记录表存在，已存在时只补齐缺失的列和索引
func Migrate(db *gorm.DB, table string) error {
	if err := CheckTableName(table); err != nil {
		return err
	}
	if err := db.Table(table).AutoMigrate(&ContactRow{}); err != nil {
		return fmt.Errorf("migrate table %s: %w", table, err)
	}
	return nil
}

// ContactFromRow 把扫描出的行转换为领域对象
func ContactFromRow(row ContactRow) domain.Contact {
	c := domain.Contact{
		ID:            row.ID,
		Name:          row.Name,
		Email:         row.Email,
		Phone:         row.Phone,
		Service:       row.Service,
		Message:       row.Message,
		Status:        domain.ContactStatus(row.Status),
		SubmittedAt:   row.SubmittedAt.UTC(),
		SourceAddress: row.SourceAddress,
	}
	if row.UpdatedAt != nil {
		u := row.UpdatedAt.UTC()
		c.UpdatedAt = &u
	}
	return c
}
