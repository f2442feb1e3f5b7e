package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"educonsult/backend/internal/config"
	"educonsult/backend/internal/domain"
	"educonsult/backend/internal/storage"
)

// contactDocument 是联系记录在集合中的文档形状
type contactDocument struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	Name          string               `bson:"name"`
	Email         string               `bson:"email"`
	Phone         string               `bson:"phone"`
	Service       string               `bson:"service"`
	Message       string               `bson:"message"`
	Status        domain.ContactStatus `bson:"status"`
	SubmittedAt   time.Time            `bson:"submittedAt"`
	UpdatedAt     *time.Time           `bson:"updatedAt,omitempty"`
	SourceAddress string               `bson:"sourceAddress,omitempty"`
}

func (d contactDocument) toDomain() domain.Contact {
	return domain.Contact{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Email:         d.Email,
		Phone:         d.Phone,
		Service:       d.Service,
		Message:       d.Message,
		Status:        d.Status,
		SubmittedAt:   d.SubmittedAt.UTC(),
		UpdatedAt:     utcPtr(d.UpdatedAt),
		SourceAddress: d.SourceAddress,
	}
}

// Store MongoDB 文档存储实现
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// clientOptions 把通用连接池配置映射到 MongoDB 驱动选项
//
//	MaxOpenConns    -> maxPoolSize（0 表示不限制）
//	MaxIdleConns    -> minPoolSize（常驻连接数，不超过 maxPoolSize）
//	ConnMaxLifetime -> maxConnIdleTime（驱动没有连接总寿命的概念）
func clientOptions(cfg *config.DatabaseConfig) (*options.ClientOptions, error) {
	if cfg.MaxOpenConns < 0 || cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("invalid mongodb pool size: max=%d min=%d", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}

	minPool := cfg.MaxIdleConns
	if cfg.MaxOpenConns > 0 && minPool > cfg.MaxOpenConns {
		minPool = cfg.MaxOpenConns
	}

	return options.Client().
		ApplyURI(cfg.DSN).
		SetMaxPoolSize(uint64(cfg.MaxOpenConns)).
		SetMinPoolSize(uint64(minPool)).
		SetMaxConnIdleTime(cfg.ConnMaxLifetime), nil
}

// New 连接 MongoDB 并确认可用后返回存储实例
func New(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mongodb DSN is required")
	}

	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// 测试连接
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	coll := client.Database(cfg.Name).Collection(cfg.Collection)

	// 列表查询按提交时间倒序
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "submittedAt", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create submittedAt index: %w", err)
	}

	log.Info("connected to MongoDB",
		zap.String("database", cfg.Name),
		zap.String("collection", cfg.Collection),
	)

	return &Store{client: client, coll: coll, log: log}, nil
}

// CreateContact 插入文档并回填 ObjectID 十六进制形式的 ID
func (s *Store) CreateContact(ctx context.Context, contact *domain.Contact) error {
	doc := contactDocument{
		Name:          contact.Name,
		Email:         contact.Email,
		Phone:         contact.Phone,
		Service:       contact.Service,
		Message:       contact.Message,
		Status:        contact.Status,
		SubmittedAt:   contact.SubmittedAt,
		UpdatedAt:     contact.UpdatedAt,
		SourceAddress: contact.SourceAddress,
	}

	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("insert contact: unexpected id type %T", res.InsertedID)
	}
	contact.ID = oid.Hex()
	return nil
}

// ListContacts 全量扫描，按 submittedAt 倒序
func (s *Store) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "submittedAt", Value: -1},
		{Key: "_id", Value: -1},
	})

	cursor, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find contacts: %w", err)
	}

	var docs []contactDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}

	contacts := make([]domain.Contact, 0, len(docs))
	for _, doc := range docs {
		contacts = append(contacts, doc.toDomain())
	}
	return contacts, nil
}

// GetContact 根据 ID 获取联系记录，非法 ObjectID 视为不存在
func (s *Store) GetContact(ctx context.Context, id string) (*domain.Contact, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("get contact %q: %w", id, domain.ErrNotFound)
	}

	var doc contactDocument
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("get contact %q: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get contact %q: %w", id, err)
	}

	contact := doc.toDomain()
	return &contact, nil
}

// UpdateContactStatus 只 $set status 与 updatedAt
func (s *Store) UpdateContactStatus(ctx context.Context, id string, status domain.ContactStatus, updatedAt time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("update contact %q: %w", id, domain.ErrNotFound)
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"status":    status,
			"updatedAt": updatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update contact %q: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update contact %q: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Health 测试 MongoDB 连接
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close 断开 MongoDB 连接
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongodb: %w", err)
	}
	s.log.Info("MongoDB connection closed")
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
