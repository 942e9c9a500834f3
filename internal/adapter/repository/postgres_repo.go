package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AIEraStack/AIEraStack/internal/common"
	"github.com/AIEraStack/AIEraStack/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// repoRecordRow repo_records 表：反规范化的汇总列 + 完整记录 JSON
// 汇总列给列表页用，不用反序列化整条记录
type repoRecordRow struct {
	Owner       string    `gorm:"primaryKey;size:190"`
	Name        string    `gorm:"primaryKey;size:190"`
	Category    string    `gorm:"index"`
	Stars       int       `gorm:"index"`
	Language    string    `gorm:"size:64"`
	Description string    `gorm:"type:text"`
	BestScore   int       `gorm:"index"`
	BestGrade   string    `gorm:"size:2"`
	BestModel   string    `gorm:"size:64"`
	ModelScores string    `gorm:"type:jsonb"` // map[modelID]{overall, grade}
	Record      string    `gorm:"type:jsonb"` // 完整的 CachedRepoData
	FetchedAt   time.Time
	DataVersion int
	UpdatedAt   time.Time
}

func (repoRecordRow) TableName() string { return "repo_records" }

// comparisonRow comparison_evaluations 表
// 由 cmd/compare 离线生成，引擎侧只读
type comparisonRow struct {
	ContentHash string    `gorm:"primaryKey;size:64"`
	Category    string    `gorm:"index;size:64"`
	Payload     string    `gorm:"type:jsonb"`
	GeneratedAt time.Time
}

func (comparisonRow) TableName() string { return "comparison_evaluations" }

// PostgresRepo 实现了 port.Store 接口
type PostgresRepo struct {
	db         *gorm.DB
	modelOrder []string // 汇总时并列取胜的模型顺序
}

// NewPostgresRepo 初始化数据库连接并自动迁移表结构
func NewPostgresRepo(dsn string, modelOrder []string) (*PostgresRepo, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if err := db.AutoMigrate(&repoRecordRow{}, &comparisonRow{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return &PostgresRepo{db: db, modelOrder: modelOrder}, nil
}

// Upsert 在同一事务里写完整记录并重算汇总列
// (owner, name) 上 ON CONFLICT DO UPDATE，永远只有一行；重复执行结果不变
func (r *PostgresRepo) Upsert(ctx context.Context, record *domain.CachedRepoData) error {
	row, err := r.toRow(record)
	if err != nil {
		return common.WrapError(common.ErrCodeInternal, "序列化记录失败", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "name"}},
			UpdateAll: true,
		}).Create(row).Error
	})
	if err != nil {
		return common.WrapError(common.ErrCodeDatabase, "保存记录失败", err)
	}
	return nil
}

// GetByKey 按 (owner, name) 点查，没有记录时返回 (nil, nil)
func (r *PostgresRepo) GetByKey(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error) {
	var row repoRecordRow
	err := r.db.WithContext(ctx).
		Where("owner = ? AND name = ?", id.Owner, id.Name).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询记录失败", err)
	}

	var record domain.CachedRepoData
	if err := json.Unmarshal([]byte(row.Record), &record); err != nil {
		return nil, common.WrapError(common.ErrCodeInternal, "反序列化记录失败", err)
	}
	return &record, nil
}

// ListSummaries 只读汇总列，category 为空表示全表，按最优分倒序
func (r *PostgresRepo) ListSummaries(ctx context.Context, category string) ([]domain.IndexEntry, error) {
	query := r.db.WithContext(ctx).Model(&repoRecordRow{}).
		Select("owner", "name", "category", "stars", "language", "description",
			"best_score", "best_grade", "best_model", "model_scores", "fetched_at").
		Order("best_score DESC")
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var rows []repoRecordRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询汇总失败", err)
	}

	entries := make([]domain.IndexEntry, 0, len(rows))
	for _, row := range rows {
		entry := domain.IndexEntry{
			Identity:    domain.RepoIdentity{Owner: row.Owner, Name: row.Name},
			Category:    row.Category,
			Stars:       row.Stars,
			Language:    row.Language,
			Description: row.Description,
			BestScore:   row.BestScore,
			BestGrade:   row.BestGrade,
			BestModel:   row.BestModel,
			FetchedAt:   row.FetchedAt,
		}
		// 每模型的精简分数是一小段 JSON，解析失败不影响其余字段
		if row.ModelScores != "" {
			_ = json.Unmarshal([]byte(row.ModelScores), &entry.ModelScores)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetComparison 读预生成的对比评估，没有时返回 (nil, nil)
func (r *PostgresRepo) GetComparison(ctx context.Context, contentHash string) ([]byte, error) {
	var row comparisonRow
	err := r.db.WithContext(ctx).
		Where("content_hash = ?", contentHash).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询对比评估失败", err)
	}
	return []byte(row.Payload), nil
}

// SaveComparison 写对比评估，只给 cmd/compare 这个离线工具用，不在 port.Store 里
func (r *PostgresRepo) SaveComparison(ctx context.Context, contentHash, category string, payload []byte) error {
	row := &comparisonRow{
		ContentHash: contentHash,
		Category:    category,
		Payload:     string(payload),
		GeneratedAt: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_hash"}},
		UpdateAll: true,
	}).Create(row).Error
	if err != nil {
		return common.WrapError(common.ErrCodeDatabase, "保存对比评估失败", err)
	}
	return nil
}

// toRow 由完整记录推导存储行，汇总列永远和 Record 同源
func (r *PostgresRepo) toRow(record *domain.CachedRepoData) (*repoRecordRow, error) {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	entry := domain.BuildIndexEntry(record, r.modelOrder)
	scoresJSON, err := json.Marshal(entry.ModelScores)
	if err != nil {
		return nil, err
	}

	return &repoRecordRow{
		Owner:       record.Identity.Owner,
		Name:        record.Identity.Name,
		Category:    record.Category,
		Stars:       entry.Stars,
		Language:    entry.Language,
		Description: entry.Description,
		BestScore:   entry.BestScore,
		BestGrade:   entry.BestGrade,
		BestModel:   entry.BestModel,
		ModelScores: string(scoresJSON),
		Record:      string(recordJSON),
		FetchedAt:   record.FetchedAt,
		DataVersion: record.DataVersion,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}
