package gormrepository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"polyhedge/internal/models"
	"polyhedge/internal/repository"
)

const insertBatchSize = 1000

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ReplaceAll clears the cache and bulk-inserts the given markets in a single
// transaction. Every row is stamped with the same cached_at so cache age is
// well defined for the whole snapshot.
func (s *Store) ReplaceAll(ctx context.Context, markets []models.Market) error {
	if s == nil || s.db == nil {
		return nil
	}
	cachedAt := time.Now().UTC()
	rows := make([]models.CachedMarket, 0, len(markets))
	for _, m := range markets {
		row, err := models.NewCachedMarket(m, cachedAt)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.CachedMarket{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
}

// ListActive returns the active markets in the cache. Rows whose payload no
// longer decodes are skipped and counted, not fatal.
func (s *Store) ListActive(ctx context.Context) ([]models.Market, repository.CacheInfo, error) {
	if s == nil || s.db == nil {
		return nil, repository.CacheInfo{}, nil
	}
	var rows []models.CachedMarket
	if err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Find(&rows).Error; err != nil {
		return nil, repository.CacheInfo{}, err
	}
	info := repository.CacheInfo{}
	markets := make([]models.Market, 0, len(rows))
	for _, row := range rows {
		m, err := row.Market()
		if err != nil {
			info.Skipped++
			continue
		}
		markets = append(markets, m)
	}
	info.Count = len(markets)
	if len(rows) > 0 {
		info.CachedAt = rows[0].CachedAt
		info.Age = time.Since(rows[0].CachedAt)
	}
	return markets, info, nil
}

func (s *Store) GetByIDs(ctx context.Context, ids []string) (map[string]models.Market, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return map[string]models.Market{}, nil
	}
	var rows []models.CachedMarket
	if err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]models.Market, len(rows))
	for _, row := range rows {
		m, err := row.Market()
		if err != nil {
			continue
		}
		out[row.ID] = m
	}
	return out, nil
}

func (s *Store) CountMarkets(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.CachedMarket{}).Count(&n).Error
	return n, err
}

func (s *Store) UpsertEmbeddings(ctx context.Context, items []models.MarketEmbedding) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"document",
			"vector",
			"question",
			"liquidity",
			"volume",
			"active",
			"updated_at",
		}),
	}).Create(items).Error
}

// ListEmbeddings returns active index rows, optionally restricted to a
// minimum liquidity. Both conditions are AND-ed.
func (s *Store) ListEmbeddings(ctx context.Context, minLiquidity *float64) ([]models.MarketEmbedding, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Where("active = ?", true)
	if minLiquidity != nil {
		query = query.Where("liquidity >= ?", *minLiquidity)
	}
	var items []models.MarketEmbedding
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListEmbeddingIDs(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.MarketEmbedding{}).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) CountEmbeddings(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.MarketEmbedding{}).Count(&n).Error
	return n, err
}
