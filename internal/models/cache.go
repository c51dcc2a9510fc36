package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CachedMarket is one row of the local market cache. The typed columns exist
// for filtering and indexing; Raw carries the full Market payload and is the
// source of truth when reading back.
type CachedMarket struct {
	ID          string          `gorm:"primaryKey;type:text"`
	Question    string          `gorm:"type:text;not null;index"`
	Description string          `gorm:"type:text"`
	Outcomes    datatypes.JSON  `gorm:"type:jsonb"`
	Liquidity   decimal.Decimal `gorm:"type:numeric(30,10);index"`
	Volume      decimal.Decimal `gorm:"type:numeric(30,10)"`
	EndDate     *string         `gorm:"type:text"`
	Active      bool            `gorm:"not null;default:true;index"`
	Slug        *string         `gorm:"type:text"`
	Raw         datatypes.JSON  `gorm:"type:jsonb;not null"`
	CachedAt    time.Time       `gorm:"not null;index"`
}

func (CachedMarket) TableName() string {
	return "cached_markets"
}

// NewCachedMarket builds a cache row from a market. All rows written in one
// refresh must share the same cachedAt stamp.
func NewCachedMarket(m Market, cachedAt time.Time) (CachedMarket, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return CachedMarket{}, err
	}
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return CachedMarket{}, err
	}
	return CachedMarket{
		ID:          m.ID,
		Question:    m.Question,
		Description: m.Description,
		Outcomes:    outcomes,
		Liquidity:   decimal.NewFromFloat(m.Liquidity),
		Volume:      decimal.NewFromFloat(m.Volume),
		EndDate:     m.EndDate,
		Active:      m.Active,
		Slug:        m.Slug,
		Raw:         raw,
		CachedAt:    cachedAt,
	}, nil
}

// Market decodes the stored payload back into the domain type.
func (c CachedMarket) Market() (Market, error) {
	var m Market
	if err := json.Unmarshal(c.Raw, &m); err != nil {
		return Market{}, err
	}
	return m, nil
}

// MarketEmbedding is one row of the similarity index: a vector plus the
// metadata needed to filter matches without touching the market cache.
type MarketEmbedding struct {
	ID        string         `gorm:"primaryKey;type:text"`
	Document  string         `gorm:"type:text;not null"`
	Vector    datatypes.JSON `gorm:"type:jsonb;not null"`
	Question  string         `gorm:"type:text"`
	Liquidity float64        `gorm:"index"`
	Volume    float64        `gorm:""`
	Active    bool           `gorm:"not null;default:true;index"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (MarketEmbedding) TableName() string {
	return "market_embeddings"
}

// NewMarketEmbedding builds an index row for a market and its vector.
func NewMarketEmbedding(m Market, vector []float32, updatedAt time.Time) (MarketEmbedding, error) {
	raw, err := json.Marshal(vector)
	if err != nil {
		return MarketEmbedding{}, err
	}
	return MarketEmbedding{
		ID:        m.ID,
		Document:  m.EmbeddingText(),
		Vector:    raw,
		Question:  m.Question,
		Liquidity: m.Liquidity,
		Volume:    m.Volume,
		Active:    m.Active,
		UpdatedAt: updatedAt,
	}, nil
}

// VectorValues decodes the stored vector.
func (e MarketEmbedding) VectorValues() ([]float32, error) {
	var v []float32
	if err := json.Unmarshal(e.Vector, &v); err != nil {
		return nil, err
	}
	return v, nil
}
