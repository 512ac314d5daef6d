package service

import "MarketWatch/internal/domain/models"

// LevelFinder derives support and resistance levels from candle history.
type LevelFinder interface {
	Find(candles []models.Candle, price float64) (models.KeyLevels, error)
}
