package transform

import (
	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultWarningLogLimit is how many warnings per (dataset, column) are logged
// individually before they are only counted
const DefaultWarningLogLimit = 5

// Quality aggregates the recovered data-quality events of one transform
type Quality struct {
	ParseWarnings      int                  `json:"parse_warnings"`
	SchemaDrifts       []string             `json:"schema_drifts,omitempty"`
	GeolocationDropped int                  `json:"geolocation_dropped"`
	OrdersWithoutItems int                  `json:"orders_without_items"`
	DeliveryOutliers   int                  `json:"delivery_outliers"`
	MissingValues      map[dataset.Name]int `json:"missing_values,omitempty"`
}

// warningLog logs parse warnings with a per-column cap and a summary
type warningLog struct {
	logger *zap.Logger
	limit  int
	seen   map[string]int
}

func newWarningLog(logger *zap.Logger, limit int) *warningLog {
	if limit <= 0 {
		limit = DefaultWarningLogLimit
	}
	return &warningLog{logger: logger, limit: limit, seen: make(map[string]int)}
}

func (l *warningLog) record(w shared.ParseWarning) {
	key := w.Dataset + "." + w.Column
	l.seen[key]++
	if l.seen[key] > l.limit {
		return
	}
	l.logger.Warn("Parse warning",
		zap.String("dataset", w.Dataset),
		zap.String("column", w.Column),
		zap.Int("row", w.Row),
		zap.String("value", w.Value),
		zap.String("reason", w.Reason),
	)
}

// flush logs one summary line for every column whose warnings were capped
func (l *warningLog) flush() {
	for key, n := range l.seen {
		if n > l.limit {
			l.logger.Warn("Parse warnings suppressed",
				zap.String("column", key),
				zap.Int("total", n),
				zap.Int("logged", l.limit),
			)
		}
	}
	l.seen = make(map[string]int)
}
