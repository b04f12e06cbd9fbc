package persistence

import (
	"github.com/ecomdw/etl/internal/domain/shared"
	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/ecomdw/etl/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// keyIndex maps dimension natural keys to committed surrogate keys
type keyIndex struct {
	time      map[string]int64
	customers map[string]int64
	products  map[string]int64
	sellers   map[string]int64
	geography map[warehouse.GeographyKey]int64
}

type naturalKeyRow struct {
	NaturalKey   string
	SurrogateKey int64
}

// resolveKeys reads the natural to surrogate key mapping of every dimension.
// It runs after the dimension transaction committed, so it sees this run's
// rows as well as rows from earlier runs.
func (l *WarehouseLoader) resolveKeys(db *gorm.DB) (*keyIndex, error) {
	idx := &keyIndex{}
	lookups := []struct {
		table   string
		natural string
		key     string
		dest    *map[string]int64
	}{
		{TableDimTime, "date_key", "time_id", &idx.time},
		{TableDimCustomers, "customer_id", "customer_key", &idx.customers},
		{TableDimProducts, "product_id", "product_key", &idx.products},
		{TableDimSellers, "seller_id", "seller_key", &idx.sellers},
	}
	for _, lk := range lookups {
		qualified := l.tables.Analytics(lk.table)
		var rows []naturalKeyRow
		err := db.Table(qualified).
			Select(lk.natural + " AS natural_key, " + lk.key + " AS surrogate_key").
			Scan(&rows).Error
		if err != nil {
			return nil, &shared.PersistenceError{Phase: PhaseAnalytics, Table: qualified, Err: err}
		}
		m := make(map[string]int64, len(rows))
		for _, r := range rows {
			m[r.NaturalKey] = r.SurrogateKey
		}
		*lk.dest = m
	}

	qualified := l.tables.Analytics(TableDimGeography)
	var geo []models.GeographyDimModel
	if err := db.Table(qualified).Select("geography_key, state, city, zip_code_prefix").Find(&geo).Error; err != nil {
		return nil, &shared.PersistenceError{Phase: PhaseAnalytics, Table: qualified, Err: err}
	}
	idx.geography = make(map[warehouse.GeographyKey]int64, len(geo))
	for i := range geo {
		idx.geography[geo[i].Key()] = geo[i].GeographyKey
	}
	return idx, nil
}

// apply sets the surrogate keys of m from the natural references of f and
// returns a gap for every reference that is not in the index
func (idx *keyIndex) apply(f warehouse.OrderFact, m *models.FactOrderModel) []shared.IntegrityGap {
	var gaps []shared.IntegrityGap
	resolve := func(key warehouse.ForeignKey, natural string, index map[string]int64) *int64 {
		if id, ok := index[natural]; ok {
			return &id
		}
		gaps = append(gaps, shared.IntegrityGap{OrderID: f.OrderID, Key: string(key), NaturalKey: natural})
		return nil
	}

	if f.TimeRef != nil {
		m.TimeID = resolve(warehouse.KeyTime, string(*f.TimeRef), idx.time)
	}
	if f.CustomerRef != nil {
		m.CustomerKey = resolve(warehouse.KeyCustomer, *f.CustomerRef, idx.customers)
	}
	if f.ProductRef != nil {
		m.ProductKey = resolve(warehouse.KeyProduct, *f.ProductRef, idx.products)
	}
	if f.SellerRef != nil {
		m.SellerKey = resolve(warehouse.KeySeller, *f.SellerRef, idx.sellers)
	}
	if f.GeographyRef != nil {
		if id, ok := idx.geography[*f.GeographyRef]; ok {
			m.GeographyKey = &id
		} else {
			gaps = append(gaps, shared.IntegrityGap{
				OrderID:    f.OrderID,
				Key:        string(warehouse.KeyGeography),
				NaturalKey: f.GeographyRef.String(),
			})
		}
	}
	return gaps
}
