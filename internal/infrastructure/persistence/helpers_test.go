package persistence

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/ecomdw/etl/internal/infrastructure/logger"
	"github.com/ecomdw/etl/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupWarehouseTestDB opens an in-memory SQLite warehouse with every
// staging, analytics and audit table created unqualified
func setupWarehouseTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.NewGormLogger(zap.NewNop(), gormlogger.Silent),
	})
	require.NoError(t, err)

	// Every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.TimeDimModel{},
		&models.CustomerDimModel{},
		&models.ProductDimModel{},
		&models.SellerDimModel{},
		&models.GeographyDimModel{},
		&models.FactOrderModel{},
		&models.RunModel{},
	)
	require.NoError(t, err)

	for _, name := range dataset.All {
		require.NoError(t, db.Exec(stagingDDL(t, name)).Error)
	}

	return &Database{DB: db}
}

func stagingDDL(t *testing.T, name dataset.Name) string {
	t.Helper()
	schema, ok := dataset.SchemaFor(name)
	require.True(t, ok)

	cols := make([]string, 0, len(schema.Columns)+2)
	for _, c := range schema.Columns {
		typ := "TEXT"
		switch c.Type {
		case dataset.TypeInteger:
			typ = "INTEGER"
		case dataset.TypeFloat:
			typ = "REAL"
		}
		cols = append(cols, c.Name+" "+typ)
	}
	cols = append(cols, ColumnSource+" TEXT NOT NULL", ColumnLoadTimestamp+" TIMESTAMP NOT NULL")
	return "CREATE TABLE " + string(name) + " (" + strings.Join(cols, ", ") + ")"
}

// newMockDatabase creates a Database with a mocked PostgreSQL connection and
// the production schema names
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.NewGormLogger(zap.NewNop(), gormlogger.Silent),
	})
	require.NoError(t, err)

	tables := TableNames{StagingSchema: "staging", AnalyticsSchema: "analytics", AuditSchema: "audit"}
	return &Database{DB: gormDB, Tables: tables}, mock, mockDB
}

func ptr[T any](v T) *T {
	return &v
}

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

var (
	purchase = time.Date(2017, 10, 2, 10, 56, 33, 0, time.UTC)
	spGeo    = warehouse.GeographyKey{State: "SP", City: "sao paulo", ZipCodePrefix: 3149}
)

// sampleDimensions returns a small consistent dimension set
func sampleDimensions() warehouse.Dimensions {
	return warehouse.Dimensions{
		Time: []warehouse.TimeDim{warehouse.NewTimeDim(purchase)},
		Customers: []warehouse.CustomerDim{
			{CustomerID: "c1", CustomerUniqueID: "u1", City: "sao paulo", State: "SP", ZipCodePrefix: ptr(int64(3149)), IsRepeatCustomer: true, TotalOrders: 2},
			{CustomerID: "c2", CustomerUniqueID: "u1", City: "sao paulo", State: "SP", ZipCodePrefix: ptr(int64(3149)), IsRepeatCustomer: true, TotalOrders: 2},
		},
		Products: []warehouse.ProductDim{
			{ProductID: "p1", CategoryName: "beleza_saude", CategoryNameEnglish: "health_beauty", WeightG: ptr(500.0)},
		},
		Sellers: []warehouse.SellerDim{
			{SellerID: "s1", City: "campinas", State: "SP", ZipCodePrefix: ptr(int64(13023))},
		},
		Geography: []warehouse.GeographyDim{
			{Key: spGeo, Lat: ptr(-23.57), Lng: ptr(-46.58)},
			{Key: warehouse.GeographyKey{State: "SP", City: "campinas", ZipCodePrefix: 13023}},
		},
	}
}

// sampleFact returns a fact referencing the sample dimensions
func sampleFact(orderID, customerID string) warehouse.OrderFact {
	dateKey := warehouse.DateKeyOf(purchase)
	geo := spGeo
	return warehouse.OrderFact{
		OrderID:             orderID,
		Status:              "delivered",
		PurchasedAt:         ptr(purchase),
		OrderTotal:          money("165.00"),
		ItemsCount:          2,
		ItemsTotalPrice:     money("150.00"),
		ItemsTotalFreight:   money("15.00"),
		UniqueSellers:       1,
		DeliveryDays:        ptr(8),
		DeliveryDelayDays:   ptr(-7),
		PaymentTotal:        money("165.00"),
		PaymentTypes:        "credit_card",
		MaxInstallments:     ptr(int64(3)),
		ReviewScore:         ptr(int64(5)),
		ReviewCount:         1,
		MainProductCategory: "health_beauty",
		TimeRef:             &dateKey,
		CustomerRef:         ptr(customerID),
		ProductRef:          ptr("p1"),
		SellerRef:           ptr("s1"),
		GeographyRef:        &geo,
	}
}
