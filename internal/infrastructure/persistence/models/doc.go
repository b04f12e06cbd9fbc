// Package models contains GORM persistence models for the analytics star
// schema and the run history. They are kept separate from the warehouse
// domain types so the domain stays free of ORM tags.
//
// Structure:
//   - analytics.go: dimension models (dim_time, dim_customers, dim_products,
//     dim_sellers, dim_geography) and their domain mappers
//   - fact.go: the fact_orders model
//   - run.go: the etl_runs audit model
//
// Table names are unqualified; repositories qualify them with the
// configured schema.
package models
