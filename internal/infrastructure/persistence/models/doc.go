// Package models contains the GORM persistence models of the engine's tables.
// Domain types stay free of ORM tags; every model converts to and from its
// domain counterpart with ToDomain and a ...FromDomain constructor.
//
// Layout:
//   - base.go: shared timestamp columns and the AutoMigrate list
//   - reference.go: countries, VAT, tax categories, fees, rules, exchange rates
//   - catalog.go: brands, EANs, ASINs, SKUs, junctions and cost history
//   - inventory.go: the ledger journal and marketplace stock snapshots
//   - pricing.go: the latest priced offer per SKU and country
package models
