// Package models contains the gorm persistence models behind the rental
// store. Domain types stay free of ORM tags; each model converts with
// ToDomain and FromDomain.
//
//   - base.go: identity, audit and tenant columns
//   - rental.go: rentals, rental_items, rental_payments
//   - ledger.go: financial_titles, bank_accounts, financial_movements
//   - outbox.go: outbox_events for event delivery
package models
