// Package catalogsync contains the catalog synchronization bounded context.
// It decides which storefront fields have drifted from the ERP and must be rewritten.
//
// Key concepts:
//   - SourceRecord: merged ERP truth for one barcode (price, discount, stock, cost)
//   - RemoteProduct / RemoteVariant: the storefront's current catalog state
//   - PriceChange, StatusChange, CostChange: field-level deltas to apply remotely
//   - BulkOperation: handle of an asynchronous bulk mutation accepted by the storefront
//   - SyncRun: one orchestrated synchronization attempt, kept for run history
//
// Design Pattern: Ports & Adapters
//   - Ports (SourceReader, CatalogReader, BulkSubmitter, RunRepository) are defined here
//   - Adapters live in infrastructure/erp, infrastructure/shopify and infrastructure/persistence
//
// Everything in this package is free of I/O. Reconciliation is deterministic for fixed input.
package catalogsync
