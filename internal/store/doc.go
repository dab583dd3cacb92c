// Package store provides SQLite-backed persistence for registered queries.
//
// Queries are append-only: the store can create, list and fetch them, but
// never update or delete them. Identifiers are assigned by SQLite with
// AUTOINCREMENT and are never reused, which is what makes caching results by
// query id safe.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// The query store is separate from the dataset queries run against; the
// executor never sees this database.
package store
