// Package store provides persistent storage for the ledger using SQLite.
//
// # Architecture
//
// Work is scoped into SQL transactions through two entry points on Store:
//
//   - Update: runs a function inside a write transaction that commits only when
//     the function returns nil. Any error discards every write the function made.
//   - View: runs a function against a consistent read snapshot.
//
// The function receives a Tx, which groups the per-entity interfaces:
//
//   - UserStore: registered principals, usernames, roles, revocation
//   - InviteStore: invite token digests and their single consumption
//   - RegistryStore: category and payment method name sets
//   - TransactionStore: ledger entries and filtered listing
//   - BudgetStore: per-category limits
//   - ProfileStore: user profiles and notification settings
//   - AuditStore: the administrative audit trail
//
// SQLiteStore implements Store; its transactions implement Tx.
//
// # Data Models
//
//   - User: principal, unique username, Role (editor or admin), joined/revoked times
//   - Invite: BLAKE2b digest of a token, issuer, expiry, used marker
//   - Transaction: AUTOINCREMENT id, owner, date, category, payment method,
//     amount in minor units, optional notes
//   - Budget: category key and non-negative limit
//   - UserProfile, NotificationSettings: one row per principal
//   - AuditEntry: who did what to which resource
//
// # Timestamps
//
// Every timestamp column holds integer nanoseconds since the Unix epoch.
//
// # SQLite Configuration
//
// Pragmas are passed in the DSN so that every pooled connection applies them:
//
//	_pragma=foreign_keys(1)
//	_pragma=busy_timeout(5000)
//	_pragma=journal_mode(WAL)   (file databases only)
//
// The schema lives in migrations/ and is applied with golang-migrate at open.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/var/lib/ledger/ledger.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	err = s.Update(ctx, func(tx store.Tx) error {
//	    _, err := tx.InsertTransaction(ctx, &store.Transaction{...})
//	    return err
//	})
package store
