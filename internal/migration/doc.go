// Package migration upgrades a legacy single-tenant installation to the
// multi-tenant schema, exactly once.
//
// # State Detection
//
// The engine never consults configuration to decide whether to run; it
// inspects the data. No legacy users and no tenants means a fresh install,
// legacy users without tenants means migration is needed, and any existing
// tenant means the migration already happened.
//
// # Transform
//
// Migrate derives a default tenant and re-parents every legacy user,
// conversation, and settings row under it. Original row IDs are preserved so
// references held outside this subsystem stay valid. The first legacy user
// (when configured) and any user carrying the legacy admin flag become
// admins; everyone else becomes a regular user. Settings rows without an
// owner become tenant-wide.
//
// The entire transform commits in a single store transaction. There is no
// partially-migrated state: a crash mid-way leaves zero tenants, and the next
// startup retries cleanly.
//
// # Safety
//
// Run snapshots all legacy rows into an in-memory backup before migrating and
// re-counts each entity type afterwards. A count mismatch marks the run
// failed so operators see it, even though the transaction itself committed.
//
// Fresh installs skip the transform and instead seed the default tenant with
// the configured super_admin, admin, and user accounts.
package migration
