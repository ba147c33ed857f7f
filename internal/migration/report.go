// ABOUTME: Report types emitted by the migration engine
// ABOUTME: Status detection, backup snapshot, migration and verification results

package migration

import (
	"time"

	"github.com/2389/hearth/internal/store"
)

// RunStatus is the outcome of a migration run.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusSkipped RunStatus = "skipped"
	StatusFailed  RunStatus = "failed"
)

// StatusCounts holds the row counts that drive state detection.
type StatusCounts struct {
	Tenants     int
	TenantUsers int
	LegacyUsers int
}

// StatusReport describes the detected migration state.
type StatusReport struct {
	State   State
	Message string
	Counts  StatusCounts
}

// Backup is an in-memory snapshot of all legacy rows, taken before the
// transform runs.
type Backup struct {
	Users         []*store.LegacyUser
	Conversations []*store.LegacyConversation
	Settings      []*store.LegacySettings
	Timestamp     time.Time
}

// Counts holds per-entity migrated row counts.
type Counts struct {
	Users         int
	Conversations int
	Settings      int
}

// TenantSummary identifies the tenant a run created.
type TenantSummary struct {
	ID     string
	Name   string
	Domain string
}

// MigratedUser records how one legacy user was mapped.
type MigratedUser struct {
	ID       string
	Username string
	Role     store.UserRole
}

// MigratedRow records how one legacy conversation or settings row was mapped.
type MigratedRow struct {
	ID         string
	UserID     string
	TenantWide bool
}

// Details lists every row a run touched, for operator review.
type Details struct {
	Users         []MigratedUser
	Conversations []MigratedRow
	Settings      []MigratedRow
}

// Report is the result of a Migrate, Seed, or Run call.
type Report struct {
	Status   RunStatus
	Message  string
	Tenant   *TenantSummary
	Migrated Counts
	Details  Details
	BackedUp *Backup
	Verify   *VerifyReport
}

// EntityCheck compares legacy and migrated counts for one entity type.
type EntityCheck struct {
	Original int
	Migrated int
	Match    bool
}

// VerifyReport holds the per-entity count comparison after a migration.
type VerifyReport struct {
	MigrationComplete bool
	TenantsCreated    int
	Users             EntityCheck
	Conversations     EntityCheck
	Settings          EntityCheck
}

// AllMatch reports whether every entity count survived the migration intact.
func (r *VerifyReport) AllMatch() bool {
	return r.Users.Match && r.Conversations.Match && r.Settings.Match
}
