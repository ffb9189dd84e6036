package syncer

import (
	"context"
	"time"

	"github.com/hiltonbrown/ledgerbot/xero"
)

// Store is the persistence collaborator the orchestrator writes through.
// Upserts must be idempotent on the entity's provider id; re-syncing an
// unchanged window must not duplicate rows.
type Store interface {
	UpsertInvoices(ctx context.Context, tenantID string, invoices []xero.Invoice) error
	UpsertContacts(ctx context.Context, tenantID string, contacts []xero.Contact) error
	UpsertPayments(ctx context.Context, tenantID string, payments []xero.Payment) error
	UpsertCreditNotes(ctx context.Context, tenantID string, creditNotes []xero.CreditNote) error

	// LastSyncedAt returns the checkpoint for the entity type, or nil when
	// the entity has never been synced (meaning: fetch everything).
	LastSyncedAt(ctx context.Context, tenantID string, entity EntityType) (*time.Time, error)

	SetLastSyncedAt(ctx context.Context, tenantID string, entity EntityType, at time.Time) error
}
