package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/hiltonbrown/ledgerbot/syncer"
	"github.com/hiltonbrown/ledgerbot/xero"
)

var _ syncer.Store = (*SyncStore)(nil)

// SyncStore persists synced accounting entities and checkpoints. Each upsert
// batch runs in one transaction so a partially-written batch never survives
// a mid-batch failure.
type SyncStore struct {
	db *sql.DB
}

func NewSyncStore(db *sql.DB) *SyncStore {
	return &SyncStore{db: db}
}

func (s *SyncStore) UpsertInvoices(ctx context.Context, tenantID string, invoices []xero.Invoice) error {
	const q = `
		INSERT INTO xero_invoices (
			tenant_id, invoice_id, invoice_number, type, status, contact_id,
			contact_name, invoice_date, due_date, sub_total, total_tax, total,
			amount_due, amount_paid, currency_code, updated_utc, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
		ON CONFLICT (tenant_id, invoice_id) DO UPDATE SET
			invoice_number = EXCLUDED.invoice_number,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			contact_id = EXCLUDED.contact_id,
			contact_name = EXCLUDED.contact_name,
			invoice_date = EXCLUDED.invoice_date,
			due_date = EXCLUDED.due_date,
			sub_total = EXCLUDED.sub_total,
			total_tax = EXCLUDED.total_tax,
			total = EXCLUDED.total,
			amount_due = EXCLUDED.amount_due,
			amount_paid = EXCLUDED.amount_paid,
			currency_code = EXCLUDED.currency_code,
			updated_utc = EXCLUDED.updated_utc,
			synced_at = now()`

	return s.inTx(ctx, "invoices", func(tx *sql.Tx) error {
		for _, invoice := range invoices {
			if _, err := tx.ExecContext(ctx, q,
				tenantID,
				invoice.InvoiceID,
				invoice.InvoiceNumber,
				invoice.Type,
				invoice.Status,
				invoice.Contact.ContactID,
				invoice.Contact.Name,
				nullTime(invoice.Date.Time),
				nullTime(invoice.DueDate.Time),
				invoice.SubTotal,
				invoice.TotalTax,
				invoice.Total,
				invoice.AmountDue,
				invoice.AmountPaid,
				invoice.CurrencyCode,
				nullTime(invoice.UpdatedDate.Time),
			); err != nil {
				return errors.Wrapf(err, "upserting invoice %s", invoice.InvoiceID)
			}
		}
		return nil
	})
}

func (s *SyncStore) UpsertContacts(ctx context.Context, tenantID string, contacts []xero.Contact) error {
	const q = `
		INSERT INTO xero_contacts (
			tenant_id, contact_id, name, first_name, last_name, email_address,
			contact_status, updated_utc, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (tenant_id, contact_id) DO UPDATE SET
			name = EXCLUDED.name,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email_address = EXCLUDED.email_address,
			contact_status = EXCLUDED.contact_status,
			updated_utc = EXCLUDED.updated_utc,
			synced_at = now()`

	return s.inTx(ctx, "contacts", func(tx *sql.Tx) error {
		for _, contact := range contacts {
			if _, err := tx.ExecContext(ctx, q,
				tenantID,
				contact.ContactID,
				contact.Name,
				contact.FirstName,
				contact.LastName,
				contact.EmailAddress,
				contact.ContactStatus,
				nullTime(contact.UpdatedDate.Time),
			); err != nil {
				return errors.Wrapf(err, "upserting contact %s", contact.ContactID)
			}
		}
		return nil
	})
}

func (s *SyncStore) UpsertPayments(ctx context.Context, tenantID string, payments []xero.Payment) error {
	const q = `
		INSERT INTO xero_payments (
			tenant_id, payment_id, invoice_id, payment_date, amount, reference,
			status, payment_type, updated_utc, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (tenant_id, payment_id) DO UPDATE SET
			invoice_id = EXCLUDED.invoice_id,
			payment_date = EXCLUDED.payment_date,
			amount = EXCLUDED.amount,
			reference = EXCLUDED.reference,
			status = EXCLUDED.status,
			payment_type = EXCLUDED.payment_type,
			updated_utc = EXCLUDED.updated_utc,
			synced_at = now()`

	return s.inTx(ctx, "payments", func(tx *sql.Tx) error {
		for _, payment := range payments {
			if _, err := tx.ExecContext(ctx, q,
				tenantID,
				payment.PaymentID,
				payment.Invoice.InvoiceID,
				nullTime(payment.Date.Time),
				payment.Amount,
				payment.Reference,
				payment.Status,
				payment.PaymentType,
				nullTime(payment.UpdatedDate.Time),
			); err != nil {
				return errors.Wrapf(err, "upserting payment %s", payment.PaymentID)
			}
		}
		return nil
	})
}

func (s *SyncStore) UpsertCreditNotes(ctx context.Context, tenantID string, creditNotes []xero.CreditNote) error {
	const q = `
		INSERT INTO xero_credit_notes (
			tenant_id, credit_note_id, credit_note_number, type, contact_id,
			contact_name, note_date, status, total, remaining_credit,
			updated_utc, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (tenant_id, credit_note_id) DO UPDATE SET
			credit_note_number = EXCLUDED.credit_note_number,
			type = EXCLUDED.type,
			contact_id = EXCLUDED.contact_id,
			contact_name = EXCLUDED.contact_name,
			note_date = EXCLUDED.note_date,
			status = EXCLUDED.status,
			total = EXCLUDED.total,
			remaining_credit = EXCLUDED.remaining_credit,
			updated_utc = EXCLUDED.updated_utc,
			synced_at = now()`

	return s.inTx(ctx, "credit notes", func(tx *sql.Tx) error {
		for _, creditNote := range creditNotes {
			if _, err := tx.ExecContext(ctx, q,
				tenantID,
				creditNote.CreditNoteID,
				creditNote.CreditNoteNumber,
				creditNote.Type,
				creditNote.Contact.ContactID,
				creditNote.Contact.Name,
				nullTime(creditNote.Date.Time),
				creditNote.Status,
				creditNote.Total,
				creditNote.RemainingCredit,
				nullTime(creditNote.UpdatedDate.Time),
			); err != nil {
				return errors.Wrapf(err, "upserting credit note %s", creditNote.CreditNoteID)
			}
		}
		return nil
	})
}

func (s *SyncStore) LastSyncedAt(ctx context.Context, tenantID string, entity syncer.EntityType) (*time.Time, error) {
	const q = `
		SELECT last_synced_at
		FROM sync_checkpoints
		WHERE tenant_id = $1 AND entity_type = $2`

	var at time.Time
	err := s.db.QueryRowContext(ctx, q, tenantID, entity).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s checkpoint", entity)
	}

	return &at, nil
}

func (s *SyncStore) SetLastSyncedAt(ctx context.Context, tenantID string, entity syncer.EntityType, at time.Time) error {
	const q = `
		INSERT INTO sync_checkpoints (tenant_id, entity_type, last_synced_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, entity_type) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = now()`

	if _, err := s.db.ExecContext(ctx, q, tenantID, entity, at); err != nil {
		return errors.Wrapf(err, "advancing %s checkpoint", entity)
	}

	return nil
}

func (s *SyncStore) inTx(ctx context.Context, label string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "starting %s transaction", label)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "committing %s transaction", label)
	}

	return nil
}
