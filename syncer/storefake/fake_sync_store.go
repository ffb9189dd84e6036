package storefake

import (
	"context"
	"sync"
	"time"

	"github.com/hiltonbrown/ledgerbot/syncer"
	"github.com/hiltonbrown/ledgerbot/xero"
)

var _ syncer.Store = (*FakeSyncStore)(nil)

// FakeSyncStore keeps synced entities and checkpoints in memory. Upserts can
// be made to fail per entity type via FailUpsert to exercise partial-failure
// paths.
type FakeSyncStore struct {
	lock sync.Mutex

	Invoices    map[string]xero.Invoice
	Contacts    map[string]xero.Contact
	Payments    map[string]xero.Payment
	CreditNotes map[string]xero.CreditNote

	FailUpsert map[syncer.EntityType]error

	// UpsertCalls counts upsert invocations per entity type, one per batch.
	UpsertCalls map[syncer.EntityType]int

	checkpoints map[checkpointKey]time.Time
}

type checkpointKey struct {
	tenantID string
	entity   syncer.EntityType
}

func NewFakeSyncStore() *FakeSyncStore {
	return &FakeSyncStore{
		Invoices:    make(map[string]xero.Invoice),
		Contacts:    make(map[string]xero.Contact),
		Payments:    make(map[string]xero.Payment),
		CreditNotes: make(map[string]xero.CreditNote),
		FailUpsert:  make(map[syncer.EntityType]error),
		UpsertCalls: make(map[syncer.EntityType]int),
		checkpoints: make(map[checkpointKey]time.Time),
	}
}

func (s *FakeSyncStore) UpsertInvoices(_ context.Context, _ string, invoices []xero.Invoice) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.UpsertCalls[syncer.EntityInvoices]++
	if err := s.FailUpsert[syncer.EntityInvoices]; err != nil {
		return err
	}
	for _, invoice := range invoices {
		s.Invoices[invoice.InvoiceID] = invoice
	}
	return nil
}

func (s *FakeSyncStore) UpsertContacts(_ context.Context, _ string, contacts []xero.Contact) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.UpsertCalls[syncer.EntityContacts]++
	if err := s.FailUpsert[syncer.EntityContacts]; err != nil {
		return err
	}
	for _, contact := range contacts {
		s.Contacts[contact.ContactID] = contact
	}
	return nil
}

func (s *FakeSyncStore) UpsertPayments(_ context.Context, _ string, payments []xero.Payment) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.UpsertCalls[syncer.EntityPayments]++
	if err := s.FailUpsert[syncer.EntityPayments]; err != nil {
		return err
	}
	for _, payment := range payments {
		s.Payments[payment.PaymentID] = payment
	}
	return nil
}

func (s *FakeSyncStore) UpsertCreditNotes(_ context.Context, _ string, creditNotes []xero.CreditNote) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.UpsertCalls[syncer.EntityCreditNotes]++
	if err := s.FailUpsert[syncer.EntityCreditNotes]; err != nil {
		return err
	}
	for _, creditNote := range creditNotes {
		s.CreditNotes[creditNote.CreditNoteID] = creditNote
	}
	return nil
}

func (s *FakeSyncStore) LastSyncedAt(_ context.Context, tenantID string, entity syncer.EntityType) (*time.Time, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	at, ok := s.checkpoints[checkpointKey{tenantID, entity}]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

func (s *FakeSyncStore) SetLastSyncedAt(_ context.Context, tenantID string, entity syncer.EntityType, at time.Time) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.checkpoints[checkpointKey{tenantID, entity}] = at
	return nil
}
