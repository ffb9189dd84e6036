package syncer

// EntityType names one synchronised accounting entity. Checkpoints are kept
// per (tenant, entity type).
type EntityType string

const (
	EntityInvoices    EntityType = "invoices"
	EntityContacts    EntityType = "contacts"
	EntityPayments    EntityType = "payments"
	EntityCreditNotes EntityType = "credit_notes"
)

// AllEntityTypes returns the sync order. Contacts come first so later
// entities can resolve contact references locally.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityContacts, EntityInvoices, EntityPayments, EntityCreditNotes}
}
