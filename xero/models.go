package xero

// Shapes below cover the accounting entities the sync layer persists. Fields
// not listed here are dropped on decode; the upstream API carries far more
// than bookkeeping workflows need.

type Contact struct {
	ContactID     string `json:"ContactID"`
	Name          string `json:"Name"`
	FirstName     string `json:"FirstName,omitempty"`
	LastName      string `json:"LastName,omitempty"`
	EmailAddress  string `json:"EmailAddress,omitempty"`
	ContactStatus string `json:"ContactStatus,omitempty"`
	UpdatedDate   Date   `json:"UpdatedDateUTC"`
}

type Invoice struct {
	InvoiceID     string  `json:"InvoiceID"`
	InvoiceNumber string  `json:"InvoiceNumber,omitempty"`
	Type          string  `json:"Type"`
	Contact       Contact `json:"Contact"`
	Date          Date    `json:"Date"`
	DueDate       Date    `json:"DueDate"`
	Status        string  `json:"Status"`
	SubTotal      float64 `json:"SubTotal"`
	TotalTax      float64 `json:"TotalTax"`
	Total         float64 `json:"Total"`
	AmountDue     float64 `json:"AmountDue"`
	AmountPaid    float64 `json:"AmountPaid"`
	CurrencyCode  string  `json:"CurrencyCode,omitempty"`
	UpdatedDate   Date    `json:"UpdatedDateUTC"`
}

type Payment struct {
	PaymentID   string  `json:"PaymentID"`
	Invoice     Invoice `json:"Invoice"`
	Date        Date    `json:"Date"`
	Amount      float64 `json:"Amount"`
	Reference   string  `json:"Reference,omitempty"`
	Status      string  `json:"Status"`
	PaymentType string  `json:"PaymentType,omitempty"`
	UpdatedDate Date    `json:"UpdatedDateUTC"`
}

type CreditNote struct {
	CreditNoteID     string  `json:"CreditNoteID"`
	CreditNoteNumber string  `json:"CreditNoteNumber,omitempty"`
	Type             string  `json:"Type"`
	Contact          Contact `json:"Contact"`
	Date             Date    `json:"Date"`
	Status           string  `json:"Status"`
	Total            float64 `json:"Total"`
	RemainingCredit  float64 `json:"RemainingCredit"`
	UpdatedDate      Date    `json:"UpdatedDateUTC"`
}

type invoicesEnvelope struct {
	Invoices []Invoice `json:"Invoices"`
}

type contactsEnvelope struct {
	Contacts []Contact `json:"Contacts"`
}

type paymentsEnvelope struct {
	Payments []Payment `json:"Payments"`
}

type creditNotesEnvelope struct {
	CreditNotes []CreditNote `json:"CreditNotes"`
}
