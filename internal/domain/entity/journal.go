package entity

import "time"

// Taxonomía cerrada de eventos del diario fiscal.
const (
	JournalEventTransactionCreated   = "TRANSACTION_CREATED"
	JournalEventTransactionSigned    = "TRANSACTION_SIGNED"
	JournalEventTransactionVoided    = "TRANSACTION_VOIDED"
	JournalEventDeviceRegistered     = "DEVICE_REGISTERED"
	JournalEventDeviceDecommissioned = "DEVICE_DECOMMISSIONED"
	JournalEventDeviceStatusChanged  = "DEVICE_STATUS_CHANGED"
	JournalEventExportGenerated      = "EXPORT_GENERATED"
	JournalEventSelfTestPerformed    = "SELF_TEST_PERFORMED"
	JournalEventError                = "ERROR"
)

// Severidades de entrada del diario.
const (
	JournalSeverityInfo    = "INFO"
	JournalSeverityWarning = "WARNING"
	JournalSeverityError   = "ERROR"
)

// JournalEntry es una entrada inmutable del diario fiscal. El diario se
// particiona por (org, día calendario); una vez anexada la entrada no existe
// operación pública que la modifique o elimine.
type JournalEntry struct {
	ID            string
	OrgID         string
	Day           string // YYYY-MM-DD, partición del diario
	EventType     string
	Severity      string
	DeviceID      string
	TransactionID string
	ActorID       string
	Details       string
	IPAddress     string
	UserAgent     string

	// Asignado por el servidor al anexar, nunca por el caller. No decreciente
	// dentro de un mismo diario: el orden de anexado es el orden temporal.
	Timestamp time.Time
}
