package entity

import "time"

// Estados de la sesión de firma TSE (protocolo start/finish).
const (
	TseSessionUninitialized = "UNINITIALIZED"
	TseSessionInitialized   = "INITIALIZED"
)

// TseSession es la especialización de dispositivo fiscal para jurisdicciones que
// exigen el sobre start/finish (KassenSichV, Alemania). Mantiene sus propios
// contadores, independientes de los del FiscalDevice genérico: son espacios de
// numeración distintos y no se reconcilian.
type TseSession struct {
	ID       string
	OrgID    string
	SiteID   string
	ClientID string
	Status   string

	// Identidad criptográfica fija para toda la vida de la sesión: el serial del
	// certificado y la clave pública no cambian entre llamadas.
	Algorithm  string
	CertSerial string
	PublicKey  string // base64

	// Material de clave del TSE simulado (secreto HMAC o clave privada EC en DER).
	// Un TSE real lo guardaría en hardware; el contrato expuesto es el mismo.
	KeyMaterial []byte

	TransactionCounter uint64
	SignatureCounter   uint64

	LastSelfTest *SelfTestResult

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TseTransaction es el sobre de una transacción start/finish: el número lo emite
// Start y el par (número, contador de firma) se asigna exactamente una vez.
type TseTransaction struct {
	SessionID   string
	Number      uint64
	ProcessType string
	ProcessData string

	StartedAt  time.Time
	FinishedAt *time.Time

	// Poblado solo en Finish.
	SignatureCounter uint64
	Signature        string // base64
	QRCodeData       string
}

// Finished indica si el sobre ya fue cerrado por FinishTransaction.
func (t *TseTransaction) Finished() bool {
	return t.FinishedAt != nil
}
