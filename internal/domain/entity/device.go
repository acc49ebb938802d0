package entity

import "time"

// Tipos de dispositivo fiscal soportados (conjunto cerrado de proveedores).
const (
	DeviceTypeCloudTSE    = "CLOUD_TSE"           // TSE en la nube (ej. fiskaly, Alemania)
	DeviceTypeHardwareTSE = "HARDWARE_TSE"        // TSE físico (ej. Swissbit USB)
	DeviceTypeRKSVUnit    = "RKSV_SIGNATURE_UNIT" // Unidad de firma RKSV (Austria)
	DeviceTypeSimulated   = "SIMULATED"           // TSE simulado de la plataforma (dev/QA)
)

// ValidDeviceType verifica que el tipo pertenezca al conjunto cerrado.
func ValidDeviceType(t string) bool {
	switch t {
	case DeviceTypeCloudTSE, DeviceTypeHardwareTSE, DeviceTypeRKSVUnit, DeviceTypeSimulated:
		return true
	}
	return false
}

// Estados del dispositivo: REGISTERED → ACTIVE ⇄ INACTIVE.
// Un dispositivo nunca se destruye; el decomiso lo deja INACTIVE para auditoría.
const (
	DeviceStatusRegistered = "REGISTERED"
	DeviceStatusActive     = "ACTIVE"
	DeviceStatusInactive   = "INACTIVE"
)

// SelfTestResult resultado del auto-test del dispositivo. Un certificado vencido
// es una condición operativa esperada, no un error de programación: se reporta
// como Passed=false con mensaje, nunca como error de la llamada.
type SelfTestResult struct {
	Passed       bool      `json:"passed"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// FiscalDevice representa cualquier endpoint de firma registrado (nube o hardware
// local) dentro de un (org, site). Es dueño de dos contadores monótonos sin
// huecos cuyo valor vive en almacenamiento durable, nunca solo en memoria.
type FiscalDevice struct {
	ID           string
	OrgID        string
	SiteID       string
	Type         string
	SerialNumber string
	Status       string

	// Material de certificado (solo metadatos; el firmado real vive en el proveedor).
	PublicKey     string // base64
	CertSerial    string
	CertExpiresAt *time.Time

	// Contadores de 64 bits, inician en 0 y solo avanzan de a 1.
	// La copia en memoria es una caché: la fuente de verdad es el repositorio.
	TransactionCounter uint64
	SignatureCounter   uint64

	LastSelfTest *SelfTestResult

	// Auditoría de activación/decomiso.
	ActivatedBy        string
	TaxRegistrationRef string
	DeactivatedBy      string
	DeactivationReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RunSelfTest evalúa el estado del certificado contra `now` y registra el
// resultado en el snapshot. Falla si la expiración es anterior o igual a now.
func (d *FiscalDevice) RunSelfTest(now time.Time) SelfTestResult {
	result := SelfTestResult{Passed: true, CheckedAt: now}
	if d.CertExpiresAt != nil && !d.CertExpiresAt.After(now) {
		result.Passed = false
		result.ErrorMessage = "certificate expired at " + d.CertExpiresAt.UTC().Format(time.RFC3339)
	}
	d.LastSelfTest = &result
	d.UpdatedAt = now
	return result
}
