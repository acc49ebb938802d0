package fiscal_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/fiscal"
)

// TestBuildQRPayload_FormatoExacto valida el registro delimitado por punto y
// coma con prefijo de versión, campo por campo (los consumidores parsean por
// posición después del token de versión).
func TestBuildQRPayload_FormatoExacto(t *testing.T) {
	start, err := time.Parse(time.RFC3339, "2024-01-15T12:00:00Z")
	require.NoError(t, err)
	end := start.Add(5 * time.Second)

	qr := fiscal.BuildQRPayload("POS-001", 42, start, end, "Kassenbeleg-V1", "Beleg^10.00^Bar", 99, "Zmlyba1iYXNlNjQ=")

	expected := "V0;POS-001;42;2024-01-15T12:00:00Z;2024-01-15T12:00:05Z;Kassenbeleg-V1;Beleg^10.00^Bar;99;Zmlyba1iYXNlNjQ="
	assert.Equal(t, expected, qr)
}

func TestBuildQRPayload_PrefijoVersion(t *testing.T) {
	qr := fiscal.BuildQRPayload("c", 1, time.Now(), time.Now().Add(time.Second), "pt", "pd", 1, "sig")
	assert.True(t, strings.HasPrefix(qr, "V0;"), "toda carga QR inicia con el token de versión")
}

// TestSignaturePayload_OrdenEstricto verifica el orden de concatenación de la
// cadena a firmar: coincide con el cuerpo del QR sin versión ni firma.
func TestSignaturePayload_OrdenEstricto(t *testing.T) {
	start, err := time.Parse(time.RFC3339, "2024-01-15T12:00:00Z")
	require.NoError(t, err)
	end := start.Add(5 * time.Second)

	payload := fiscal.SignaturePayload("POS-001", 42, start, end, "Kassenbeleg-V1", "datos", 99)
	assert.Equal(t, "POS-001;42;2024-01-15T12:00:00Z;2024-01-15T12:00:05Z;Kassenbeleg-V1;datos;99", string(payload))
}

// TestSignaturePayload_ProcessDataOpaco verifica que processData se incluye
// textual, sin interpretación, aunque contenga separadores propios.
func TestSignaturePayload_ProcessDataOpaco(t *testing.T) {
	raw := `{"orden":"A-17","items":3}`
	payload := fiscal.SignaturePayload("c", 1, time.Unix(0, 0), time.Unix(1, 0), "pt", raw, 1)
	assert.Contains(t, string(payload), raw)
}

// ── Serial de certificado ─────────────────────────────────────────────────────

func TestNewCertSerial_PrefijoEstable(t *testing.T) {
	serial := fiscal.NewCertSerial()
	assert.True(t, strings.HasPrefix(serial, fiscal.CertSerialPrefix))
	assert.Greater(t, len(serial), len(fiscal.CertSerialPrefix), "el sufijo opaco no puede ser vacío")
}

func TestNewCertSerial_SufijoUnico(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := fiscal.NewCertSerial()
		require.False(t, seen[s], "los seriales generados deben ser únicos")
		seen[s] = true
	}
}
