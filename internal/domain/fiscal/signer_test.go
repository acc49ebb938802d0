package fiscal_test

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/fiscal"
)

// ──────────────────────────────────────────────────────────────────────────────
// TestHMACSigner_VectorExacto valida que la firma HMAC-SHA256 produce el valor
// exacto esperado para un secreto y una cadena canónica conocidos.
//
// Este test es el "canario en la mina" de la cadena de firmas: si alguien
// modifica inadvertidamente el orden de concatenación, el formato de tiempos o
// la codificación de salida, el test falla de inmediato.
//
// Vector calculado manualmente:
//
//	secreto = "0123456789abcdef0123456789abcdef" (32 bytes ASCII)
//	cadena  = clientID;txNum;inicio;fin;processType;processData;sigCounter
// ──────────────────────────────────────────────────────────────────────────────

const (
	testHMACSecret   = "0123456789abcdef0123456789abcdef"
	testSignatureB64 = "o0azyOpxRAzRIYraYVFrF6vcqYpMaYPqQhSE5dAvmCA="
	testPublicKeyB64 = "PrG9Q5lH63YpmOVmzMLgmceREYsvQFecxPfaK1Bht/k="
	testProcessType  = "Kassenbeleg-V1"
	testProcessData  = "Beleg^75.33_0.00_0.00_0.00_0.00^75.33:Bar"
	testClientID     = "POS-001"
)

func testTimes(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	start, err := time.Parse(time.RFC3339, "2024-01-15T12:00:00Z")
	require.NoError(t, err)
	return start, start.Add(5 * time.Second)
}

func TestHMACSigner_VectorExacto(t *testing.T) {
	signer, err := fiscal.SignerFromKey(fiscal.AlgorithmHMACSHA256, []byte(testHMACSecret))
	require.NoError(t, err)

	start, end := testTimes(t)
	payload := fiscal.SignaturePayload(testClientID, 1, start, end, testProcessType, testProcessData, 1)

	sig, err := signer.Sign(payload)
	require.NoError(t, err)
	assert.Equal(t, testSignatureB64, sig,
		"la firma HMAC-SHA256 debe coincidir exactamente con el vector de referencia")
	assert.Equal(t, testPublicKeyB64, signer.PublicKeyBase64(),
		"la clave de verificación HMAC es el SHA-256 del secreto")
}

// TestHMACSigner_Determinista verifica que firmar dos veces la misma cadena
// produce siempre la misma firma (HMAC es determinista).
func TestHMACSigner_Determinista(t *testing.T) {
	signer, err := fiscal.SignerFromKey(fiscal.AlgorithmHMACSHA256, []byte(testHMACSecret))
	require.NoError(t, err)

	sig1, err1 := signer.Sign([]byte("misma-cadena"))
	sig2, err2 := signer.Sign([]byte("misma-cadena"))
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, sig1, sig2)
}

// TestHMACSigner_CadenasDistintas verifica sensibilidad al input: contadores de
// firma distintos producen firmas distintas (sin replay).
func TestHMACSigner_CadenasDistintas(t *testing.T) {
	signer, err := fiscal.SignerFromKey(fiscal.AlgorithmHMACSHA256, []byte(testHMACSecret))
	require.NoError(t, err)

	start, end := testTimes(t)
	sig1, _ := signer.Sign(fiscal.SignaturePayload(testClientID, 1, start, end, testProcessType, testProcessData, 1))
	sig2, _ := signer.Sign(fiscal.SignaturePayload(testClientID, 1, start, end, testProcessType, testProcessData, 2))

	assert.NotEqual(t, sig1, sig2,
		"contadores de firma distintos deben producir firmas distintas")
}

// TestECDSASigner_FirmaVerificable genera una clave P-256, firma y verifica la
// firma cruda r||s contra la clave pública publicada (formato ecdsa-plain).
func TestECDSASigner_FirmaVerificable(t *testing.T) {
	signer, keyMaterial, err := fiscal.NewSigner(fiscal.AlgorithmECDSASHA256)
	require.NoError(t, err)
	require.NotEmpty(t, keyMaterial)

	payload := []byte("carga-canonica-de-prueba")
	sigB64, err := signer.Sign(payload)
	require.NoError(t, err)

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	require.NoError(t, err)
	require.Len(t, sig, 64, "P-256 plain: r||s de 32 bytes cada uno")

	pubDER, err := base64.StdEncoding.DecodeString(signer.PublicKeyBase64())
	require.NoError(t, err)
	pubAny, err := x509.ParsePKIXPublicKey(pubDER)
	require.NoError(t, err)
	pub, ok := pubAny.(*ecdsa.PublicKey)
	require.True(t, ok)

	digest := sha256.Sum256(payload)
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	assert.True(t, ecdsa.Verify(pub, digest[:], r, s),
		"la firma plain debe verificar contra la clave pública de la sesión")
}

// TestECDSASigner_Rehidratacion verifica que SignerFromKey reconstruye la misma
// identidad: la clave pública no cambia entre la sesión original y la rehidratada.
func TestECDSASigner_Rehidratacion(t *testing.T) {
	original, keyMaterial, err := fiscal.NewSigner(fiscal.AlgorithmECDSASHA384)
	require.NoError(t, err)

	rehydrated, err := fiscal.SignerFromKey(fiscal.AlgorithmECDSASHA384, keyMaterial)
	require.NoError(t, err)

	assert.Equal(t, original.PublicKeyBase64(), rehydrated.PublicKeyBase64(),
		"la clave pública debe ser constante para la identidad de la sesión")
	assert.Equal(t, fiscal.AlgorithmECDSASHA384, rehydrated.Algorithm())
}

// ── Lista cerrada de algoritmos ───────────────────────────────────────────────

func TestParseAlgorithm_ListaCerrada(t *testing.T) {
	for _, alg := range []string{
		fiscal.AlgorithmHMACSHA256,
		fiscal.AlgorithmECDSASHA256,
		fiscal.AlgorithmECDSASHA384,
	} {
		got, err := fiscal.ParseAlgorithm(alg)
		require.NoError(t, err)
		assert.Equal(t, alg, got)
	}
}

func TestParseAlgorithm_DesconocidoRechazado(t *testing.T) {
	_, err := fiscal.ParseAlgorithm("rsa-pss-SHA512")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownAlgorithm,
		"un identificador fuera de la lista se rechaza en configuración, no al firmar")
}

func TestNewSigner_AlgoritmoDesconocido(t *testing.T) {
	_, _, err := fiscal.NewSigner("md5")
	assert.ErrorIs(t, err, domain.ErrUnknownAlgorithm)
}
