package fiscal

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"hash"
)

// Signer firma la carga canónica de una transacción TSE y expone la clave
// pública de verificación en base64. La identidad criptográfica (clave +
// serial) es constante para toda la vida de una sesión.
type Signer interface {
	// Sign retorna la firma en base64 estándar.
	Sign(payload []byte) (string, error)
	// PublicKeyBase64 retorna la clave pública de verificación (DER PKIX, base64).
	PublicKeyBase64() string
	// Algorithm retorna el identificador del algoritmo (lista cerrada).
	Algorithm() string
}

// NewSigner genera material de clave nuevo para el algoritmo dado y retorna el
// firmador junto con el material serializado (para persistir en la sesión).
func NewSigner(algorithm string) (Signer, []byte, error) {
	switch algorithm {
	case AlgorithmHMACSHA256:
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, nil, fmt.Errorf("fiscal: generar secreto HMAC: %w", err)
		}
		s, err := signerFromHMACSecret(secret)
		return s, secret, err
	case AlgorithmECDSASHA256, AlgorithmECDSASHA384:
		curve := elliptic.P256()
		if algorithm == AlgorithmECDSASHA384 {
			curve = elliptic.P384()
		}
		priv, err := ecdsa.GenerateKey(curve, rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("fiscal: generar clave EC: %w", err)
		}
		der, err := x509.MarshalECPrivateKey(priv)
		if err != nil {
			return nil, nil, fmt.Errorf("fiscal: serializar clave EC: %w", err)
		}
		s, err := newECDSASigner(algorithm, priv)
		return s, der, err
	}
	_, err := ParseAlgorithm(algorithm)
	return nil, nil, err
}

// SignerFromKey rehidrata un firmador desde el material persistido de la sesión.
func SignerFromKey(algorithm string, keyMaterial []byte) (Signer, error) {
	switch algorithm {
	case AlgorithmHMACSHA256:
		return signerFromHMACSecret(keyMaterial)
	case AlgorithmECDSASHA256, AlgorithmECDSASHA384:
		priv, err := x509.ParseECPrivateKey(keyMaterial)
		if err != nil {
			return nil, fmt.Errorf("fiscal: parsear clave EC: %w", err)
		}
		return newECDSASigner(algorithm, priv)
	}
	_, err := ParseAlgorithm(algorithm)
	return nil, err
}

// ── HMAC-SHA256 ───────────────────────────────────────────────────────────────

type hmacSigner struct {
	secret []byte
	pubB64 string
}

func signerFromHMACSecret(secret []byte) (*hmacSigner, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("fiscal: secreto HMAC vacío")
	}
	// HMAC no tiene clave pública real; se publica el SHA-256 del secreto como
	// identificador estable de verificación del TSE simulado.
	digest := sha256.Sum256(secret)
	return &hmacSigner{
		secret: secret,
		pubB64: base64.StdEncoding.EncodeToString(digest[:]),
	}, nil
}

func (s *hmacSigner) Sign(payload []byte) (string, error) {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (s *hmacSigner) PublicKeyBase64() string { return s.pubB64 }
func (s *hmacSigner) Algorithm() string       { return AlgorithmHMACSHA256 }

// ── ecdsa-plain (BSI TR-03111: firma cruda r||s, sin envoltura ASN.1) ─────────

type ecdsaSigner struct {
	algorithm string
	priv      *ecdsa.PrivateKey
	pubB64    string
}

func newECDSASigner(algorithm string, priv *ecdsa.PrivateKey) (*ecdsaSigner, error) {
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("fiscal: serializar clave pública: %w", err)
	}
	return &ecdsaSigner{
		algorithm: algorithm,
		priv:      priv,
		pubB64:    base64.StdEncoding.EncodeToString(pubDER),
	}, nil
}

func (s *ecdsaSigner) Sign(payload []byte) (string, error) {
	var h hash.Hash
	if s.algorithm == AlgorithmECDSASHA384 {
		h = sha512.New384()
	} else {
		h = sha256.New()
	}
	h.Write(payload)

	r, sv, err := ecdsa.Sign(rand.Reader, s.priv, h.Sum(nil))
	if err != nil {
		return "", fmt.Errorf("fiscal: firmar: %w", err)
	}
	// Formato plain: r||s, cada uno alineado al tamaño del orden de la curva.
	size := (s.priv.Curve.Params().BitSize + 7) / 8
	sig := make([]byte, 2*size)
	r.FillBytes(sig[:size])
	sv.FillBytes(sig[size:])
	return base64.StdEncoding.EncodeToString(sig), nil
}

func (s *ecdsaSigner) PublicKeyBase64() string { return s.pubB64 }
func (s *ecdsaSigner) Algorithm() string       { return s.algorithm }
