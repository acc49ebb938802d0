// Package fiscal implementa las primitivas puras del motor fiscal: algoritmos
// de firma permitidos, serial de certificado del TSE simulado y el formato de
// carga QR versionado. Sin I/O ni estado: todo lo durable vive en los
// repositorios.
package fiscal

import (
	"fmt"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
)

// Identificadores de algoritmo de firma (lista cerrada). Un identificador
// desconocido se rechaza al cargar la configuración, nunca al momento de firmar.
const (
	AlgorithmHMACSHA256  = "HMAC-SHA256"
	AlgorithmECDSASHA256 = "ecdsa-plain-SHA256"
	AlgorithmECDSASHA384 = "ecdsa-plain-SHA384"
)

// ParseAlgorithm valida el identificador contra la lista cerrada.
func ParseAlgorithm(s string) (string, error) {
	switch s {
	case AlgorithmHMACSHA256, AlgorithmECDSASHA256, AlgorithmECDSASHA384:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownAlgorithm, s)
}
