package fiscal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Versión del formato de carga QR. Los consumidores (impresoras de recibos,
// apps de la autoridad fiscal) parsean por posición después del token de versión.
const QRVersion = "V0"

// CertSerialPrefix identifica los certificados emitidos por el TSE simulado de
// la plataforma. Estable: los auditores lo reconocen en los exports.
const CertSerialPrefix = "DVTSE-SIM-"

// Formato de tiempo para la carga QR y la cadena a firmar. Con precisión de
// nanosegundos para que start < end se cumpla estrictamente incluso dentro del
// mismo segundo.
const qrTimeFormat = time.RFC3339Nano

// NewCertSerial genera el serial de certificado: prefijo estable + sufijo único
// opaco. Constante para toda la vida de una sesión/dispositivo.
func NewCertSerial() string {
	return CertSerialPrefix + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// SignaturePayload construye la cadena canónica a firmar, en el orden estricto:
// clientID + número de transacción + inicio + fin + tipo de proceso + datos de
// proceso + contador de firma, separados por punto y coma. processData se
// incluye textual: el motor no asume nada sobre su estructura.
func SignaturePayload(clientID string, txNumber uint64, start, end time.Time, processType, processData string, sigCounter uint64) []byte {
	parts := []string{
		clientID,
		strconv.FormatUint(txNumber, 10),
		start.UTC().Format(qrTimeFormat),
		end.UTC().Format(qrTimeFormat),
		processType,
		processData,
		strconv.FormatUint(sigCounter, 10),
	}
	return []byte(strings.Join(parts, ";"))
}

// BuildQRPayload arma el registro delimitado por punto y coma con prefijo de
// versión:
//
//	V0;<clientId>;<txNumber>;<startISO>;<endISO>;<processType>;<processData>;<sigCounter>;<signatureB64>
func BuildQRPayload(clientID string, txNumber uint64, start, end time.Time, processType, processData string, sigCounter uint64, signatureB64 string) string {
	return fmt.Sprintf("%s;%s;%d;%s;%s;%s;%s;%d;%s",
		QRVersion,
		clientID,
		txNumber,
		start.UTC().Format(qrTimeFormat),
		end.UTC().Format(qrTimeFormat),
		processType,
		processData,
		sigCounter,
		signatureB64,
	)
}
