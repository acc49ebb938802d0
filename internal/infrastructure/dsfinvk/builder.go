// Paquete dsfinvk arma el paquete de exportación de auditoría estilo DSFinV-K:
// transactions.csv + index.xml + manifest.xml empaquetados en un ZIP por job.
package dsfinvk

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
	"golang.org/x/text/encoding/charmap"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/reporting"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
)

// Codificaciones soportadas para el CSV. Las herramientas de auditoría alemanas
// más antiguas solo aceptan ISO 8859-15.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin9 = "iso-8859-15"
)

const (
	csvFilename      = "transactions.csv"
	indexFilename    = "index.xml"
	manifestFilename = "manifest.xml"
)

var _ reporting.ArchiveBuilder = (*Builder)(nil)

// Builder construye el paquete en disco bajo un directorio de exportación.
type Builder struct {
	dir      string
	encoding string
}

// NewBuilder construye el builder. encoding viene validado desde la configuración.
func NewBuilder(dir, encoding string) *Builder {
	return &Builder{dir: dir, encoding: encoding}
}

// Build implementa reporting.ArchiveBuilder: escribe <exportID>.zip en el
// directorio de exportación y devuelve su ruta y el conteo empaquetado.
func (b *Builder) Build(_ context.Context, export *entity.AuditExport, txs []*entity.FiscalTransaction) (*reporting.ExportArchive, error) {
	csvBytes, err := b.transactionsCSV(txs)
	if err != nil {
		return nil, err
	}
	indexBytes, err := indexXML(export, csvBytes)
	if err != nil {
		return nil, err
	}
	manifestBytes, err := manifestXML(export, map[string][]byte{
		csvFilename:   csvBytes,
		indexFilename: indexBytes,
	})
	if err != nil {
		return nil, err
	}

	zipBytes, err := compressArchive(map[string][]byte{
		csvFilename:      csvBytes,
		indexFilename:    indexBytes,
		manifestFilename: manifestBytes,
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return nil, fmt.Errorf("dsfinvk: crear directorio %s: %w", b.dir, err)
	}
	path := filepath.Join(b.dir, export.ID+".zip")
	if err := os.WriteFile(path, zipBytes, 0o644); err != nil {
		return nil, fmt.Errorf("dsfinvk: escribir %s: %w", path, err)
	}

	return &reporting.ExportArchive{FilePath: path, TransactionCount: len(txs)}, nil
}

// transactionsCSV serializa las transacciones firmadas con separador ';' (el
// formato DSFinV-K usa punto y coma) y la codificación configurada.
func (b *Builder) transactionsCSV(txs []*entity.FiscalTransaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	header := []string{
		"TRANSACTION_ID", "SITE_ID", "DEVICE_ID", "TYPE", "PROCESS_TYPE",
		"GROSS_AMOUNT", "SIGNATURE_COUNTER", "CERT_SERIAL", "SIGNATURE", "SIGNED_AT",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("dsfinvk: csv header: %w", err)
	}
	for _, tx := range txs {
		signedAt := ""
		if tx.SignedAt != nil {
			signedAt = tx.SignedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			tx.ID, tx.SiteID, tx.DeviceID, tx.Type, tx.ProcessType,
			tx.GrossAmount.StringFixed(2),
			fmt.Sprintf("%d", tx.SignatureCounter),
			tx.CertSerial, tx.Signature, signedAt,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("dsfinvk: csv fila %s: %w", tx.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("dsfinvk: csv flush: %w", err)
	}

	if b.encoding == EncodingLatin9 {
		encoded, err := charmap.ISO8859_15.NewEncoder().Bytes(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("dsfinvk: codificar ISO 8859-15: %w", err)
		}
		return encoded, nil
	}
	return buf.Bytes(), nil
}

// indexXML describe el contenido del paquete: rango exportado y archivos de datos.
func indexXML(export *entity.AuditExport, csvBytes []byte) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	dataSet := doc.CreateElement("DataSet")
	dataSet.CreateElement("ExportID").SetText(export.ID)
	dataSet.CreateElement("SiteID").SetText(export.SiteID)
	dataSet.CreateElement("StartDate").SetText(export.StartDate.UTC().Format("2006-01-02"))
	dataSet.CreateElement("EndDate").SetText(export.EndDate.UTC().Format("2006-01-02"))

	media := dataSet.CreateElement("Media")
	file := media.CreateElement("DataFile")
	file.CreateElement("Name").SetText(csvFilename)
	file.CreateElement("Size").SetText(fmt.Sprintf("%d", len(csvBytes)))

	doc.Indent(2)
	return doc.WriteToBytes()
}

// manifestXML lista cada archivo del paquete con su digest SHA-256 sobre la
// forma canónica C14N (para XML) o los bytes crudos (para CSV).
func manifestXML(export *entity.AuditExport, files map[string][]byte) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	manifest := doc.CreateElement("Manifest")
	manifest.CreateElement("ExportID").SetText(export.ID)
	manifest.CreateElement("DigestMethod").SetText("SHA-256")

	for _, name := range []string{csvFilename, indexFilename} {
		content, ok := files[name]
		if !ok {
			continue
		}
		digest, err := digestSHA256(name, content)
		if err != nil {
			return nil, err
		}
		entry := manifest.CreateElement("File")
		entry.CreateElement("Name").SetText(name)
		entry.CreateElement("Digest").SetText(digest)
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

// digestSHA256 calcula el digest base64 del archivo. Los XML se canonicalizan
// primero (C14N) para que el digest sea estable ante diferencias de formato.
func digestSHA256(name string, content []byte) (string, error) {
	if filepath.Ext(name) == ".xml" {
		canonical, err := canonicalizeXML(content)
		if err != nil {
			return "", fmt.Errorf("dsfinvk: canonicalizar %s: %w", name, err)
		}
		content = canonical
	}
	sum := sha256.Sum256(content)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func canonicalizeXML(in []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(in))
	return c14n.Canonicalize(dec)
}

// compressArchive empaqueta los archivos en un ZIP en memoria.
func compressArchive(files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, name := range []string{csvFilename, indexFilename, manifestFilename} {
		content, ok := files[name]
		if !ok {
			continue
		}
		fw, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("dsfinvk: zip crear entrada %s: %w", name, err)
		}
		if _, err := fw.Write(content); err != nil {
			return nil, fmt.Errorf("dsfinvk: zip escribir %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("dsfinvk: zip cerrar: %w", err)
	}
	return buf.Bytes(), nil
}
