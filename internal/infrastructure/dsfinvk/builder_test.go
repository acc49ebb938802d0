package dsfinvk_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/infrastructure/dsfinvk"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

func testExport() *entity.AuditExport {
	return &entity.AuditExport{
		ID:        "exp-2024-q1",
		OrgID:     "org-darkvelocity",
		SiteID:    "site-berlin-01",
		Status:    entity.ExportStatusProcessing,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func signedTx(id, deviceID, gross, processType string) *entity.FiscalTransaction {
	signedAt := time.Date(2024, 2, 10, 14, 30, 0, 0, time.UTC)
	return &entity.FiscalTransaction{
		ID:               id,
		OrgID:            "org-darkvelocity",
		SiteID:           "site-berlin-01",
		DeviceID:         deviceID,
		Type:             entity.TransactionTypeReceipt,
		ProcessType:      processType,
		GrossAmount:      decimal.RequireFromString(gross),
		Status:           entity.TransactionStatusSigned,
		Signature:        "c2lnbmF0dXJl",
		SignatureCounter: 7,
		CertSerial:       "DVTSE-SIM-ABC123",
		SignedAt:         &signedAt,
	}
}

func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = content
	}
	return out
}

// ─── paquete ─────────────────────────────────────────────────────────────────

func TestBuild_PaqueteCompleto(t *testing.T) {
	b := dsfinvk.NewBuilder(t.TempDir(), dsfinvk.EncodingUTF8)

	archive, err := b.Build(context.Background(), testExport(), []*entity.FiscalTransaction{
		signedTx("tx-1", "dev-a", "75.33", "Kassenbeleg-V1"),
		signedTx("tx-2", "dev-b", "10.00", "Kassenbeleg-V1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, archive.TransactionCount)
	assert.True(t, strings.HasSuffix(archive.FilePath, "exp-2024-q1.zip"))

	files := readArchive(t, archive.FilePath)
	require.Contains(t, files, "transactions.csv")
	require.Contains(t, files, "index.xml")
	require.Contains(t, files, "manifest.xml")
}

func TestBuild_CSVConSeparadorPuntoYComa(t *testing.T) {
	b := dsfinvk.NewBuilder(t.TempDir(), dsfinvk.EncodingUTF8)

	archive, err := b.Build(context.Background(), testExport(), []*entity.FiscalTransaction{
		signedTx("tx-1", "dev-a", "75.33", "Kassenbeleg-V1"),
	})
	require.NoError(t, err)

	files := readArchive(t, archive.FilePath)
	lines := strings.Split(strings.TrimSpace(string(files["transactions.csv"])), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "TRANSACTION_ID;SITE_ID;DEVICE_ID"))

	fields := strings.Split(lines[1], ";")
	assert.Equal(t, "tx-1", fields[0])
	assert.Equal(t, "75.33", fields[5])
	assert.Equal(t, "7", fields[6])
	assert.Equal(t, "DVTSE-SIM-ABC123", fields[7])
	assert.Equal(t, "2024-02-10T14:30:00Z", fields[9])
}

func TestBuild_CodificacionLatin9(t *testing.T) {
	b := dsfinvk.NewBuilder(t.TempDir(), dsfinvk.EncodingLatin9)

	archive, err := b.Build(context.Background(), testExport(), []*entity.FiscalTransaction{
		signedTx("tx-1", "dev-a", "5.50", "Käse-Beleg"),
	})
	require.NoError(t, err)

	files := readArchive(t, archive.FilePath)
	// 'ä' en ISO 8859-15 es el byte 0xE4, no la secuencia UTF-8 0xC3 0xA4.
	assert.True(t, bytes.Contains(files["transactions.csv"], []byte{0xE4}))
	assert.False(t, bytes.Contains(files["transactions.csv"], []byte{0xC3, 0xA4}))
}

func TestBuild_IndexDescribeElRango(t *testing.T) {
	b := dsfinvk.NewBuilder(t.TempDir(), dsfinvk.EncodingUTF8)

	archive, err := b.Build(context.Background(), testExport(), nil)
	require.NoError(t, err)

	files := readArchive(t, archive.FilePath)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(files["index.xml"]))

	root := doc.SelectElement("DataSet")
	require.NotNil(t, root)
	assert.Equal(t, "exp-2024-q1", root.SelectElement("ExportID").Text())
	assert.Equal(t, "2024-01-01", root.SelectElement("StartDate").Text())
	assert.Equal(t, "2024-03-31", root.SelectElement("EndDate").Text())

	dataFile := root.FindElement("./Media/DataFile/Name")
	require.NotNil(t, dataFile)
	assert.Equal(t, "transactions.csv", dataFile.Text())
}

func TestBuild_ManifestConDigests(t *testing.T) {
	b := dsfinvk.NewBuilder(t.TempDir(), dsfinvk.EncodingUTF8)

	archive, err := b.Build(context.Background(), testExport(), []*entity.FiscalTransaction{
		signedTx("tx-1", "dev-a", "75.33", "Kassenbeleg-V1"),
	})
	require.NoError(t, err)

	files := readArchive(t, archive.FilePath)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(files["manifest.xml"]))

	root := doc.SelectElement("Manifest")
	require.NotNil(t, root)
	assert.Equal(t, "SHA-256", root.SelectElement("DigestMethod").Text())

	entries := root.SelectElements("File")
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEmpty(t, e.SelectElement("Name").Text())
		assert.NotEmpty(t, e.SelectElement("Digest").Text())
	}
}

func TestBuild_SinTransaccionesValido(t *testing.T) {
	b := dsfinvk.NewBuilder(t.TempDir(), dsfinvk.EncodingUTF8)

	archive, err := b.Build(context.Background(), testExport(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, archive.TransactionCount)

	files := readArchive(t, archive.FilePath)
	lines := strings.Split(strings.TrimSpace(string(files["transactions.csv"])), "\n")
	assert.Len(t, lines, 1) // solo el encabezado
}
