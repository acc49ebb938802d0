package fiscal_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/infrastructure/memory"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

type txFixture struct {
	transactions *appfiscal.TransactionUseCase
	devices      *appfiscal.DeviceUseCase
	device       *dto.DeviceResponse
}

func newTxFixture(t *testing.T) *txFixture {
	t.Helper()
	locker := appfiscal.NewKeyedLocker()
	journal := appfiscal.NewJournalUseCase(memory.NewJournalRepository(), locker)
	deviceRepo := memory.NewDeviceRepository()
	devices := appfiscal.NewDeviceUseCase(deviceRepo, memory.NewRegistryRepository(), journal, locker)
	transactions := appfiscal.NewTransactionUseCase(memory.NewTransactionRepository(), deviceRepo, journal, locker)

	dev, err := devices.Register(context.Background(), testOrg, testSite, "operador-1", dto.RegisterDeviceRequest{
		Type:         entity.DeviceTypeSimulated,
		SerialNumber: "SN-TX-001",
		PublicKey:    "cHVibGljLWtleQ==",
	})
	require.NoError(t, err)
	return &txFixture{transactions: transactions, devices: devices, device: dev}
}

func (f *txFixture) createReceipt(t *testing.T, gross string) *dto.TransactionResponse {
	t.Helper()
	resp, err := f.transactions.Create(context.Background(), testOrg, testSite, dto.CreateTransactionRequest{
		DeviceID:    f.device.ID,
		Type:        entity.TransactionTypeReceipt,
		ProcessType: "Kassenbeleg-V1",
		SourceRef:   "order-4711",
		GrossAmount: decimal.RequireFromString(gross),
		AmountsByTaxRate: map[string]decimal.Decimal{
			"19.00": decimal.RequireFromString(gross),
		},
		AmountsByPayment: map[string]decimal.Decimal{
			"CASH": decimal.RequireFromString(gross),
		},
	})
	require.NoError(t, err)
	return resp
}

func signRequest(counter uint64) dto.SignTransactionRequest {
	return dto.SignTransactionRequest{
		Signature:        "c2lnbmF0dXJl",
		SignatureCounter: counter,
		CertSerial:       "DVTSE-SIM-ABC123",
		QRCodeData:       "V0;POS-001;1;...;c2lnbmF0dXJl",
		RawPayload:       "POS-001;1;...",
	}
}

// ─── creación ────────────────────────────────────────────────────────────────

func TestCreateTransaction_EstadoInicial(t *testing.T) {
	f := newTxFixture(t)

	tx := f.createReceipt(t, "75.33")

	assert.Equal(t, entity.TransactionStatusCreated, tx.Status)
	assert.Equal(t, "75.33", tx.GrossAmount.StringFixed(2))
	assert.Empty(t, tx.Signature)
	assert.Nil(t, tx.SignedAt)
}

func TestCreateTransaction_DispositivoInexistente(t *testing.T) {
	f := newTxFixture(t)

	_, err := f.transactions.Create(context.Background(), testOrg, testSite, dto.CreateTransactionRequest{
		DeviceID:    "no-existe",
		Type:        entity.TransactionTypeReceipt,
		GrossAmount: decimal.RequireFromString("10.00"),
	})

	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)
}

func TestCreateTransaction_DispositivoDesactivadoRechazado(t *testing.T) {
	f := newTxFixture(t)
	ctx := context.Background()

	_, err := f.devices.DeactivateWithReason(ctx, f.device.ID, "decomiso", "operador-1")
	require.NoError(t, err)

	_, err = f.transactions.Create(ctx, testOrg, testSite, dto.CreateTransactionRequest{
		DeviceID:    f.device.ID,
		Type:        entity.TransactionTypeReceipt,
		GrossAmount: decimal.RequireFromString("10.00"),
	})

	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)
}

// ─── firmado exactamente-una-vez ─────────────────────────────────────────────

func TestSignTransaction_TransicionASigned(t *testing.T) {
	f := newTxFixture(t)
	tx := f.createReceipt(t, "42.00")

	signed, err := f.transactions.Sign(context.Background(), tx.ID, signRequest(1))
	require.NoError(t, err)

	assert.Equal(t, entity.TransactionStatusSigned, signed.Status)
	assert.Equal(t, "c2lnbmF0dXJl", signed.Signature)
	assert.Equal(t, uint64(1), signed.SignatureCounter)
	require.NotNil(t, signed.SignedAt)
}

func TestSignTransaction_SegundaFirmaRechazada(t *testing.T) {
	f := newTxFixture(t)
	ctx := context.Background()
	tx := f.createReceipt(t, "42.00")

	_, err := f.transactions.Sign(ctx, tx.ID, signRequest(1))
	require.NoError(t, err)

	_, err = f.transactions.Sign(ctx, tx.ID, signRequest(2))
	assert.ErrorIs(t, err, domain.ErrAlreadySigned)

	// Los campos del primer firmado quedan intactos.
	got, err := f.transactions.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.SignatureCounter)
}

func TestSignTransaction_ConcurrenciaUnSoloGanador(t *testing.T) {
	f := newTxFixture(t)
	ctx := context.Background()
	tx := f.createReceipt(t, "99.99")

	const n = 20
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.transactions.Sign(ctx, tx.ID, signRequest(uint64(i+1)))
		}(i)
	}
	wg.Wait()

	var winners, losers int
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case assert.ErrorIs(t, err, domain.ErrAlreadySigned):
			losers++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, n-1, losers)
}

func TestSignTransaction_InexistenteRechazada(t *testing.T) {
	f := newTxFixture(t)

	_, err := f.transactions.Sign(context.Background(), "no-existe", signRequest(1))

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ─── consultas ───────────────────────────────────────────────────────────────

func TestListSignedByDay_SoloFirmadasDelDia(t *testing.T) {
	f := newTxFixture(t)
	ctx := context.Background()

	signedTx := f.createReceipt(t, "10.00")
	f.createReceipt(t, "20.00") // queda sin firmar

	_, err := f.transactions.Sign(ctx, signedTx.ID, signRequest(1))
	require.NoError(t, err)

	day := signedTx.CreatedAt.UTC().Format("2006-01-02")
	list, err := f.transactions.ListSignedByDay(ctx, testOrg, testSite, day)
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, signedTx.ID, list[0].ID)
}
