package fiscal_test

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/infrastructure/memory"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

const (
	testOrg  = "org-darkvelocity"
	testSite = "site-berlin-01"
)

func newDeviceUseCase(t *testing.T) (*appfiscal.DeviceUseCase, *appfiscal.JournalUseCase, *memory.JournalRepo) {
	t.Helper()
	journalRepo := memory.NewJournalRepository()
	locker := appfiscal.NewKeyedLocker()
	journal := appfiscal.NewJournalUseCase(journalRepo, locker)
	uc := appfiscal.NewDeviceUseCase(memory.NewDeviceRepository(), memory.NewRegistryRepository(), journal, locker)
	return uc, journal, journalRepo
}

func registerTestDevice(t *testing.T, uc *appfiscal.DeviceUseCase, serial string) *dto.DeviceResponse {
	t.Helper()
	resp, err := uc.Register(context.Background(), testOrg, testSite, "operador-1", dto.RegisterDeviceRequest{
		Type:         entity.DeviceTypeSimulated,
		SerialNumber: serial,
	})
	require.NoError(t, err)
	return resp
}

// ─── registro ────────────────────────────────────────────────────────────────

func TestRegister_EstadoInicialSinClave(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)

	resp := registerTestDevice(t, uc, "SN-0001")

	assert.Equal(t, entity.DeviceStatusRegistered, resp.Status)
	assert.Equal(t, uint64(0), resp.TransactionCounter)
	assert.Equal(t, uint64(0), resp.SignatureCounter)
	assert.NotEmpty(t, resp.ID)
}

func TestRegister_ActivoConClavePublica(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)

	resp, err := uc.Register(context.Background(), testOrg, testSite, "operador-1", dto.RegisterDeviceRequest{
		Type:         entity.DeviceTypeCloudTSE,
		SerialNumber: "SN-0002",
		PublicKey:    "cHVibGljLWtleQ==",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.DeviceStatusActive, resp.Status)
}

func TestRegister_SerialDuplicadoRechazado(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)

	registerTestDevice(t, uc, "SN-DUP")
	_, err := uc.Register(context.Background(), testOrg, testSite, "operador-1", dto.RegisterDeviceRequest{
		Type:         entity.DeviceTypeSimulated,
		SerialNumber: "SN-DUP",
	})

	assert.ErrorIs(t, err, domain.ErrDuplicateSerial)
}

func TestRegister_TipoDesconocidoRechazado(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)

	_, err := uc.Register(context.Background(), testOrg, testSite, "operador-1", dto.RegisterDeviceRequest{
		Type:         "FAX_MACHINE",
		SerialNumber: "SN-0003",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegister_VisibleEnRegistroDelSitio(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)
	ctx := context.Background()

	dev := registerTestDevice(t, uc, "SN-REG")

	id, err := uc.FindBySerial(ctx, testOrg, testSite, "SN-REG")
	require.NoError(t, err)
	assert.Equal(t, dev.ID, id)

	ids, err := uc.ListRegisteredIDs(ctx, testOrg, testSite)
	require.NoError(t, err)
	assert.Equal(t, []string{dev.ID}, ids)
}

// ─── contadores ──────────────────────────────────────────────────────────────

func TestNextTransactionCounter_SinHuecosDesdeUno(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)
	ctx := context.Background()
	dev := registerTestDevice(t, uc, "SN-CTR")

	for want := uint64(1); want <= 5; want++ {
		got, err := uc.NextTransactionCounter(ctx, dev.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNextCounters_EspaciosIndependientes(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)
	ctx := context.Background()
	dev := registerTestDevice(t, uc, "SN-IND")

	tx1, err := uc.NextTransactionCounter(ctx, dev.ID)
	require.NoError(t, err)
	sig1, err := uc.NextSignatureCounter(ctx, dev.ID)
	require.NoError(t, err)
	tx2, err := uc.NextTransactionCounter(ctx, dev.ID)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), tx1)
	assert.Equal(t, uint64(1), sig1)
	assert.Equal(t, uint64(2), tx2)
}

func TestNextTransactionCounter_ConcurrenciaSinDuplicados(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)
	ctx := context.Background()
	dev := registerTestDevice(t, uc, "SN-CONC")

	const n = 50
	values := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := uc.NextTransactionCounter(ctx, dev.ID)
			require.NoError(t, err)
			values[i] = v
		}(i)
	}
	wg.Wait()

	// El conjunto emitido debe ser exactamente {1..n}, sin huecos ni repetidos.
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i := 0; i < n; i++ {
		assert.Equal(t, uint64(i+1), values[i])
	}
}

func TestNextTransactionCounter_DispositivoInexistente(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)

	_, err := uc.NextTransactionCounter(context.Background(), "no-existe")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ─── activación y decomiso ───────────────────────────────────────────────────

func TestActivate_ContadoresSobrevivenElCiclo(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)
	ctx := context.Background()
	dev := registerTestDevice(t, uc, "SN-CYCLE")

	for i := 0; i < 3; i++ {
		_, err := uc.NextTransactionCounter(ctx, dev.ID)
		require.NoError(t, err)
	}

	_, err := uc.DeactivateWithReason(ctx, dev.ID, "mantenimiento", "operador-2")
	require.NoError(t, err)
	_, err = uc.Activate(ctx, dev.ID, "DE-TAX-12345", "operador-2")
	require.NoError(t, err)

	// Reactivar no reinicia la numeración: el siguiente valor continúa en 4.
	got, err := uc.NextTransactionCounter(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got)
}

func TestNextTransactionCounter_ReanudaTrasReinicio(t *testing.T) {
	ctx := context.Background()
	deviceRepo := memory.NewDeviceRepository()
	registryRepo := memory.NewRegistryRepository()
	locker := appfiscal.NewKeyedLocker()
	journal := appfiscal.NewJournalUseCase(memory.NewJournalRepository(), locker)

	uc1 := appfiscal.NewDeviceUseCase(deviceRepo, registryRepo, journal, locker)
	dev, err := uc1.Register(ctx, testOrg, testSite, "operador-1", dto.RegisterDeviceRequest{
		Type:         entity.DeviceTypeSimulated,
		SerialNumber: "SN-RESTART",
	})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := uc1.NextTransactionCounter(ctx, dev.ID)
		require.NoError(t, err)
	}
	_, err = uc1.DeactivateWithReason(ctx, dev.ID, "reinicio de proceso", "operador-1")
	require.NoError(t, err)

	// Un proceso nuevo construye su propio caso de uso sobre el mismo almacén:
	// la fuente de verdad es el repositorio y la numeración continúa donde quedó.
	uc2 := appfiscal.NewDeviceUseCase(deviceRepo, registryRepo, journal, appfiscal.NewKeyedLocker())
	_, err = uc2.Activate(ctx, dev.ID, "DE-TAX-12345", "operador-2")
	require.NoError(t, err)

	got, err := uc2.NextTransactionCounter(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got)
}

func TestActivate_GuardaReferenciaTributaria(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)
	ctx := context.Background()
	dev := registerTestDevice(t, uc, "SN-TAX")

	resp, err := uc.Activate(ctx, dev.ID, "DE-TAX-98765", "operador-3")
	require.NoError(t, err)

	assert.Equal(t, entity.DeviceStatusActive, resp.Status)
}

func TestDeactivate_DejaInactivoConDiario(t *testing.T) {
	uc, _, journalRepo := newDeviceUseCase(t)
	ctx := context.Background()
	dev := registerTestDevice(t, uc, "SN-DECOM")

	resp, err := uc.DeactivateWithReason(ctx, dev.ID, "fin de vida útil", "operador-4")
	require.NoError(t, err)
	assert.Equal(t, entity.DeviceStatusInactive, resp.Status)

	day := time.Now().UTC().Format("2006-01-02")
	entries, err := journalRepo.Entries(ctx, testOrg, day)
	require.NoError(t, err)

	var found bool
	for _, e := range entries {
		if e.EventType == entity.JournalEventDeviceDecommissioned && e.DeviceID == dev.ID {
			found = true
		}
	}
	assert.True(t, found, "el decomiso debe quedar en el diario")
}

// ─── auto-test ───────────────────────────────────────────────────────────────

func TestPerformSelfTest_CertificadoVigente(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)
	ctx := context.Background()

	expires := time.Now().UTC().AddDate(1, 0, 0)
	dev, err := uc.Register(ctx, testOrg, testSite, "operador-1", dto.RegisterDeviceRequest{
		Type:          entity.DeviceTypeHardwareTSE,
		SerialNumber:  "SELFTEST-PASS-001",
		CertExpiresAt: &expires,
	})
	require.NoError(t, err)

	result, err := uc.PerformSelfTest(ctx, dev.ID)
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Empty(t, result.ErrorMessage)
}

func TestPerformSelfTest_CertificadoVencido(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)
	ctx := context.Background()

	expires := time.Now().UTC().AddDate(0, 0, -30)
	dev, err := uc.Register(ctx, testOrg, testSite, "operador-1", dto.RegisterDeviceRequest{
		Type:          entity.DeviceTypeHardwareTSE,
		SerialNumber:  "SELFTEST-FAIL-001",
		CertExpiresAt: &expires,
	})
	require.NoError(t, err)

	// Vencido se reporta como passed=false con mensaje, nunca como error.
	result, err := uc.PerformSelfTest(ctx, dev.ID)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Contains(t, result.ErrorMessage, "expired")
}

func TestPerformSelfTest_ResultadoPersistido(t *testing.T) {
	uc, _, _ := newDeviceUseCase(t)
	ctx := context.Background()
	dev := registerTestDevice(t, uc, "SN-PERSIST")

	_, err := uc.PerformSelfTest(ctx, dev.ID)
	require.NoError(t, err)

	got, err := uc.Get(ctx, dev.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSelfTest)
	assert.True(t, got.LastSelfTest.Passed)
}

// ─── diario best-effort ──────────────────────────────────────────────────────

// journalRepoCaido rechaza todo anexado; las lecturas devuelven vacío.
type journalRepoCaido struct{}

func (journalRepoCaido) Append(context.Context, *entity.JournalEntry) error {
	return errors.New("diario caído")
}
func (journalRepoCaido) Entries(context.Context, string, string) ([]*entity.JournalEntry, error) {
	return nil, nil
}
func (journalRepoCaido) EntryCount(context.Context, string, string) (int, error) { return 0, nil }
func (journalRepoCaido) EntriesByDevice(context.Context, string, string, string) ([]*entity.JournalEntry, error) {
	return nil, nil
}
func (journalRepoCaido) Errors(context.Context, string, string) ([]*entity.JournalEntry, error) {
	return nil, nil
}
func (journalRepoCaido) LastTimestamp(context.Context, string, string) (time.Time, error) {
	return time.Time{}, nil
}

func TestRegister_FalloDelDiarioNoRevierteYQuedaEnLog(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	locker := appfiscal.NewKeyedLocker()
	journal := appfiscal.NewJournalUseCase(journalRepoCaido{}, locker)
	uc := appfiscal.NewDeviceUseCase(memory.NewDeviceRepository(), memory.NewRegistryRepository(), journal, locker)

	resp, err := uc.Register(context.Background(), testOrg, testSite, "operador-1", dto.RegisterDeviceRequest{
		Type:         entity.DeviceTypeSimulated,
		SerialNumber: "SN-SIN-DIARIO",
	})
	require.NoError(t, err, "el registro ya durable no se revierte por un fallo del diario")
	assert.NotEmpty(t, resp.ID)

	// El fallo del espejo de auditoría no es silencioso: queda en el log estructurado.
	assert.Contains(t, buf.String(), "diario caído")
	assert.Contains(t, buf.String(), entity.JournalEventDeviceRegistered)
}
