package fiscal_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/infrastructure/memory"
)

func newJournalUseCase(t *testing.T) *appfiscal.JournalUseCase {
	t.Helper()
	return appfiscal.NewJournalUseCase(memory.NewJournalRepository(), appfiscal.NewKeyedLocker())
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

func TestLogEvent_OrdenDeAnexado(t *testing.T) {
	uc := newJournalUseCase(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := uc.LogEvent(ctx, testOrg, dto.LogEventRequest{
			EventType: entity.JournalEventTransactionCreated,
			Details:   fmt.Sprintf("evento %d", i),
		})
		require.NoError(t, err)
	}

	entries, err := uc.Entries(ctx, testOrg, today())
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("evento %d", i), e.Details)
		assert.NotEmpty(t, e.ID)
	}
}

func TestLogEvent_TimestampsNuncaDecrecen(t *testing.T) {
	uc := newJournalUseCase(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, uc.LogEvent(ctx, testOrg, dto.LogEventRequest{
			EventType: entity.JournalEventTransactionSigned,
			Details:   "firma",
		}))
	}

	entries, err := uc.Entries(ctx, testOrg, today())
	require.NoError(t, err)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.Before(entries[i-1].Timestamp),
			"entrada %d anterior a la %d", i, i-1)
	}
}

func TestLogEvent_SeveridadPorDefectoInfo(t *testing.T) {
	uc := newJournalUseCase(t)
	ctx := context.Background()

	require.NoError(t, uc.LogEvent(ctx, testOrg, dto.LogEventRequest{
		EventType: entity.JournalEventDeviceRegistered,
		Details:   "alta",
	}))

	entries, err := uc.Entries(ctx, testOrg, today())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.JournalSeverityInfo, entries[0].Severity)
}

func TestLogEvent_EntradaInvalidaRechazada(t *testing.T) {
	uc := newJournalUseCase(t)

	err := uc.LogEvent(context.Background(), testOrg, dto.LogEventRequest{Details: "sin tipo"})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEntriesByDevice_FiltraPorDispositivo(t *testing.T) {
	uc := newJournalUseCase(t)
	ctx := context.Background()

	require.NoError(t, uc.LogEvent(ctx, testOrg, dto.LogEventRequest{
		EventType: entity.JournalEventSelfTestPerformed,
		DeviceID:  "dev-a",
		Details:   "auto-test a",
	}))
	require.NoError(t, uc.LogEvent(ctx, testOrg, dto.LogEventRequest{
		EventType: entity.JournalEventSelfTestPerformed,
		DeviceID:  "dev-b",
		Details:   "auto-test b",
	}))

	entries, err := uc.EntriesByDevice(ctx, testOrg, today(), "dev-a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dev-a", entries[0].DeviceID)
}

func TestErrors_SoloSeveridadError(t *testing.T) {
	uc := newJournalUseCase(t)
	ctx := context.Background()

	require.NoError(t, uc.LogEvent(ctx, testOrg, dto.LogEventRequest{
		EventType: entity.JournalEventTransactionCreated,
		Severity:  entity.JournalSeverityInfo,
		Details:   "normal",
	}))
	require.NoError(t, uc.LogEvent(ctx, testOrg, dto.LogEventRequest{
		EventType: entity.JournalEventError,
		Severity:  entity.JournalSeverityError,
		Details:   "falla de firma",
	}))
	require.NoError(t, uc.LogEvent(ctx, testOrg, dto.LogEventRequest{
		EventType: entity.JournalEventSelfTestPerformed,
		Severity:  entity.JournalSeverityWarning,
		Details:   "certificado por vencer",
	}))

	errs, err := uc.Errors(ctx, testOrg, today())
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, entity.JournalSeverityError, errs[0].Severity,
		"una entrada WARNING no debe aparecer en la vista de errores")
	assert.Equal(t, "falla de firma", errs[0].Details)

	count, err := uc.EntryCount(ctx, testOrg, today())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEntries_AislamientoPorOrganizacion(t *testing.T) {
	uc := newJournalUseCase(t)
	ctx := context.Background()

	require.NoError(t, uc.LogEvent(ctx, "org-a", dto.LogEventRequest{
		EventType: entity.JournalEventTransactionCreated,
		Details:   "de la org a",
	}))

	entries, err := uc.Entries(ctx, "org-b", today())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
