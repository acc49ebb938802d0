package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

var _ repository.ZReportRepository = (*ZReportRepo)(nil)
var _ repository.ExportRepository = (*ExportRepo)(nil)
var _ repository.SiteConfigRepository = (*SiteConfigRepo)(nil)

func siteKey(orgID, siteID string) string { return orgID + "/" + siteID }

// ── Z-Reports ─────────────────────────────────────────────────────────────────

// ZReportRepo implementación en memoria de ZReportRepository.
type ZReportRepo struct {
	mu      sync.Mutex
	lastNum map[string]int64
	reports map[string][]*entity.ZReport
}

// NewZReportRepository construye el adaptador.
func NewZReportRepository() *ZReportRepo {
	return &ZReportRepo{lastNum: make(map[string]int64), reports: make(map[string][]*entity.ZReport)}
}

// NextNumber emite el siguiente número secuencial del sitio (atómico bajo mutex).
func (r *ZReportRepo) NextNumber(_ context.Context, orgID, siteID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := siteKey(orgID, siteID)
	r.lastNum[key]++
	return r.lastNum[key], nil
}

// Create persiste el cierre diario.
func (r *ZReportRepo) Create(_ context.Context, report *entity.ZReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *report
	cp.DeviceIDs = append([]string(nil), report.DeviceIDs...)
	key := siteKey(report.OrgID, report.SiteID)
	r.reports[key] = append(r.reports[key], &cp)
	return nil
}

// Latest devuelve el reporte de número más alto, o nil, nil si no hay cierres.
func (r *ZReportRepo) Latest(_ context.Context, orgID, siteID string) (*entity.ZReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entity.ZReport
	for _, rep := range r.reports[siteKey(orgID, siteID)] {
		if latest == nil || rep.Number > latest.Number {
			latest = rep
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// ByNumber devuelve el reporte con ese número, o nil, nil.
func (r *ZReportRepo) ByNumber(_ context.Context, orgID, siteID string, number int64) (*entity.ZReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports[siteKey(orgID, siteID)] {
		if rep.Number == number {
			cp := *rep
			return &cp, nil
		}
	}
	return nil, nil
}

// Range lista reportes con fecha en [fromDay, toDay], ascendente por número.
func (r *ZReportRepo) Range(_ context.Context, orgID, siteID, fromDay, toDay string) ([]*entity.ZReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ZReport
	for _, rep := range r.reports[siteKey(orgID, siteID)] {
		if rep.Date >= fromDay && rep.Date <= toDay {
			cp := *rep
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// ── Jobs de exportación ───────────────────────────────────────────────────────

// ExportRepo implementación en memoria de ExportRepository.
type ExportRepo struct {
	mu      sync.Mutex
	exports map[string]*entity.AuditExport
	// orden de creación por sitio; ListBySite lo recorre al revés
	// (más-reciente-primero).
	order map[string][]string
}

// NewExportRepository construye el adaptador.
func NewExportRepository() *ExportRepo {
	return &ExportRepo{exports: make(map[string]*entity.AuditExport), order: make(map[string][]string)}
}

// Create persiste el job y lo registra en el índice del sitio.
func (r *ExportRepo) Create(_ context.Context, export *entity.AuditExport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exports[export.ID]; ok {
		return domain.ErrConflict
	}
	cp := *export
	r.exports[export.ID] = &cp
	key := siteKey(export.OrgID, export.SiteID)
	r.order[key] = append(r.order[key], export.ID)
	return nil
}

// GetByID devuelve una copia, o nil, nil si no existe.
func (r *ExportRepo) GetByID(_ context.Context, id string) (*entity.AuditExport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exports[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// Update persiste las transiciones de estado del job.
func (r *ExportRepo) Update(_ context.Context, export *entity.AuditExport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exports[export.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *export
	r.exports[export.ID] = &cp
	return nil
}

// ListBySite devuelve los jobs del sitio, más reciente primero.
func (r *ExportRepo) ListBySite(_ context.Context, orgID, siteID string) ([]*entity.AuditExport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.order[siteKey(orgID, siteID)]
	out := make([]*entity.AuditExport, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		cp := *r.exports[ids[i]]
		out = append(out, &cp)
	}
	return out, nil
}

// ── Configuración fiscal por sitio ────────────────────────────────────────────

// SiteConfigRepo implementación en memoria de SiteConfigRepository.
type SiteConfigRepo struct {
	mu      sync.Mutex
	configs map[string]*entity.SiteFiscalConfig
}

// NewSiteConfigRepository construye el adaptador.
func NewSiteConfigRepository() *SiteConfigRepo {
	return &SiteConfigRepo{configs: make(map[string]*entity.SiteFiscalConfig)}
}

// Set crea o reemplaza la configuración del sitio.
func (r *SiteConfigRepo) Set(_ context.Context, cfg *entity.SiteFiscalConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cfg
	r.configs[siteKey(cfg.OrgID, cfg.SiteID)] = &cp
	return nil
}

// Get devuelve una copia, o nil, nil si el sitio no está configurado.
func (r *SiteConfigRepo) Get(_ context.Context, orgID, siteID string) (*entity.SiteFiscalConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[siteKey(orgID, siteID)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}
