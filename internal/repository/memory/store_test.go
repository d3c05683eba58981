package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"precipitation-platform/internal/models"
	"precipitation-platform/internal/repository"
)

type fixture struct {
	store      *Store
	zone       *models.Zone
	site       *models.Site
	instrument *models.Instrument
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := NewSeeded()

	zone := &models.Zone{Locality: "Centro"}
	require.NoError(t, s.CreateZone(ctx, zone))
	site := &models.Site{Latitude: -34.6, Longitude: -58.4, ZoneID: zone.ID, PrecipitationID: 1}
	require.NoError(t, s.CreateSite(ctx, site))
	instrument := &models.Instrument{Name: "Hellmann", UnitID: 1, PrecipitationID: 1}
	require.NoError(t, s.CreateInstrument(ctx, instrument))

	return &fixture{store: s, zone: zone, site: site, instrument: instrument}
}

func (f *fixture) report(date string, detail models.ReportDetail) *models.Report {
	d, _ := time.Parse(models.DateLayout, date)
	return &models.Report{
		Date:            d,
		UserID:          1,
		InstrumentID:    f.instrument.ID,
		PrecipitationID: 1,
		SiteID:          f.site.ID,
		Detail:          detail,
	}
}

func regular(amount int64) *models.RegularMeasurement {
	return &models.RegularMeasurement{Amount: decimal.NewFromInt(amount), UnitID: 1}
}

func TestCreateReportAssignsIDs(t *testing.T) {
	f := newFixture(t)
	r := f.report("2025-01-10", regular(10))

	require.NoError(t, f.store.CreateReport(context.Background(), r))
	assert.NotZero(t, r.ID)
	assert.Equal(t, r.ID, r.Regular().ReportID)

	got, err := f.store.GetReport(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportTypeRegular, got.Type())
	assert.True(t, got.Regular().Amount.Equal(decimal.NewFromInt(10)))
}

func TestCreateReportIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := f.report("2025-01-10", &models.RegularMeasurement{Amount: decimal.NewFromInt(1), UnitID: 99})
	err := f.store.CreateReport(ctx, bad)

	var nf *repository.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "united_measure", nf.Resource)
	assert.Zero(t, bad.ID)

	_, total, err := f.store.ListReports(ctx, repository.ReportFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateReportCancelledContextWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.store.CreateReport(ctx, f.report("2025-01-10", regular(1)))
	var storageErr *repository.StorageError
	require.ErrorAs(t, err, &storageErr)

	_, total, err := f.store.ListReports(context.Background(), repository.ReportFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSampleLinksOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sample := &models.Sample{}
	require.NoError(t, f.store.CreateSample(ctx, sample))

	first := regular(1)
	first.SampleID = &sample.ID
	require.NoError(t, f.store.CreateReport(ctx, f.report("2025-01-10", first)))

	second := regular(2)
	second.SampleID = &sample.ID
	err := f.store.CreateReport(ctx, f.report("2025-01-11", second))
	var conflict *repository.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestUpdateReportAmountOnBreakageIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.report("2025-01-10", &models.InstrumentBreakage{Damage: "tapa rota"})
	require.NoError(t, f.store.CreateReport(ctx, r))

	amount := decimal.NewFromInt(50)
	updated, err := f.store.UpdateReport(ctx, r.ID, models.ReportPatch{Amount: &amount}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.ReportTypeBreakage, updated.Type())

	rows, err := f.store.HistogramBuckets(ctx, models.HistogramQuery{Kind: "lluvia", Granularity: models.GranularityYear})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpdateReportRejectsSiteOfOtherKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.report("2025-01-10", regular(3))
	require.NoError(t, f.store.CreateReport(ctx, r))

	snowSite := &models.Site{Latitude: -41.1, Longitude: -71.3, ZoneID: f.zone.ID, PrecipitationID: 2}
	require.NoError(t, f.store.CreateSite(ctx, snowSite))

	_, err := f.store.UpdateReport(ctx, r.ID, models.ReportPatch{SiteID: &snowSite.ID}, time.Now())
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDeleteZoneCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateReport(ctx, f.report("2025-01-10", regular(3))))

	require.NoError(t, f.store.DeleteZone(ctx, f.zone.ID))

	_, err := f.store.GetSite(ctx, f.site.ID)
	var nf *repository.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, total, err := f.store.ListReports(ctx, repository.ReportFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)

	assert.ErrorAs(t, f.store.DeleteZone(ctx, f.zone.ID), &nf)
}

func TestHistogramBucketsGroupsAndOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, r := range []*models.Report{
		f.report("2025-02-01", regular(5)),
		f.report("2025-01-15", regular(20)),
		f.report("2025-01-10", regular(10)),
		f.report("2024-12-31", regular(7)),
		f.report("2025-01-12", &models.InstrumentBreakage{Damage: "x"}),
	} {
		require.NoError(t, f.store.CreateReport(ctx, r))
	}

	year := 2025
	rows, err := f.store.HistogramBuckets(ctx, models.HistogramQuery{Kind: "lluvia", Granularity: models.GranularityMonth, Year: &year})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-01", models.GranularityMonth.Label(rows[0]))
	assert.True(t, rows[0].Value.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, "2025-02", models.GranularityMonth.Label(rows[1]))

	years, err := f.store.AvailableYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2025, 2024}, years)
}

func TestListReportsFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, date := range []string{"2025-01-01", "2025-01-02", "2025-01-03"} {
		require.NoError(t, f.store.CreateReport(ctx, f.report(date, regular(1))))
	}
	require.NoError(t, f.store.CreateReport(ctx, f.report("2025-01-04", &models.InstrumentBreakage{Damage: "x"})))

	regularType := models.ReportTypeRegular
	reports, total, err := f.store.ListReports(ctx, repository.ReportFilter{Type: &regularType, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, reports, 2)
	assert.Equal(t, "2025-01-03", reports[0].Date.Format(models.DateLayout))
	assert.Equal(t, "2025-01-02", reports[1].Date.Format(models.DateLayout))
}
