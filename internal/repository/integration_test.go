//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"precipitation-platform/internal/models"
	"precipitation-platform/pkg/database"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

type pgFixture struct {
	store      Store
	zone       *models.Zone
	sites      []*models.Site
	instrument *models.Instrument
}

func newPostgresFixture(t *testing.T) *pgFixture {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("precipitation"),
		tcpostgres.WithUsername("precipitation"),
		tcpostgres.WithPassword("precipitation"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	raw, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	logger := logging.NewNopLogger()
	collector := metrics.NewTestCollector()
	db := database.NewFromSQLX(raw, nil, logger, collector)

	_, err = db.RunMigrations(ctx, "../../migrations", "up")
	require.NoError(t, err)

	f := &pgFixture{store: NewPostgresStore(db, logger, collector)}
	now := time.Now().UTC()

	f.zone = &models.Zone{Locality: "Centro", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.store.CreateZone(ctx, f.zone))
	for _, coords := range [][2]float64{{-34.6037, -58.3816}, {-34.9214, -57.9545}} {
		site := &models.Site{Latitude: coords[0], Longitude: coords[1], ZoneID: f.zone.ID, PrecipitationID: 1, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, f.store.CreateSite(ctx, site))
		f.sites = append(f.sites, site)
	}
	f.instrument = &models.Instrument{Name: "Hellmann", UnitID: 1, PrecipitationID: 1}
	require.NoError(t, f.store.CreateInstrument(ctx, f.instrument))
	return f
}

func (f *pgFixture) report(date string, site *models.Site, detail models.ReportDetail) *models.Report {
	d, _ := time.Parse(models.DateLayout, date)
	now := time.Now().UTC()
	return &models.Report{
		Date:            d,
		UserID:          1,
		InstrumentID:    f.instrument.ID,
		PrecipitationID: 1,
		SiteID:          site.ID,
		Detail:          detail,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func measurement(amount int64) *models.RegularMeasurement {
	return &models.RegularMeasurement{Amount: decimal.NewFromInt(amount), UnitID: 1}
}

func TestPostgresCreateReportRollsBackFailedDetail(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()

	// NUMERIC(12,3) overflows, so the detail insert fails after the report row
	overflow := &models.RegularMeasurement{Amount: decimal.RequireFromString("10000000000"), UnitID: 1}
	err := f.store.CreateReport(ctx, f.report("2025-01-10", f.sites[0], overflow))
	require.Error(t, err)

	_, total, err := f.store.ListReports(ctx, ReportFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPostgresHistogramAndZoneTotals(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()

	for _, r := range []*models.Report{
		f.report("2025-01-10", f.sites[0], measurement(10)),
		f.report("2025-01-15", f.sites[1], measurement(20)),
		f.report("2025-02-01", f.sites[0], measurement(5)),
		f.report("2025-01-20", f.sites[1], &models.InstrumentBreakage{Damage: "tapa rota"}),
	} {
		require.NoError(t, f.store.CreateReport(ctx, r))
	}

	year, month := 2025, 1
	rows, err := f.store.HistogramBuckets(ctx, models.HistogramQuery{Kind: "lluvia", Granularity: models.GranularityMonth, Year: &year})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-01", models.GranularityMonth.Label(rows[0]))
	assert.True(t, rows[0].Value.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, "2025-02", models.GranularityMonth.Label(rows[1]))

	days, err := f.store.HistogramBuckets(ctx, models.HistogramQuery{Kind: "lluvia", Granularity: models.GranularityDay, Year: &year, Month: &month})
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-01-10", models.GranularityDay.Label(days[0]))
	assert.Equal(t, "2025-01-15", models.GranularityDay.Label(days[1]))

	acc, err := f.store.ZoneAccumulation(ctx, f.zone.ID)
	require.NoError(t, err)
	assert.True(t, acc.TotalAccumulated.Equal(decimal.NewFromInt(35)))
	assert.Equal(t, 2, acc.SiteCount)
	require.Len(t, acc.Sites, 2)

	totals, err := f.store.ZoneTotals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.True(t, totals[0].TotalAccumulated.Equal(decimal.NewFromInt(35)))
}

func TestPostgresUniqueConstraints(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()

	dup := &models.Site{Latitude: f.sites[0].Latitude, Longitude: f.sites[0].Longitude, ZoneID: f.zone.ID, PrecipitationID: 1}
	var conflict *ConflictError
	assert.ErrorAs(t, f.store.CreateSite(ctx, dup), &conflict)

	assert.ErrorAs(t, f.store.CreateZone(ctx, &models.Zone{Locality: "Centro"}), &conflict)

	sample := &models.Sample{CreatedAt: time.Now().UTC()}
	require.NoError(t, f.store.CreateSample(ctx, sample))
	first := measurement(1)
	first.SampleID = &sample.ID
	require.NoError(t, f.store.CreateReport(ctx, f.report("2025-03-01", f.sites[0], first)))
	second := measurement(2)
	second.SampleID = &sample.ID
	assert.ErrorAs(t, f.store.CreateReport(ctx, f.report("2025-03-02", f.sites[0], second)), &conflict)
}

func TestPostgresUpdateAndDeleteZone(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()

	breakage := f.report("2025-01-10", f.sites[0], &models.InstrumentBreakage{Damage: "x"})
	require.NoError(t, f.store.CreateReport(ctx, breakage))

	amount := decimal.NewFromInt(9)
	updated, err := f.store.UpdateReport(ctx, breakage.ID, models.ReportPatch{Amount: &amount, SiteID: &f.sites[1].ID}, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, models.ReportTypeBreakage, updated.Type())
	assert.Equal(t, f.sites[1].ID, updated.SiteID)

	years, err := f.store.AvailableYears(ctx)
	require.NoError(t, err)
	assert.Empty(t, years)

	require.NoError(t, f.store.DeleteZone(ctx, f.zone.ID))
	var nf *NotFoundError
	_, err = f.store.GetReport(ctx, breakage.ID)
	assert.ErrorAs(t, err, &nf)
}
