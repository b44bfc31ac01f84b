package settings

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropfee/internal/logger"
	"dropfee/internal/types"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[string]DeliverySettings
}

func newMemRepo() *memRepo { return &memRepo{rows: map[string]DeliverySettings{}} }

func (m *memRepo) LoadAll(ctx context.Context) ([]DeliverySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DeliverySettings, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

func (m *memRepo) Save(ctx context.Context, s DeliverySettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.key()] = s
	return nil
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func idPtr(v string) *types.ID {
	id := types.ID(v)
	return &id
}

func TestResolve_FallbackWhenNothingConfigured(t *testing.T) {
	r := NewResolver(nil, time.UTC)

	eff := r.Resolve(context.Background(), "rest-1")
	assert.Equal(t, SourceFallback, eff.Source)
	assert.True(t, eff.BaseCharge.IsZero())
	assert.True(t, eff.PerKmCharge.IsZero())
	assert.True(t, eff.SurgeMultiplier.Equal(decimal.NewFromInt(1)))
	assert.Nil(t, eff.FreeDeliveryAbove)
	assert.Empty(t, eff.PeakHours)
}

func TestResolve_RestaurantThenGlobal(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newMemRepo(), time.UTC)

	_, err := r.Upsert(ctx, Input{BaseCharge: dec("30"), PerKmCharge: dec("5")})
	require.NoError(t, err)
	_, err = r.Upsert(ctx, Input{RestaurantID: idPtr("rest-1"), BaseCharge: dec("20"), PerKmCharge: dec("4")})
	require.NoError(t, err)

	own := r.Resolve(ctx, "rest-1")
	assert.Equal(t, SourceRestaurant, own.Source)
	assert.True(t, own.BaseCharge.Equal(dec("20")))

	other := r.Resolve(ctx, "rest-2")
	assert.Equal(t, SourceGlobal, other.Source)
	assert.True(t, other.BaseCharge.Equal(dec("30")))

	anon := r.Resolve(ctx, "")
	assert.Equal(t, SourceGlobal, anon.Source)
	assert.Equal(t, int64(2), anon.SnapshotVersion)
}

func TestUpsert_ReplacesByKeyAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	r := NewResolver(repo, time.UTC)

	first, err := r.Upsert(ctx, Input{BaseCharge: dec("30"), PerKmCharge: dec("5")})
	require.NoError(t, err)
	second, err := r.Upsert(ctx, Input{BaseCharge: dec("35"), PerKmCharge: dec("5"), SurgeMultiplier: decPtr("1.2")})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, int64(2), second.Version)
	assert.True(t, first.SurgeMultiplier.Equal(decimal.NewFromInt(1)), "surge defaults to 1.0")
	assert.Len(t, r.List(), 1, "at most one global record")
	assert.Len(t, repo.rows, 1)
	assert.Equal(t, "UTC", second.Timezone)
}

func TestUpsert_AggregatesValidationErrors(t *testing.T) {
	r := NewResolver(nil, time.UTC)

	_, err := r.Upsert(context.Background(), Input{
		BaseCharge:        dec("-1"),
		PerKmCharge:       dec("-2"),
		SurgeMultiplier:   decPtr("-0.5"),
		FreeDeliveryAbove: decPtr("-10"),
		PeakHours:         []PeakWindow{{Start: "25:00", End: "10:00"}},
		Timezone:          "Mars/Olympus",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSettings))
	for _, field := range []string{"baseCharge", "perKmCharge", "surgeMultiplier", "freeDeliveryAbove", "peakHours[0]", "timezone"} {
		assert.Contains(t, err.Error(), field)
	}
	assert.Equal(t, int64(0), r.Snapshot().Version())
}

func TestReload_PicksUpOtherWriters(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	writer := NewResolver(repo, time.UTC)
	reader := NewResolver(repo, time.UTC)

	_, err := writer.Upsert(ctx, Input{BaseCharge: dec("30"), PerKmCharge: dec("5"), Timezone: "Asia/Taipei"})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, reader.Resolve(ctx, "").Source)

	require.NoError(t, reader.Reload(ctx))
	eff := reader.Resolve(ctx, "")
	assert.Equal(t, SourceGlobal, eff.Source)
	assert.Equal(t, "Asia/Taipei", eff.Location.String())
}

func TestIsPeakHour(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }
	lunch := []PeakWindow{{Start: "12:00", End: "14:00"}}
	night := []PeakWindow{{Start: "22:00", End: "02:00"}}

	tests := []struct {
		name    string
		windows []PeakWindow
		at      time.Time
		want    bool
	}{
		{"start is inclusive", lunch, day(12, 0), true},
		{"inside", lunch, day(13, 30), true},
		{"end is exclusive", lunch, day(14, 0), false},
		{"before", lunch, day(11, 59), false},
		{"wrap late evening", night, day(23, 15), true},
		{"wrap after midnight", night, day(1, 59), true},
		{"wrap end exclusive", night, day(2, 0), false},
		{"wrap midday", night, day(12, 0), false},
		{"empty window", []PeakWindow{{Start: "10:00", End: "10:00"}}, day(10, 0), false},
		{"overlapping windows", append(lunch, PeakWindow{Start: "13:00", End: "15:00"}), day(13, 30), true},
		{"no windows", nil, day(12, 30), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPeakHour(tt.windows, time.UTC, tt.at))
		})
	}
}

func TestIsPeakHour_UsesSettingsTimezone(t *testing.T) {
	taipei, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)
	lunch := []PeakWindow{{Start: "12:00", End: "14:00"}}

	// 04:30 UTC is 12:30 in Taipei.
	at := time.Date(2026, 3, 2, 4, 30, 0, 0, time.UTC)
	assert.True(t, IsPeakHour(lunch, taipei, at))
	assert.False(t, IsPeakHour(lunch, time.UTC, at))
}

type pausingRepo struct {
	*memRepo
	loaded  chan struct{}
	release chan struct{}
}

func (p *pausingRepo) LoadAll(ctx context.Context) ([]DeliverySettings, error) {
	rows, err := p.memRepo.LoadAll(ctx)
	close(p.loaded)
	<-p.release
	return rows, err
}

func TestReload_KeepsConcurrentUpsert(t *testing.T) {
	ctx := context.Background()
	repo := &pausingRepo{memRepo: newMemRepo(), loaded: make(chan struct{}), release: make(chan struct{})}
	r := NewResolver(repo, time.UTC)

	reloaded := make(chan error, 1)
	go func() { reloaded <- r.Reload(ctx) }()
	<-repo.loaded

	upserted := make(chan error, 1)
	go func() {
		_, err := r.Upsert(ctx, Input{BaseCharge: dec("30"), PerKmCharge: dec("5")})
		upserted <- err
	}()
	var upsertErr error
	select {
	case upsertErr = <-upserted:
		close(repo.release)
	case <-time.After(50 * time.Millisecond):
		close(repo.release)
		upsertErr = <-upserted
	}
	require.NoError(t, <-reloaded)
	require.NoError(t, upsertErr)

	eff := r.Resolve(ctx, "rest-1")
	assert.Equal(t, SourceGlobal, eff.Source, "acknowledged global record must survive the reload")
	assert.True(t, eff.BaseCharge.Equal(dec("30")))
}

func TestReload_WarnsOnUnknownTimezone(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	repo.rows[""] = DeliverySettings{BaseCharge: dec("30"), PerKmCharge: dec("5"), SurgeMultiplier: dec("1"), Timezone: "Mars/Olympus"}

	var buf bytes.Buffer
	r := NewResolver(repo, time.UTC, WithLogger(logger.New(logger.Options{Output: &buf})))
	require.NoError(t, r.Reload(ctx))

	eff := r.Resolve(ctx, "")
	assert.Equal(t, SourceGlobal, eff.Source)
	assert.Equal(t, time.UTC, eff.Location)
	assert.Contains(t, buf.String(), "settings.unknown_timezone")
	assert.Contains(t, buf.String(), "Mars/Olympus")
}
