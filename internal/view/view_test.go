package view

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crm/internal/clock"
	"github.com/JonMunkholm/crm/internal/edit"
	"github.com/JonMunkholm/crm/internal/fetch"
	"github.com/JonMunkholm/crm/internal/grid"
	"github.com/JonMunkholm/crm/internal/notify"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/validate"
)

// flakySource fails selected operations.
type flakySource struct {
	*source.Memory
	failDelete bool
	failStats  bool
	updates    int
}

func (f *flakySource) Delete(ctx context.Context, id int64) error {
	if f.failDelete {
		return &source.TransportError{Op: "delete", Status: 502}
	}
	return f.Memory.Delete(ctx, id)
}

func (f *flakySource) Stats(ctx context.Context) (record.Stats, error) {
	if f.failStats {
		return record.Stats{}, &source.TransportError{Op: "stats", Err: errors.New("connection refused")}
	}
	return f.Memory.Stats(ctx)
}

func (f *flakySource) Update(ctx context.Context, id int64, p record.Patch) (record.Record, error) {
	f.updates++
	return f.Memory.Update(ctx, id, p)
}

func setup() (*flakySource, *clock.Fake, *notify.Channel) {
	fc := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return &flakySource{Memory: source.NewMemory(source.DemoRecords()...)}, fc, notify.New(fc, 3*time.Second)
}

func TestList_LoadSortPage(t *testing.T) {
	src, _, n := setup()
	ctx := context.Background()
	v := NewList(src, 5, n)

	require.True(t, v.Load(ctx, fetch.Init()))
	assert.Equal(t, 12, v.Total)
	assert.Equal(t, 3, v.TotalPages)
	assert.Equal(t, int64(12), v.Records[0].ID, "default sort is id desc")

	v.Load(ctx, fetch.SortBy("id"))
	assert.Equal(t, int64(1), v.Records[0].ID)

	v.Load(ctx, fetch.GoToPage(7))
	assert.Equal(t, 3, v.Page)
	assert.Len(t, v.Records, 2)
	assert.False(t, v.Loading)
	assert.Empty(t, v.ErrorMessage())
}

func TestList_StaleResultIgnored(t *testing.T) {
	src, _, n := setup()
	ctx := context.Background()
	v := NewList(src, 5, n)

	slow := v.Begin(fetch.Init())
	fast := v.Begin(fetch.SetFilter(grid.Filter{Owner: "Hugo"}))
	require.True(t, v.Apply(v.Run(ctx, fast)))
	assert.False(t, v.Apply(v.Run(ctx, slow)))
	assert.Equal(t, 3, v.Total, "filtered result is kept")
}

func TestList_LoadFailureDoesNotPanic(t *testing.T) {
	_, _, n := setup()
	v := NewList(brokenList{}, 5, n)
	v.Load(context.Background(), fetch.Init())
	assert.Error(t, v.Err)
	assert.Nil(t, v.Records)
	assert.Contains(t, v.ErrorMessage(), "Failed to load companies")
}

type brokenList struct{ source.Source }

func (brokenList) List(context.Context, source.ListParams) (source.ListResult, error) {
	return source.ListResult{}, &source.TransportError{Op: "list", Status: 500}
}

func TestList_InlineEdit(t *testing.T) {
	src, _, n := setup()
	ctx := context.Background()
	v := NewList(src, 5, n)
	v.Load(ctx, fetch.Init())

	require.NoError(t, v.StartEdit(12))
	v.Edit.SetField("city", "Brest")
	require.NoError(t, v.StartEdit(11))
	v.Edit.SetField("owner", "Inès")
	require.NoError(t, v.SaveEdit(ctx))

	assert.Equal(t, 1, src.updates, "the abandoned edit of 12 was never saved")
	assert.Equal(t, "Inès", v.Records[1].Owner)
	r12, _ := src.Get(ctx, 12)
	assert.Equal(t, "Nice", r12.City)

	assert.True(t, source.IsNotFound(v.StartEdit(999)))
}

func TestList_DeleteFailureKeepsConfirmation(t *testing.T) {
	src, _, n := setup()
	ctx := context.Background()
	v := NewList(src, 5, n)
	v.Load(ctx, fetch.Init())

	src.failDelete = true
	v.AskDelete(12)
	require.Error(t, v.Delete(ctx))
	assert.Equal(t, int64(12), v.ConfirmDelete)
	assert.True(t, source.IsTransport(v.DeleteErr))

	src.failDelete = false
	require.NoError(t, v.Delete(ctx))
	assert.Zero(t, v.ConfirmDelete)
	assert.Equal(t, 11, v.Total)
	got, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, notify.Success, got.Kind)
}

func TestDetail_DeleteFlashSurvivesNavigationThenExpires(t *testing.T) {
	src, fc, n := setup()
	ctx := context.Background()

	d := NewDetail(src, n, 5)
	require.NoError(t, d.Load(ctx))
	d.AskDelete()
	require.NoError(t, d.Delete(ctx))
	assert.True(t, d.Deleted)

	fc.Advance(time.Second)
	list := NewList(src, 10, n)
	list.Load(ctx, fetch.Init())
	got, ok := list.Notify.Current()
	require.True(t, ok, "visible right after navigating back")
	assert.Equal(t, "Company deleted", got.Message)

	fc.Advance(3 * time.Second)
	_, ok = list.Notify.Current()
	assert.False(t, ok, "gone after 3s without navigation")
}

func TestDetail_FlashClearsOnSecondNavigation(t *testing.T) {
	src, _, n := setup()
	d := NewDetail(src, n, 5)
	d.FinishDelete(nil)

	NewList(src, 10, n)
	NewStats(src, n)
	_, ok := n.Current()
	assert.False(t, ok)
}

func TestDetail_NotFound(t *testing.T) {
	src, _, n := setup()
	d := NewDetail(src, n, 404)
	err := d.Load(context.Background())
	require.Error(t, err)
	assert.True(t, d.NotFound())
	assert.False(t, d.Loaded)
	assert.NotEmpty(t, d.ErrorMessage())
}

func TestDetail_DeleteFailure(t *testing.T) {
	src, _, n := setup()
	src.failDelete = true
	d := NewDetail(src, n, 5)
	d.AskDelete()
	require.Error(t, d.Delete(context.Background()))
	assert.True(t, d.Confirming)
	assert.Error(t, d.DeleteErr)
	assert.False(t, d.Deleted)
}

func TestForm_Create(t *testing.T) {
	src, _, n := setup()
	ctx := context.Background()
	f := NewCreateForm(src, n)

	assert.Equal(t, validate.MsgEmail, f.SetField("work_email", "bad@"))
	f.SetField("siren", "123")
	_, err := f.Submit(ctx)
	var fe *validate.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"company_name", "organization", "siren", "work_email"}, fe.Violations.Fields())
	assert.Equal(t, BannerInvalid, f.Banner)
	assert.Equal(t, validate.MsgRequired, f.FieldError("company_name"))

	f.SetField("work_email", "a@b.fr")
	f.SetField("siren", "123456789")
	f.SetField("company_name", "Nouvelle")
	f.SetField("organization", "Nouvelle SAS")
	f.SetField("ongoing_deals", "3")
	saved, err := f.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(13), saved.ID)
	assert.Equal(t, int64(3), *saved.OngoingDeals)

	NewDetail(src, n, saved.ID)
	got, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, "Company created", got.Message)
}

func TestForm_EditBackendRejection(t *testing.T) {
	src, _, n := setup()
	ctx := context.Background()
	f := NewEditForm(rejectingSource{src}, n, 3)
	require.NoError(t, f.Load(ctx))
	assert.Equal(t, "Éditions Lefèvre", f.Value("company_name"))

	f.SetField("city", "Paris 8e")
	_, err := f.Submit(ctx)
	require.True(t, source.IsValidation(err))
	assert.Equal(t, "Ville inconnue", f.Banner, "backend message shown verbatim")
	assert.Equal(t, "Paris 8e", f.Value("city"), "input kept")
}

type rejectingSource struct{ *flakySource }

func (rejectingSource) Update(context.Context, int64, record.Patch) (record.Record, error) {
	return record.Record{}, &source.ValidationError{Message: "Ville inconnue"}
}

func TestForm_EditNotLoaded(t *testing.T) {
	src, _, n := setup()
	f := NewEditForm(src, n, 99)
	assert.Error(t, f.Load(context.Background()))
	_, err := f.Submit(context.Background())
	assert.ErrorIs(t, err, edit.ErrNotEditing)
}

func TestStats_PanelsFailIndependently(t *testing.T) {
	src, _, n := setup()
	src.failStats = true
	v := NewStats(src, n)
	v.Load(context.Background())

	assert.True(t, v.Loaded)
	assert.Error(t, v.Totals.Err)
	assert.NotEmpty(t, v.Totals.ErrorMessage())
	require.NoError(t, v.ByOwner.Err)
	assert.Equal(t, record.OwnerCount{Owner: "Claire", Count: 4}, v.ByOwner.Data[0])
	require.NoError(t, v.Dashboard.Err)
	assert.Len(t, v.Dashboard.Data.RecentCompanies, record.RecentCompanies)
	require.NoError(t, v.Activity.Err)
	assert.Len(t, v.Activity.Data, 4)
	assert.InDelta(t, v.Dashboard.Data.Deals.ConversionRate()*100, v.ConversionRate(), 1e-9)
}

func TestSearch_LatestWins(t *testing.T) {
	var s Search
	a := s.Begin("bo")
	b := s.Begin("bou")
	assert.True(t, s.Apply(b, []record.Record{{ID: 1}}, nil))
	assert.False(t, s.Apply(a, nil, errors.New("late")))
	assert.Len(t, s.Results, 1)
	assert.False(t, s.Short())

	s.Set(fetch.SearchResult{Query: "x"})
	assert.True(t, s.Short())
	assert.Empty(t, s.Results)
}
