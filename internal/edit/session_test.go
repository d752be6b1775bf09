package edit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crm/internal/clock"
	"github.com/JonMunkholm/crm/internal/notify"
	"github.com/JonMunkholm/crm/internal/record"
	"github.com/JonMunkholm/crm/internal/source"
	"github.com/JonMunkholm/crm/internal/validate"
)

type updateCall struct {
	id    int64
	patch record.Patch
}

type fakeUpdater struct {
	calls []updateCall
	err   error
}

func (f *fakeUpdater) Update(_ context.Context, id int64, patch record.Patch) (record.Record, error) {
	f.calls = append(f.calls, updateCall{id: id, patch: patch})
	if f.err != nil {
		return record.Record{}, f.err
	}
	return record.Record{ID: id}, nil
}

func company(id int64, name string) record.Record {
	r := record.Record{ID: id, CompanyName: name, Organization: name + " SA", OngoingDeals: record.Int(1)}
	r.Normalize()
	return r
}

func newSession() (*Session, *notify.Channel) {
	n := notify.New(clock.NewFake(time.Unix(0, 0)), 3*time.Second)
	return New(n), n
}

func TestBeginOnAnotherRecordDiscardsBuffer(t *testing.T) {
	s, _ := newSession()
	u := &fakeUpdater{}

	s.Begin(company(1, "A"))
	s.SetField("city", "Lyon")
	s.Begin(company(2, "B"))

	id, ok := s.EditingID()
	require.True(t, ok)
	assert.Equal(t, int64(2), id)
	assert.Equal(t, "", s.Buffer().City, "A's change is gone")

	s.SetField("city", "Nantes")
	_, err := s.Save(context.Background(), u)
	require.NoError(t, err)
	require.Len(t, u.calls, 1)
	assert.Equal(t, int64(2), u.calls[0].id, "update is never called for A")
	assert.Equal(t, record.Patch{"city": "Nantes"}, u.calls[0].patch)
}

func TestSetField_NumericCoercion(t *testing.T) {
	s, _ := newSession()
	s.Begin(company(1, "A"))

	assert.Equal(t, "", s.SetField("ongoing_deals", ""))
	assert.Nil(t, s.Buffer().OngoingDeals, "empty clears to absent, not zero")

	assert.Equal(t, "", s.SetField("revenue", "1 200,50"))
	assert.Equal(t, 1200.5, *s.Buffer().Revenue)

	assert.Equal(t, "must be a whole number", s.SetField("closed_deals", "2.5"))
	assert.Equal(t, "2.5", s.Input("closed_deals"), "invalid input stays visible")
	assert.Equal(t, "1 200,50", s.Input("revenue"))
	assert.Equal(t, "0", s.Input("invoice_count"), "untouched numbers show the buffer value")

	assert.Equal(t, validate.MsgCount, s.SetField("invoice_count", "-1"))
	assert.Equal(t, validate.MsgSIREN, s.SetField("siren", "12345678"))
	assert.Equal(t, "", s.SetField("siren", "123456789"))
	assert.NotContains(t, s.FieldErrors(), "siren")
}

func TestBeginSave_BlocksOnAllViolations(t *testing.T) {
	s, _ := newSession()
	u := &fakeUpdater{}
	s.Begin(company(1, "A"))

	s.SetField("work_email", "nope")
	s.SetField("company_name", "")
	s.SetField("closed_deals", "x")

	_, err := s.Save(context.Background(), u)
	var fe *validate.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"closed_deals", "company_name", "work_email"}, fe.Violations.Fields())
	assert.Empty(t, u.calls)
	assert.Equal(t, Editing, s.State())
}

func TestSave_SuccessReplacesCanonical(t *testing.T) {
	s, n := newSession()
	u := &fakeUpdater{}
	s.Begin(company(1, "A"))
	s.SetField("owner", "Claire")

	saved, err := s.Save(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "Claire", saved.Owner)
	assert.Equal(t, int64(1), saved.ID)
	assert.Equal(t, Idle, s.State())

	got, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, notify.Success, got.Kind)
}

func TestSave_FailureKeepsBuffer(t *testing.T) {
	s, n := newSession()
	u := &fakeUpdater{err: &source.ValidationError{Message: "Champs obligatoires manquants"}}
	s.Begin(company(1, "A"))
	s.SetField("city", "Lyon")

	_, err := s.Save(context.Background(), u)
	require.Error(t, err)
	assert.Equal(t, Editing, s.State())
	assert.Equal(t, "Lyon", s.Buffer().City)

	got, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, notify.Error, got.Kind)
	assert.Equal(t, "Champs obligatoires manquants", got.Message)

	u.err = nil
	_, err = s.Save(context.Background(), u)
	require.NoError(t, err)
	assert.Len(t, u.calls, 2)
}

func TestSave_NoChangesSkipsUpdate(t *testing.T) {
	s, _ := newSession()
	u := &fakeUpdater{}
	s.Begin(company(1, "A"))
	s.SetField("city", "")

	_, err := s.Save(context.Background(), u)
	require.NoError(t, err)
	assert.Empty(t, u.calls)
	assert.Equal(t, Idle, s.State())
}

func TestFinishSave_IgnoresReplacedEdit(t *testing.T) {
	s, _ := newSession()
	s.Begin(company(1, "A"))
	s.SetField("city", "Lyon")
	ticket, err := s.BeginSave()
	require.NoError(t, err)
	assert.Equal(t, Saving, s.State())

	s.Begin(company(2, "B"))
	_, ok := s.FinishSave(ticket, nil)
	assert.False(t, ok)
	assert.Equal(t, Editing, s.State())
	id, _ := s.EditingID()
	assert.Equal(t, int64(2), id)
}

func TestCancelAndNotEditing(t *testing.T) {
	s, _ := newSession()
	_, err := s.BeginSave()
	assert.ErrorIs(t, err, ErrNotEditing)
	assert.Equal(t, "", s.SetField("city", "x"))

	s.Begin(company(1, "A"))
	s.SetField("city", "Lyon")
	s.Cancel()
	assert.Equal(t, Idle, s.State())
	_, ok := s.EditingID()
	assert.False(t, ok)
	assert.Equal(t, "idle", s.State().String())
}
