package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/neilberkman/acctabs/internal/core/contentview"
	"github.com/neilberkman/acctabs/internal/core/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeView struct {
	navigations []string
	zooms       []float64
	stops       int
	disposed    int
	handler     func(contentview.Event)
}

func (v *fakeView) Navigate(url string) error {
	v.navigations = append(v.navigations, url)
	return nil
}

func (v *fakeView) SetZoomFactor(f float64) error {
	v.zooms = append(v.zooms, f)
	return nil
}

func (v *fakeView) Stop()          { v.stops++ }
func (v *fakeView) Dispose() error { v.disposed++; return nil }

// concealingView can hide in place
type concealingView struct {
	*fakeView
	hidden []bool
}

func (v *concealingView) SetHidden(h bool) error {
	v.hidden = append(v.hidden, h)
	return nil
}

type fakeEngine struct {
	views   []*fakeView
	err     error
	conceal *concealingView
}

func (e *fakeEngine) Create(_ contentview.Options, handler func(contentview.Event)) (contentview.View, error) {
	if e.err != nil {
		return nil, e.err
	}
	v := &fakeView{handler: handler}
	e.views = append(e.views, v)
	if e.conceal != nil {
		e.conceal.fakeView = v
		return e.conceal, nil
	}
	return v, nil
}

type zoomRecorder struct {
	stored map[int64]float64
}

func (z *zoomRecorder) UpdateZoom(id int64, f float64) error {
	if z.stored == nil {
		z.stored = make(map[int64]float64)
	}
	z.stored[id] = f
	return nil
}

type eventRecord struct {
	gen uint64
	ev  contentview.Event
}

func newTestResource(t *testing.T, engine contentview.Engine) (*Resource, *zoomRecorder, *[]eventRecord) {
	t.Helper()
	store := &zoomRecorder{}
	var events []eventRecord
	acct := models.Account{ID: 1, Name: "Work", StoragePath: filepath.Join(t.TempDir(), "session_work"), ZoomFactor: 1.0}
	r := NewResource(acct, engine, store, "UA", func(gen uint64, ev contentview.Event) {
		events = append(events, eventRecord{gen, ev})
	})
	return r, store, &events
}

func TestMaterializeCreatesOneView(t *testing.T) {
	engine := &fakeEngine{}
	r, _, _ := newTestResource(t, engine)

	require.NoError(t, r.Materialize())
	require.NoError(t, r.Materialize())

	assert.True(t, r.Live())
	assert.Len(t, engine.views, 1)
	assert.DirExists(t, r.StoragePath())
}

func TestMaterializeFailureLeavesNoView(t *testing.T) {
	r, _, _ := newTestResource(t, &fakeEngine{err: errors.New("sandbox failure")})

	err := r.Materialize()

	var initErr *ResourceInitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, int64(1), initErr.AccountID)
	assert.False(t, r.Live())
}

func TestNavigateRequiresView(t *testing.T) {
	r, _, _ := newTestResource(t, &fakeEngine{})
	assert.ErrorIs(t, r.Navigate("https://x"), ErrNotMaterialized)
}

func TestNavigateCoalescesPendingTarget(t *testing.T) {
	engine := &fakeEngine{}
	r, _, _ := newTestResource(t, engine)
	require.NoError(t, r.Materialize())

	require.NoError(t, r.Navigate("https://a"))
	require.NoError(t, r.Navigate("https://a"))
	require.NoError(t, r.Reload())

	view := engine.views[0]
	assert.Equal(t, []string{"https://a"}, view.navigations)
	assert.True(t, r.Pending())

	// Load finishing opens the way for the next reload
	assert.True(t, r.HandleEvent(r.Generation(), contentview.Event{Kind: contentview.LoadFinished, OK: true}))
	assert.False(t, r.Pending())
	require.NoError(t, r.Reload())
	assert.Equal(t, []string{"https://a", "https://a"}, view.navigations)
}

func TestNavigateSupersedesDifferentTarget(t *testing.T) {
	engine := &fakeEngine{}
	r, _, _ := newTestResource(t, engine)
	require.NoError(t, r.Materialize())

	require.NoError(t, r.Navigate("https://a"))
	require.NoError(t, r.Navigate("https://b"))

	view := engine.views[0]
	assert.Equal(t, 1, view.stops)
	assert.Equal(t, []string{"https://a", "https://b"}, view.navigations)
	assert.Equal(t, "https://b", r.Target())
}

func TestSetZoomClampsAppliesAndPersists(t *testing.T) {
	engine := &fakeEngine{}
	r, store, _ := newTestResource(t, engine)
	require.NoError(t, r.Materialize())

	got, err := r.SetZoom(0.05)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got)
	assert.Equal(t, 0.5, store.stored[1])

	got, err = r.SetZoom(10)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
	assert.Equal(t, 3.0, store.stored[1])

	view := engine.views[0]
	assert.Equal(t, []float64{1.0, 0.5, 3.0}, view.zooms)
}

func TestSetZoomWithoutViewStillPersists(t *testing.T) {
	r, store, _ := newTestResource(t, &fakeEngine{})

	got, err := r.SetZoom(1.5)
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)
	assert.Equal(t, 1.5, store.stored[1])
}

func TestReleaseIsIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	r, _, _ := newTestResource(t, engine)
	require.NoError(t, r.Materialize())
	require.NoError(t, r.Navigate("https://a"))

	require.NoError(t, r.Release())
	require.NoError(t, r.Release())

	view := engine.views[0]
	assert.Equal(t, 1, view.stops)
	assert.Equal(t, 1, view.disposed)
	assert.False(t, r.Live())
}

func TestEventsFromReleasedViewAreStale(t *testing.T) {
	engine := &fakeEngine{}
	r, _, events := newTestResource(t, engine)
	require.NoError(t, r.Materialize())
	old := r.Generation()

	engine.views[0].handler(contentview.Event{Kind: contentview.RenderProcessTerminated, Status: contentview.StatusAbnormal})
	require.Len(t, *events, 1)
	assert.Equal(t, old, (*events)[0].gen)

	require.NoError(t, r.Release())
	require.NoError(t, r.Materialize())

	assert.False(t, r.HandleEvent(old, (*events)[0].ev))
	assert.True(t, r.HandleEvent(r.Generation(), contentview.Event{Kind: contentview.LoadFinished}))
}

func TestHideReleasesViewThatCannotConceal(t *testing.T) {
	engine := &fakeEngine{}
	r, _, _ := newTestResource(t, engine)
	require.NoError(t, r.Materialize())
	require.NoError(t, r.Navigate("https://example.test"))

	require.NoError(t, r.Hide())
	assert.False(t, r.Live())
	assert.Equal(t, 1, engine.views[0].stops)
	assert.Equal(t, 1, engine.views[0].disposed)

	require.NoError(t, r.Hide())
	require.NoError(t, r.Show())
	assert.False(t, r.Live())
}

func TestHideConcealsInPlace(t *testing.T) {
	cv := &concealingView{}
	engine := &fakeEngine{conceal: cv}
	r, _, _ := newTestResource(t, engine)
	require.NoError(t, r.Materialize())

	require.NoError(t, r.Hide())
	assert.True(t, r.Live())
	require.NoError(t, r.Show())
	assert.Equal(t, []bool{true, false}, cv.hidden)
	assert.Equal(t, 0, engine.views[0].disposed)
}
