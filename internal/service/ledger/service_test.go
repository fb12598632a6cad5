package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/site"
	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/geofence"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/validator"
)

var (
	siteCenter = geofence.Point{Latitude: -33.4489, Longitude: -70.6693}
	testNow    = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc       *LedgerServiceImpl
	marks     *memMarks
	workers   *memWorkers
	sites     *memSites
	evaluator *recordingEvaluator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	consent := testNow.Add(-24 * time.Hour)
	workers := &memWorkers{workers: map[string]worker.Worker{
		"w1":        {ID: "w1", Role: worker.RoleWorker, Active: true, ConsentAcceptedAt: &consent},
		"w2":        {ID: "w2", Role: worker.RoleWorker, Active: true, ConsentAcceptedAt: &consent},
		"inactive":  {ID: "inactive", Role: worker.RoleWorker, Active: false, ConsentAcceptedAt: &consent},
		"noconsent": {ID: "noconsent", Role: worker.RoleWorker, Active: true},
	}}
	sites := &memSites{
		sites: map[string]site.Site{
			"hq":     {ID: "hq", Latitude: siteCenter.Latitude, Longitude: siteCenter.Longitude, RadiusMeters: 100, Active: true},
			"open":   {ID: "open", Latitude: 0, Longitude: 0, RadiusMeters: 0, Active: true},
			"closed": {ID: "closed", Latitude: 0, Longitude: 0, RadiusMeters: 0, Active: false},
		},
		assigned: map[string]bool{},
	}
	for _, s := range []string{"hq", "open", "closed"} {
		for _, w := range []string{"w1", "w2", "inactive", "noconsent"} {
			sites.assigned[s+"/"+w] = true
		}
	}
	sites.sites["foreign"] = site.Site{ID: "foreign", RadiusMeters: 0, Active: true}

	marks := newMemMarks()
	evaluator := &recordingEvaluator{}
	svc := NewLedgerService(passthroughTx{}, marks, workers, sites, evaluator)
	svc.now = func() time.Time { return testNow }

	return &fixture{svc: svc, marks: marks, workers: workers, sites: sites, evaluator: evaluator}
}

func actor(id string) worker.Actor {
	return worker.Actor{WorkerID: id, Role: worker.RoleWorker}
}

func inside() *geofence.Point {
	p := siteCenter
	return &p
}

func offsetNorth(meters float64) *geofence.Point {
	return &geofence.Point{Latitude: siteCenter.Latitude + meters/111194.92664455873, Longitude: siteCenter.Longitude}
}

func request(event mark.EventType) mark.SubmitRequest {
	return mark.SubmitRequest{EventType: event, SiteID: "hq", DeviceID: "device-1", Geo: inside()}
}

func TestSubmit_FirstMarkStartsChain(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Submit(context.Background(), actor("w1"), request(mark.EventIn))
	require.NoError(t, err)

	chain, _ := f.marks.ListByWorker(context.Background(), "w1")
	require.Len(t, chain, 1)
	assert.Nil(t, chain[0].HashPrev)
	assert.Equal(t, resp.HashSelf, chain[0].HashSelf)
	assert.Equal(t, "RCPT-"+strings.ToUpper(resp.HashSelf[:12]), resp.ReceiptReference)
	require.NotNil(t, resp.GeoStatus)
	assert.Equal(t, geofence.StatusOK, *resp.GeoStatus)
	assert.Len(t, f.evaluator.calls, 1)
}

func TestSubmit_LinksToPreviousMark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, actor("w1"), request(mark.EventIn))
	require.NoError(t, err)
	second, err := f.svc.Submit(ctx, actor("w1"), request(mark.EventOut))
	require.NoError(t, err)

	chain, _ := f.marks.ListByWorker(ctx, "w1")
	require.Len(t, chain, 2)
	require.NotNil(t, chain[1].HashPrev)
	assert.Equal(t, first.HashSelf, *chain[1].HashPrev)
	assert.Equal(t, second.HashSelf, chain[1].HashSelf)
	assert.True(t, second.ServerTimestamp.After(first.ServerTimestamp), "timestamps must be strictly increasing with a frozen clock")
}

func TestSubmit_ServerTimestampNeverGoesBackwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, actor("w1"), request(mark.EventIn))
	require.NoError(t, err)

	f.svc.now = func() time.Time { return testNow.Add(-time.Hour) }
	resp, err := f.svc.Submit(ctx, actor("w1"), request(mark.EventOut))
	require.NoError(t, err)

	assert.Equal(t, testNow.Add(time.Microsecond), resp.ServerTimestamp)
}

func TestSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		worker string
		mutate func(r *mark.SubmitRequest)
		code   mark.RejectionCode
	}{
		{"inactive worker", "inactive", nil, mark.CodePersonInactive},
		{"consent missing", "noconsent", nil, mark.CodeConsentMissing},
		{"site inactive", "w1", func(r *mark.SubmitRequest) { r.SiteID = "closed" }, mark.CodeSiteInactive},
		{"site not assigned", "w1", func(r *mark.SubmitRequest) { r.SiteID = "foreign" }, mark.CodeSiteNotAccessible},
		{"geo required", "w1", func(r *mark.SubmitRequest) { r.Geo = nil }, mark.CodeGeoRequired},
		{"outside geofence", "w1", func(r *mark.SubmitRequest) { r.Geo = offsetNorth(200) }, mark.CodeOutsideGeofence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := request(mark.EventIn)
			if tt.mutate != nil {
				tt.mutate(&req)
			}

			_, err := f.svc.Submit(context.Background(), actor(tt.worker), req)

			var rejection *mark.RejectionError
			require.ErrorAs(t, err, &rejection)
			assert.Equal(t, tt.code, rejection.Code)

			workers, _ := f.marks.WorkersWithMarks(context.Background())
			assert.Empty(t, workers, "rejected submissions must not write marks")
			assert.Empty(t, f.evaluator.calls)
		})
	}
}

func TestSubmit_AttachedConsentIsPersisted(t *testing.T) {
	f := newFixture(t)
	req := request(mark.EventIn)
	req.ConsentAccepted = true

	_, err := f.svc.Submit(context.Background(), actor("noconsent"), req)
	require.NoError(t, err)

	w, _ := f.workers.GetByID(context.Background(), "noconsent")
	assert.True(t, w.HasConsent())

	_, err = f.svc.Submit(context.Background(), actor("noconsent"), request(mark.EventOut))
	assert.NoError(t, err)
}

func TestSubmit_WarnBandIsAcceptedAndRecorded(t *testing.T) {
	f := newFixture(t)
	req := request(mark.EventIn)
	req.Geo = offsetNorth(110)

	resp, err := f.svc.Submit(context.Background(), actor("w1"), req)
	require.NoError(t, err)

	require.NotNil(t, resp.GeoStatus)
	assert.Equal(t, geofence.StatusWarn, *resp.GeoStatus)
	chain, _ := f.marks.ListByWorker(context.Background(), "w1")
	assert.Equal(t, geofence.StatusWarn, *chain[0].GeoStatus)
}

func TestSubmit_ZeroRadiusSkipsGeofence(t *testing.T) {
	f := newFixture(t)
	req := request(mark.EventIn)
	req.SiteID = "open"
	req.Geo = nil

	resp, err := f.svc.Submit(context.Background(), actor("w1"), req)
	require.NoError(t, err)
	assert.Nil(t, resp.GeoStatus)
}

func TestSubmit_ValidationAndNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, actor("w1"), mark.SubmitRequest{EventType: "SIDEWAYS"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	req := request(mark.EventIn)
	req.SiteID = "missing"
	_, err = f.svc.Submit(ctx, actor("w1"), req)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = f.svc.Submit(ctx, actor("ghost"), request(mark.EventIn))
	assert.ErrorIs(t, err, worker.ErrWorkerNotFound)

	_, err = f.svc.Submit(ctx, worker.Actor{}, request(mark.EventIn))
	assert.Equal(t, apperror.KindAuthorization, apperror.KindOf(err))

	workers, _ := f.marks.WorkersWithMarks(ctx)
	assert.Empty(t, workers)
}

func TestSubmit_ClientRefIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(mark.EventIn)
	req.ClientRef = "local-1"
	first, err := f.svc.Submit(ctx, actor("w1"), req)
	require.NoError(t, err)

	// The original is returned even once the worker could no longer mark.
	f.workers.workers["w1"] = worker.Worker{ID: "w1", Role: worker.RoleWorker, Active: false}
	again, err := f.svc.Submit(ctx, actor("w1"), req)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	chain, _ := f.marks.ListByWorker(ctx, "w1")
	assert.Len(t, chain, 1)
	assert.Len(t, f.evaluator.calls, 1)
}

func TestSubmit_ClientRefIsScopedToDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(mark.EventIn)
	req.ClientRef = "local-1"
	first, err := f.svc.Submit(ctx, actor("w1"), req)
	require.NoError(t, err)

	req.DeviceID = "device-2"
	second, err := f.svc.Submit(ctx, actor("w1"), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	other, err := f.svc.Submit(ctx, actor("w2"), request(mark.EventIn))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	chain, _ := f.marks.ListByWorker(ctx, "w1")
	assert.Len(t, chain, 2)
}

func TestAppend_KnownClientRefIsNotWritten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(mark.EventIn)
	req.ClientRef = "local-1"
	first, err := f.svc.Submit(ctx, actor("w1"), req)
	require.NoError(t, err)

	ref := "local-1"
	candidate := mark.Mark{ID: "dup", WorkerID: "w1", SiteID: "hq", EventType: mark.EventIn, DeviceID: "device-1", ClientRef: &ref}
	appended, previous, replayed, err := f.svc.Append(ctx, candidate)
	require.NoError(t, err)

	assert.True(t, replayed)
	assert.Nil(t, previous)
	assert.Equal(t, first.ID, appended.ID)
	chain, _ := f.marks.ListByWorker(ctx, "w1")
	assert.Len(t, chain, 1)
}

func TestSubmit_EvaluatorFailureKeepsMark(t *testing.T) {
	f := newFixture(t)
	f.evaluator.err = errors.New("evaluator down")

	_, err := f.svc.Submit(context.Background(), actor("w1"), request(mark.EventIn))
	require.NoError(t, err)

	chain, _ := f.marks.ListByWorker(context.Background(), "w1")
	assert.Len(t, chain, 1)
}

func TestAppend_ConcurrentSameWorkerNeverForks(t *testing.T) {
	f := newFixture(t)
	f.marks.delay = time.Millisecond
	f.svc.now = time.Now

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request(mark.EventIn)
			req.DeviceID = fmt.Sprintf("device-%d", i)
			if _, err := f.svc.Submit(context.Background(), actor("w1"), req); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("append failed: %v", err)
	}

	report, err := f.svc.VerifyChain(context.Background(), "w1")
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, n, report.TotalMarks)
}

func TestAppend_DifferentWorkersDoNotInterfere(t *testing.T) {
	f := newFixture(t)
	f.svc.now = time.Now

	var wg sync.WaitGroup
	for _, id := range []string{"w1", "w2"} {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := f.svc.Submit(context.Background(), actor(id), request(mark.EventIn))
				assert.NoError(t, err)
			}(id)
		}
	}
	wg.Wait()

	report, err := f.svc.VerifyAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, report.TotalMarks)
	assert.Equal(t, 2, report.ValidChains)
	assert.Zero(t, report.BrokenChains)
}

func seedChain(t *testing.T, f *fixture, workerID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		event := mark.EventIn
		if i%2 == 1 {
			event = mark.EventOut
		}
		_, err := f.svc.Submit(context.Background(), actor(workerID), request(event))
		require.NoError(t, err)
	}
}

func TestVerifyChain_CleanChain(t *testing.T) {
	f := newFixture(t)
	seedChain(t, f, "w1", 5)

	report, err := f.svc.VerifyChain(context.Background(), "w1")
	require.NoError(t, err)

	assert.True(t, report.Valid)
	assert.Equal(t, 5, report.TotalMarks)
	assert.Empty(t, report.Issues)
	assert.NoError(t, f.svc.EnsureIntact(context.Background(), "w1"))
}

func TestVerifyChain_EmptyChainIsValid(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.VerifyChain(context.Background(), "w1")
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Zero(t, report.TotalMarks)
}

func TestVerifyChain_TamperedPayloadIsIntegrityFailure(t *testing.T) {
	f := newFixture(t)
	seedChain(t, f, "w1", 5)

	chain, _ := f.marks.ListByWorker(context.Background(), "w1")
	f.marks.tamper("w1", 2, func(m *mark.Mark) {
		note := "edited"
		m.Note = &note
	})

	report, err := f.svc.VerifyChain(context.Background(), "w1")
	require.NoError(t, err)

	assert.False(t, report.Valid)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, mark.ChainIssue{WorkerID: "w1", MarkID: chain[2].ID, IssueKind: mark.IssueIntegrityFailure}, report.Issues[0])
}

func TestVerifyChain_RewrittenHashBreaksNextLink(t *testing.T) {
	f := newFixture(t)
	seedChain(t, f, "w1", 4)

	chain, _ := f.marks.ListByWorker(context.Background(), "w1")
	f.marks.tamper("w1", 1, func(m *mark.Mark) { m.HashSelf = strings.Repeat("0", 64) })

	report, err := f.svc.VerifyChain(context.Background(), "w1")
	require.NoError(t, err)

	assert.ElementsMatch(t, []mark.ChainIssue{
		{WorkerID: "w1", MarkID: chain[1].ID, IssueKind: mark.IssueIntegrityFailure},
		{WorkerID: "w1", MarkID: chain[2].ID, IssueKind: mark.IssueBrokenLink},
	}, report.Issues)
}

func TestVerifyChain_DeletedMarkBreaksLink(t *testing.T) {
	f := newFixture(t)
	seedChain(t, f, "w1", 4)

	chain, _ := f.marks.ListByWorker(context.Background(), "w1")
	f.marks.remove("w1", 1)

	report, err := f.svc.VerifyChain(context.Background(), "w1")
	require.NoError(t, err)

	assert.Equal(t, []mark.ChainIssue{
		{WorkerID: "w1", MarkID: chain[2].ID, IssueKind: mark.IssueBrokenLink},
	}, report.Issues)
}

func TestVerifyChain_NeverRepairs(t *testing.T) {
	f := newFixture(t)
	seedChain(t, f, "w1", 3)
	f.marks.tamper("w1", 0, func(m *mark.Mark) { m.DeviceID = "spoofed" })

	for i := 0; i < 2; i++ {
		report, err := f.svc.VerifyChain(context.Background(), "w1")
		require.NoError(t, err)
		assert.False(t, report.Valid)
	}

	chain, _ := f.marks.ListByWorker(context.Background(), "w1")
	assert.Equal(t, "spoofed", chain[0].DeviceID)
}

func TestEnsureIntact_ReturnsIntegrityError(t *testing.T) {
	f := newFixture(t)
	seedChain(t, f, "w1", 2)
	f.marks.tamper("w1", 1, func(m *mark.Mark) { m.EventType = mark.EventIn })

	err := f.svc.EnsureIntact(context.Background(), "w1")

	var integrity *mark.IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, "w1", integrity.WorkerID)
	assert.Equal(t, apperror.KindIntegrity, apperror.KindOf(err))
	assert.False(t, apperror.IsRetryable(err))
}

func TestVerifyAll_ReportsPerMarkIssues(t *testing.T) {
	f := newFixture(t)
	seedChain(t, f, "w1", 3)
	seedChain(t, f, "w2", 2)
	f.marks.tamper("w2", 0, func(m *mark.Mark) { m.SiteID = "elsewhere" })

	report, err := f.svc.VerifyAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.TotalMarks)
	assert.Equal(t, 1, report.ValidChains)
	assert.Equal(t, 1, report.BrokenChains)
	require.Len(t, report.PerMarkIssues, 1)
	assert.Equal(t, "w2", report.PerMarkIssues[0].WorkerID)
}

func TestListMarks_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedChain(t, f, "w1", 2)

	own, err := f.svc.ListMarks(ctx, actor("w1"), mark.MarkFilter{})
	require.NoError(t, err)
	assert.Len(t, own, 2)

	_, err = f.svc.ListMarks(ctx, actor("w2"), mark.MarkFilter{WorkerID: "w1"})
	assert.ErrorIs(t, err, worker.ErrPermissionRequired)

	supervisor := worker.Actor{WorkerID: "sup", Role: worker.RoleSupervisor}
	theirs, err := f.svc.ListMarks(ctx, supervisor, mark.MarkFilter{WorkerID: "w1"})
	require.NoError(t, err)
	assert.Len(t, theirs, 2)

	from := testNow.Add(time.Hour)
	none, err := f.svc.ListMarks(ctx, actor("w1"), mark.MarkFilter{From: &from})
	require.NoError(t, err)
	assert.Empty(t, none)
}
