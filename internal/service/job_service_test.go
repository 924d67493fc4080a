package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/tubefetch/internal/media"
	"github.com/mediavault/tubefetch/internal/models"
	"github.com/mediavault/tubefetch/internal/repository"
)

type jobTestEnv struct {
	svc        *JobService
	ledger     *fakeLedgerStore
	jobs       *fakeJobStore
	downloader *fakeDownloader
	uploader   *fakeUploader
	notifier   *fakeNotifier
}

func newJobTestEnv(t *testing.T, cfgMut func(*jobTestEnv)) *jobTestEnv {
	t.Helper()
	env := &jobTestEnv{
		ledger: newFakeLedgerStore(),
		jobs:   newFakeJobStore(),
		downloader: &fakeDownloader{art: &media.Artifact{
			Path: "/tmp/x/video.mp4", Title: "Some Video", Duration: "3:20", SizeBytes: 10 * 1024 * 1024,
		}},
		uploader: &fakeUploader{link: "https://files.example.com/video.mp4"},
		notifier: &fakeNotifier{},
	}
	cfg := testConfig()
	fetcher := &fakeFetcher{info: &media.MediaInfo{URL: "https://youtu.be/abc", Title: "Some Video"}}
	env.svc = NewJobService(cfg, testLogger(), NewLedgerService(testLogger(), env.ledger),
		env.jobs, fetcher, env.downloader, env.uploader, env.notifier)
	if cfgMut != nil {
		cfgMut(env)
	}
	return env
}

func (e *jobTestEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.svc.Shutdown(ctx))
}

func submitSingle(t *testing.T, env *jobTestEnv, user *models.User, delivery models.DeliveryChannel) *models.Job {
	t.Helper()
	quote, err := env.svc.Prepare(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	jobs, err := env.svc.Submit(context.Background(), SubmitRequest{
		User: user, Quote: quote, Format: "720p", Delivery: delivery,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	return jobs[0]
}

func TestJobLifecycleDirectDelivery(t *testing.T) {
	env := newJobTestEnv(t, nil)
	user := &models.User{ID: 1, TelegramID: 100, Registered: true}
	_, err := env.ledger.Credit(context.Background(), user.ID, 5, nil, "seed")
	require.NoError(t, err)

	job := submitSingle(t, env, user, models.DeliveryDirect)
	env.drain(t)

	final := env.jobs.get(job.ID)
	assert.Equal(t, models.JobCompleted, final.Status)
	assert.Equal(t, models.DeliveryDirect, final.DeliveredVia)
	assert.NotNil(t, final.CompletedAt)

	balance, _ := env.ledger.Balance(context.Background(), user.ID)
	assert.Equal(t, 4, balance, "one token reserved for one item")
	assert.Equal(t, 1, env.uploader.direct)
	assert.Equal(t, 0, env.uploader.stored)
	assert.Equal(t, 1, env.downloader.released, "scratch space is reclaimed")
	assert.Equal(t, 1, env.notifier.count())
}

func TestJobPlaylistReservesPerItem(t *testing.T) {
	env := newJobTestEnv(t, nil)
	fetcher := &fakeFetcher{info: &media.MediaInfo{
		URL: "https://youtube.com/playlist?list=x", Title: "Mix", Playlist: true,
		Items: []media.PlaylistItem{
			{URL: "https://youtu.be/a", Title: "A"},
			{URL: "https://youtu.be/b", Title: "B"},
			{URL: "https://youtu.be/c", Title: "C"},
		},
	}}
	env.svc.fetcher = fetcher
	user := &models.User{ID: 1, TelegramID: 100, Registered: true}
	_, err := env.ledger.Credit(context.Background(), user.ID, 10, nil, "seed")
	require.NoError(t, err)

	quote, err := env.svc.Prepare(context.Background(), fetcher.info.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, quote.Cost)

	jobs, err := env.svc.Submit(context.Background(), SubmitRequest{
		User: user, Quote: quote, Format: "mp3", Delivery: models.DeliveryStorage,
	})
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
	env.drain(t)

	balance, _ := env.ledger.Balance(context.Background(), user.ID)
	assert.Equal(t, 7, balance, "one debit covering all items")
	for _, job := range jobs {
		final := env.jobs.get(job.ID)
		assert.Equal(t, models.JobCompleted, final.Status)
		assert.Equal(t, models.JobPlaylistItem, final.Kind)
	}
}

func TestJobSubmitInsufficientBalance(t *testing.T) {
	env := newJobTestEnv(t, nil)
	user := &models.User{ID: 1, TelegramID: 100, Registered: true}

	quote, err := env.svc.Prepare(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	_, err = env.svc.Submit(context.Background(), SubmitRequest{
		User: user, Quote: quote, Format: "720p", Delivery: models.DeliveryDirect,
	})
	require.ErrorIs(t, err, repository.ErrInsufficientBalance)

	jobs, _ := env.jobs.ListForUser(context.Background(), user.ID, 10)
	assert.Empty(t, jobs, "nothing persisted when the reservation fails")
	balance, _ := env.ledger.Balance(context.Background(), user.ID)
	assert.Equal(t, 0, balance)
}

func TestJobTrustedUserSkipsReservation(t *testing.T) {
	env := newJobTestEnv(t, nil)
	operator := &models.User{ID: 2, TelegramID: 999, Registered: true}

	job := submitSingle(t, env, operator, models.DeliveryDirect)
	env.drain(t)

	assert.Equal(t, models.JobCompleted, env.jobs.get(job.ID).Status)
	balance, _ := env.ledger.Balance(context.Background(), operator.ID)
	assert.Equal(t, 0, balance, "no debit for trusted users")
}

func TestJobOversizeArtifactFallsBackToStorage(t *testing.T) {
	env := newJobTestEnv(t, func(e *jobTestEnv) {
		e.downloader.art.SizeBytes = 600 * 1024 * 1024
	})
	user := &models.User{ID: 1, TelegramID: 100, Registered: true}
	_, err := env.ledger.Credit(context.Background(), user.ID, 5, nil, "seed")
	require.NoError(t, err)

	job := submitSingle(t, env, user, models.DeliveryDirect)
	env.drain(t)

	final := env.jobs.get(job.ID)
	assert.Equal(t, models.JobCompleted, final.Status)
	assert.Equal(t, models.DeliveryDirect, final.RequestedDelivery, "the original request is preserved")
	assert.Equal(t, models.DeliveryStorage, final.DeliveredVia)
	assert.Equal(t, "https://files.example.com/video.mp4", final.StorageLink)
	assert.Equal(t, 0, env.uploader.direct, "oversize artifacts never hit the direct channel")
}

func TestJobDirectFailureFallsBackToStorage(t *testing.T) {
	env := newJobTestEnv(t, func(e *jobTestEnv) {
		e.uploader.directErr = context.DeadlineExceeded
	})
	user := &models.User{ID: 1, TelegramID: 100, Registered: true}
	_, err := env.ledger.Credit(context.Background(), user.ID, 5, nil, "seed")
	require.NoError(t, err)

	job := submitSingle(t, env, user, models.DeliveryDirect)
	env.drain(t)

	final := env.jobs.get(job.ID)
	assert.Equal(t, models.JobCompleted, final.Status)
	assert.Equal(t, models.DeliveryStorage, final.DeliveredVia)
	assert.Equal(t, 1, env.uploader.direct)
	assert.Equal(t, 1, env.uploader.stored)
}

func TestJobFailureKeepsReservation(t *testing.T) {
	env := newJobTestEnv(t, func(e *jobTestEnv) {
		e.downloader.err = &media.DownloadError{Kind: models.FailureRestricted, Msg: "sign in to confirm your age"}
	})
	user := &models.User{ID: 1, TelegramID: 100, Registered: true}
	_, err := env.ledger.Credit(context.Background(), user.ID, 5, nil, "seed")
	require.NoError(t, err)

	job := submitSingle(t, env, user, models.DeliveryDirect)
	env.drain(t)

	final := env.jobs.get(job.ID)
	assert.Equal(t, models.JobFailed, final.Status)
	assert.Equal(t, models.FailureRestricted, final.FailureKind)

	balance, _ := env.ledger.Balance(context.Background(), user.ID)
	assert.Equal(t, 4, balance, "failed jobs do not refund")
	assert.Equal(t, 1, env.notifier.count())
}

func TestJobSubmitRejectsUnknownFormat(t *testing.T) {
	env := newJobTestEnv(t, nil)
	user := &models.User{ID: 1, TelegramID: 999}

	quote, err := env.svc.Prepare(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	_, err = env.svc.Submit(context.Background(), SubmitRequest{
		User: user, Quote: quote, Format: "8k", Delivery: models.DeliveryDirect,
	})
	assert.Error(t, err)
}

func TestJobCancelUnknownJob(t *testing.T) {
	env := newJobTestEnv(t, nil)
	assert.False(t, env.svc.Cancel(42, &models.User{ID: 1, TelegramID: 100}))
}

func TestJobCancelRequiresOwnership(t *testing.T) {
	env := newJobTestEnv(t, func(e *jobTestEnv) {
		e.downloader.block = make(chan struct{})
	})
	owner := &models.User{ID: 1, TelegramID: 100, Registered: true}
	_, err := env.ledger.Credit(context.Background(), owner.ID, 5, nil, "seed")
	require.NoError(t, err)

	job := submitSingle(t, env, owner, models.DeliveryDirect)
	require.Contains(t, env.svc.Running(), job.ID)

	stranger := &models.User{ID: 2, TelegramID: 200, Registered: true}
	assert.False(t, env.svc.Cancel(job.ID, stranger), "strangers cannot cancel someone else's job")
	assert.Contains(t, env.svc.Running(), job.ID, "the job keeps running")

	assert.True(t, env.svc.Cancel(job.ID, owner))
	env.drain(t)

	final := env.jobs.get(job.ID)
	assert.Equal(t, models.JobFailed, final.Status)
	assert.Equal(t, models.FailureRateLimited, final.FailureKind)

	balance, _ := env.ledger.Balance(context.Background(), owner.ID)
	assert.Equal(t, 4, balance, "cancellation does not refund")
}

func TestJobCancelByOperator(t *testing.T) {
	env := newJobTestEnv(t, func(e *jobTestEnv) {
		e.downloader.block = make(chan struct{})
	})
	owner := &models.User{ID: 1, TelegramID: 100, Registered: true}
	_, err := env.ledger.Credit(context.Background(), owner.ID, 5, nil, "seed")
	require.NoError(t, err)

	job := submitSingle(t, env, owner, models.DeliveryDirect)

	operator := &models.User{ID: 3, TelegramID: 999}
	assert.True(t, env.svc.Cancel(job.ID, operator), "trusted users may cancel any job")
	env.drain(t)
	assert.Equal(t, models.JobFailed, env.jobs.get(job.ID).Status)
}

// flakyJobStore fails the nth insert to simulate a mid-playlist persistence
// error.
type flakyJobStore struct {
	*fakeJobStore
	creates int
	failOn  int
}

func (f *flakyJobStore) Create(ctx context.Context, job *models.Job) error {
	f.creates++
	if f.creates == f.failOn {
		return fmt.Errorf("insert failed")
	}
	return f.fakeJobStore.Create(ctx, job)
}

func TestJobPlaylistPersistFailureDispatchesNothing(t *testing.T) {
	env := newJobTestEnv(t, nil)
	store := &flakyJobStore{fakeJobStore: env.jobs, failOn: 2}
	env.svc.jobs = store
	env.svc.fetcher = &fakeFetcher{info: &media.MediaInfo{
		URL: "https://youtube.com/playlist?list=x", Title: "Mix", Playlist: true,
		Items: []media.PlaylistItem{
			{URL: "https://youtu.be/a", Title: "A"},
			{URL: "https://youtu.be/b", Title: "B"},
			{URL: "https://youtu.be/c", Title: "C"},
		},
	}}
	user := &models.User{ID: 1, TelegramID: 100, Registered: true}
	_, err := env.ledger.Credit(context.Background(), user.ID, 10, nil, "seed")
	require.NoError(t, err)

	quote, err := env.svc.Prepare(context.Background(), "https://youtube.com/playlist?list=x")
	require.NoError(t, err)
	_, err = env.svc.Submit(context.Background(), SubmitRequest{
		User: user, Quote: quote, Format: "mp3", Delivery: models.DeliveryStorage,
	})
	require.Error(t, err)

	assert.Empty(t, env.svc.Running(), "no item runs when the playlist could not be fully persisted")
	env.drain(t)
	assert.Equal(t, 0, env.notifier.count())
}
