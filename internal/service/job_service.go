package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mediavault/tubefetch/internal/config"
	"github.com/mediavault/tubefetch/internal/media"
	"github.com/mediavault/tubefetch/internal/models"
)

// JobService drives the per-request lifecycle: quote, reserve, fetch,
// deliver, finalize. Accepted jobs run as tracked background tasks; the
// submitting caller never blocks on them.
type JobService struct {
	cfg        config.Config
	log        *slog.Logger
	ledger     Ledger
	jobs       JobStore
	fetcher    Fetcher
	downloader Downloader
	uploader   Uploader
	notifier   Notifier

	mu      sync.Mutex
	running map[int64]runningJob
	wg      sync.WaitGroup
}

// runningJob is the cancellation handle for a dispatched job, tagged with its
// owner so cancellation can be authorized.
type runningJob struct {
	cancel context.CancelFunc
	userID int64
}

func NewJobService(cfg config.Config, log *slog.Logger, ledger Ledger, jobs JobStore, fetcher Fetcher, downloader Downloader, uploader Uploader, notifier Notifier) *JobService {
	return &JobService{
		cfg:        cfg,
		log:        log,
		ledger:     ledger,
		jobs:       jobs,
		fetcher:    fetcher,
		downloader: downloader,
		uploader:   uploader,
		notifier:   notifier,
		running:    make(map[int64]runningJob),
	}
}

// Quote is the cost estimate for a request: one token per deliverable item.
type Quote struct {
	Info *media.MediaInfo
	Cost int
}

// Prepare probes the source and produces a quote. No record is created and
// the ledger is untouched; an unreachable source surfaces
// media.ErrNotAvailable.
func (s *JobService) Prepare(ctx context.Context, url string) (*Quote, error) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	info, err := s.fetcher.Metadata(fctx, url)
	if err != nil {
		return nil, err
	}
	return &Quote{Info: info, Cost: info.ItemCount()}, nil
}

type SubmitRequest struct {
	User     *models.User
	Quote    *Quote
	Format   string
	Delivery models.DeliveryChannel
}

// Submit reserves the quoted cost and dispatches one background job per
// deliverable item. Trusted users skip the reservation debit entirely. On
// InsufficientBalance nothing is persisted and nothing is debited.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) ([]*models.Job, error) {
	if req.Quote == nil || req.Quote.Info == nil {
		return nil, fmt.Errorf("submit without quote")
	}
	if !media.ValidFormat(req.Format) {
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}

	if !s.cfg.IsAdmin(req.User.TelegramID) {
		if _, err := s.ledger.Debit(ctx, req.User.ID, req.Quote.Cost, "job reservation"); err != nil {
			return nil, err
		}
	}

	var jobs []*models.Job
	info := req.Quote.Info
	if info.Playlist {
		for _, item := range info.Items {
			jobs = append(jobs, &models.Job{
				UserID:            req.User.ID,
				SourceURL:         item.URL,
				Kind:              models.JobPlaylistItem,
				Format:            req.Format,
				RequestedDelivery: req.Delivery,
				Status:            models.JobReserved,
				Title:             item.Title,
			})
		}
	} else {
		jobs = append(jobs, &models.Job{
			UserID:            req.User.ID,
			SourceURL:         info.URL,
			Kind:              models.JobSingle,
			Format:            req.Format,
			RequestedDelivery: req.Delivery,
			Status:            models.JobReserved,
			Title:             info.Title,
		})
	}

	// Persist every row before dispatching any, so a mid-playlist insert
	// failure cannot leave half the paid items running and half lost.
	for _, job := range jobs {
		if err := s.jobs.Create(ctx, job); err != nil {
			return nil, fmt.Errorf("persist job: %w", err)
		}
	}
	for _, job := range jobs {
		s.dispatch(job, req.User)
	}
	return jobs, nil
}

// dispatch registers a cancellable handle for the job and runs it in its own
// goroutine.
func (s *JobService) dispatch(job *models.Job, user *models.User) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[job.ID] = runningJob{cancel: cancel, userID: user.ID}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, job.ID)
			s.mu.Unlock()
			cancel()
		}()
		s.run(ctx, job, user)
	}()
}

func (s *JobService) run(ctx context.Context, job *models.Job, user *models.User) {
	s.advance(job, models.JobFetching)

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
	art, err := s.downloader.Fetch(dctx, job.SourceURL, job.Format)
	cancel()
	if err != nil {
		s.fail(job, user, err)
		return
	}
	defer s.downloader.Release(art)

	if err := s.jobs.SetMetadata(context.Background(), job.ID, art.Title, art.Duration, art.SizeBytes); err != nil {
		s.log.Error("persist job metadata", "job", job.ID, "err", err)
	}
	job.Title = art.Title
	job.Duration = art.Duration
	job.ArtifactSize = art.SizeBytes

	s.advance(job, models.JobDelivering)

	uctx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	via := job.RequestedDelivery
	link := ""
	if via == models.DeliveryDirect && art.SizeBytes > s.cfg.DirectSizeLimit {
		// Too large for the direct channel; deliver via storage instead
		// and record the channel actually used.
		s.log.Info("direct delivery exceeds size limit, switching to storage",
			"job", job.ID, "size", art.SizeBytes, "limit", s.cfg.DirectSizeLimit)
		via = models.DeliveryStorage
	}

	if via == models.DeliveryDirect {
		if err := s.uploader.ToDirect(uctx, art, user.TelegramID, media.IsAudio(job.Format)); err != nil {
			s.log.Error("direct delivery failed, retrying via storage", "job", job.ID, "err", err)
			via = models.DeliveryStorage
		}
	}
	if via == models.DeliveryStorage {
		link, err = s.uploader.ToStorage(uctx, art)
		if err != nil {
			s.fail(job, user, err)
			return
		}
	}

	if err := s.jobs.Complete(context.Background(), job.ID, via, link); err != nil {
		s.log.Error("finalize job", "job", job.ID, "err", err)
	}
	job.Status = models.JobCompleted
	job.DeliveredVia = via
	job.StorageLink = link

	s.notifier.Send(user.TelegramID, completionMessage(job))
	s.log.Info("job completed", "job", job.ID, "user", user.ID, "via", via)
}

// fail classifies the error, records the terminal status and tells the
// requester. The reservation debit is deliberately not reversed.
func (s *JobService) fail(job *models.Job, user *models.User, cause error) {
	kind := models.FailureUnknown
	var dlErr *media.DownloadError
	switch {
	case errors.As(cause, &dlErr):
		kind = dlErr.Kind
	case errors.Is(cause, media.ErrNotAvailable):
		kind = models.FailureUnavailable
	default:
		kind = media.Classify(cause, cause.Error())
	}

	if err := s.jobs.Fail(context.Background(), job.ID, kind); err != nil {
		s.log.Error("record job failure", "job", job.ID, "err", err)
	}
	job.Status = models.JobFailed
	job.FailureKind = kind

	s.notifier.Send(user.TelegramID, "❌ Download failed.\n"+media.UserMessage(kind))
	s.log.Error("job failed", "job", job.ID, "user", user.ID, "kind", kind, "err", cause)
}

func (s *JobService) advance(job *models.Job, status models.JobStatus) {
	if err := s.jobs.SetStatus(context.Background(), job.ID, status); err != nil {
		s.log.Error("advance job status", "job", job.ID, "status", status, "err", err)
	}
	job.Status = status
}

// Cancel interrupts an in-flight job on behalf of the requester. Only the
// job's owner or a trusted user may cancel; everything else reports false,
// same as an unknown or already-finished id.
func (s *JobService) Cancel(jobID int64, requester *models.User) bool {
	s.mu.Lock()
	handle, ok := s.running[jobID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if handle.userID != requester.ID && !s.cfg.IsAdmin(requester.TelegramID) {
		return false
	}
	handle.cancel()
	return true
}

// Running returns the ids of currently dispatched jobs.
func (s *JobService) Running() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown waits for in-flight jobs to drain or the context to expire.
func (s *JobService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *JobService) History(ctx context.Context, userID int64, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.jobs.ListForUser(ctx, userID, limit)
}

func completionMessage(job *models.Job) string {
	text := "✅ Download complete!\n\n📌 " + job.Title
	if job.Duration != "" {
		text += "\n⏱ " + job.Duration
	}
	if job.ArtifactSize > 0 {
		text += fmt.Sprintf("\n📦 %.1f MB", float64(job.ArtifactSize)/(1024*1024))
	}
	if job.DeliveredVia == models.DeliveryStorage && job.StorageLink != "" {
		text += "\n🔗 " + job.StorageLink
	}
	return text
}
