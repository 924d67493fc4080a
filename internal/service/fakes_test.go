package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mediavault/tubefetch/internal/config"
	"github.com/mediavault/tubefetch/internal/media"
	"github.com/mediavault/tubefetch/internal/models"
	"github.com/mediavault/tubefetch/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		AdminUserIDs:       map[int64]bool{999: true},
		AdminContact:       "@ops",
		WelcomeBonusTokens: 10,
		DailyBonusTokens:   10,
		FetchTimeout:       time.Minute,
		DownloadTimeout:    time.Minute,
		UploadTimeout:      time.Minute,
		DirectSizeLimit:    500 * 1024 * 1024,
	}
}

// fakeLedgerStore keeps balances and the transaction log in memory with the
// same conditional-debit semantics as the SQL store.
type fakeLedgerStore struct {
	mu       sync.Mutex
	balances map[int64]int
	txs      []models.TokenTransaction
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{balances: make(map[int64]int)}
}

func (f *fakeLedgerStore) Balance(_ context.Context, userID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *fakeLedgerStore) Credit(_ context.Context, userID int64, amount int, actorID *int64, reason string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += amount
	f.txs = append(f.txs, models.TokenTransaction{
		UserID: userID, Amount: amount, Kind: models.TransactionCredit, Reason: reason, ActorID: actorID,
	})
	return f.balances[userID], nil
}

func (f *fakeLedgerStore) Debit(_ context.Context, userID int64, amount int, reason string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[userID] < amount {
		return 0, repository.ErrInsufficientBalance
	}
	f.balances[userID] -= amount
	f.txs = append(f.txs, models.TokenTransaction{
		UserID: userID, Amount: -amount, Kind: models.TransactionDebit, Reason: reason,
	})
	return f.balances[userID], nil
}

func (f *fakeLedgerStore) History(_ context.Context, userID int64, limit int) ([]models.TokenTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TokenTransaction
	for i := len(f.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.txs[i].UserID == userID {
			out = append(out, f.txs[i])
		}
	}
	return out, nil
}

func (f *fakeLedgerStore) credits(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, tx := range f.txs {
		if tx.UserID == userID && tx.Kind == models.TransactionCredit {
			n++
		}
	}
	return n
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	f := &fakeUserStore{users: make(map[int64]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserStore) FindByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeUserStore) SetRegistered(_ context.Context, userID int64, registered bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.Registered = registered
	}
	return nil
}

func (f *fakeUserStore) ClaimBonusDate(_ context.Context, userID int64, day string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return false, nil
	}
	if u.LastBonusDate != "" && u.LastBonusDate >= day {
		return false, nil
	}
	u.LastBonusDate = day
	return true, nil
}

func (f *fakeUserStore) RevertBonusDate(_ context.Context, userID int64, day, previous string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok && u.LastBonusDate == day {
		u.LastBonusDate = previous
	}
	return nil
}

type fakeJobStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*models.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[int64]*models.Job)}
}

func (f *fakeJobStore) Create(_ context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	job.ID = f.nextID
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobStore) SetStatus(_ context.Context, jobID int64, status models.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobID].Status = status
	return nil
}

func (f *fakeJobStore) SetMetadata(_ context.Context, jobID int64, title, duration string, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[jobID]
	j.Title, j.Duration, j.ArtifactSize = title, duration, size
	return nil
}

func (f *fakeJobStore) Complete(_ context.Context, jobID int64, via models.DeliveryChannel, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	j := f.jobs[jobID]
	j.Status = models.JobCompleted
	j.DeliveredVia = via
	j.StorageLink = link
	j.CompletedAt = &now
	return nil
}

func (f *fakeJobStore) Fail(_ context.Context, jobID int64, kind models.FailureKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[jobID]
	j.Status = models.JobFailed
	j.FailureKind = kind
	return nil
}

func (f *fakeJobStore) ListForUser(_ context.Context, userID int64, limit int) ([]models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Job
	for _, j := range f.jobs {
		if j.UserID == userID && len(out) < limit {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeJobStore) get(jobID int64) models.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.jobs[jobID]
}

type fakeTopupStore struct {
	mu     sync.Mutex
	nextID int64
	reqs   map[int64]*models.TopupRequest
}

func newFakeTopupStore() *fakeTopupStore {
	return &fakeTopupStore{reqs: make(map[int64]*models.TopupRequest)}
}

func (f *fakeTopupStore) Create(_ context.Context, req *models.TopupRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	req.ID = f.nextID
	req.Status = models.TopupPending
	cp := *req
	f.reqs[req.ID] = &cp
	return nil
}

func (f *fakeTopupStore) FindByID(_ context.Context, id int64) (*models.TopupRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.reqs[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (f *fakeTopupStore) MarkProofReceived(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req, ok := f.reqs[id]; ok {
		req.ProofReceived = true
	}
	return nil
}

func (f *fakeTopupStore) Decide(_ context.Context, id int64, status models.TopupStatus, operatorID int64, notes string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.reqs[id]
	if !ok || req.Status != models.TopupPending {
		return false, nil
	}
	now := time.Now()
	req.Status = status
	req.OperatorActorID = &operatorID
	req.Notes = notes
	req.ProcessedAt = &now
	return true, nil
}

func (f *fakeTopupStore) ListPending(_ context.Context) ([]models.TopupRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TopupRequest
	for _, req := range f.reqs {
		if req.Status == models.TopupPending {
			out = append(out, *req)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Send(_ int64, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeOperatorNotifier struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeOperatorNotifier) NotifyOperators(*models.TopupRequest, *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

type fakeFetcher struct {
	info *media.MediaInfo
	err  error
}

func (f *fakeFetcher) Metadata(context.Context, string) (*media.MediaInfo, error) {
	return f.info, f.err
}

type fakeDownloader struct {
	mu       sync.Mutex
	art      *media.Artifact
	err      error
	block    chan struct{} // when set, Fetch waits for close or cancellation
	released int
}

func (f *fakeDownloader) Fetch(ctx context.Context, url, formatKey string) (*media.Artifact, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.art
	return &cp, nil
}

func (f *fakeDownloader) Release(*media.Artifact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

type fakeUploader struct {
	mu        sync.Mutex
	directErr error
	link      string
	direct    int
	stored    int
}

func (f *fakeUploader) ToDirect(_ context.Context, _ *media.Artifact, _ int64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct++
	return f.directErr
}

func (f *fakeUploader) ToStorage(context.Context, *media.Artifact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored++
	return f.link, nil
}
