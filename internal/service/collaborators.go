package service

import (
	"context"
	"errors"

	"github.com/mediavault/tubefetch/internal/media"
	"github.com/mediavault/tubefetch/internal/models"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyProcessed = errors.New("request already processed")
	ErrUnauthorized     = errors.New("operator privileges required")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrNotRegistered    = errors.New("registration required")
)

// Fetcher probes source metadata without downloading.
type Fetcher interface {
	Metadata(ctx context.Context, url string) (*media.MediaInfo, error)
}

// Downloader materializes one artifact per call; Release must be safe to call
// on every path.
type Downloader interface {
	Fetch(ctx context.Context, url, formatKey string) (*media.Artifact, error)
	Release(art *media.Artifact)
}

// Uploader hands a finished artifact to the requester over one of the two
// delivery channels. ToStorage returns the public link.
type Uploader interface {
	ToDirect(ctx context.Context, art *media.Artifact, recipient int64, audio bool) error
	ToStorage(ctx context.Context, art *media.Artifact) (string, error)
}

// Notifier delivers best-effort status messages; failures are logged by the
// implementation and never returned to the workflow.
type Notifier interface {
	Send(userTelegramID int64, text string)
}

// MembershipChecker verifies the external channel membership precondition.
type MembershipChecker interface {
	IsMember(ctx context.Context, telegramID int64) (bool, error)
}

// Ledger is the mutation surface other workflows consume; *LedgerService is
// the production implementation.
type Ledger interface {
	Balance(ctx context.Context, userID int64) (int, error)
	Credit(ctx context.Context, userID int64, amount int, actorID *int64, reason string) (int, error)
	Debit(ctx context.Context, userID int64, amount int, reason string) (int, error)
}

// LedgerStore is the durable side of the token ledger. Implementations must
// serialize mutations per user (conditional updates in the SQL store).
type LedgerStore interface {
	Balance(ctx context.Context, userID int64) (int, error)
	Credit(ctx context.Context, userID int64, amount int, actorID *int64, reason string) (int, error)
	Debit(ctx context.Context, userID int64, amount int, reason string) (int, error)
	History(ctx context.Context, userID int64, limit int) ([]models.TokenTransaction, error)
}

// UserStore covers the user rows the gate, bonus and topup flows touch.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	SetRegistered(ctx context.Context, userID int64, registered bool) error
	ClaimBonusDate(ctx context.Context, userID int64, day string) (bool, error)
	RevertBonusDate(ctx context.Context, userID int64, day, previous string) error
}

// JobStore persists the job lifecycle.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	SetStatus(ctx context.Context, jobID int64, status models.JobStatus) error
	SetMetadata(ctx context.Context, jobID int64, title, duration string, size int64) error
	Complete(ctx context.Context, jobID int64, via models.DeliveryChannel, link string) error
	Fail(ctx context.Context, jobID int64, kind models.FailureKind) error
	ListForUser(ctx context.Context, userID int64, limit int) ([]models.Job, error)
}

// TopupStore persists purchase requests; Decide must implement the
// status='pending' compare-and-swap.
type TopupStore interface {
	Create(ctx context.Context, req *models.TopupRequest) error
	FindByID(ctx context.Context, id int64) (*models.TopupRequest, error)
	MarkProofReceived(ctx context.Context, id int64) error
	Decide(ctx context.Context, id int64, status models.TopupStatus, operatorID int64, notes string) (bool, error)
	ListPending(ctx context.Context) ([]models.TopupRequest, error)
}
