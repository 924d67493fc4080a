package models

import "time"

type TransactionKind string

const (
	TransactionCredit TransactionKind = "credit"
	TransactionDebit  TransactionKind = "debit"
)

type JobKind string

const (
	JobSingle       JobKind = "single"
	JobPlaylistItem JobKind = "playlist_item"
)

type JobStatus string

const (
	JobCreated    JobStatus = "created"
	JobQuoted     JobStatus = "quoted"
	JobReserved   JobStatus = "reserved"
	JobFetching   JobStatus = "fetching"
	JobDelivering JobStatus = "delivering"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

type DeliveryChannel string

const (
	DeliveryDirect  DeliveryChannel = "direct"
	DeliveryStorage DeliveryChannel = "storage"
)

type TopupStatus string

const (
	TopupPending  TopupStatus = "pending"
	TopupApproved TopupStatus = "approved"
	TopupRejected TopupStatus = "rejected"
)

// FailureKind is the user-facing classification of a failed job. External
// tool errors are mapped into this set once, at the media boundary.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureUnavailable FailureKind = "unavailable"
	FailureRestricted  FailureKind = "restricted"
	FailureCopyright   FailureKind = "copyright"
	FailureRateLimited FailureKind = "rate_limited"
	FailureUnknown     FailureKind = "unknown"
)

type User struct {
	ID            int64
	TelegramID    int64
	Username      string
	FirstName     string
	LastName      string
	Balance       int
	Banned        bool
	Registered    bool
	LastBonusDate string // ISO calendar date, empty when never claimed
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DisplayName picks the most specific non-empty identity field.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	}
	return ""
}

type TokenTransaction struct {
	ID        int64
	UserID    int64
	Amount    int
	Kind      TransactionKind
	Reason    string
	ActorID   *int64
	CreatedAt time.Time
}

type Job struct {
	ID                int64
	UserID            int64
	SourceURL         string
	Kind              JobKind
	Format            string
	RequestedDelivery DeliveryChannel
	DeliveredVia      DeliveryChannel
	Status            JobStatus
	FailureKind       FailureKind
	Title             string
	ArtifactSize      int64
	Duration          string
	StorageLink       string
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

type TopupRequest struct {
	ID              int64
	UserID          int64
	TokenAmount     int
	PackageID       string
	PriceMinorUnits int
	Status          TopupStatus
	ProofReceived   bool
	OperatorActorID *int64
	Notes           string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// TokenPackage is one purchasable topup bundle from the configured price table.
type TokenPackage struct {
	ID              string
	Tokens          int
	PriceMinorUnits int
}
