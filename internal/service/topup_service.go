package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mediavault/tubefetch/internal/config"
	"github.com/mediavault/tubefetch/internal/models"
)

// OperatorNotifier fans a proof-submitted alert out to the trusted operator
// set; the transport attaches its approve/reject controls.
type OperatorNotifier interface {
	NotifyOperators(req *models.TopupRequest, requester *models.User)
}

// TopupService runs the purchase-request workflow: package selection, proof
// submission, and the exactly-once operator decision.
type TopupService struct {
	cfg       config.Config
	log       *slog.Logger
	topups    TopupStore
	users     UserStore
	ledger    Ledger
	notifier  Notifier
	operators OperatorNotifier
}

func NewTopupService(cfg config.Config, log *slog.Logger, topups TopupStore, users UserStore, ledger Ledger, notifier Notifier, operators OperatorNotifier) *TopupService {
	return &TopupService{
		cfg:       cfg,
		log:       log,
		topups:    topups,
		users:     users,
		ledger:    ledger,
		notifier:  notifier,
		operators: operators,
	}
}

func (s *TopupService) CreateRequest(ctx context.Context, userID int64, pkg models.TokenPackage) (*models.TopupRequest, error) {
	req := &models.TopupRequest{
		UserID:          userID,
		TokenAmount:     pkg.Tokens,
		PackageID:       pkg.ID,
		PriceMinorUnits: pkg.PriceMinorUnits,
	}
	if err := s.topups.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create topup request: %w", err)
	}
	s.log.Info("topup request created", "request", req.ID, "user", userID, "tokens", pkg.Tokens)
	return req, nil
}

// RecordProof marks that proof material arrived and alerts the operators.
// The request status is unchanged.
func (s *TopupService) RecordProof(ctx context.Context, requestID int64) (*models.TopupRequest, error) {
	req, err := s.topups.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}
	if err := s.topups.MarkProofReceived(ctx, requestID); err != nil {
		return nil, err
	}
	req.ProofReceived = true

	requester, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		s.log.Error("load requester for operator alert", "request", requestID, "err", err)
	}
	if s.operators != nil {
		s.operators.NotifyOperators(req, requester)
	}
	return req, nil
}

// Approve flips the request to approved and credits the tokens. The credit
// happens only after the compare-and-swap succeeds, so two racing approvals
// produce exactly one credit; the loser gets ErrAlreadyProcessed.
func (s *TopupService) Approve(ctx context.Context, requestID, operatorID int64) (*models.TopupRequest, error) {
	req, err := s.decide(ctx, requestID, operatorID, models.TopupApproved, "")
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.Credit(ctx, req.UserID, req.TokenAmount, &operatorID, fmt.Sprintf("topup #%d", requestID)); err != nil {
		// The status already flipped; surface the credit failure loudly
		// instead of retrying into a double credit.
		s.log.Error("topup approved but credit failed", "request", requestID, "err", err)
		return nil, fmt.Errorf("credit approved topup %d: %w", requestID, err)
	}

	s.notifyRequester(ctx, req.UserID, fmt.Sprintf(
		"✅ Topup #%d approved!\n%d tokens were added to your balance.", requestID, req.TokenAmount))
	s.log.Info("topup approved", "request", requestID, "operator", operatorID, "tokens", req.TokenAmount)
	return req, nil
}

// Reject flips the request to rejected with the same exclusivity guarantee;
// the ledger is untouched.
func (s *TopupService) Reject(ctx context.Context, requestID, operatorID int64, notes string) (*models.TopupRequest, error) {
	req, err := s.decide(ctx, requestID, operatorID, models.TopupRejected, notes)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("❌ Topup #%d was rejected.", requestID)
	if notes != "" {
		text += "\nReason: " + notes
	}
	text += "\nContact " + s.cfg.AdminContact + " if you believe this is a mistake."
	s.notifyRequester(ctx, req.UserID, text)
	s.log.Info("topup rejected", "request", requestID, "operator", operatorID)
	return req, nil
}

func (s *TopupService) decide(ctx context.Context, requestID, operatorID int64, status models.TopupStatus, notes string) (*models.TopupRequest, error) {
	if !s.cfg.IsAdmin(operatorID) {
		return nil, ErrUnauthorized
	}

	req, err := s.topups.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}

	flipped, err := s.topups.Decide(ctx, requestID, status, operatorID, notes)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, ErrAlreadyProcessed
	}

	req.Status = status
	req.OperatorActorID = &operatorID
	req.Notes = notes
	return req, nil
}

func (s *TopupService) ListPending(ctx context.Context) ([]models.TopupRequest, error) {
	return s.topups.ListPending(ctx)
}

func (s *TopupService) notifyRequester(ctx context.Context, userID int64, text string) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		s.log.Error("load requester for notification", "user", userID, "err", err)
		return
	}
	s.notifier.Send(user.TelegramID, text)
}
