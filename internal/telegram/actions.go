package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mediavault/tubefetch/internal/models"
)

// Action is the closed set of inline-keyboard intents. Callback payloads are
// decoded exactly once, here, before anything reaches the workflows.
type Action interface {
	isAction()
}

type BackToMenuAction struct{}

type SelectFormatAction struct {
	Format string
}

type SelectDeliveryAction struct {
	Channel models.DeliveryChannel
}

type CancelPendingAction struct{}

type VerifyRegistrationAction struct{}

type ClaimBonusAction struct{}

type ShowTokensAction struct{}

type ShowHistoryAction struct{}

type ShowTopupMenuAction struct{}

type SelectPackageAction struct {
	PackageID string
}

type SendProofAction struct {
	PackageID string
}

type ApproveTopupAction struct {
	RequestID int64
}

type RejectTopupAction struct {
	RequestID int64
}

func (BackToMenuAction) isAction()         {}
func (SelectFormatAction) isAction()       {}
func (SelectDeliveryAction) isAction()     {}
func (CancelPendingAction) isAction()      {}
func (VerifyRegistrationAction) isAction() {}
func (ClaimBonusAction) isAction()         {}
func (ShowTokensAction) isAction()         {}
func (ShowHistoryAction) isAction()        {}
func (ShowTopupMenuAction) isAction()      {}
func (SelectPackageAction) isAction()      {}
func (SendProofAction) isAction()          {}
func (ApproveTopupAction) isAction()       {}
func (RejectTopupAction) isAction()        {}

const (
	cbMenu      = "menu"
	cbFormat    = "fmt"
	cbDeliver   = "deliver"
	cbCancel    = "cancel"
	cbVerify    = "verify"
	cbBonus     = "bonus"
	cbTokens    = "tokens"
	cbHistory   = "history"
	cbTopupMenu = "topup_menu"
	cbPackage   = "topup_pkg"
	cbProof     = "topup_proof"
	cbApprove   = "topup_approve"
	cbReject    = "topup_reject"
)

func encodeAction(verb string, arg string) string {
	if arg == "" {
		return verb
	}
	return verb + ":" + arg
}

// DecodeAction parses a callback payload into its typed Action.
func DecodeAction(data string) (Action, error) {
	verb, arg, _ := strings.Cut(data, ":")
	switch verb {
	case cbMenu:
		return BackToMenuAction{}, nil
	case cbFormat:
		if arg == "" {
			return nil, fmt.Errorf("format action without format")
		}
		return SelectFormatAction{Format: arg}, nil
	case cbDeliver:
		switch arg {
		case string(models.DeliveryDirect):
			return SelectDeliveryAction{Channel: models.DeliveryDirect}, nil
		case string(models.DeliveryStorage):
			return SelectDeliveryAction{Channel: models.DeliveryStorage}, nil
		}
		return nil, fmt.Errorf("unknown delivery channel %q", arg)
	case cbCancel:
		return CancelPendingAction{}, nil
	case cbVerify:
		return VerifyRegistrationAction{}, nil
	case cbBonus:
		return ClaimBonusAction{}, nil
	case cbTokens:
		return ShowTokensAction{}, nil
	case cbHistory:
		return ShowHistoryAction{}, nil
	case cbTopupMenu:
		return ShowTopupMenuAction{}, nil
	case cbPackage:
		if arg == "" {
			return nil, fmt.Errorf("package action without package id")
		}
		return SelectPackageAction{PackageID: arg}, nil
	case cbProof:
		if arg == "" {
			return nil, fmt.Errorf("proof action without package id")
		}
		return SendProofAction{PackageID: arg}, nil
	case cbApprove:
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("approve action id: %w", err)
		}
		return ApproveTopupAction{RequestID: id}, nil
	case cbReject:
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("reject action id: %w", err)
		}
		return RejectTopupAction{RequestID: id}, nil
	}
	return nil, fmt.Errorf("unknown action %q", data)
}
