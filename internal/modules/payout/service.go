// README: Payout service: fund account registration and admin-triggered payouts per consignment.
package payout

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"carryhub/internal/errs"
	"carryhub/internal/gateway"
	"carryhub/internal/modules/earning"
	"carryhub/internal/types"
)

type Repository interface {
	UpsertAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, userID types.ID) (*Account, error)
	FindAccountByFundAccount(ctx context.Context, fundAccountID string) (*Account, error)
	Create(ctx context.Context, p *Payout) error
	LockByGatewayID(ctx context.Context, gatewayPayoutID string) (*Payout, error)
	HasOpenForConsignment(ctx context.Context, userID, consignmentID types.ID) (bool, error)
	UpdateStatus(ctx context.Context, id types.ID, from []Status, to Status, reason string) (bool, error)
}

type Gateway interface {
	CreateFundAccount(ctx context.Context, req gateway.FundAccountRequest) (string, error)
	CreatePayout(ctx context.Context, req gateway.PayoutRequest) (*gateway.Payout, error)
}

type Service struct {
	repo     Repository
	earnings earning.Repository
	gateway  Gateway
}

func NewService(repo Repository, earnings earning.Repository, gw Gateway) *Service {
	return &Service{repo: repo, earnings: earnings, gateway: gw}
}

type RegisterAccountCommand struct {
	UserID        types.ID
	Name          string
	Email         string
	Phone         string
	IFSC          string
	AccountNumber string
}

type RequestCommand struct {
	UserID        types.ID
	ConsignmentID types.ID
	IsAdmin       bool
}

func (s *Service) RegisterAccount(ctx context.Context, cmd RegisterAccountCommand) (*Account, error) {
	ifsc := strings.ToUpper(strings.TrimSpace(cmd.IFSC))
	number := strings.TrimSpace(cmd.AccountNumber)
	if cmd.UserID == "" || ifsc == "" || len(number) < 4 {
		return nil, ErrInvalidAccount
	}
	fundAccountID, err := s.gateway.CreateFundAccount(ctx, gateway.FundAccountRequest{
		Name:          cmd.Name,
		Email:         cmd.Email,
		Phone:         cmd.Phone,
		IFSC:          ifsc,
		AccountNumber: number,
		ReferenceID:   string(cmd.UserID),
	})
	if err != nil {
		log.Printf("[payout] fund account for %s: %v", cmd.UserID, err)
		return nil, errs.External("gateway", ErrGateway)
	}
	now := time.Now()
	a := &Account{
		UserID:        cmd.UserID,
		FundAccountID: fundAccountID,
		IFSC:          ifsc,
		AccountLast4:  number[len(number)-4:],
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.UpsertAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// RequestPayout pays out the completed earning of one consignment. The earning is claimed
// (completed -> payout_pending) before the gateway call and released if the call fails; the webhook settles it.
func (s *Service) RequestPayout(ctx context.Context, cmd RequestCommand) (*Payout, error) {
	if !cmd.IsAdmin {
		return nil, ErrAdminOnly
	}
	open, err := s.repo.HasOpenForConsignment(ctx, cmd.UserID, cmd.ConsignmentID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, ErrPayoutInProgress
	}
	acct, err := s.repo.GetAccount(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	e, err := s.earnings.ClaimForPayout(ctx, cmd.UserID, cmd.ConsignmentID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		pending, err := s.earnings.HasPayoutPending(ctx, cmd.UserID, cmd.ConsignmentID)
		if err != nil {
			return nil, err
		}
		if pending {
			return nil, ErrPayoutInProgress
		}
		return nil, ErrNothingToWithdraw
	}

	id := types.NewID()
	gp, err := s.gateway.CreatePayout(ctx, gateway.PayoutRequest{
		FundAccountID: acct.FundAccountID,
		AmountMinor:   types.ToMinor(e.Amount),
		Currency:      types.Currency,
		ReferenceID:   string(id),
		Notes: map[string]string{
			"user_id":        string(cmd.UserID),
			"consignment_id": string(cmd.ConsignmentID),
		},
	})
	if err != nil {
		log.Printf("[payout] create payout for %s/%s: %v", cmd.UserID, cmd.ConsignmentID, err)
		if _, rerr := s.earnings.ReleasePayout(context.WithoutCancel(ctx), cmd.UserID, cmd.ConsignmentID); rerr != nil {
			log.Printf("[payout] INVARIANT: earning %s left payout_pending after gateway failure: %v", e.ID, rerr)
		}
		return nil, errs.External("gateway", ErrGateway)
	}

	now := time.Now()
	consignmentID := cmd.ConsignmentID
	p := &Payout{
		ID:              id,
		UserID:          cmd.UserID,
		ConsignmentID:   &consignmentID,
		GatewayPayoutID: gp.ID,
		FundAccountID:   acct.FundAccountID,
		Amount:          e.Amount,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = s.repo.Create(ctx, p)
	if errors.Is(err, ErrAlreadyExists) {
		// the webhook beat us to it and recorded the payout itself
		log.Printf("[payout] %s already recorded by webhook", gp.ID)
		return p, nil
	}
	if err != nil {
		// the gateway holds the payout; its webhook records it and settles the claimed earning
		log.Printf("[payout] record %s for %s/%s: %v", gp.ID, cmd.UserID, cmd.ConsignmentID, err)
		return nil, err
	}
	return p, nil
}
