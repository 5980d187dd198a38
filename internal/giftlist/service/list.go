package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"giftlist/internal/giftlist/models"
	wfmodels "giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/requestcontext"
)

type CreateListRequest struct {
	Name              string
	Beneficiary       id.PartnerID
	SecondBeneficiary id.PartnerID
	Type              models.ListType
	ExpectedDate      *time.Time
}

// CreateList stores a new active list and links the beneficiary's wallet,
// creating the wallet when the partner has none.
func (s *Service) CreateList(ctx context.Context, req CreateListRequest) (*models.List, error) {
	if _, err := s.erp.Catalog().Partner(ctx, req.Beneficiary); err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "beneficiary %s not found", req.Beneficiary)
	}
	now := requestcontext.Now(ctx)
	l, err := models.NewList(id.ListID(uuid.New()), req.Name, req.Beneficiary, req.Type,
		req.ExpectedDate, requestcontext.OperatorID(ctx), now)
	if err != nil {
		return nil, validation(err)
	}
	l.SecondBeneficiary = req.SecondBeneficiary
	if err := s.linkWallet(ctx, l); err != nil {
		return nil, err
	}
	if err := s.lists.Create(ctx, l); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save list")
	}
	s.logger.InfoContext(ctx, "gift list created",
		"list_id", l.ID,
		"beneficiary", l.Beneficiary,
		"wallet_id", l.WalletID,
	)
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocGiftList,
		DocumentRef:  l.Name,
		ResID:        uuid.UUID(l.ID),
		ActionType:   wfmodels.ActionCreation,
		StateTo:      string(l.State),
		Partner:      l.Beneficiary,
	})
	return l, nil
}

func (s *Service) linkWallet(ctx context.Context, l *models.List) error {
	if s.wallets == nil {
		return nil
	}
	walletID, err := s.wallets.EnsureForPartner(ctx, l.Beneficiary)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to link wallet")
	}
	l.WalletID = walletID
	return nil
}

func (s *Service) GetList(ctx context.Context, listID id.ListID) (*models.List, error) {
	l, err := s.lists.FindByID(ctx, listID)
	if err != nil {
		return nil, listNotFound(err, listID)
	}
	return l, nil
}

func (s *Service) FindLists(ctx context.Context, filter models.ListFilter) ([]*models.List, error) {
	lists, err := s.lists.Find(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search lists")
	}
	return lists, nil
}

type ListPatch struct {
	Name              *string
	Beneficiary       *id.PartnerID
	SecondBeneficiary *id.PartnerID
	Type              *models.ListType
	ExpectedDate      *time.Time
}

// UpdateList edits list fields. Changing the beneficiary re-links the wallet.
func (s *Service) UpdateList(ctx context.Context, listID id.ListID, patch ListPatch) (*models.List, error) {
	var out *models.List
	err := s.tx.RunInTx(ctx, "list:"+listID.String(), func(ctx context.Context) error {
		l, err := s.lists.FindByID(ctx, listID)
		if err != nil {
			return listNotFound(err, listID)
		}
		if err := l.CanModify(); err != nil {
			return err
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" || len(name) > 128 {
				return dErrors.New(dErrors.CodeValidation, "list name must be 1 to 128 characters")
			}
			l.Name = name
		}
		if patch.Type != nil {
			if !patch.Type.IsValid() {
				return dErrors.New(dErrors.CodeValidation, "invalid list type")
			}
			l.Type = *patch.Type
		}
		if patch.ExpectedDate != nil {
			l.ExpectedDate = patch.ExpectedDate
		}
		if patch.SecondBeneficiary != nil {
			l.SecondBeneficiary = *patch.SecondBeneficiary
		}
		if patch.Beneficiary != nil && *patch.Beneficiary != l.Beneficiary {
			if patch.Beneficiary.IsNil() {
				return dErrors.New(dErrors.CodeValidation, "list requires a beneficiary")
			}
			l.Beneficiary = *patch.Beneficiary
			if err := s.linkWallet(ctx, l); err != nil {
				return err
			}
		}
		l.UpdatedAt = requestcontext.Now(ctx)
		if err := s.lists.Update(ctx, l); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save list")
		}
		out = l
		return nil
	})
	return out, err
}

func (s *Service) ActivateList(ctx context.Context, listID id.ListID) (*models.List, error) {
	return s.transitionList(ctx, listID, func(_ context.Context, l *models.List, now time.Time) error {
		return l.Activate(now)
	})
}

func (s *Service) DeactivateList(ctx context.Context, listID id.ListID) (*models.List, error) {
	return s.transitionList(ctx, listID, func(_ context.Context, l *models.List, now time.Time) error {
		return l.Deactivate(now)
	})
}

// CompleteList closes the list. With ordered or reserved items it needs confirm.
func (s *Service) CompleteList(ctx context.Context, listID id.ListID, confirm bool) (*models.List, error) {
	return s.transitionList(ctx, listID, func(ctx context.Context, l *models.List, now time.Time) error {
		items, err := s.items.Find(ctx, models.ItemFilter{ListIDs: []id.ListID{l.ID}})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load items")
		}
		return l.Complete(items, confirm, now)
	})
}

func (s *Service) transitionList(ctx context.Context, listID id.ListID, apply func(context.Context, *models.List, time.Time) error) (*models.List, error) {
	var (
		out  *models.List
		from models.ListState
	)
	err := s.tx.RunInTx(ctx, "list:"+listID.String(), func(ctx context.Context) error {
		l, err := s.lists.FindByID(ctx, listID)
		if err != nil {
			return listNotFound(err, listID)
		}
		from = l.State
		if err := apply(ctx, l, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if l.State == from {
			out = l
			return nil
		}
		if err := s.lists.Update(ctx, l); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save list")
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.State != from {
		s.record(ctx, wfmodels.Action{
			DocumentType: wfmodels.DocGiftList,
			DocumentRef:  out.Name,
			ResID:        uuid.UUID(out.ID),
			ActionType:   wfmodels.ActionStateChange,
			StateFrom:    string(from),
			StateTo:      string(out.State),
		})
	}
	return out, nil
}

// ListSummary is the list's dashboard: amounts, wallet figures and progress.
type ListSummary struct {
	List      *models.List         `json:"list"`
	ItemCount int                  `json:"item_count"`
	Amounts   models.Amounts       `json:"amounts"`
	Wallet    models.WalletFigures `json:"wallet"`
	Progress  models.Progress      `json:"progress"`
}

// Summary computes committed funds over every active or inactive list
// sharing this list's wallet, not just this one.
func (s *Service) Summary(ctx context.Context, listID id.ListID) (*ListSummary, error) {
	l, err := s.lists.FindByID(ctx, listID)
	if err != nil {
		return nil, listNotFound(err, listID)
	}
	items, err := s.items.Find(ctx, models.ItemFilter{ListIDs: []id.ListID{l.ID}})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load items")
	}

	balance := decimal.Zero
	var siblingItems []*models.Item
	if !l.WalletID.IsNil() {
		if s.wallets != nil {
			if balance, err = s.wallets.Balance(ctx, l.WalletID); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read wallet balance")
			}
		}
		siblings, err := s.lists.Find(ctx, models.ListFilter{
			Wallet: l.WalletID,
			States: []models.ListState{models.ListActive, models.ListInactive},
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sibling lists")
		}
		ids := make([]id.ListID, 0, len(siblings))
		for _, sib := range siblings {
			if sib.SharesWallet(l.WalletID) {
				ids = append(ids, sib.ID)
			}
		}
		if len(ids) > 0 {
			if siblingItems, err = s.items.Find(ctx, models.ItemFilter{ListIDs: ids}); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sibling items")
			}
		}
	}

	return &ListSummary{
		List:      l,
		ItemCount: len(items),
		Amounts:   models.ComputeAmounts(items),
		Wallet:    models.ComputeWalletFigures(balance, siblingItems),
		Progress:  models.ComputeProgress(l.Type, l.ExpectedDate, requestcontext.Now(ctx)),
	}, nil
}
