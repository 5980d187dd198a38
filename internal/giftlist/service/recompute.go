package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"giftlist/internal/erp"
	"giftlist/internal/giftlist/models"
	"giftlist/internal/giftlist/state"
	wfmodels "giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/requestcontext"
)

// Mutation changes an item in place and reports whether anything changed.
type Mutation func(it *models.Item) (bool, error)

// Recompute re-reads the linked documents and persists the derived state if
// it changed. Concurrent calls for one item share a single evaluation.
func (s *Service) Recompute(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	ctx, span := tracer.Start(ctx, "giftlist.recompute")
	defer span.End()
	span.SetAttributes(attribute.String("item_id", itemID.String()))

	v, err, _ := s.flight.Do(itemID.String(), func() (any, error) {
		return s.mutate(ctx, itemID, nil)
	})
	if err != nil {
		return nil, err
	}
	it := *v.(*models.Item)
	return &it, nil
}

// LinkDocuments applies an orchestrator's reference changes and recomputes.
// A mutation that reports no change and leaves the state alone is not
// written, so repeated links are no-ops.
func (s *Service) LinkDocuments(ctx context.Context, itemID id.ItemID, fn Mutation) (*models.Item, error) {
	ctx, span := tracer.Start(ctx, "giftlist.link_documents")
	defer span.End()
	span.SetAttributes(attribute.String("item_id", itemID.String()))
	return s.mutate(ctx, itemID, fn)
}

// DeriveState evaluates the state without persisting anything.
func (s *Service) DeriveState(ctx context.Context, itemID id.ItemID) (models.State, string, error) {
	it, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return "", "", itemNotFound(err, itemID)
	}
	snap, err := s.snapshot(ctx, it)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read linked documents")
	}
	st, rule := state.Explain(snap)
	return st, rule, nil
}

func (s *Service) mutate(ctx context.Context, itemID id.ItemID, fn Mutation) (*models.Item, error) {
	start := time.Now()
	var (
		it   *models.Item
		from models.State
	)
	err := s.tx.RunInTx(ctx, "item:"+itemID.String(), func(ctx context.Context) error {
		loaded, err := s.items.FindByID(ctx, itemID)
		if err != nil {
			return itemNotFound(err, itemID)
		}
		from = loaded.State
		changed := false
		if fn != nil {
			if changed, err = fn(loaded); err != nil {
				return err
			}
		}
		s.rederive(ctx, loaded)
		it = loaded
		if !changed && loaded.State == from {
			return nil
		}
		loaded.UpdatedAt = requestcontext.Now(ctx)
		if err := s.items.Update(ctx, loaded); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save item")
		}
		return nil
	})
	if s.metrics != nil {
		s.metrics.ObserveRecompute(start)
	}
	if err != nil {
		return nil, err
	}
	s.afterStateChange(ctx, it, from)
	return it, nil
}

// rederive updates it.State in place. A failed document read keeps the
// stored state.
func (s *Service) rederive(ctx context.Context, it *models.Item) {
	snap, err := s.snapshot(ctx, it)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncSnapshotFailures()
		}
		s.logger.WarnContext(ctx, "could not read linked documents, keeping stored state",
			"item_id", it.ID,
			"state", it.State,
			"error", err,
		)
		return
	}
	it.State = state.Derive(snap)
}

func (s *Service) afterStateChange(ctx context.Context, it *models.Item, from models.State) {
	if it.State == from {
		return
	}
	if s.metrics != nil {
		s.metrics.IncTransition(string(it.State))
	}
	s.logger.InfoContext(ctx, "item state changed",
		"item_id", it.ID,
		"list_id", it.ListID,
		"from", from,
		"to", it.State,
	)
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocGiftListItem,
		DocumentRef:  it.ProductName,
		ResID:        uuid.UUID(it.ID),
		ActionType:   wfmodels.ActionStateChange,
		StateFrom:    string(from),
		StateTo:      string(it.State),
		Partner:      it.PaidBy,
	})
	for _, o := range s.observers {
		if err := o.ItemStateChanged(ctx, it, from); err != nil {
			s.logger.WarnContext(ctx, "state observer failed",
				"item_id", it.ID,
				"error", err,
			)
		}
	}
}

// snapshot reads every linked document's state concurrently.
func (s *Service) snapshot(ctx context.Context, it *models.Item) (state.Snapshot, error) {
	snap := state.Snapshot{
		Cancelled:       it.IsCancelled,
		HasDownPayment:  !it.Refs.DownPayment.IsNil(),
		HasFinalPayment: !it.Refs.FinalPayment.IsNil(),
	}
	g, gctx := errgroup.WithContext(ctx)
	if !it.Refs.Purchase.IsNil() {
		g.Go(func() error {
			po, err := s.erp.Purchase().Order(gctx, it.Refs.Purchase)
			if err != nil {
				return err
			}
			snap.Purchase = state.DocState[erp.PurchaseState]{Present: true, State: po.State}
			return nil
		})
	}
	transfers := []struct {
		ref  id.TransferID
		dest *state.DocState[erp.TransferState]
	}{
		{it.Refs.Receipt, &snap.Receipt},
		{it.Refs.Delivery, &snap.Delivery},
		{it.Refs.Holding, &snap.Holding},
	}
	for _, t := range transfers {
		if t.ref.IsNil() {
			continue
		}
		g.Go(func() error {
			tr, err := s.erp.Stock().Transfer(gctx, t.ref)
			if err != nil {
				return err
			}
			*t.dest = state.DocState[erp.TransferState]{Present: true, State: tr.State}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return state.Snapshot{}, err
	}
	return snap, nil
}
