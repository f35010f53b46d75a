package ledger

import (
	"context"
	"time"

	"paradise.network/internal/account"
	"paradise.network/internal/commission"
	"paradise.network/internal/ids"
	"paradise.network/internal/network"
	"paradise.network/internal/obs"
)

// Service turns sale events into ledger entries: resolve the rule, snapshot
// the sponsor chain, distribute, append.
type Service struct {
	accounts account.Store
	graph    *network.Graph
	rules    *commission.Resolver
	store    Store
}

// NewService wires the commission engine against its collaborators.
func NewService(accounts account.Store, graph *network.Graph, rules *commission.Resolver, store Store) *Service {
	return &Service{accounts: accounts, graph: graph, rules: rules, store: store}
}

// Record resolves the applicable rule, computes the payout distribution for
// the seller's current sponsor chain and appends a Pending entry. The
// distribution is frozen into the entry; later rule changes never alter it.
func (s *Service) Record(ctx context.Context, sellerID string, gross int64, industry, project, idemKey string) (Entry, error) {
	if idemKey != "" {
		if prior, ok, err := s.store.FindByIdempotencyKey(ctx, idemKey); err != nil {
			return Entry{}, err
		} else if ok {
			return prior, nil
		}
	}

	seller, err := s.accounts.Get(ctx, sellerID)
	if err != nil {
		return Entry{}, err
	}

	rule := s.rules.Resolve(ctx, industry, project)

	// The chain is captured once so a concurrent re-parent cannot produce
	// a mixed-chain distribution.
	ancestors, err := s.graph.GetSponsorChain(ctx, seller.ID, commission.UplineLevels)
	if err != nil {
		return Entry{}, err
	}
	chain := make([]string, 0, len(ancestors))
	for _, a := range ancestors {
		chain = append(chain, a.ID)
	}

	payout, err := commission.Distribute(seller.ID, gross, rule, chain)
	if err != nil {
		return Entry{}, err
	}

	entry, err := s.store.Append(ctx, Entry{
		ID:             ids.New(),
		SellerID:       seller.ID,
		Gross:          gross,
		Industry:       industry,
		Project:        project,
		Payout:         payout,
		Status:         StatusPending,
		IdempotencyKey: idemKey,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return Entry{}, err
	}

	obs.TransactionRecorded()
	obs.PayoutDistributed("seller", payout.Seller.Amount)
	obs.PayoutDistributed("platform", payout.Platform.Amount)
	for _, share := range payout.Uplines {
		obs.PayoutDistributed("upline", share.Amount)
	}
	return entry, nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	return s.store.Get(ctx, id)
}

// List pages through the ledger in sequence order.
func (s *Service) List(ctx context.Context, limit int, afterSeq uint64) ([]Entry, uint64, error) {
	return s.store.List(ctx, limit, afterSeq)
}

// ListBySeller returns the entries sold by one account.
func (s *Service) ListBySeller(ctx context.Context, sellerID string) ([]Entry, error) {
	return s.store.ListBySeller(ctx, sellerID)
}

// ListInvolving returns the entries where the account earns anything,
// as seller or upline.
func (s *Service) ListInvolving(ctx context.Context, accountID string) ([]Entry, error) {
	return s.store.ListInvolving(ctx, accountID)
}

// UpdateStatus advances the lifecycle. Terminal states are final.
func (s *Service) UpdateStatus(ctx context.Context, id string, st Status) (Entry, error) {
	return s.store.UpdateStatus(ctx, id, st)
}
