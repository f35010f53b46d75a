// Package network exposes the sponsor tree as a logical view over the
// account store: ancestor walks, capacity checks and re-parenting.
package network

import (
	"context"
	"errors"

	"paradise.network/internal/account"
)

// Graph reads and mutates sponsor/downline relationships.
type Graph struct {
	store account.Store
}

// New wraps an account store.
func New(store account.Store) *Graph {
	return &Graph{store: store}
}

// GetSponsorChain returns the ancestors of id bottom-up, at most maxDepth
// entries. A chain shorter than maxDepth is not an error; the walk simply
// stops at the root.
func (g *Graph) GetSponsorChain(ctx context.Context, id string, maxDepth int) ([]account.Account, error) {
	acc, err := g.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	chain := make([]account.Account, 0, maxDepth)
	for len(chain) < maxDepth && acc.SponsorID != "" {
		parent, err := g.store.Get(ctx, acc.SponsorID)
		if err != nil {
			if errors.Is(err, account.ErrNotFound) {
				break
			}
			return nil, err
		}
		chain = append(chain, parent)
		acc = parent
	}
	return chain, nil
}

// CanAdmitChild reports whether sponsor exists, is active and has spare
// capacity. Advisory only: validation and commit are separated by
// user-paced registration steps, so AttachChild re-checks under the lock.
func (g *Graph) CanAdmitChild(ctx context.Context, sponsorID string) (bool, error) {
	sponsor, err := g.store.Get(ctx, sponsorID)
	if err != nil {
		return false, err
	}
	if sponsor.Status != account.StatusActive {
		return false, nil
	}
	return len(sponsor.Children) < account.MaxDirect, nil
}

// AttachChild admits child under sponsor. The store enforces the status
// and capacity invariants atomically.
func (g *Graph) AttachChild(ctx context.Context, sponsorID, childID string) error {
	return g.store.AttachChild(ctx, sponsorID, childID)
}

// Reparent atomically detaches an account from its old sponsor and
// attaches it to the new one.
func (g *Graph) Reparent(ctx context.Context, id, newSponsorID string) error {
	return g.store.Reparent(ctx, id, newSponsorID)
}

// Node is one account in a downline view.
type Node struct {
	Account  account.Account `json:"account"`
	Children []Node          `json:"children,omitempty"`
}

// GetSubtree returns the downline of id as a tree, for CRM/admin screens.
func (g *Graph) GetSubtree(ctx context.Context, id string) (Node, error) {
	acc, err := g.store.Get(ctx, id)
	if err != nil {
		return Node{}, err
	}
	node := Node{Account: acc}
	for _, childID := range acc.Children {
		child, err := g.GetSubtree(ctx, childID)
		if err != nil {
			if errors.Is(err, account.ErrNotFound) {
				continue
			}
			return Node{}, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}
