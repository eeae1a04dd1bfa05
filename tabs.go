package policy

import (
	"context"
	"fmt"
	"sync"
)

// TabDescriptor declares what a UI surface (tab or route) requires before it
// is shown: a policy, a bare permission, a component, or a combination.
// Both server route guards and client visibility logic consume the same
// descriptor, so the two can never disagree.
type TabDescriptor struct {
	ID         string     `json:"id"`
	EntityType EntityType `json:"entity_type,omitempty"`
	Policy     string     `json:"policy,omitempty"`
	Permission string     `json:"permission,omitempty"`
	Component  string     `json:"component,omitempty"`
}

// TabSet is a registry of tab descriptors for one UI surface.
type TabSet struct {
	mu    sync.RWMutex
	tabs  map[string]TabDescriptor
	order []string
}

func NewTabSet() *TabSet {
	return &TabSet{tabs: make(map[string]TabDescriptor)}
}

func (s *TabSet) Register(d TabDescriptor) error {
	if d.ID == "" {
		return fmt.Errorf("tab descriptor requires an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[d.ID]; ok {
		return &DuplicateRegistrationError{ID: d.ID}
	}
	s.tabs[d.ID] = d
	s.order = append(s.order, d.ID)
	return nil
}

func (s *TabSet) Get(id string) (TabDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.tabs[id]
	return d, ok
}

// IDs returns every registered tab ID in registration order.
func (s *TabSet) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// TabResult is one entry of a batch visibility answer.
type TabResult struct {
	ID      string `json:"id"`
	Granted bool   `json:"granted"`
	Reason  string `json:"reason"`
}

// EvaluateTabs answers a batch "which of these tabs may this user see"
// question for one entity. The checks are independent read-only policy
// evaluations, so they fan out concurrently; results come back in request
// order. The first store or configuration error fails the whole batch.
func (e *Engine) EvaluateTabs(ctx context.Context, set *TabSet, user *User, entityID string, tabIDs []string) ([]TabResult, error) {
	results := make([]TabResult, len(tabIDs))
	errs := make([]error, len(tabIDs))
	var wg sync.WaitGroup
	for i, id := range tabIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], errs[i] = e.evaluateTab(ctx, set, user, entityID, id)
		}(i, id)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (e *Engine) evaluateTab(ctx context.Context, set *TabSet, user *User, entityID, tabID string) (TabResult, error) {
	d, ok := set.Get(tabID)
	if !ok {
		return TabResult{ID: tabID, Granted: false, Reason: "No such tab is registered"}, nil
	}
	if d.Component != "" {
		enabled, err := e.componentEnabled(ctx, d.Component)
		if err != nil {
			return TabResult{}, err
		}
		if !enabled {
			return TabResult{ID: tabID, Granted: false, Reason: d.Component + " is not enabled"}, nil
		}
	}
	if d.Policy != "" {
		res, err := e.Evaluate(ctx, d.Policy, user, entityID)
		if err != nil {
			return TabResult{}, err
		}
		return TabResult{ID: tabID, Granted: res.Granted, Reason: res.Reason}, nil
	}
	if d.Permission != "" {
		st := newEvalState(e, false)
		ok, err := st.hasPermission(ctx, user, d.Permission)
		if err != nil {
			return TabResult{}, err
		}
		if !ok {
			return TabResult{ID: tabID, Granted: false, Reason: "Missing permission " + d.Permission}, nil
		}
		return TabResult{ID: tabID, Granted: true, Reason: "Has permission " + d.Permission}, nil
	}
	// Descriptor with only a component requirement (or none at all).
	return TabResult{ID: tabID, Granted: true, Reason: "No additional requirements"}, nil
}
