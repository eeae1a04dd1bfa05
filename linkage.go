package policy

import (
	"context"
	"fmt"
	"strings"
)

// resolveLinkage evaluates a named user-to-entity association predicate
// against the bound entity. Unknown linkage names are configuration errors;
// an absent entity simply fails the predicate.
func resolveLinkage(ctx context.Context, pc *Context, l Linkage) (bool, error) {
	ent, err := pc.Entity(ctx)
	if err != nil {
		return false, err
	}
	if ent == nil {
		return false, nil
	}
	switch l {
	case LinkageOwnsWorker:
		w, ok := ent.(*Worker)
		if !ok {
			return false, nil
		}
		return ownsWorker(ctx, pc, w)
	case LinkageEmployerAssociation:
		emp, ok := ent.(*Employer)
		if !ok {
			return false, nil
		}
		return employerAssociation(ctx, pc, emp.ID)
	case LinkageProviderAssociation:
		prov, ok := ent.(*Provider)
		if !ok {
			return false, nil
		}
		return providerAssociation(ctx, pc, prov.ID)
	case LinkageWorkerEmploymentHistory:
		emp, ok := ent.(*Employer)
		if !ok {
			return false, nil
		}
		return workerEmploymentHistory(ctx, pc, emp.ID)
	case LinkageWorkerBenefitProvider:
		w, ok := ent.(*Worker)
		if !ok {
			return false, nil
		}
		return workerBenefitProvider(ctx, pc, w.ID)
	case LinkageFileUploader:
		f, ok := ent.(*FileRecord)
		if !ok {
			return false, nil
		}
		return pc.Authenticated() && f.UploaderID == pc.User.ID, nil
	}
	return false, fmt.Errorf("unknown linkage %q in policy %s", l, pc.policyID)
}

// ownsWorker: the user's contact email matches the worker record, or the
// user's linked worker row is the record itself.
func ownsWorker(ctx context.Context, pc *Context, w *Worker) (bool, error) {
	uc, err := pc.UserContact(ctx)
	if err != nil {
		return false, err
	}
	if uc != nil {
		if uc.ID != "" && uc.ID == w.ContactID {
			return true, nil
		}
		if uc.Email != "" && strings.EqualFold(uc.Email, w.Email) {
			return true, nil
		}
	}
	uw, err := pc.UserWorker(ctx)
	if err != nil {
		return false, err
	}
	return uw != nil && uw.ID == w.ID, nil
}

func employerAssociation(ctx context.Context, pc *Context, employerID string) (bool, error) {
	uc, err := pc.UserContact(ctx)
	if err != nil || uc == nil {
		return false, err
	}
	store, err := pc.Storage()
	if err != nil {
		return false, err
	}
	return store.EmployerHasContact(ctx, employerID, uc.ID)
}

func providerAssociation(ctx context.Context, pc *Context, providerID string) (bool, error) {
	uc, err := pc.UserContact(ctx)
	if err != nil || uc == nil {
		return false, err
	}
	store, err := pc.Storage()
	if err != nil {
		return false, err
	}
	return store.ProviderHasContact(ctx, providerID, uc.ID)
}

func workerEmploymentHistory(ctx context.Context, pc *Context, employerID string) (bool, error) {
	uw, err := pc.UserWorker(ctx)
	if err != nil || uw == nil {
		return false, err
	}
	store, err := pc.Storage()
	if err != nil {
		return false, err
	}
	return store.WorkerHasHoursAt(ctx, uw.ID, employerID)
}

// workerBenefitProvider: the user is a provider contact for any provider
// administering a benefit the worker receives.
func workerBenefitProvider(ctx context.Context, pc *Context, workerID string) (bool, error) {
	uc, err := pc.UserContact(ctx)
	if err != nil || uc == nil {
		return false, err
	}
	store, err := pc.Storage()
	if err != nil {
		return false, err
	}
	providers, err := store.BenefitProvidersFor(ctx, workerID)
	if err != nil {
		return false, err
	}
	for _, providerID := range providers {
		ok, err := store.ProviderHasContact(ctx, providerID, uc.ID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ============================================================================
// DELEGATION PREDICATES
// ============================================================================
// These load a dependent record, resolve its foreign key, and re-enter the
// engine against the corresponding base policy. The foreign key is always
// resolved first so absence yields a specific denial rather than a generic
// one; callers and tests depend on distinguishing these reasons.

// DelegateToWorker grants access to a record through its owning worker.
func DelegateToWorker(ctx context.Context, pc *Context, workerID, workerPolicy, grantReason string) (*Result, error) {
	if workerID == "" {
		return Deny("Record has no associated worker"), nil
	}
	ok, err := pc.CheckPolicy(ctx, workerPolicy, workerID)
	if err != nil {
		return nil, err
	}
	if ok {
		return Grant(grantReason), nil
	}
	return nil, nil
}

// DelegateToOwner grants access to a record through its owning entity,
// dispatching on the record's owner type tag to the matching base policy.
// verb is the policy suffix ("view" or "edit").
func DelegateToOwner(ctx context.Context, pc *Context, ownerType EntityType, ownerID, verb string) (*Result, error) {
	if ownerType == "" || ownerID == "" {
		return Deny("Record has no associated entity"), nil
	}
	target, ok := ownerPolicies[ownerType]
	if !ok {
		return Deny(fmt.Sprintf("No access policy covers %s records", ownerType)), nil
	}
	granted, err := pc.CheckPolicy(ctx, target+"."+verb, ownerID)
	if err != nil {
		return nil, err
	}
	if granted {
		return Grant(fmt.Sprintf("Access to the record's %s", ownerType)), nil
	}
	return nil, nil
}

// ownerPolicies maps an owner entity type to its base policy prefix.
var ownerPolicies = map[EntityType]string{
	EntityWorker:   "worker",
	EntityEmployer: "employer",
	EntityProvider: "provider",
	EntityContact:  "contact",
}
