package policy

import (
	"fmt"
	"strings"
)

// Configuration errors abort startup or surface as evaluation errors; they
// never degrade into a granted or denied Result.

// PolicyNotFoundError reports an evaluation request against an unregistered
// policy ID. This indicates a broken deployment, not a lack of access.
type PolicyNotFoundError struct {
	ID string
}

func (e *PolicyNotFoundError) Error() string {
	return fmt.Sprintf("policy not found: %s", e.ID)
}

// DuplicateRegistrationError reports a second Register call for an ID already
// present in the catalog. Registration happens once at startup; a duplicate
// is a programming error.
type DuplicateRegistrationError struct {
	ID string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("policy already registered: %s", e.ID)
}

// CyclicDelegationError reports a delegation chain that revisited a policy
// already on the evaluation stack. Chain lists the IDs in call order with the
// repeated ID last.
type CyclicDelegationError struct {
	Chain []string
}

func (e *CyclicDelegationError) Error() string {
	return fmt.Sprintf("cyclic policy delegation: %s", strings.Join(e.Chain, " -> "))
}

// LoaderMissingError reports a declared entity type with no registered loader.
type LoaderMissingError struct {
	Type EntityType
}

func (e *LoaderMissingError) Error() string {
	return fmt.Sprintf("no entity loader registered for type %q", e.Type)
}
