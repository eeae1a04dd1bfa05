// Package catalog holds the production policy definitions: one file per
// domain area, each contributing its definitions to a shared registration
// entry point. The definitions are data plus small evaluate functions; all
// evaluation machinery lives in the policy package.
package catalog

import "github.com/unionhall/policy"

// Permission keys. Staff is the broad back-office permission most read
// policies accept; the admin key is handled by the engine's bypass.
const (
	PermStaff = "staff"
	PermAdmin = "admin"

	PermWorkersView    = "workers.view"
	PermWorkersEdit    = "workers.edit"
	PermWorkersCreate  = "workers.create"
	PermWorkersDelete  = "workers.delete"
	PermWorkersMerge   = "workers.merge"
	PermWorkersHours   = "workers.hours.view"
	PermEmployersView  = "employers.view"
	PermEmployersEdit  = "employers.edit"
	PermEmployersNew   = "employers.create"
	PermEmployersDrop  = "employers.delete"
	PermProvidersView  = "providers.view"
	PermProvidersEdit  = "providers.edit"
	PermProvidersNew   = "providers.create"
	PermContactsView   = "contacts.view"
	PermContactsEdit   = "contacts.edit"
	PermFilesDelete    = "files.delete"
	PermCardchecksDrop = "cardchecks.delete"
	PermDispatchView   = "dispatch.view"
	PermDispatchManage = "dispatch.manage"
	PermEDLSView       = "edls.view"
	PermEDLSEdit       = "edls.edit"
	PermEDLSManager    = "edls.manager"
	PermLedgerView     = "ledger.view"
	PermCommsSend      = "comms.send"
	PermReportsView    = "reports.view"
	PermAdminSettings  = "admin.settings"
)

// Feature components gating whole policy families.
const (
	ComponentTrusts    = "trusts"
	ComponentCardcheck = "cardcheck"
	ComponentEsig      = "esig"
	ComponentDispatch  = "dispatch"
	ComponentEDLS      = "edls"
)

// Register installs every production policy definition into the catalog.
// Call it exactly once at startup, before sealing.
func Register(c *policy.Catalog) error {
	for _, fn := range []func(*policy.Catalog) error{
		registerWorker,
		registerEmployer,
		registerProvider,
		registerContact,
		registerFile,
		registerCardcheck,
		registerEsig,
		registerDNC,
		registerEDLS,
		registerRoutes,
	} {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister panics on registration failure; definitions are static, so a
// failure is a programming error.
func MustRegister(c *policy.Catalog) {
	if err := Register(c); err != nil {
		panic(err)
	}
}

// NewCatalog builds the sealed production catalog.
func NewCatalog() *policy.Catalog {
	c := policy.NewCatalog()
	MustRegister(c)
	c.Seal()
	return c
}

func registerAll(c *policy.Catalog, defs ...*policy.Definition) error {
	for _, def := range defs {
		if err := c.Register(def); err != nil {
			return err
		}
	}
	return nil
}
