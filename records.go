package policy

// Entity is a persisted domain record an entity-scoped policy evaluates
// against. Attr exposes fields by name for declarative attribute conditions
// and for cache-key resolution; the second return is false for unknown
// fields.
type Entity interface {
	EntityID() string
	Type() EntityType
	Attr(field string) (any, bool)
}

// SheetStatus is the lifecycle of an EDLS scheduling sheet.
type SheetStatus string

const (
	SheetDraft SheetStatus = "draft"
	SheetLock  SheetStatus = "lock"
	SheetTrash SheetStatus = "trash"
)

// CardcheckStatus is the lifecycle of a signable cardcheck document.
type CardcheckStatus string

const (
	CardcheckPending CardcheckStatus = "pending"
	CardcheckSigned  CardcheckStatus = "signed"
	CardcheckRevoked CardcheckStatus = "revoked"
)

// EsigStatus is the lifecycle of an e-signature request.
type EsigStatus string

const (
	EsigOpen      EsigStatus = "open"
	EsigCompleted EsigStatus = "completed"
	EsigCancelled EsigStatus = "cancelled"
)

// DNCType restricts which linkage may grant access to a do-not-call record.
type DNCType string

const (
	DNCWorker   DNCType = "worker"
	DNCEmployer DNCType = "employer"
)

// Worker is a union member record.
type Worker struct {
	ID        string `json:"id"`
	ContactID string `json:"contact_id"`
	Email     string `json:"email"`
	Status    string `json:"status"`
}

func (w *Worker) EntityID() string { return w.ID }
func (w *Worker) Type() EntityType { return EntityWorker }

func (w *Worker) Attr(field string) (any, bool) {
	switch field {
	case "contact_id":
		return w.ContactID, true
	case "email":
		return w.Email, true
	case "status":
		return w.Status, true
	}
	return nil, false
}

// Employer is a signatory employer record.
type Employer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (e *Employer) EntityID() string { return e.ID }
func (e *Employer) Type() EntityType { return EntityEmployer }

func (e *Employer) Attr(field string) (any, bool) {
	if field == "name" {
		return e.Name, true
	}
	return nil, false
}

// Provider is a trust/benefit provider record.
type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p *Provider) EntityID() string { return p.ID }
func (p *Provider) Type() EntityType { return EntityProvider }

func (p *Provider) Attr(field string) (any, bool) {
	if field == "name" {
		return p.Name, true
	}
	return nil, false
}

// Contact is a person record; a user account may be linked to one.
type Contact struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (c *Contact) EntityID() string { return c.ID }
func (c *Contact) Type() EntityType { return EntityContact }

func (c *Contact) Attr(field string) (any, bool) {
	if field == "email" {
		return c.Email, true
	}
	return nil, false
}

// FileRecord is an uploaded document, owned by another entity through
// OwnerType/OwnerID (e.g. a worker's scanned card).
type FileRecord struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	UploaderID string     `json:"uploader_id"`
	OwnerType  EntityType `json:"owner_type"`
	OwnerID    string     `json:"owner_id"`
}

func (f *FileRecord) EntityID() string { return f.ID }
func (f *FileRecord) Type() EntityType { return EntityFile }

func (f *FileRecord) Attr(field string) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "uploader_id":
		return f.UploaderID, true
	case "owner_type":
		return string(f.OwnerType), true
	case "owner_id":
		return f.OwnerID, true
	}
	return nil, false
}

// Cardcheck is a signable union-authorization card tied to a worker.
type Cardcheck struct {
	ID         string          `json:"id"`
	WorkerID   string          `json:"worker_id"`
	EmployerID string          `json:"employer_id"`
	Status     CardcheckStatus `json:"status"`
}

func (c *Cardcheck) EntityID() string { return c.ID }
func (c *Cardcheck) Type() EntityType { return EntityCardcheck }

func (c *Cardcheck) Attr(field string) (any, bool) {
	switch field {
	case "worker_id":
		return c.WorkerID, true
	case "employer_id":
		return c.EmployerID, true
	case "status":
		return string(c.Status), true
	}
	return nil, false
}

// Esig is an e-signature request bound to an owning entity by type and ID.
type Esig struct {
	ID        string     `json:"id"`
	OwnerType EntityType `json:"owner_type"`
	OwnerID   string     `json:"owner_id"`
	DocType   string     `json:"doc_type"`
	Status    EsigStatus `json:"status"`
}

func (e *Esig) EntityID() string { return e.ID }
func (e *Esig) Type() EntityType { return EntityEsig }

func (e *Esig) Attr(field string) (any, bool) {
	switch field {
	case "owner_type":
		return string(e.OwnerType), true
	case "owner_id":
		return e.OwnerID, true
	case "doc_type":
		return e.DocType, true
	case "status":
		return string(e.Status), true
	}
	return nil, false
}

// DNCRecord is a dispatch do-not-call entry. DNCType says which side of the
// worker/employer relationship the record belongs to, and only the matching
// linkage may grant access to it.
type DNCRecord struct {
	ID         string  `json:"id"`
	DNCType    DNCType `json:"type"`
	WorkerID   string  `json:"worker_id"`
	EmployerID string  `json:"employer_id"`
}

func (d *DNCRecord) EntityID() string { return d.ID }
func (d *DNCRecord) Type() EntityType { return EntityDNC }

func (d *DNCRecord) Attr(field string) (any, bool) {
	switch field {
	case "type":
		return string(d.DNCType), true
	case "worker_id":
		return d.WorkerID, true
	case "employer_id":
		return d.EmployerID, true
	}
	return nil, false
}

// Sheet is an EDLS scheduling sheet. TrashLock protects a sheet from being
// moved to trash regardless of who asks.
type Sheet struct {
	ID        string      `json:"id"`
	Status    SheetStatus `json:"status"`
	TrashLock bool        `json:"trash_lock"`
}

func (s *Sheet) EntityID() string { return s.ID }
func (s *Sheet) Type() EntityType { return EntityEDLSSheet }

func (s *Sheet) Attr(field string) (any, bool) {
	switch field {
	case "status":
		return string(s.Status), true
	case "trash_lock":
		return s.TrashLock, true
	}
	return nil, false
}

// SheetTransition is the ephemeral subject of edls.sheet.set_status: a
// requested status change for a persisted sheet. It is passed as entity data
// because no record with the target status exists yet.
type SheetTransition struct {
	SheetID string      `json:"sheet_id"`
	To      SheetStatus `json:"to"`
}

func (t *SheetTransition) EntityID() string { return t.SheetID }
func (t *SheetTransition) Type() EntityType { return EntityEDLSSheet }

func (t *SheetTransition) Attr(field string) (any, bool) {
	switch field {
	case "to":
		return string(t.To), true
	}
	return nil, false
}
