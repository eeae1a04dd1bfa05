package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"
	"github.com/unionhall/policy"
)

// SQLAuditStore persists policy decisions in SQL.
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) (*SQLAuditStore, error) {
	return &SQLAuditStore{db: db}, nil
}

func (s *SQLAuditStore) Record(ctx context.Context, entry *policy.AuditEntry) error {
	q := `INSERT INTO policy_audit_log(id, timestamp, trace_id, user_id, policy_id, entity_type, entity_id, granted, reason) VALUES(:id, :timestamp, :trace_id, :user_id, :policy_id, :entity_type, :entity_id, :granted, :reason)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":          entry.ID,
		"timestamp":   entry.Timestamp,
		"trace_id":    entry.TraceID,
		"user_id":     entry.UserID,
		"policy_id":   entry.PolicyID,
		"entity_type": string(entry.EntityType),
		"entity_id":   entry.EntityID,
		"granted":     boolToInt(entry.Granted),
		"reason":      entry.Reason,
	})
	return err
}

func (s *SQLAuditStore) List(ctx context.Context, filter policy.AuditFilter) ([]*policy.AuditEntry, error) {
	q := `SELECT id, timestamp, trace_id, user_id, policy_id, entity_type, entity_id, granted, reason FROM policy_audit_log WHERE 1=1`
	params := map[string]any{}
	if filter.UserID != "" {
		q += " AND user_id = :user_id"
		params["user_id"] = filter.UserID
	}
	if filter.PolicyID != "" {
		q += " AND policy_id = :policy_id"
		params["policy_id"] = filter.PolicyID
	}
	if filter.EntityID != "" {
		q += " AND entity_id = :entity_id"
		params["entity_id"] = filter.EntityID
	}
	if !filter.StartTime.IsZero() {
		q += " AND timestamp >= :start"
		params["start"] = filter.StartTime
	}
	if !filter.EndTime.IsZero() {
		q += " AND timestamp <= :end"
		params["end"] = filter.EndTime
	}
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*policy.AuditEntry, 0)
	for r.Next() {
		var id, traceID, userID, policyID, entityType, entityID, reason string
		var timestampRaw interface{}
		var grantedInt int
		if err := r.Scan(&id, &timestampRaw, &traceID, &userID, &policyID, &entityType, &entityID, &grantedInt, &reason); err != nil {
			return nil, err
		}
		entry := &policy.AuditEntry{
			ID:         id,
			TraceID:    traceID,
			UserID:     userID,
			PolicyID:   policyID,
			EntityType: policy.EntityType(entityType),
			EntityID:   entityID,
			Granted:    grantedInt != 0,
			Reason:     reason,
		}
		switch v := timestampRaw.(type) {
		case time.Time:
			entry.Timestamp = v
		case string:
			if t, err := parseFlexibleTime(v); err == nil {
				entry.Timestamp = t
			}
		case []byte:
			if t, err := parseFlexibleTime(string(v)); err == nil {
				entry.Timestamp = t
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
