package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/oops"

	"go-account-service/internal/model"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
	// maxAuditPage keeps (page-1)*limit far from overflow for any limit.
	maxAuditPage = 1_000_000
)

type AuditRepository struct {
	pool DBTX
}

func NewAuditRepository(pool DBTX) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_entries (action, account_id, email, status, detail, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Action, entry.AccountID, entry.Email, entry.Status, entry.Detail, entry.OccurredAt)
	if err != nil {
		return oops.With("operation", "log audit entry").With("action", entry.Action).Wrap(err)
	}
	return nil
}

// Query returns one page of an account's entries, newest first.
func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query = normalizeAuditQuery(query)

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_entries WHERE account_id = $1`, query.AccountID).Scan(&total); err != nil {
		return nil, model.Meta{}, oops.With("operation", "count audit entries").Wrap(err)
	}
	meta := pageMeta(query, total)

	offset := (query.Page - 1) * query.Limit
	rows, err := r.pool.Query(ctx,
		`SELECT id, action, account_id, email, status, detail, occurred_at
		 FROM audit_entries WHERE account_id = $1
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		query.AccountID, query.Limit, offset)
	if err != nil {
		return nil, model.Meta{}, oops.With("operation", "query audit entries").Wrap(err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.AccountID, &e.Email, &e.Status, &e.Detail, &e.OccurredAt); err != nil {
			return nil, model.Meta{}, oops.With("operation", "scan audit entry").Wrap(err)
		}
		e.OccurredAt = e.OccurredAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Meta{}, oops.With("operation", "iterate audit entries").Wrap(err)
	}

	return entries, meta, nil
}

type MemoryAuditRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries []model.AuditEntry
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Log(_ context.Context, entry model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	entry.ID = r.nextID
	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryAuditRepository) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query = normalizeAuditQuery(query)

	r.mu.RLock()
	matched := make([]model.AuditEntry, 0)
	for _, e := range r.entries {
		if e.AccountID == query.AccountID {
			matched = append(matched, e)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	meta := pageMeta(query, len(matched))
	start := (query.Page - 1) * query.Limit
	if start >= len(matched) {
		return []model.AuditEntry{}, meta, nil
	}
	end := min(start+query.Limit, len(matched))
	return matched[start:end], meta, nil
}

func normalizeAuditQuery(query model.AuditQuery) model.AuditQuery {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Page > maxAuditPage {
		query.Page = maxAuditPage
	}
	if query.Limit <= 0 {
		query.Limit = defaultAuditLimit
	}
	if query.Limit > maxAuditLimit {
		query.Limit = maxAuditLimit
	}
	return query
}

func pageMeta(query model.AuditQuery, total int) model.Meta {
	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}
	return model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages}
}
