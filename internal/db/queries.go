package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/j-veylop/gateway-usage-tui/internal/gateway"
	"github.com/j-veylop/gateway-usage-tui/internal/logger"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

// InsertUsageRequests records usage events in a single transaction.
func (db *DB) InsertUsageRequests(ctx context.Context, entries []models.UsageRequestEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_requests (`+usageRequestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		unixMs := e.UnixMs
		if unixMs == 0 {
			unixMs = db.now().UnixMilli()
		}
		total := e.TotalTokens
		if total == 0 {
			total = e.InputTokens + e.OutputTokens
		}
		if _, err := stmt.ExecContext(ctx,
			e.Provider, e.APIKeyRef, e.Model, e.Origin, e.SessionID, unixMs,
			e.InputTokens, e.OutputTokens, total,
			e.CacheCreationInputTokens, e.CacheReadInputTokens,
		); err != nil {
			return fmt.Errorf("failed to insert usage request: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage requests: %w", err)
	}
	return nil
}

// whereClause builds the filter predicate of a query. It reports false when a
// dimension is restricted to nothing, in which case no query should run.
func (db *DB) whereClause(f models.RequestFilters) (string, []any, bool) {
	var (
		conds []string
		args  []any
	)

	switch {
	case f.FromUnixMs != nil:
		conds = append(conds, "unix_ms >= ?")
		args = append(args, *f.FromUnixMs)
	case f.Hours > 0:
		conds = append(conds, "unix_ms >= ?")
		args = append(args, db.now().UnixMilli()-int64(f.Hours)*msPerHour)
	}
	if f.ToUnixMs != nil {
		conds = append(conds, "unix_ms <= ?")
		args = append(args, *f.ToUnixMs)
	}

	dims := []struct {
		column string
		values []string
	}{
		{"provider", f.Providers},
		{"model", f.Models},
		{"origin", f.Origins},
		{"session_id", f.Sessions},
	}
	for _, d := range dims {
		if d.values == nil {
			continue
		}
		if len(d.values) == 0 {
			return "", nil, false
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(d.values)), ",")
		conds = append(conds, fmt.Sprintf("%s IN (%s)", d.column, placeholders))
		for _, v := range d.values {
			args = append(args, v)
		}
	}

	if len(conds) == 0 {
		return "", args, true
	}
	return "WHERE " + strings.Join(conds, " AND "), args, true
}

// UsageRequestEntries returns one page of entries newest-first.
func (db *DB) UsageRequestEntries(ctx context.Context, a gateway.EntriesArgs) (models.UsageRequestPage, error) {
	page := models.UsageRequestPage{OK: true, Rows: []models.UsageRequestEntry{}, NextOffset: a.Offset}

	where, args, ok := db.whereClause(a.Filters())
	if !ok {
		return page, nil
	}
	limit := a.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(a.Offset, 0)

	query := `SELECT ` + usageRequestColumns + ` FROM usage_requests ` + where +
		` ORDER BY unix_ms DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit+1, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.UsageRequestPage{}, fmt.Errorf("failed to query usage requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e models.UsageRequestEntry
		if err := rows.Scan(
			&e.Provider, &e.APIKeyRef, &e.Model, &e.Origin, &e.SessionID, &e.UnixMs,
			&e.InputTokens, &e.OutputTokens, &e.TotalTokens,
			&e.CacheCreationInputTokens, &e.CacheReadInputTokens,
		); err != nil {
			logger.Warn("failed to scan usage request", "error", err)
			continue
		}
		page.Rows = append(page.Rows, e)
	}
	if err := rows.Err(); err != nil {
		return models.UsageRequestPage{}, fmt.Errorf("failed to iterate usage requests: %w", err)
	}

	if len(page.Rows) > limit {
		page.Rows = page.Rows[:limit]
		page.HasMore = true
	}
	page.NextOffset = offset + len(page.Rows)
	return page, nil
}

// UsageRequestSummary totals requests and tokens for the filters.
func (db *DB) UsageRequestSummary(ctx context.Context, a gateway.SummaryArgs) (models.UsageSummary, error) {
	summary := models.UsageSummary{OK: true}

	where, args, ok := db.whereClause(a.Filters())
	if !ok {
		return summary, nil
	}

	query := `
		SELECT COUNT(*),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(cache_creation_input_tokens), 0),
			COALESCE(SUM(cache_read_input_tokens), 0)
		FROM usage_requests ` + where

	err := db.QueryRowContext(ctx, query, args...).Scan(
		&summary.Requests,
		&summary.InputTokens,
		&summary.OutputTokens,
		&summary.TotalTokens,
		&summary.CacheCreationInputTokens,
		&summary.CacheReadInputTokens,
	)
	if err != nil {
		return models.UsageSummary{}, fmt.Errorf("failed to query usage summary: %w", err)
	}
	return summary, nil
}

// UsageRequestDailyTotals rolls tokens up per local day and provider over the
// trailing days ending at the most recent recorded event.
func (db *DB) UsageRequestDailyTotals(ctx context.Context, a gateway.DailyArgs) (models.DailyTotals, error) {
	out := models.DailyTotals{OK: true, Days: []models.DailyTotal{}, Providers: []models.ProviderTotal{}}
	days := a.Days
	if days <= 0 {
		days = 45
	}

	var latest sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(unix_ms) FROM usage_requests`).Scan(&latest); err != nil {
		return models.DailyTotals{}, fmt.Errorf("failed to query latest usage: %w", err)
	}
	if !latest.Valid {
		return out, nil
	}

	// One extra day covers a local midnight that falls inside the first UTC day.
	since := latest.Int64 - int64(days+1)*msPerDay
	rows, err := db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', unix_ms / 1000, 'unixepoch', 'localtime') AS day,
			provider, COALESCE(SUM(total_tokens), 0)
		FROM usage_requests
		WHERE unix_ms >= ?
		GROUP BY day, provider
		ORDER BY day
	`, since)
	if err != nil {
		return models.DailyTotals{}, fmt.Errorf("failed to query daily totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byDay := make(map[string]*models.DailyTotal)
	var order []string
	for rows.Next() {
		var (
			day      string
			provider string
			tokens   int64
		)
		if err := rows.Scan(&day, &provider, &tokens); err != nil {
			logger.Warn("failed to scan daily total", "error", err)
			continue
		}
		d, ok := byDay[day]
		if !ok {
			start, err := time.ParseInLocation("2006-01-02", day, time.Local)
			if err != nil {
				logger.Warn("invalid day bucket", "day", day, "error", err)
				continue
			}
			d = &models.DailyTotal{DayStartUnixMs: start.UnixMilli(), ProviderTotals: map[string]int64{}}
			byDay[day] = d
			order = append(order, day)
		}
		d.ProviderTotals[provider] += tokens
		d.TotalTokens += tokens
	}
	if err := rows.Err(); err != nil {
		return models.DailyTotals{}, fmt.Errorf("failed to iterate daily totals: %w", err)
	}

	if len(order) > days {
		order = order[len(order)-days:]
	}
	providerTotals := make(map[string]int64)
	for _, day := range order {
		d := byDay[day]
		for p, v := range d.ProviderTotals {
			providerTotals[p] += v
		}
		out.Days = append(out.Days, *d)
	}
	for p, v := range providerTotals {
		out.Providers = append(out.Providers, models.ProviderTotal{Provider: p, TotalTokens: v})
	}
	sort.Slice(out.Providers, func(i, j int) bool {
		if out.Providers[i].TotalTokens != out.Providers[j].TotalTokens {
			return out.Providers[i].TotalTokens > out.Providers[j].TotalTokens
		}
		return out.Providers[i].Provider < out.Providers[j].Provider
	})
	return out, nil
}
