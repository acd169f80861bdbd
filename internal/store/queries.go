package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"videoshelf/internal/videofmt"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

const selectColumns = `
SELECT id, file_path, file_name, size_bytes, duration_seconds,
       width, height, format, thumbnail_path,
       created_at, modified_at, scanned_at, status`

// Query returns one page of records matching opts, with the total match
// count for pagination. The default ordering is most recently scanned
// first.
func (s *Store) Query(ctx context.Context, opts QueryOptions) (*QueryResult, error) {
	start := time.Now()
	var err error
	defer func() { recordOp("query", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Limit > maxLimit {
		opts.Limit = maxLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	where, args := buildWhere(opts)

	var total int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count query: %w", err)
	}

	query := selectColumns + ` FROM videos` + where +
		` ORDER BY ` + sortClause(opts.Sort, opts.Order) +
		` LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select query: %w", err)
	}
	defer rows.Close()

	result := &QueryResult{
		Items:  []VideoRecord{},
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}

	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			err = scanErr
			return nil, fmt.Errorf("scan row: %w", scanErr)
		}
		result.Items = append(result.Items, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func buildWhere(opts QueryOptions) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if !opts.IncludeTombstoned {
		conds = append(conds, "status = ?")
		args = append(args, string(StatusActive))
	}
	if opts.NameContains != "" {
		// instr avoids LIKE wildcard escaping for user-supplied text.
		conds = append(conds, "instr(lower(file_name), lower(?)) > 0")
		args = append(args, opts.NameContains)
	}
	if opts.MinSize != nil {
		conds = append(conds, "size_bytes >= ?")
		args = append(args, *opts.MinSize)
	}
	if opts.MaxSize != nil {
		conds = append(conds, "size_bytes <= ?")
		args = append(args, *opts.MaxSize)
	}
	if opts.MinDuration != nil {
		conds = append(conds, "duration_seconds >= ?")
		args = append(args, *opts.MinDuration)
	}
	if opts.MaxDuration != nil {
		conds = append(conds, "duration_seconds <= ?")
		args = append(args, *opts.MaxDuration)
	}
	if len(opts.Formats) > 0 {
		placeholders := make([]string, len(opts.Formats))
		for i, f := range opts.Formats {
			placeholders[i] = "?"
			args = append(args, string(f))
		}
		conds = append(conds, "format IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func sortClause(field SortField, order SortOrder) string {
	column := "scanned_at"
	switch field {
	case SortByName:
		column = "file_name COLLATE NOCASE"
	case SortBySize:
		column = "size_bytes"
	case SortByDuration:
		column = "duration_seconds"
	case SortByResolution:
		column = "(width * height)"
	case SortByCreated:
		column = "created_at"
	case SortByModified:
		column = "modified_at"
	case SortByScanned, "":
		column = "scanned_at"
	}

	dir := "DESC"
	if order == SortAsc {
		dir = "ASC"
	}
	if field != "" && field != SortByScanned && order == "" {
		// Explicit sort fields default ascending; the scan-date default
		// stays newest-first.
		dir = "ASC"
	}
	return column + " " + dir
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*VideoRecord, error) {
	var rec VideoRecord
	var format string
	var thumb sql.NullString
	var created, modified, scanned int64

	err := row.Scan(
		&rec.ID, &rec.FilePath, &rec.FileName, &rec.FileSizeBytes, &rec.DurationSeconds,
		&rec.Width, &rec.Height, &format, &thumb,
		&created, &modified, &scanned, &rec.Status,
	)
	if err != nil {
		return nil, err
	}

	rec.Format = videofmt.Format(format)
	if thumb.Valid {
		rec.ThumbnailPath = thumb.String
	}
	rec.CreatedAt = time.Unix(created, 0)
	rec.ModifiedAt = time.Unix(modified, 0)
	rec.ScannedAt = time.Unix(scanned, 0)
	return &rec, nil
}
