package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pursuitline/internal/domain"
)

const pursuitCols = `id,project_id,stakeholder_id,title,COALESCE(description,''),status,owner_id,value_estimate,due_date,created_at,updated_at`

func scanPursuitRow(scan func(dest ...any) error) (domain.Pursuit, error) {
	var p domain.Pursuit
	var stakeholderID, ownerID, dueDate sql.NullString
	var value sql.NullFloat64
	err := scan(&p.ID, &p.ProjectID, &stakeholderID, &p.Title, &p.Description, &p.Status, &ownerID, &value, &dueDate, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if stakeholderID.Valid {
		p.StakeholderID = &stakeholderID.String
	}
	if ownerID.Valid {
		p.OwnerID = &ownerID.String
	}
	if value.Valid {
		p.ValueEstimate = &value.Float64
	}
	if dueDate.Valid {
		p.DueDate = &dueDate.String
	}
	return p, nil
}

func (r Repo) InsertPursuitTx(ctx context.Context, tx *sql.Tx, p domain.Pursuit) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO pursuits(id,project_id,stakeholder_id,title,description,status,owner_id,value_estimate,due_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ProjectID, nullableStringPtr(p.StakeholderID), p.Title, p.Description, p.Status,
		nullableStringPtr(p.OwnerID), nullableFloatPtr(p.ValueEstimate), nullableStringPtr(p.DueDate), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetPursuit(ctx context.Context, id string) (domain.Pursuit, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+pursuitCols+` FROM pursuits WHERE id=?`, id)
	return scanPursuitRow(row.Scan)
}

func (r Repo) GetPursuitTx(ctx context.Context, tx *sql.Tx, id string) (domain.Pursuit, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+pursuitCols+` FROM pursuits WHERE id=?`, id)
	return scanPursuitRow(row.Scan)
}

type PursuitFilters struct {
	ProjectID       string
	Status          string
	OwnerID         string
	StakeholderID   string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListPursuits(ctx context.Context, f PursuitFilters) ([]domain.Pursuit, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.StakeholderID != "" {
		clauses = append(clauses, "stakeholder_id=?")
		args = append(args, f.StakeholderID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + pursuitCols + ` FROM pursuits ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Pursuit
	for rows.Next() {
		p, err := scanPursuitRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdatePursuitTx(ctx context.Context, tx *sql.Tx, p domain.Pursuit) error {
	res, err := tx.ExecContext(ctx, `UPDATE pursuits SET stakeholder_id=?, title=?, description=?, status=?, owner_id=?, value_estimate=?, due_date=?, updated_at=? WHERE id=?`,
		nullableStringPtr(p.StakeholderID), p.Title, p.Description, p.Status,
		nullableStringPtr(p.OwnerID), nullableFloatPtr(p.ValueEstimate), nullableStringPtr(p.DueDate), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountPursuitsByStatus(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM pursuits WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func (r Repo) SumPursuitValue(ctx context.Context, projectID string) (float64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(value_estimate),0) FROM pursuits WHERE project_id=? AND status NOT IN ('lost','canceled')`, projectID)
	var total float64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// AppendCommentTx assigns the next per-pursuit sequence number and inserts.
// The UNIQUE(pursuit_id, seq) constraint rejects concurrent duplicates.
func (r Repo) AppendCommentTx(ctx context.Context, tx *sql.Tx, c domain.Comment) (domain.Comment, error) {
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq),0)+1 FROM pursuit_comments WHERE pursuit_id=?`, c.PursuitID)
	if err := row.Scan(&c.Seq); err != nil {
		return domain.Comment{}, err
	}
	system := 0
	if c.System {
		system = 1
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO pursuit_comments(id,pursuit_id,seq,author_id,body,system,created_at) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.PursuitID, c.Seq, c.AuthorID, c.Text, system, c.CreatedAt)
	if err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

func (r Repo) ListComments(ctx context.Context, pursuitID string, limit int, afterSeq int64) ([]domain.Comment, error) {
	query := `SELECT id,pursuit_id,seq,author_id,body,system,created_at FROM pursuit_comments WHERE pursuit_id=?`
	args := []any{pursuitID}
	if afterSeq > 0 {
		query += ` AND seq>?`
		args = append(args, afterSeq)
	}
	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		var c domain.Comment
		var system int
		if err := rows.Scan(&c.ID, &c.PursuitID, &c.Seq, &c.AuthorID, &c.Text, &system, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.System = system != 0
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) CountComments(ctx context.Context, pursuitID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM pursuit_comments WHERE pursuit_id=?`, pursuitID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}
