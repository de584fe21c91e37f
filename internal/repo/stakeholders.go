package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pursuitline/internal/domain"
)

const stakeholderCols = `id,org_id,name,kind,COALESCE(email,''),COALESCE(phone,''),COALESCE(notes,''),created_at`

func scanStakeholderRow(scan func(dest ...any) error) (domain.Stakeholder, error) {
	var s domain.Stakeholder
	err := scan(&s.ID, &s.OrgID, &s.Name, &s.Kind, &s.Email, &s.Phone, &s.Notes, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) InsertStakeholderTx(ctx context.Context, tx *sql.Tx, s domain.Stakeholder) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stakeholders(id,org_id,name,kind,email,phone,notes,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.OrgID, s.Name, s.Kind, s.Email, s.Phone, s.Notes, s.CreatedAt)
	return err
}

func (r Repo) GetStakeholder(ctx context.Context, id string) (domain.Stakeholder, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+stakeholderCols+` FROM stakeholders WHERE id=?`, id)
	return scanStakeholderRow(row.Scan)
}

type StakeholderFilters struct {
	Kind      string
	ProjectID string
	Limit     int
}

func (r Repo) ListStakeholders(ctx context.Context, f StakeholderFilters) ([]domain.Stakeholder, error) {
	var clauses []string
	var args []any
	query := `SELECT ` + stakeholderCols + ` FROM stakeholders`
	if f.ProjectID != "" {
		query = `SELECT s.id,s.org_id,s.name,s.kind,COALESCE(s.email,''),COALESCE(s.phone,''),COALESCE(s.notes,''),s.created_at
FROM stakeholders s JOIN project_stakeholders ps ON ps.stakeholder_id=s.id`
		clauses = append(clauses, "ps.project_id=?")
		args = append(args, f.ProjectID)
		if f.Kind != "" {
			clauses = append(clauses, "s.kind=?")
			args = append(args, f.Kind)
		}
	} else if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stakeholder
	for rows.Next() {
		s, err := scanStakeholderRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateStakeholder(ctx context.Context, tx *sql.Tx, id string, name, kind, email, phone, notes *string) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if kind != nil {
		fields = append(fields, "kind=?")
		args = append(args, *kind)
	}
	if email != nil {
		fields = append(fields, "email=?")
		args = append(args, *email)
	}
	if phone != nil {
		fields = append(fields, "phone=?")
		args = append(args, *phone)
	}
	if notes != nil {
		fields = append(fields, "notes=?")
		args = append(args, *notes)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE stakeholders SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteStakeholder(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM stakeholders WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) LinkStakeholderTx(ctx context.Context, tx *sql.Tx, projectID, stakeholderID, role, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO project_stakeholders(project_id,stakeholder_id,role,created_at) VALUES (?,?,?,?)`,
		projectID, stakeholderID, role, now)
	return err
}

func (r Repo) UnlinkStakeholderTx(ctx context.Context, tx *sql.Tx, projectID, stakeholderID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM project_stakeholders WHERE project_id=? AND stakeholder_id=?`, projectID, stakeholderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountStakeholdersByKind(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT s.kind, count(*) FROM stakeholders s
JOIN project_stakeholders ps ON ps.stakeholder_id=s.id WHERE ps.project_id=? GROUP BY s.kind`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		res[kind] = count
	}
	return res, rows.Err()
}
