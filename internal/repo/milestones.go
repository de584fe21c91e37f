package repo

import (
	"context"
	"database/sql"

	"pursuitline/internal/domain"
)

func (r Repo) InsertMilestoneTx(ctx context.Context, tx *sql.Tx, m domain.Milestone) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO milestones(id,project_id,title,due_date,status,created_at) VALUES (?,?,?,?,?,?)`,
		m.ID, m.ProjectID, m.Title, nullableStringPtr(m.DueDate), m.Status, m.CreatedAt)
	return err
}

func (r Repo) GetMilestone(ctx context.Context, id string) (domain.Milestone, error) {
	var m domain.Milestone
	var dueDate sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,title,due_date,status,created_at FROM milestones WHERE id=?`, id).
		Scan(&m.ID, &m.ProjectID, &m.Title, &dueDate, &m.Status, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if dueDate.Valid {
		m.DueDate = &dueDate.String
	}
	return m, err
}

func (r Repo) ListMilestones(ctx context.Context, projectID, status string) ([]domain.Milestone, error) {
	query := `SELECT id,project_id,title,due_date,status,created_at FROM milestones WHERE project_id=?`
	args := []any{projectID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY COALESCE(due_date,'9999') ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Milestone
	for rows.Next() {
		var m domain.Milestone
		var dueDate sql.NullString
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Title, &dueDate, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		if dueDate.Valid {
			m.DueDate = &dueDate.String
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) UpdateMilestoneStatusTx(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE milestones SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMilestoneTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM milestones WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertDocumentTx(ctx context.Context, tx *sql.Tx, d domain.Document) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO documents(id,project_id,name,content_type,size_bytes,path,uploaded_by,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		d.ID, d.ProjectID, d.Name, d.ContentType, d.SizeBytes, d.Path, d.UploadedBy, d.CreatedAt)
	return err
}

func (r Repo) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	var d domain.Document
	var contentType sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,name,content_type,size_bytes,path,uploaded_by,created_at FROM documents WHERE id=?`, id).
		Scan(&d.ID, &d.ProjectID, &d.Name, &contentType, &d.SizeBytes, &d.Path, &d.UploadedBy, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if contentType.Valid {
		d.ContentType = contentType.String
	}
	return d, err
}

func (r Repo) ListDocuments(ctx context.Context, projectID string) ([]domain.Document, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,name,content_type,size_bytes,path,uploaded_by,created_at FROM documents WHERE project_id=? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Document
	for rows.Next() {
		var d domain.Document
		var contentType sql.NullString
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Name, &contentType, &d.SizeBytes, &d.Path, &d.UploadedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		if contentType.Valid {
			d.ContentType = contentType.String
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) DeleteDocumentTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
