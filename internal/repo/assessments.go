package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pursuitline/internal/domain"
)

const assessmentCols = `id,project_id,status,decision,decided_by,decided_at,created_at,updated_at`

func scanAssessmentRow(scan func(dest ...any) error) (domain.Assessment, error) {
	var a domain.Assessment
	var decidedBy, decidedAt sql.NullString
	err := scan(&a.ID, &a.ProjectID, &a.Status, &a.Decision, &decidedBy, &decidedAt, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if decidedBy.Valid {
		a.DecidedBy = &decidedBy.String
	}
	if decidedAt.Valid {
		a.DecidedAt = &decidedAt.String
	}
	return a, err
}

func (r Repo) InsertAssessmentTx(ctx context.Context, tx *sql.Tx, a domain.Assessment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO assessments(id,project_id,status,decision,decided_by,decided_at,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.ProjectID, a.Status, a.Decision, nullableStringPtr(a.DecidedBy), nullableStringPtr(a.DecidedAt), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) GetAssessment(ctx context.Context, id string) (domain.Assessment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assessmentCols+` FROM assessments WHERE id=?`, id)
	return scanAssessmentRow(row.Scan)
}

// GetAssessmentByProject returns the project's assessment. One per project.
func (r Repo) GetAssessmentByProject(ctx context.Context, projectID string) (domain.Assessment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assessmentCols+` FROM assessments WHERE project_id=?`, projectID)
	return scanAssessmentRow(row.Scan)
}

func (r Repo) GetAssessmentByProjectTx(ctx context.Context, tx *sql.Tx, projectID string) (domain.Assessment, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+assessmentCols+` FROM assessments WHERE project_id=?`, projectID)
	return scanAssessmentRow(row.Scan)
}

// UpdateAssessmentTx rewrites the mutable columns of an assessment.
func (r Repo) UpdateAssessmentTx(ctx context.Context, tx *sql.Tx, a domain.Assessment) error {
	res, err := tx.ExecContext(ctx, `UPDATE assessments SET status=?, decision=?, decided_by=?, decided_at=?, updated_at=? WHERE id=?`,
		a.Status, a.Decision, nullableStringPtr(a.DecidedBy), nullableStringPtr(a.DecidedAt), a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingApprovals returns assessments awaiting a decision, oldest first.
func (r Repo) ListPendingApprovals(ctx context.Context, limit int) ([]domain.Assessment, error) {
	query := `SELECT ` + assessmentCols + ` FROM assessments WHERE status IN ('submitted','under_review') ORDER BY updated_at ASC, id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assessment
	for rows.Next() {
		a, err := scanAssessmentRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpsertScoreTx(ctx context.Context, tx *sql.Tx, s domain.ScoreEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO assessment_scores(assessment_id,criterion_id,score,comment,scored_by,updated_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(assessment_id,criterion_id) DO UPDATE SET score=excluded.score, comment=excluded.comment, scored_by=excluded.scored_by, updated_at=excluded.updated_at`,
		s.AssessmentID, s.CriterionID, s.Score, s.Comment, s.ScoredBy, s.UpdatedAt)
	return err
}

func (r Repo) ListScores(ctx context.Context, assessmentID string) ([]domain.ScoreEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT assessment_id,criterion_id,score,COALESCE(comment,''),scored_by,updated_at FROM assessment_scores WHERE assessment_id=? ORDER BY criterion_id ASC`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ScoreEntry
	for rows.Next() {
		var s domain.ScoreEntry
		if err := rows.Scan(&s.AssessmentID, &s.CriterionID, &s.Score, &s.Comment, &s.ScoredBy, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ScoresMap returns criterion_id -> score for an assessment.
func (r Repo) ScoresMap(ctx context.Context, assessmentID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT criterion_id, score FROM assessment_scores WHERE assessment_id=?`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var id string
		var score int
		if err := rows.Scan(&id, &score); err != nil {
			return nil, err
		}
		res[id] = score
	}
	return res, rows.Err()
}

func (r Repo) ScoresMapTx(ctx context.Context, tx *sql.Tx, assessmentID string) (map[string]int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT criterion_id, score FROM assessment_scores WHERE assessment_id=?`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var id string
		var score int
		if err := rows.Scan(&id, &score); err != nil {
			return nil, err
		}
		res[id] = score
	}
	return res, rows.Err()
}

const conditionCols = `id,assessment_id,condition,responsible_id,due_date,COALESCE(notes,''),status,created_at,updated_at`

func scanConditionRow(scan func(dest ...any) error) (domain.Condition, error) {
	var c domain.Condition
	var responsibleID, dueDate sql.NullString
	err := scan(&c.ID, &c.AssessmentID, &c.Condition, &responsibleID, &dueDate, &c.Notes, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if responsibleID.Valid {
		c.ResponsibleID = &responsibleID.String
	}
	if dueDate.Valid {
		c.DueDate = &dueDate.String
	}
	return c, err
}

func (r Repo) InsertConditionTx(ctx context.Context, tx *sql.Tx, c domain.Condition) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO assessment_conditions(id,assessment_id,condition,responsible_id,due_date,notes,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.AssessmentID, c.Condition, nullableStringPtr(c.ResponsibleID), nullableStringPtr(c.DueDate), c.Notes, c.Status, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCondition(ctx context.Context, id string) (domain.Condition, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+conditionCols+` FROM assessment_conditions WHERE id=?`, id)
	return scanConditionRow(row.Scan)
}

func (r Repo) ListConditions(ctx context.Context, assessmentID, status string) ([]domain.Condition, error) {
	clauses := []string{"assessment_id=?"}
	args := []any{assessmentID}
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	query := `SELECT ` + conditionCols + ` FROM assessment_conditions WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Condition
	for rows.Next() {
		c, err := scanConditionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateConditionTx(ctx context.Context, tx *sql.Tx, c domain.Condition) error {
	res, err := tx.ExecContext(ctx, `UPDATE assessment_conditions SET condition=?, responsible_id=?, due_date=?, notes=?, status=?, updated_at=? WHERE id=?`,
		c.Condition, nullableStringPtr(c.ResponsibleID), nullableStringPtr(c.DueDate), c.Notes, c.Status, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteConditionTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM assessment_conditions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountConditionsTx(ctx context.Context, tx *sql.Tx, assessmentID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM assessment_conditions WHERE assessment_id=?`, assessmentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conditions: %w", err)
	}
	return n, nil
}

func (r Repo) CountConditionsByStatus(ctx context.Context, assessmentID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM assessment_conditions WHERE assessment_id=? GROUP BY status`, assessmentID)
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
