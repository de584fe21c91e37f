package repo

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"pursuitline/internal/domain"
)

// Search runs a case-insensitive substring match across projects,
// stakeholders, pursuits, and comments. Kinds restricts which entity
// kinds to include; empty means all.
func (r Repo) Search(ctx context.Context, projectID, term string, kinds []string, limit int) ([]domain.SearchHit, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + strings.ToLower(term) + "%"
	wanted := map[string]bool{}
	for _, k := range kinds {
		wanted[k] = true
	}
	include := func(kind string) bool { return len(wanted) == 0 || wanted[kind] }

	var res []domain.SearchHit
	run := func(b sq.SelectBuilder, kind string) error {
		query, args, err := b.Limit(uint64(limit)).ToSql()
		if err != nil {
			return err
		}
		rows, err := r.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			hit := domain.SearchHit{Kind: kind}
			if err := rows.Scan(&hit.ID, &hit.ProjectID, &hit.Title, &hit.Snippet, &hit.CreatedAt); err != nil {
				return err
			}
			res = append(res, hit)
		}
		return rows.Err()
	}

	if include("project") {
		b := sq.Select("id", "id", "name", "COALESCE(description,'')", "created_at").
			From("projects").
			Where(sq.Or{
				sq.Expr("lower(name) LIKE ?", pattern),
				sq.Expr("lower(COALESCE(description,'')) LIKE ?", pattern),
			})
		if projectID != "" {
			b = b.Where(sq.Eq{"id": projectID})
		}
		if err := run(b, "project"); err != nil {
			return nil, err
		}
	}
	if include("stakeholder") {
		b := sq.Select("s.id", "COALESCE(ps.project_id,'')", "s.name", "COALESCE(s.notes,'')", "s.created_at").
			From("stakeholders s").
			LeftJoin("project_stakeholders ps ON ps.stakeholder_id=s.id").
			Where(sq.Or{
				sq.Expr("lower(s.name) LIKE ?", pattern),
				sq.Expr("lower(COALESCE(s.email,'')) LIKE ?", pattern),
				sq.Expr("lower(COALESCE(s.notes,'')) LIKE ?", pattern),
			})
		if projectID != "" {
			b = b.Where(sq.Eq{"ps.project_id": projectID})
		}
		if err := run(b, "stakeholder"); err != nil {
			return nil, err
		}
	}
	if include("pursuit") {
		b := sq.Select("id", "project_id", "title", "COALESCE(description,'')", "created_at").
			From("pursuits").
			Where(sq.Or{
				sq.Expr("lower(title) LIKE ?", pattern),
				sq.Expr("lower(COALESCE(description,'')) LIKE ?", pattern),
			})
		if projectID != "" {
			b = b.Where(sq.Eq{"project_id": projectID})
		}
		if err := run(b, "pursuit"); err != nil {
			return nil, err
		}
	}
	if include("comment") {
		b := sq.Select("c.id", "p.project_id", "p.title", "c.body", "c.created_at").
			From("pursuit_comments c").
			Join("pursuits p ON p.id=c.pursuit_id").
			Where(sq.Expr("lower(c.body) LIKE ?", pattern))
		if projectID != "" {
			b = b.Where(sq.Eq{"p.project_id": projectID})
		}
		if err := run(b, "comment"); err != nil {
			return nil, err
		}
	}
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
