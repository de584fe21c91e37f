package repo

import (
	"context"
	"database/sql"

	"pursuitline/internal/config"
	"pursuitline/internal/domain"
)

func (r Repo) InsertRole(ctx context.Context, tx *sql.Tx, projectID, id, desc string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO roles(project_id, id, description) VALUES (?,?,?)`, projectID, id, desc)
	return err
}

func (r Repo) AddRolePermission(ctx context.Context, tx *sql.Tx, projectID, roleID, perm string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO role_permissions(project_id, role_id, permission) VALUES (?,?,?)`, projectID, roleID, perm)
	return err
}

func (r Repo) AssignRole(ctx context.Context, tx *sql.Tx, projectID, actorID, roleID, grantedBy, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO actor_roles(project_id, actor_id, role_id, granted_by, created_at) VALUES (?,?,?,?,?)`,
		projectID, actorID, roleID, grantedBy, now)
	return err
}

func (r Repo) RevokeRole(ctx context.Context, tx *sql.Tx, projectID, actorID, roleID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM actor_roles WHERE project_id=? AND actor_id=? AND role_id=?`, projectID, actorID, roleID)
	return err
}

func (r Repo) RoleExists(ctx context.Context, projectID, roleID string) (bool, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT 1 FROM roles WHERE project_id=? AND id=? LIMIT 1`, projectID, roleID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// SeedRBACTx replaces a project's role and permission tables from config.
// Existing role grants to actors are preserved.
func (r Repo) SeedRBACTx(ctx context.Context, tx *sql.Tx, projectID string, roles map[string]config.RBACRole) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE project_id=?`, projectID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE project_id=?`, projectID); err != nil {
		return err
	}
	for roleID, role := range roles {
		if err := r.InsertRole(ctx, tx, projectID, roleID, role.Description); err != nil {
			return err
		}
		for _, perm := range role.Permissions {
			if err := r.AddRolePermission(ctx, tx, projectID, roleID, perm); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r Repo) ActorRoles(ctx context.Context, projectID, actorID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT role_id FROM actor_roles WHERE project_id=? AND actor_id=? ORDER BY role_id`, projectID, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ActorPermissions returns the union of permissions across the actor's roles.
func (r Repo) ActorPermissions(ctx context.Context, projectID, actorID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT rp.permission FROM actor_roles ar
JOIN role_permissions rp ON rp.project_id=ar.project_id AND rp.role_id=ar.role_id
WHERE ar.project_id=? AND ar.actor_id=? ORDER BY rp.permission`, projectID, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r Repo) HasPermission(ctx context.Context, projectID, actorID, perm string) (bool, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT 1 FROM actor_roles ar
JOIN role_permissions rp ON rp.project_id=ar.project_id AND rp.role_id=ar.role_id
WHERE ar.project_id=? AND ar.actor_id=? AND rp.permission=? LIMIT 1`, projectID, actorID, perm)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) ActorProfile(ctx context.Context, projectID, actorID string) (domain.ActorProfile, error) {
	roles, err := r.ActorRoles(ctx, projectID, actorID)
	if err != nil {
		return domain.ActorProfile{}, err
	}
	perms, err := r.ActorPermissions(ctx, projectID, actorID)
	if err != nil {
		return domain.ActorProfile{}, err
	}
	return domain.ActorProfile{ProjectID: projectID, ActorID: actorID, Roles: roles, Permissions: perms}, nil
}
