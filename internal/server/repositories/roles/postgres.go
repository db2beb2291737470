package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/dmitrijs2005/tokenauth/internal/dbx"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
)

const (
	roleColumns       = `id, name, description, is_active, created_at, updated_at`
	permissionColumns = `id, name, description, resource, action, created_at`
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// RolesForUser returns the active roles assigned to userID, ordered by name.
func (r *PostgresRepository) RolesForUser(ctx context.Context, userID string) ([]models.Role, error) {
	query :=
		`SELECT r.id, r.name, r.description, r.is_active, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1 AND r.is_active
		 ORDER BY r.name
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapError(err)
	}
	return scanRoles(rows)
}

// PermissionsForRoles returns the distinct permissions granted by roleIDs,
// ordered by resource and action.
func (r *PostgresRepository) PermissionsForRoles(ctx context.Context, roleIDs []string) ([]models.Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	query := `SELECT DISTINCT p.id, p.name, p.description, p.resource, p.action, p.created_at
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id IN (` + placeholders(len(roleIDs), 1) + `)
		 ORDER BY p.resource, p.action
		 `

	args := make([]any, len(roleIDs))
	for i, id := range roleIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return scanPermissions(rows)
}

// ReplaceUserRoles drops the current assignments of userID and inserts
// roleIDs. Run it inside a transaction. An unknown or malformed role id
// yields common.ErrorValidation.
func (r *PostgresRepository) ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return mapError(err)
	}

	query := `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, roleID := range roleIDs {
		if _, err := r.db.ExecContext(ctx, query, userID, roleID); err != nil {
			return mapReference(err, "role", roleID)
		}
	}
	return nil
}

func (r *PostgresRepository) ListRoles(ctx context.Context) ([]models.Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, mapError(err)
	}
	return scanRoles(rows)
}

func (r *PostgresRepository) GetRole(ctx context.Context, id string) (*models.Role, error) {
	role := &models.Role{}
	err := r.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id).Scan(
		&role.ID, &role.Name, &role.Description, &role.IsActive, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, mapError(err)
	}
	return role, nil
}

// CreateRole inserts role and fills in ID and timestamps. A duplicate name
// yields common.ErrorAlreadyExists.
func (r *PostgresRepository) CreateRole(ctx context.Context, role *models.Role) (*models.Role, error) {
	query :=
		`INSERT INTO roles (name, description, is_active)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, role.Name, role.Description, role.IsActive).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return role, nil
}

// DeleteRole removes a role together with its user and permission links.
func (r *PostgresRepository) DeleteRole(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectOneRow(res)
}

// ReplaceRolePermissions drops the grants of roleID and inserts
// permissionIDs. Run it inside a transaction.
func (r *PostgresRepository) ReplaceRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return mapError(err)
	}

	query := `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, permID := range permissionIDs {
		if _, err := r.db.ExecContext(ctx, query, roleID, permID); err != nil {
			return mapReference(err, "permission", permID)
		}
	}
	return nil
}

func (r *PostgresRepository) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY resource, action`)
	if err != nil {
		return nil, mapError(err)
	}
	return scanPermissions(rows)
}

// CreatePermission inserts p. A duplicate name or (resource, action) pair
// yields common.ErrorAlreadyExists.
func (r *PostgresRepository) CreatePermission(ctx context.Context, p *models.Permission) (*models.Permission, error) {
	query :=
		`INSERT INTO permissions (name, description, resource, action)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, p.Name, p.Description, p.Resource, p.Action).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (r *PostgresRepository) DeletePermission(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectOneRow(res)
}

func scanRoles(rows *sql.Rows) ([]models.Role, error) {
	defer rows.Close()

	var result []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func scanPermissions(rows *sql.Rows) ([]models.Permission, error) {
	defer rows.Close()

	var result []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Resource, &p.Action, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// mapError translates Postgres failures on lookups and inserts. A malformed
// id cannot name any row.
func mapError(err error) error {
	switch dbx.PgCode(err) {
	case dbx.CodeUniqueViolation:
		return common.ErrorAlreadyExists
	case dbx.CodeInvalidTextRepresentation:
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}

// mapReference translates failures of a link insert, where a bad id comes
// from the request body rather than the path.
func mapReference(err error, kind, id string) error {
	switch dbx.PgCode(err) {
	case dbx.CodeForeignKeyViolation, dbx.CodeInvalidTextRepresentation:
		return fmt.Errorf("%w: unknown %s %q", common.ErrorValidation, kind, id)
	}
	return fmt.Errorf("db error: %w", err)
}

// placeholders renders "$start, $start+1, ..." for n arguments.
func placeholders(n, start int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$")
		b.WriteString(strconv.Itoa(start + i))
	}
	return b.String()
}
