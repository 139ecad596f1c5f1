package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// The administrator seeded into an empty _users table.
const (
	defaultAdminEmail    = "admin@localhost"
	defaultAdminPassword = "changeme"
	defaultAdminRole     = "administrator"
)

// Bootstrap creates the system tables if missing and seeds the default
// administrator into an empty _users table. It is safe to run on every start.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.SystemTablesSQL()); err != nil {
		return fmt.Errorf("create system tables: %w", err)
	}

	var users int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM _users").Scan(&users); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if users > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash default password: %w", err)
	}
	pb := s.Dialect.NewParamBuilder()
	query := "INSERT INTO _users (id, email, password_hash, roles) VALUES (" +
		pb.AddAll(uuid.NewString(), defaultAdminEmail, string(hash), s.Dialect.ArrayParam([]string{defaultAdminRole})) + ")"
	if _, err := s.DB.ExecContext(ctx, query, pb.Params()...); err != nil {
		return fmt.Errorf("seed admin user: %w", MapError(s.Dialect, err))
	}

	zap.S().Warnf("Seeded administrator %s with the default password; change it", defaultAdminEmail)
	return nil
}
