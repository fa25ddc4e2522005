package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"user-service/internal/entity"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db}
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int) (*entity.User, error) {
	user := &entity.User{}
	query := `SELECT id, username, email, created_date FROM users WHERE id = ?`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	user := &entity.User{}
	query := `SELECT id, username, email, created_date FROM users WHERE email = ?`
	err := r.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// ListUsers returns every user in store order.
func (r *UserRepository) ListUsers(ctx context.Context) ([]entity.User, error) {
	query := `SELECT id, username, email, created_date FROM users`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []entity.User{}
	for rows.Next() {
		user := entity.User{}
		err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.CreatedDate)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// CreateUser inserts a new user. The store assigns the id; created_date is
// set here so the value is identical across drivers.
func (r *UserRepository) CreateUser(ctx context.Context, user *entity.User) (*entity.User, error) {
	user.CreatedDate = time.Now().UTC()

	query := `INSERT INTO users (username, email, created_date) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, user.Username, user.Email, user.CreatedDate)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, entity.ErrDuplicateEmail
		}
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	user.ID = int(id)
	return user, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, user *entity.User) (*entity.User, error) {
	query := `UPDATE users SET username = ?, email = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, user.Username, user.Email, user.ID)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, entity.ErrDuplicateEmail
		}
		return nil, err
	}

	return user, nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, id int) error {
	query := `DELETE FROM users WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// isDuplicateEntry reports whether err is a unique-constraint violation.
// MySQL surfaces error 1062; sqlite (used in tests) reports a
// "UNIQUE constraint failed" message.
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry")
}
