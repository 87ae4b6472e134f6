package repository

import (
	"database/sql"
	"fmt"
	"time"
)

// Company is the single accounting firm this installation serves.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NIF       string    `json:"nif"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an operator account scoped to the company.
type User struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) InsertCompany(c *Company) error {
	_, err := r.db.Exec(
		`INSERT INTO companies (id, name, nif, created_at) VALUES (?,?,?,?)`,
		c.ID, c.Name, c.NIF, c.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// FirstCompany returns the registered company, or nil when none exists yet.
func (r *AccountRepo) FirstCompany() (*Company, error) {
	row := r.db.QueryRow(
		`SELECT id, name, nif, created_at FROM companies ORDER BY created_at LIMIT 1`)
	var c Company
	var createdAt string
	if err := row.Scan(&c.ID, &c.Name, &c.NIF, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("first company: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		c.CreatedAt = t
	}
	return &c, nil
}

func (r *AccountRepo) InsertUser(u *User) error {
	_, err := r.db.Exec(
		`INSERT INTO users (id, company_id, username, password_hash, created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.CompanyID, u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByUsername returns nil when the user does not exist.
func (r *AccountRepo) GetUserByUsername(username string) (*User, error) {
	row := r.db.QueryRow(
		`SELECT id, company_id, username, password_hash, created_at
		 FROM users WHERE username = ?`, username)
	var u User
	var createdAt string
	if err := row.Scan(&u.ID, &u.CompanyID, &u.Username, &u.PasswordHash, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		u.CreatedAt = t
	}
	return &u, nil
}

func (r *AccountRepo) CountUsers(companyID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users WHERE company_id = ?`, companyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
