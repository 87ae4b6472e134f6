// Package auth implements operator accounts: a single registered company,
// bcrypt-hashed users capped per installation, and HS256 session tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/contacerta/reconciler/internal/repository"
)

// MaxUsers caps operator accounts per installation.
const MaxUsers = 4

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrCompanyExists      = errors.New("a company is already registered")
	ErrNoCompany          = errors.New("no company registered yet")
	ErrUserLimit          = fmt.Errorf("user limit reached (max %d)", MaxUsers)
	ErrUsernameTaken      = errors.New("username already taken")
)

// Claims is the JWT payload issued on login.
type Claims struct {
	Username  string `json:"username"`
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

type Service struct {
	accounts *repository.AccountRepo
	secret   []byte
	tokenTTL time.Duration
	log      *logrus.Entry
}

func NewService(accounts *repository.AccountRepo, secret []byte, tokenTTL time.Duration, log *logrus.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &Service{
		accounts: accounts,
		secret:   secret,
		tokenTTL: tokenTTL,
		log:      log.WithField("component", "auth"),
	}
}

// RegisterCompany creates the installation's single company. Subsequent calls
// fail with ErrCompanyExists.
func (s *Service) RegisterCompany(name, nif string) (*repository.Company, error) {
	existing, err := s.accounts.FirstCompany()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrCompanyExists
	}

	c := &repository.Company{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		NIF:       strings.TrimSpace(nif),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.accounts.InsertCompany(c); err != nil {
		return nil, err
	}
	s.log.WithField("company", c.Name).Info("company registered")
	return c, nil
}

// CreateUser adds an operator to the registered company, enforcing the
// per-installation user cap.
func (s *Service) CreateUser(username, password string) (*repository.User, error) {
	company, err := s.accounts.FirstCompany()
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ErrNoCompany
	}

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || len(password) < 6 {
		return nil, errors.New("username required and password must have at least 6 characters")
	}

	n, err := s.accounts.CountUsers(company.ID)
	if err != nil {
		return nil, err
	}
	if n >= MaxUsers {
		return nil, ErrUserLimit
	}

	if existing, err := s.accounts.GetUserByUsername(username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &repository.User{
		ID:           uuid.NewString(),
		CompanyID:    company.ID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.accounts.InsertUser(u); err != nil {
		return nil, err
	}
	s.log.WithField("username", username).Info("user created")
	return u, nil
}

// Login verifies the credentials and returns a signed session token.
func (s *Service) Login(username, password string) (string, *repository.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	u, err := s.accounts.GetUserByUsername(username)
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		// Burn a comparison so absent and present users take similar time.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
			[]byte(password))
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		Username:  u.Username,
		CompanyID: u.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	s.log.WithField("username", username).Info("login")
	return token, u, nil
}

// VerifyToken parses and validates a session token.
func (s *Service) VerifyToken(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return &claims, nil
}
