// Package license validates machine-bound activation files. A license is a
// JSON document whose payload is signed offline with the vendor's RSA key;
// the installation only embeds the public half. Peeking at the system clock
// is guarded: the last date the service saw is persisted, so winding the
// clock back does not revive an expired license.
package license

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound         = errors.New("license file not found")
	ErrInvalidSignature = errors.New("license signature is invalid")
	ErrWrongMachine     = errors.New("license is bound to another machine")
	ErrExpired          = errors.New("license has expired")
	ErrClockRollback    = errors.New("system clock is behind the last recorded date")
)

const dateLayout = "2006-01-02"

// File is the on-disk license document.
type File struct {
	Company    string `json:"company"`
	NIF        string `json:"nif"`
	ValidUntil string `json:"valid_until"`
	MachineID  string `json:"machine_id"`
	Signature  string `json:"signature"`
}

// payload is the signed portion, marshalled with fields in a fixed order so
// issuer and verifier agree byte for byte.
type payload struct {
	Company    string `json:"company"`
	MachineID  string `json:"machine_id"`
	NIF        string `json:"nif"`
	ValidUntil string `json:"valid_until"`
}

// SigningBytes returns the canonical bytes covered by the signature.
func (f *File) SigningBytes() ([]byte, error) {
	return json.Marshal(payload{
		Company:    f.Company,
		MachineID:  f.MachineID,
		NIF:        f.NIF,
		ValidUntil: f.ValidUntil,
	})
}

// Status is what the API reports about the current activation.
type Status struct {
	Valid      bool   `json:"valid"`
	Company    string `json:"company,omitempty"`
	NIF        string `json:"nif,omitempty"`
	ValidUntil string `json:"valid_until,omitempty"`
	DaysLeft   int    `json:"days_left"`
	Reason     string `json:"reason,omitempty"`
}

type Service struct {
	publicKey   *rsa.PublicKey
	licensePath string
	guardPath   string
	machineID   string
	now         func() time.Time
	log         *logrus.Entry
}

// NewService builds a validator from a PEM-encoded RSA public key. An empty
// key is accepted so an unactivated installation still starts; every check
// then fails with a clear reason.
func NewService(publicKeyPEM []byte, licensePath, guardPath string, log *logrus.Logger) (*Service, error) {
	if len(publicKeyPEM) == 0 {
		return &Service{
			licensePath: licensePath,
			guardPath:   guardPath,
			machineID:   MachineID(),
			now:         time.Now,
			log:         log.WithField("component", "license"),
		}, nil
	}
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("public key: no PEM block found")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key: not an RSA key")
	}
	return &Service{
		publicKey:   rsaKey,
		licensePath: licensePath,
		guardPath:   guardPath,
		machineID:   MachineID(),
		now:         time.Now,
		log:         log.WithField("component", "license"),
	}, nil
}

// Check loads and validates the license file, returning the parsed document
// when it is valid for this machine today.
func (s *Service) Check() (*File, error) {
	raw, err := os.ReadFile(s.licensePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read license: %w", err)
	}

	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode license: %w", err)
	}

	if s.publicKey == nil {
		return nil, errors.New("no vendor public key configured")
	}

	sig, err := base64.StdEncoding.DecodeString(f.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	signed, err := f.SigningBytes()
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(signed)
	if err := rsa.VerifyPKCS1v15(s.publicKey, crypto.SHA256, digest[:], sig); err != nil {
		return nil, ErrInvalidSignature
	}

	if f.MachineID != s.machineID {
		return nil, ErrWrongMachine
	}

	validUntil, err := time.Parse(dateLayout, f.ValidUntil)
	if err != nil {
		return nil, fmt.Errorf("parse valid_until: %w", err)
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	if err := s.guardClock(today); err != nil {
		return nil, err
	}
	if today.After(validUntil) {
		return nil, ErrExpired
	}
	return &f, nil
}

// Status wraps Check into a report the dashboard can render without caring
// which rule failed.
func (s *Service) Status() Status {
	f, err := s.Check()
	if err != nil {
		s.log.WithError(err).Warn("license check failed")
		return Status{Valid: false, Reason: err.Error()}
	}
	validUntil, _ := time.Parse(dateLayout, f.ValidUntil)
	days := int(validUntil.Sub(s.now().UTC().Truncate(24*time.Hour)).Hours() / 24)
	return Status{
		Valid:      true,
		Company:    f.Company,
		NIF:        f.NIF,
		ValidUntil: f.ValidUntil,
		DaysLeft:   days,
	}
}

// guardClock persists the most recent date seen and rejects runs where the
// clock has moved backwards past it.
func (s *Service) guardClock(today time.Time) error {
	raw, err := os.ReadFile(s.guardPath)
	if err == nil {
		lastSeen, perr := time.Parse(dateLayout, string(raw))
		if perr == nil && today.Before(lastSeen) {
			return ErrClockRollback
		}
	}
	if err := os.WriteFile(s.guardPath, []byte(today.Format(dateLayout)), 0o600); err != nil {
		return fmt.Errorf("write clock guard: %w", err)
	}
	return nil
}
