// Package session persists browser cookies and the partner auth token
// between runs. Files are not locked; runs against the same account must be
// serialized by the caller.
package session

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/lukman83/autopost/internal/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned by Load when an account has no saved cookies.
var ErrNotFound = errors.New("session not found")

const (
	tokenFile       = "auth_token.json"
	lastAccountFile = "last_account"
)

type tokenRecord struct {
	Token      string    `json:"token"`
	ObservedAt time.Time `json:"observed_at"`
}

// Store keeps one cookie file per account plus a shared token file.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

func (s *Store) cookiePath(accountID string) string {
	r := strings.NewReplacer(":", "_", "/", "_", `\`, "_")
	return filepath.Join(s.dir, "cookies_"+r.Replace(accountID)+".json")
}

// Load reads the persisted state for accountID. The cached token is attached
// when one exists.
func (s *Store) Load(accountID string) (*models.SessionState, error) {
	data, err := os.ReadFile(s.cookiePath(accountID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "read session file")
	}

	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, "decode session file")
	}

	if token, err := s.Token(); err == nil {
		state.AuthToken = token
	}
	return &state, nil
}

// Save overwrites the persisted state for accountID.
func (s *Store) Save(accountID string, state models.SessionState) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if err := os.WriteFile(s.cookiePath(accountID), data, 0o600); err != nil {
		return errors.Wrap(err, "write session file")
	}

	if state.AuthToken != "" {
		return s.SaveToken(state.AuthToken)
	}
	return nil
}

// SaveToken records the most recently observed auth token.
func (s *Store) SaveToken(token string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	data, err := json.Marshal(tokenRecord{Token: token, ObservedAt: s.now()})
	if err != nil {
		return errors.Wrap(err, "encode token")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(s.dir, tokenFile), data, 0o600), "write token file")
}

// Token returns the cached auth token.
func (s *Store) Token() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, tokenFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", errors.Wrap(err, "read token file")
	}
	var rec tokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", errors.Wrap(err, "decode token file")
	}
	if rec.Token == "" {
		return "", ErrNotFound
	}
	return rec.Token, nil
}

// Invalidate deletes the persisted cookies for accountID.
func (s *Store) Invalidate(accountID string) error {
	err := os.Remove(s.cookiePath(accountID))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove session file")
	}
	return nil
}

// Track records accountID as the current account. When it differs from the
// account used last time, the previous account's cookies are invalidated.
func (s *Store) Track(accountID string) (previous string, switched bool, err error) {
	path := filepath.Join(s.dir, lastAccountFile)
	if data, rerr := os.ReadFile(path); rerr == nil {
		previous = strings.TrimSpace(string(data))
	}

	if previous != "" && previous != accountID {
		logrus.WithFields(logrus.Fields{
			"previous": previous,
			"current":  accountID,
		}).Info("account switch detected, dropping previous cookies")
		if err := s.Invalidate(previous); err != nil {
			return previous, true, err
		}
		switched = true
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return previous, switched, errors.Wrap(err, "create session dir")
	}
	if err := os.WriteFile(path, []byte(accountID), 0o600); err != nil {
		return previous, switched, errors.Wrap(err, "write last account")
	}
	return previous, switched, nil
}
