// Package paramstore keeps remote config parameters in the application
// database. It serves them to the remote config client and lets operators
// publish validated content documents.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/drallgood/book-catalog/internal/database"
	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/models"
	"github.com/drallgood/book-catalog/internal/validation"
)

var (
	// ErrNotFound is returned when a key has no stored parameter
	ErrNotFound = errors.New("parameter not found")
	// ErrInvalidKey is returned for empty or whitespace keys
	ErrInvalidKey = errors.New("invalid parameter key")
)

// Store reads and writes parameters through GORM
type Store struct {
	db        *gorm.DB
	validator *validation.Validator
	log       *logger.Logger
}

// New creates a store over db. A nil validator uses the default rules.
func New(db *gorm.DB, v *validation.Validator, log *logger.Logger) *Store {
	if v == nil {
		v = validation.New()
	}
	if log == nil {
		log = logger.Get()
	}
	return &Store{db: db, validator: v, log: log.Component("paramstore")}
}

// keyIs quotes the column name; KEY is reserved in MySQL
func keyIs(key string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

func keyIn(keys []string) clause.Expression {
	in := clause.IN{Column: clause.Column{Name: "key"}, Values: make([]interface{}, len(keys))}
	for i, k := range keys {
		in.Values[i] = k
	}
	return in
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// Get returns the stored parameter for key
func (s *Store) Get(ctx context.Context, key string) (database.Parameter, error) {
	if err := checkKey(key); err != nil {
		return database.Parameter{}, err
	}
	var p database.Parameter
	err := s.db.WithContext(ctx).Where(keyIs(key)).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.Parameter{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return database.Parameter{}, fmt.Errorf("failed to get parameter %s: %w", key, err)
	}
	return p, nil
}

// List returns the stored parameters ordered by key, restricted to keys
// when any are given
func (s *Store) List(ctx context.Context, keys ...string) ([]database.Parameter, error) {
	q := s.db.WithContext(ctx)
	if len(keys) > 0 {
		q = q.Where(keyIn(keys))
	}
	params := make([]database.Parameter, 0)
	if err := q.Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&params).Error; err != nil {
		return nil, fmt.Errorf("failed to list parameters: %w", err)
	}
	return params, nil
}

// Put validates value and stores it under key, bumping the version.
// Content document keys must hold documents that decode and validate;
// other keys are stored as given.
func (s *Store) Put(ctx context.Context, key, value string) (database.Parameter, error) {
	if err := checkKey(key); err != nil {
		return database.Parameter{}, err
	}
	if err := models.ValidateDocument(key, value, s.validator); err != nil {
		return database.Parameter{}, fmt.Errorf("parameter %s: %w", key, err)
	}

	var saved database.Parameter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing database.Parameter
		err := tx.Where(keyIs(key)).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			saved = database.Parameter{Key: key, Value: value, Version: 1}
			return tx.Create(&saved).Error
		case err != nil:
			return err
		}

		existing.Value = value
		existing.Version++
		saved = existing
		return tx.Save(&saved).Error
	})
	if err != nil {
		return database.Parameter{}, fmt.Errorf("failed to store parameter %s: %w", key, err)
	}

	s.log.Info("Parameter stored", map[string]interface{}{
		"key":     key,
		"version": saved.Version,
		"bytes":   len(value),
	})
	return saved, nil
}

// Delete removes the parameter for key
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where(keyIs(key)).Delete(&database.Parameter{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete parameter %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	s.log.Info("Parameter deleted", map[string]interface{}{"key": key})
	return nil
}

// Fetch returns the stored values for keys, omitting keys that are not
// stored. It lets the store back a remote config client directly.
func (s *Store) Fetch(ctx context.Context, keys []string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	params, err := s.List(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch parameters: %w", err)
	}
	for _, p := range params {
		values[p.Key] = p.Value
	}
	return values, nil
}
