package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/stanleyjzheng/sudopay/internal/models"
	"github.com/stanleyjzheng/sudopay/internal/store"
)

// CreateUser registers a telegram user with a generated wallet. Conflicting
// telegram ids are a no-op; the stored row is returned either way, so a
// re-sent /start cannot rotate a user's wallet.
func (s *Service) CreateUser(ctx context.Context, telegramID int64, seedPhrase, seedPhrasePublicKey string) (*models.User, error) {
	if seedPhrase == "" || seedPhrasePublicKey == "" {
		return nil, fmt.Errorf("seed phrase and public key cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, queryInsertUser, telegramID, seedPhrase, seedPhrasePublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	user, err := s.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	zap.L().Info("User ready",
		zap.Int64("telegram_id", user.TelegramID),
		zap.String("public_key", user.SeedPhrasePublicKey))
	return user, nil
}

func (s *Service) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, queryGetUserByTelegramID, telegramID).Scan(
		&user.TelegramID, &user.SaltedPassword, &user.SeedPhrase, &user.SeedPhrasePublicKey)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", telegramID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByPublicKey resolves an account key back to its user, which is how
// the reconciliation engine finds the notification channel for a matched
// depositor.
func (s *Service) GetUserByPublicKey(ctx context.Context, seedPhrasePublicKey string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, queryGetUserByPublicKey, seedPhrasePublicKey).Scan(
		&user.TelegramID, &user.SaltedPassword, &user.SeedPhrase, &user.SeedPhrasePublicKey)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user with key %s: %w", seedPhrasePublicKey, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by public key: %w", err)
	}
	return &user, nil
}

// SetUserPassword hashes and stores the user's password.
func (s *Service) SetUserPassword(ctx context.Context, telegramID int64, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	result, err := s.db.ExecContext(ctx, querySetUserPassword, string(hashed), telegramID)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", telegramID, store.ErrNotFound)
	}
	return nil
}

// CheckUserPassword verifies a submitted password against the stored hash.
func (s *Service) CheckUserPassword(ctx context.Context, telegramID int64, submitted string) (bool, error) {
	user, err := s.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return false, err
	}
	if user.SaltedPassword == "" {
		return false, nil
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.SaltedPassword), []byte(submitted))
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
	return true, nil
}
