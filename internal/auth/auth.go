// Package auth manages the users allowed to read the charts. Passwords are
// stored as argon2id hashes.
package auth

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrUserExists  = errors.New("user already exists")
	ErrUnknownUser = errors.New("unknown user")
)

type Authenticator struct {
	store  CredentialsStore
	params Params
	logger *zap.Logger
}

func NewAuthenticator(store CredentialsStore, params Params, logger *zap.Logger) *Authenticator {
	return &Authenticator{store: store, params: params, logger: logger}
}

// AddUser stores a hash of password for username, unless the user exists.
func (a *Authenticator) AddUser(username, password string) error {
	if username == "" {
		return errors.New("empty username")
	}
	_, exists, err := a.store.ReadHashedPassword(username)
	if err != nil {
		return err
	}
	if exists {
		a.logger.Error("user already exists", zap.String("user", username))
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	}

	hashed, err := HashPassword(password, a.params)
	if err != nil {
		return err
	}
	if err := a.store.Write(username, hashed); err != nil {
		return err
	}
	a.logger.Info("user added", zap.String("user", username))
	return nil
}

func (a *Authenticator) RemoveUser(username string) error {
	if err := a.store.Remove(username); err != nil {
		return err
	}
	a.logger.Info("user removed", zap.String("user", username))
	return nil
}

// Verify reports whether password is the one of username. Unknown users
// do not verify.
func (a *Authenticator) Verify(username, password string) (bool, error) {
	hashed, exists, err := a.store.ReadHashedPassword(username)
	if err != nil || !exists {
		return false, err
	}
	return VerifyPassword(hashed, password)
}
