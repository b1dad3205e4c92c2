package matrix

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/util/dbutil"
	"go.uber.org/zap"
	"maunium.net/go/mautrix/crypto/cryptohelper"

	"github.com/matheus3301/matrixtui/internal/backend"
)

const pickleKeySize = 32

// initCrypto opens the account's crypto store and starts the verification
// helper.
func (c *Client) initCrypto(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create crypto dir: %w", err)
	}
	key, err := loadPickleKey(filepath.Join(dir, "pickle.key"))
	if err != nil {
		return err
	}
	db, err := openCryptoDB(filepath.Join(dir, "crypto.db"))
	if err != nil {
		return err
	}
	helper, err := cryptohelper.NewCryptoHelper(c.cli, key, db)
	if err != nil {
		_ = db.RawDB.Close()
		return fmt.Errorf("create crypto helper: %w", err)
	}
	if err := helper.Init(ctx); err != nil {
		return fmt.Errorf("init crypto: %w", err)
	}
	c.cli.Crypto = helper
	c.crypto = helper

	v, err := newVerifier(ctx, c, helper.Machine())
	if err != nil {
		c.logger.Warn("device verification unavailable", zap.Error(err))
		return nil
	}
	c.verifier = v
	c.logger.Info("end-to-end encryption ready", zap.String("device", c.cli.DeviceID.String()))
	return nil
}

// openCryptoDB opens the crypto store with the same driver and pragmas as
// the message archive.
func openCryptoDB(path string) (*dbutil.Database, error) {
	raw, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open crypto db: %w", err)
	}
	db, err := dbutil.NewWithDB(raw, "sqlite3")
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("open crypto db: %w", err)
	}
	return db, nil
}

// loadPickleKey reads the key that encrypts the crypto store, creating it
// on first use.
func loadPickleKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil && len(key) == pickleKeySize {
		return key, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read pickle key: %w", err)
	}
	key = make([]byte, pickleKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate pickle key: %w", err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("write pickle key: %w", err)
	}
	return key, nil
}

// RecoverKeys unlocks secret storage with a recovery key and cross-signs
// this device with the recovered keys.
func (c *Client) RecoverKeys(ctx context.Context, recoveryKey string) error {
	if c.crypto == nil {
		return &backend.BackendError{Op: "recover keys", Err: backend.ErrUnsupported}
	}
	mach := c.crypto.Machine()
	keyID, keyData, err := mach.SSSS.GetDefaultKeyData(ctx)
	if err != nil {
		return fmt.Errorf("read secret storage: %w", cleanErr(err))
	}
	key, err := keyData.VerifyRecoveryKey(keyID, recoveryKey)
	if err != nil {
		return &backend.ValidationError{Field: "recovery_key", Message: "Invalid recovery key"}
	}
	if err := mach.FetchCrossSigningKeysFromSSSS(ctx, key); err != nil {
		return fmt.Errorf("fetch cross-signing keys: %w", cleanErr(err))
	}
	if err := mach.SignOwnDevice(ctx, mach.OwnIdentity()); err != nil {
		return fmt.Errorf("sign device: %w", cleanErr(err))
	}
	if err := mach.SignOwnMasterKey(ctx); err != nil {
		return fmt.Errorf("sign master key: %w", cleanErr(err))
	}
	c.logger.Info("device cross-signed from recovery key")
	return nil
}
