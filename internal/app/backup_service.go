package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"

	cryptopkg "github.com/SudharsunRavi/etracker-drive/internal/crypto"
	"github.com/SudharsunRavi/etracker-drive/internal/storage"
)

const snapshotFormatVersion = 1

// Argon2 parameter bounds for untrusted snapshot envelopes, so a crafted
// envelope cannot demand extreme memory or iteration counts.
const (
	maxSnapshotArgon2Memory     = 1 << 20 // 1 GiB in KiB units
	maxSnapshotArgon2Iterations = 20
	minSnapshotArgon2Memory     = 8 << 10 // 8 MiB in KiB units
)

var (
	snapshotAAD = []byte("etracker.snapshot.v1")
	sqliteMagic = []byte("SQLite format 3\x00")
)

var writeStoreFile = func(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}

type snapshotEnvelope struct {
	Version      int                  `json:"version"`
	KDF          string               `json:"kdf"`
	Argon2Params snapshotArgon2Params `json:"argon2_params"`
	Salt         []byte               `json:"salt"`
	Nonce        []byte               `json:"nonce"`
	Ciphertext   []byte               `json:"ciphertext"`
}

type snapshotArgon2Params struct {
	Memory      uint32 `json:"memory"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
	SaltLen     int    `json:"salt_len"`
	KeyLen      uint32 `json:"key_len"`
}

// SnapshotName builds the remote file name for an export, prefix plus ISO
// date, so remote listings filter by prefix.
func SnapshotName(prefix string, now time.Time) string {
	return prefix + now.UTC().Format(dateLayout) + ".db"
}

// ExportSnapshot freezes the store into a self-contained byte blob. The
// live file is checkpointed and then duplicated at the filesystem level;
// the copy is what gets read, so writes racing a slow upload cannot corrupt
// the in-flight snapshot.
func (s *Service) ExportSnapshot(ctx context.Context, opts ExportOptions) ([]byte, error) {
	path := s.store.Path()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, path)
		}
		return nil, fmt.Errorf("export snapshot: stat store: %w", err)
	}

	if _, err := s.store.DB().ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return nil, fmt.Errorf("export snapshot: wal checkpoint: %w", err)
	}

	tempPath := path + ".export-" + uuid.NewString()
	if err := copyFile(path, tempPath); err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}
	defer func() { _ = os.Remove(tempPath) }()

	data, err := os.ReadFile(tempPath)
	if err != nil {
		return nil, fmt.Errorf("export snapshot: read copy: %w", err)
	}

	if len(opts.Passphrase) > 0 {
		data, err = encryptSnapshot(data, opts.Passphrase)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("snapshot exported", "bytes", len(data), "encrypted", len(opts.Passphrase) > 0)
	return data, nil
}

// ImportSnapshot atomically replaces the local store contents with the
// given snapshot. The previous file is kept under a fresh safety name until
// the new one is verified; at every step the canonical path holds either
// the old store or the new one, never neither. The store handle is closed
// for the swap and reopened afterward, which re-runs migrations in case the
// snapshot predates the current schema.
func (s *Service) ImportSnapshot(ctx context.Context, data []byte, opts ImportOptions) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: snapshot is empty", ErrValidation)
	}

	if !bytes.HasPrefix(data, sqliteMagic) {
		decrypted, err := decryptSnapshot(data, opts.Passphrase)
		if err != nil {
			return err
		}
		data = decrypted
	}

	path := s.store.Path()
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("import snapshot: close store: %w", err)
	}

	// Past this point the store handle is closed, so every failure branch
	// must put the canonical file back in a usable state and reopen.
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return s.reopenAfterFailedImport(fmt.Errorf("import snapshot: create store dir: %w", err), path)
	}

	safetyPath := ""
	if _, err := os.Stat(path); err == nil {
		safetyPath = fmt.Sprintf("%s.restore-%d.db", path, time.Now().UnixMilli())
		if err := copyFile(path, safetyPath); err != nil {
			_ = os.Remove(safetyPath)
			return s.reopenAfterFailedImport(fmt.Errorf("import snapshot: safety copy: %w", err), path)
		}
	}

	// Stale WAL/SHM from the old file must not be paired with the new one.
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")

	if err := writeStoreFile(path, data); err != nil {
		// A partial write can leave a truncated file at the canonical
		// path; restore the safety copy before reopening.
		werr := fmt.Errorf("import snapshot: write store: %w", err)
		if rbErr := s.rollbackImport(path, safetyPath); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", werr, rbErr)
		}
		s.logger.Warn("snapshot import rolled back", "reason", werr.Error())
		return werr
	}

	if !opts.SkipVerify {
		if verr := verifyStoreFile(ctx, path); verr != nil {
			if rbErr := s.rollbackImport(path, safetyPath); rbErr != nil {
				return fmt.Errorf("import snapshot: %w: %v (rollback also failed: %v)", ErrRestoreVerification, verr, rbErr)
			}
			s.logger.Warn("snapshot import rolled back", "reason", verr.Error())
			return fmt.Errorf("import snapshot: %w: %v", ErrRestoreVerification, verr)
		}
	}

	if safetyPath != "" {
		_ = os.Remove(safetyPath)
	}

	store, err := storage.Open(path)
	if err != nil {
		return fmt.Errorf("import snapshot: reopen store: %w", err)
	}
	s.store = store

	s.logger.Info("snapshot imported", "bytes", len(data))
	return nil
}

// reopenAfterFailedImport recovers from a failure that happened before the
// canonical file was touched: the old file is intact, so only the handle
// needs to come back. Returns cause, annotated if the reopen fails too.
func (s *Service) reopenAfterFailedImport(cause error, path string) error {
	store, err := storage.Open(path)
	if err != nil {
		return fmt.Errorf("%w (reopen store also failed: %v)", cause, err)
	}
	s.store = store
	s.logger.Warn("snapshot import aborted, previous store kept", "reason", cause.Error())
	return cause
}

func (s *Service) rollbackImport(path, safetyPath string) error {
	if safetyPath == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove unverified store: %w", err)
		}
	} else {
		if err := copyFile(safetyPath, path); err != nil {
			return fmt.Errorf("restore safety copy: %w", err)
		}
		_ = os.Remove(safetyPath)
	}

	store, err := storage.Open(path)
	if err != nil {
		return fmt.Errorf("reopen rolled-back store: %w", err)
	}
	s.store = store
	return nil
}

// verifyStoreFile opens the restored file and runs a throwaway write probe.
// A byte-valid but unusable file (truncated, read-only page damage) fails
// here instead of surfacing on the next user write.
func verifyStoreFile(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored store: %w", err)
	}
	defer func() { _ = db.Close() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS restore_probe (id INTEGER PRIMARY KEY AUTOINCREMENT, note TEXT)`,
		`INSERT INTO restore_probe(note) VALUES('probe')`,
		`UPDATE restore_probe SET note = 'probe-ok' WHERE note = 'probe'`,
		`DROP TABLE restore_probe`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("write probe %q: %w", stmt, err)
		}
	}
	return nil
}

func encryptSnapshot(payload, passphrase []byte) ([]byte, error) {
	params := cryptopkg.DefaultArgon2Params()
	salt, err := cryptopkg.RandomBytes(params.SaltLen)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}
	key, err := cryptopkg.DeriveKeyFromPassphrase(passphrase, salt, params)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: derive key: %w", err)
	}
	defer memguard.WipeBytes(key)

	nonce, err := cryptopkg.RandomBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}
	ciphertext, err := cryptopkg.SealXChaCha20Poly1305(key, nonce, payload, snapshotAAD)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}

	envelope := snapshotEnvelope{
		Version: snapshotFormatVersion,
		KDF:     "argon2id",
		Argon2Params: snapshotArgon2Params{
			Memory:      params.Memory,
			Iterations:  params.Iterations,
			Parallelism: params.Parallelism,
			SaltLen:     params.SaltLen,
			KeyLen:      params.KeyLen,
		},
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: encode envelope: %w", err)
	}
	return out, nil
}

func decryptSnapshot(raw, passphrase []byte) ([]byte, error) {
	var envelope snapshotEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: snapshot is neither a store file nor an envelope", ErrValidation)
	}
	if envelope.Version != snapshotFormatVersion {
		return nil, fmt.Errorf("decrypt snapshot: unsupported envelope version %d", envelope.Version)
	}
	if envelope.KDF != "argon2id" {
		return nil, fmt.Errorf("decrypt snapshot: unsupported kdf %q", envelope.KDF)
	}
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: snapshot is encrypted, passphrase is required", ErrValidation)
	}

	params, err := clampSnapshotArgon2Params(envelope.Argon2Params)
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot: %w", err)
	}

	key, err := cryptopkg.DeriveKeyFromPassphrase(passphrase, envelope.Salt, params)
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot: derive key: %w", err)
	}
	defer memguard.WipeBytes(key)

	plaintext, err := cryptopkg.OpenXChaCha20Poly1305(key, envelope.Nonce, envelope.Ciphertext, snapshotAAD)
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot: passphrase authentication failed: %w", err)
	}
	return plaintext, nil
}

// clampSnapshotArgon2Params validates and caps KDF parameters coming from
// untrusted envelopes.
func clampSnapshotArgon2Params(sp snapshotArgon2Params) (cryptopkg.Argon2Params, error) {
	memory := sp.Memory
	if memory < minSnapshotArgon2Memory {
		memory = minSnapshotArgon2Memory
	}
	if memory > maxSnapshotArgon2Memory {
		return cryptopkg.Argon2Params{}, fmt.Errorf("argon2 memory %d KiB exceeds safe maximum %d KiB", sp.Memory, maxSnapshotArgon2Memory)
	}

	iterations := sp.Iterations
	if iterations < 1 {
		iterations = 1
	}
	if iterations > maxSnapshotArgon2Iterations {
		return cryptopkg.Argon2Params{}, fmt.Errorf("argon2 iterations %d exceeds safe maximum %d", sp.Iterations, maxSnapshotArgon2Iterations)
	}

	parallelism := sp.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	if parallelism > 16 {
		parallelism = 16
	}

	keyLen := sp.KeyLen
	if keyLen != 32 {
		keyLen = 32
	}

	saltLen := sp.SaltLen
	if saltLen < 16 {
		saltLen = 16
	}

	return cryptopkg.Argon2Params{
		Memory:      memory,
		Iterations:  iterations,
		Parallelism: parallelism,
		SaltLen:     saltLen,
		KeyLen:      keyLen,
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
