package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// BackupDirName is the directory, next to the database file, that holds
// timestamped copies.
const BackupDirName = "backups"

// backupTimeLayout is ISO-8601 without a zone; microseconds are appended
// only when non-zero.
const backupTimeLayout = "2006-01-02T15:04:05"

// BackupPath returns where a backup of dbPath taken at t is written:
// <dir>/backups/<base>.<UTC timestamp>.
func BackupPath(dbPath string, t time.Time) string {
	t = t.UTC()
	stamp := t.Format(backupTimeLayout)
	if us := t.Nanosecond() / int(time.Microsecond); us != 0 {
		stamp += fmt.Sprintf(".%06d", us)
	}
	return filepath.Join(filepath.Dir(dbPath), BackupDirName, filepath.Base(dbPath)+"."+stamp)
}

// backupFile copies the database file while c holds a RESERVED lock, so no
// other connection can commit during the copy. Inside an open transaction
// the copy is taken as-is.
func backupFile(ctx context.Context, c *Conn, dbPath string, t time.Time) (string, error) {
	dst := BackupPath(dbPath, t)
	if c.Depth() > 0 {
		return dst, copyFile(dbPath, dst)
	}

	if _, err := c.Exec(ctx, "BEGIN IMMEDIATE"); err != nil {
		return "", fmt.Errorf("lock for backup: %w", err)
	}
	copyErr := copyFile(dbPath, dst)
	if _, err := c.Exec(context.WithoutCancel(ctx), "ROLLBACK"); err != nil {
		return "", errors.Join(copyErr, err)
	}
	if copyErr != nil {
		return "", copyErr
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open database for backup: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy backup: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("sync backup: %w", err)
	}
	return out.Close()
}
