// Package backup snapshots the on-disk ledger database and watches for
// stale restores. A snapshot checkpoints the database through the live
// handle and then copies the file; the caller holds both store locks for
// the duration, so a snapshot is always a consistent database image.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	backupPrefix = "users_backup_"
	backupSuffix = ".db"
	stampFormat  = "20060102_150405"
)

// DefaultKeep is how many snapshots are retained when no limit is configured.
const DefaultKeep = 5

// Guard manages timestamped snapshots of a single database file.
type Guard struct {
	source string
	dir    string
	keep   int

	checkpoint func() error
	now        func() time.Time
}

// New creates a Guard copying source into dir, retaining at most keep
// snapshots. keep <= 0 falls back to DefaultKeep.
func New(source, dir string, keep int) *Guard {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Guard{
		source: source,
		dir:    dir,
		keep:   keep,
		now:    time.Now,
	}
}

// WithCheckpoint registers a hook that flushes pending writes into the
// database file before each snapshot. WAL-mode stores need this: without
// it committed state still sits in the write-ahead log and the file copy
// misses it.
func (g *Guard) WithCheckpoint(fn func() error) *Guard {
	g.checkpoint = fn
	return g
}

// Snapshot copies the database into the backup directory under a
// timestamped name and prunes snapshots beyond the retention limit.
// The caller is expected to hold both store locks for the duration so no
// write lands between the checkpoint and the copy.
func (g *Guard) Snapshot(reason string) error {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	if g.checkpoint != nil {
		if err := g.checkpoint(); err != nil {
			return fmt.Errorf("failed to checkpoint database before snapshot: %w", err)
		}
	}

	name := backupPrefix + g.now().Format(stampFormat) + backupSuffix
	dest := filepath.Join(g.dir, name)
	if err := copyFile(g.source, dest); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}

	log.Info().
		Str("backup", name).
		Str("reason", reason).
		Msg("Database snapshot created")

	if err := g.prune(); err != nil {
		log.Error().Err(err).Msg("Failed to prune old backups")
	}
	return nil
}

// CheckIntegrity compares the live database against the newest snapshot and
// warns when the snapshot is newer, which usually means the live file was
// replaced with an old copy. The condition is reported, never fatal: the
// operator decides whether the restore was intentional.
func (g *Guard) CheckIntegrity() (stale bool, err error) {
	srcInfo, err := os.Stat(g.source)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat database: %w", err)
	}

	snapshots, err := g.snapshots()
	if err != nil {
		return false, err
	}
	if len(snapshots) == 0 {
		return false, nil
	}

	newest := snapshots[len(snapshots)-1]
	info, err := os.Stat(filepath.Join(g.dir, newest))
	if err != nil {
		return false, fmt.Errorf("failed to stat backup %s: %w", newest, err)
	}
	if !info.ModTime().After(srcInfo.ModTime()) {
		return false, nil
	}

	log.Warn().
		Str("database", g.source).
		Str("backup", newest).
		Time("database_mtime", srcInfo.ModTime()).
		Time("backup_mtime", info.ModTime()).
		Msg("Newest backup is more recent than the live database, possible stale restore")
	return true, nil
}

// snapshots returns backup file names sorted oldest first. The timestamp
// format sorts lexicographically, so name order is creation order.
func (g *Guard) snapshots() ([]string, error) {
	entries, err := os.ReadDir(g.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (g *Guard) prune() error {
	names, err := g.snapshots()
	if err != nil {
		return err
	}
	for len(names) > g.keep {
		victim := names[0]
		names = names[1:]
		if err := os.Remove(filepath.Join(g.dir, victim)); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", victim, err)
		}
		log.Debug().Str("backup", victim).Msg("Old backup removed")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
