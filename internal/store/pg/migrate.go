package pg

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockID deriva el ID del advisory lock del nombre lógico del esquema.
func migrationLockID(name string) int64 {
	h := sha256.Sum256([]byte("migration:" + name))
	return int64(binary.BigEndian.Uint64(h[:8]))
}

// RunMigrations aplica todos los *_up.sql del FS (orden lexicográfico) bajo
// un pg_advisory_lock para que dos instancias no migren a la vez. El lock es
// de sesión: adquisición, trabajo y liberación van por la MISMA conexión.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, dir string) (int, error) {
	lockID := migrationLockID("linerelay")

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire migration conn: %w", err)
	}
	defer conn.Release()

	lockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	var acquired bool
	if err := conn.QueryRow(lockCtx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		return 0, fmt.Errorf("acquire migration lock: %w", err)
	}
	if !acquired {
		// pg_advisory_lock devuelve void: Exec, no Scan.
		if _, err := conn.Exec(lockCtx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
			return 0, fmt.Errorf("wait for migration lock: %w", err)
		}
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockID)
	}()

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return 0, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), "_up.sql") {
			files = append(files, dir+"/"+e.Name())
		}
	}
	sort.Strings(files)

	var applied int
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return applied, err
		}
		if _, err := conn.Exec(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("exec %s: %w", f, err)
		}
		applied++
	}
	return applied, nil
}
