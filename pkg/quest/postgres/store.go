package postgres

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zeebo/blake3"

	"github.com/MrWong99/questpack/pkg/quest"
	"github.com/MrWong99/questpack/pkg/quest/archive"
)

// ErrChecksumMismatch is returned by [Store.Get] when a stored archive no
// longer matches the checksum it was written with.
var ErrChecksumMismatch = errors.New("postgres store: archive checksum mismatch")

// Record describes one stored package without decoding it.
type Record struct {
	Name            string
	DefaultLanguage string
	// Checksum is the hex encoded BLAKE3-256 sum of the archive.
	Checksum  string
	Size      int64
	UpdatedAt time.Time
}

// Store keeps quest packages in the quest_packages table. All methods are
// safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
	opts []archive.Option
}

// NewStore connects to the database at dsn and runs [Migrate]. opts are
// passed to the archive codec on every Put and Get.
func NewStore(ctx context.Context, dsn string, opts ...archive.Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool, opts: opts}, nil
}

// Close releases all connections held by the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Put saves p, replacing any stored package of the same name. changed is
// false when the stored archive already had the same checksum; the row is
// then left untouched.
func (s *Store) Put(ctx context.Context, p *quest.Package) (changed bool, err error) {
	var buf bytes.Buffer
	if err := archive.Save(ctx, &buf, p, s.opts...); err != nil {
		return false, fmt.Errorf("postgres store: put %s: %w", p.Name, err)
	}
	sum := blake3.Sum256(buf.Bytes())

	const q = `
		INSERT INTO quest_packages (name, default_language, checksum, archive, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE
		SET    default_language = EXCLUDED.default_language,
		       checksum         = EXCLUDED.checksum,
		       archive          = EXCLUDED.archive,
		       updated_at       = now()
		WHERE  quest_packages.checksum <> EXCLUDED.checksum`

	tag, err := s.pool.Exec(ctx, q, p.Name, p.DefaultLanguage, sum[:], buf.Bytes())
	if err != nil {
		return false, fmt.Errorf("postgres store: put %s: %w", p.Name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get loads the package called name. It returns an error wrapping
// [quest.ErrNotFound] when no such package is stored.
func (s *Store) Get(ctx context.Context, name string) (*quest.Package, error) {
	const q = `SELECT checksum, archive FROM quest_packages WHERE name = $1`

	var sum, data []byte
	err := s.pool.QueryRow(ctx, q, name).Scan(&sum, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres store: get %s: %w", name, quest.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get %s: %w", name, err)
	}
	if got := blake3.Sum256(data); !bytes.Equal(got[:], sum) {
		return nil, fmt.Errorf("postgres store: get %s: %w", name, ErrChecksumMismatch)
	}

	p, err := archive.Load(ctx, bytes.NewReader(data), int64(len(data)), s.opts...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get %s: %w", name, err)
	}
	return p, nil
}

// List returns a record for every stored package ordered by name.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	const q = `
		SELECT name, default_language, checksum, octet_length(archive), updated_at
		FROM   quest_packages
		ORDER  BY name`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			r   Record
			sum []byte
		)
		if err := row.Scan(&r.Name, &r.DefaultLanguage, &sum, &r.Size, &r.UpdatedAt); err != nil {
			return Record{}, err
		}
		r.Checksum = hex.EncodeToString(sum)
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	return records, nil
}

// Delete removes the package called name. It returns an error wrapping
// [quest.ErrNotFound] when no such package is stored.
func (s *Store) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quest_packages WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("postgres store: delete %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: delete %s: %w", name, quest.ErrNotFound)
	}
	return nil
}

// Checksum returns the hex encoded BLAKE3-256 sum of data, in the form
// [Record.Checksum] uses.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
