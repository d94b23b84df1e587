/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/beacon/pkg/logger"
	"github.com/carverauto/beacon/pkg/models"
)

const hostsSchema = `
CREATE TABLE IF NOT EXISTS hosts (
	hostname   TEXT PRIMARY KEY,
	current_ip TEXT NOT NULL,
	status     TEXT NOT NULL,
	first_seen TIMESTAMPTZ NOT NULL,
	last_seen  TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_hosts_status_last_seen ON hosts (status, last_seen);
`

// PostgresStore implements Service on a pgx connection pool. Row-level
// update statements give each hostname its own serialization point.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

var _ Service = (*PostgresStore)(nil)

// NewPostgresStore dials the configured database, ensures the hosts schema
// exists and returns the store.
func NewPostgresStore(ctx context.Context, cfg *models.DatabaseConfig, log logger.Logger) (*PostgresStore, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool, logger: log}

	if _, err := pool.Exec(ctx, hostsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to Postgres host store")

	return store, nil
}

func newPool(ctx context.Context, cfg *models.DatabaseConfig) (*pgxpool.Pool, error) {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	connURL := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			connURL.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			connURL.User = url.User(cfg.Username)
		}
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query := connURL.Query()
	query.Set("sslmode", sslMode)
	connURL.RawQuery = query.Encode()

	poolConfig, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	return pool, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateHost(ctx context.Context, hostname, ip string) (*models.Host, error) {
	const q = `
		INSERT INTO hosts (hostname, current_ip, status, first_seen, last_seen)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (hostname) DO NOTHING
		RETURNING hostname, current_ip, status, first_seen, last_seen, created_at, updated_at`

	host, err := scanHost(s.pool.QueryRow(ctx, q, hostname, ip, models.HostStatusOnline))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDuplicateHost
		}

		return nil, fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return host, nil
}

func (s *PostgresStore) GetHostByHostname(ctx context.Context, hostname string) (*models.Host, error) {
	const q = `
		SELECT hostname, current_ip, status, first_seen, last_seen, created_at, updated_at
		FROM hosts WHERE hostname = $1`

	host, err := scanHost(s.pool.QueryRow(ctx, q, hostname))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHostNotFound
		}

		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return host, nil
}

func (s *PostgresStore) UpdateHostIP(ctx context.Context, hostname, ip string) error {
	const q = `
		UPDATE hosts
		SET current_ip = $2, status = $3, last_seen = now(), updated_at = now()
		WHERE hostname = $1`

	return s.execOnHost(ctx, q, hostname, ip, models.HostStatusOnline)
}

func (s *PostgresStore) TouchLastSeen(ctx context.Context, hostname string) error {
	const q = `
		UPDATE hosts
		SET status = $2, last_seen = now(), updated_at = now()
		WHERE hostname = $1`

	return s.execOnHost(ctx, q, hostname, models.HostStatusOnline)
}

func (s *PostgresStore) MarkHostOffline(ctx context.Context, hostname string) error {
	const q = `
		UPDATE hosts
		SET status = $2, updated_at = now()
		WHERE hostname = $1`

	return s.execOnHost(ctx, q, hostname, models.HostStatusOffline)
}

func (s *PostgresStore) ListHostsByStatus(ctx context.Context, status models.HostStatus, limit int) ([]*models.Host, error) {
	q := `
		SELECT hostname, current_ip, status, first_seen, last_seen, created_at, updated_at
		FROM hosts WHERE status = $1
		ORDER BY last_seen ASC`

	args := []interface{}{status}

	if limit > 0 {
		q += ` LIMIT $2`

		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var hosts []*models.Host

	for rows.Next() {
		host, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		hosts = append(hosts, host)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return hosts, nil
}

func (s *PostgresStore) DeleteHost(ctx context.Context, hostname string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM hosts WHERE hostname = $1`, hostname)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrHostNotFound
	}

	return nil
}

func (s *PostgresStore) CountHostsByStatus(ctx context.Context, status models.HostStatus) (int, error) {
	var count int

	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM hosts WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return count, nil
}

func (s *PostgresStore) execOnHost(ctx context.Context, query, hostname string, args ...interface{}) error {
	tag, err := s.pool.Exec(ctx, query, append([]interface{}{hostname}, args...)...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrHostNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHost(row rowScanner) (*models.Host, error) {
	var host models.Host

	err := row.Scan(
		&host.Hostname,
		&host.CurrentIP,
		&host.Status,
		&host.FirstSeen,
		&host.LastSeen,
		&host.CreatedAt,
		&host.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	host.FirstSeen = host.FirstSeen.UTC()
	host.LastSeen = host.LastSeen.UTC()

	return &host, nil
}
