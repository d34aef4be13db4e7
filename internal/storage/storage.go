package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Storage handles all database operations.
// Queries use $N placeholders, which both drivers accept.
type Storage struct {
	db     *sql.DB
	driver string
}

// NewStorage opens the database for the given driver, verifies the connection and initializes schema
func NewStorage(driver, dsn string) (*Storage, error) {
	switch driver {
	case DriverSQLite:
		dsn = dsn + "?_journal_mode=WAL&_synchronous=NORMAL"
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db, driver: driver}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS domains (
		referring_domain TEXT PRIMARY KEY,
		domain_rating DOUBLE PRECISION,
		organic_traffic BIGINT,
		live_backlinks BIGINT,
		total_backlinks BIGINT,
		first_seen TIMESTAMP,
		last_updated TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS scraped_domains (
		domain TEXT PRIMARY KEY,
		title TEXT,
		main TEXT,
		lang TEXT,
		links TEXT,
		links_main_domains TEXT,
		links_ahrefs_domains TEXT,
		last_scrape_attempt TIMESTAMP,
		last_successful_scrape_date TIMESTAMP,
		scrape_error TEXT
	);

	CREATE TABLE IF NOT EXISTS clusters (
		domain TEXT PRIMARY KEY,
		lang TEXT NOT NULL,
		cluster TEXT NOT NULL,
		mean_distance DOUBLE PRECISION
	);

	CREATE TABLE IF NOT EXISTS components (
		domain TEXT PRIMARY KEY,
		component INTEGER NOT NULL,
		all_links INTEGER NOT NULL,
		in_links INTEGER NOT NULL,
		out_links INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clusters_cluster ON clusters(cluster);
	CREATE INDEX IF NOT EXISTS idx_components_component ON components(component);
	`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertDomainMetrics inserts or replaces the third-party metrics of a referring domain
func (s *Storage) UpsertDomainMetrics(ctx context.Context, m DomainMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO domains (referring_domain, domain_rating, organic_traffic, live_backlinks, total_backlinks, first_seen, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (referring_domain) DO UPDATE SET
			domain_rating = EXCLUDED.domain_rating,
			organic_traffic = EXCLUDED.organic_traffic,
			live_backlinks = EXCLUDED.live_backlinks,
			total_backlinks = EXCLUDED.total_backlinks,
			first_seen = EXCLUDED.first_seen,
			last_updated = EXCLUDED.last_updated
	`, m.DomainName, nullFloat(m.DomainRating), nullInt(m.OrganicTraffic), nullInt(m.LiveBacklinks),
		nullInt(m.TotalBacklinks), nullTime(m.FirstSeen), nullTime(m.LastUpdated))

	if err != nil {
		return fmt.Errorf("failed to upsert domain %s: %w", m.DomainName, err)
	}
	return nil
}

// ListReferringDomains returns all referring domains ordered by name.
// With onlyUnscraped set, domains that already have a successful scrape are skipped.
func (s *Storage) ListReferringDomains(ctx context.Context, onlyUnscraped bool) ([]string, error) {
	query := `SELECT referring_domain FROM domains ORDER BY referring_domain`
	if onlyUnscraped {
		query = `
		SELECT d.referring_domain
		FROM domains AS d
		LEFT JOIN scraped_domains AS sd ON d.referring_domain = sd.domain
		WHERE sd.last_successful_scrape_date IS NULL
		ORDER BY d.referring_domain`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list referring domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("failed to scan referring domain: %w", err)
		}
		domains = append(domains, domain)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referring domains: %w", err)
	}

	return domains, nil
}

// SaveScrapeResult records a scrape attempt. A failed attempt keeps the
// content and success date of the previous successful scrape.
func (s *Storage) SaveScrapeResult(ctx context.Context, r ScrapeResult) error {
	if r.Err != nil {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO scraped_domains (domain, last_scrape_attempt, scrape_error)
			VALUES ($1, $2, $3)
			ON CONFLICT (domain) DO UPDATE SET
				last_scrape_attempt = EXCLUDED.last_scrape_attempt,
				scrape_error = EXCLUDED.scrape_error
		`, r.DomainName, r.AttemptedAt, r.Err.Error())
		if err != nil {
			return fmt.Errorf("failed to record scrape failure for %s: %w", r.DomainName, err)
		}
		return nil
	}

	links, err := encodeLinks(r.Links)
	if err != nil {
		return err
	}
	mainLinks, err := encodeLinks(r.MainDomainLinks)
	if err != nil {
		return err
	}
	registeredLinks, err := encodeLinks(r.RegisteredDomainLinks)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scraped_domains (domain, title, main, lang, links, links_main_domains, links_ahrefs_domains,
			last_scrape_attempt, last_successful_scrape_date, scrape_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL)
		ON CONFLICT (domain) DO UPDATE SET
			title = EXCLUDED.title,
			main = EXCLUDED.main,
			lang = EXCLUDED.lang,
			links = EXCLUDED.links,
			links_main_domains = EXCLUDED.links_main_domains,
			links_ahrefs_domains = EXCLUDED.links_ahrefs_domains,
			last_scrape_attempt = EXCLUDED.last_scrape_attempt,
			last_successful_scrape_date = EXCLUDED.last_successful_scrape_date,
			scrape_error = NULL
	`, r.DomainName, r.Title, nullString(r.Text), r.Language, links, mainLinks, registeredLinks,
		r.AttemptedAt, r.AttemptedAt)

	if err != nil {
		return fmt.Errorf("failed to save scrape result for %s: %w", r.DomainName, err)
	}
	return nil
}

// LoadClusterCorpus returns successfully scraped domains that have main text
func (s *Storage) LoadClusterCorpus(ctx context.Context) ([]Domain, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, main, COALESCE(lang, '')
		FROM scraped_domains
		WHERE last_successful_scrape_date IS NOT NULL
			AND main IS NOT NULL
		ORDER BY domain
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster corpus: %w", err)
	}
	defer rows.Close()

	var domains []Domain
	for rows.Next() {
		var d Domain
		if err := rows.Scan(&d.DomainName, &d.Text, &d.Language); err != nil {
			return nil, fmt.Errorf("failed to scan corpus row: %w", err)
		}
		domains = append(domains, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating corpus: %w", err)
	}

	return domains, nil
}

// LoadNetworkDomains returns scraped domains that have link lists
func (s *Storage) LoadNetworkDomains(ctx context.Context) ([]Domain, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, COALESCE(lang, ''), COALESCE(title, ''), links, links_main_domains, links_ahrefs_domains
		FROM scraped_domains
		WHERE links IS NOT NULL
		ORDER BY domain
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load network domains: %w", err)
	}
	defer rows.Close()

	var domains []Domain
	for rows.Next() {
		var d Domain
		var links, mainLinks, registeredLinks sql.NullString
		if err := rows.Scan(&d.DomainName, &d.Language, &d.Title, &links, &mainLinks, &registeredLinks); err != nil {
			return nil, fmt.Errorf("failed to scan network domain: %w", err)
		}
		if d.Links, err = decodeLinks(links); err != nil {
			return nil, fmt.Errorf("domain %s: %w", d.DomainName, err)
		}
		if d.MainDomainLinks, err = decodeLinks(mainLinks); err != nil {
			return nil, fmt.Errorf("domain %s: %w", d.DomainName, err)
		}
		if d.RegisteredDomainLinks, err = decodeLinks(registeredLinks); err != nil {
			return nil, fmt.Errorf("domain %s: %w", d.DomainName, err)
		}
		domains = append(domains, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating network domains: %w", err)
	}

	return domains, nil
}

// LoadMetrics returns the metrics of every referring domain keyed by domain name
func (s *Storage) LoadMetrics(ctx context.Context) (map[string]DomainMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.referring_domain, d.domain_rating, d.organic_traffic, d.live_backlinks, d.total_backlinks,
			d.first_seen, d.last_updated, sd.last_successful_scrape_date
		FROM domains AS d
		LEFT JOIN scraped_domains AS sd ON d.referring_domain = sd.domain
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load domain metrics: %w", err)
	}
	defer rows.Close()

	metrics := make(map[string]DomainMetrics)
	for rows.Next() {
		var (
			m                            DomainMetrics
			rating                       sql.NullFloat64
			traffic, live, total         sql.NullInt64
			firstSeen, updated, scrapeAt sql.NullTime
		)
		if err := rows.Scan(&m.DomainName, &rating, &traffic, &live, &total, &firstSeen, &updated, &scrapeAt); err != nil {
			return nil, fmt.Errorf("failed to scan domain metrics: %w", err)
		}
		m.DomainRating = floatPtr(rating)
		m.OrganicTraffic = intPtr(traffic)
		m.LiveBacklinks = intPtr(live)
		m.TotalBacklinks = intPtr(total)
		m.FirstSeen = timePtr(firstSeen)
		m.LastUpdated = timePtr(updated)
		m.LastSuccessfulScrape = timePtr(scrapeAt)
		metrics[m.DomainName] = m
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating domain metrics: %w", err)
	}

	return metrics, nil
}

// ReplaceClusters discards the previous cluster labels and writes the new run
func (s *Storage) ReplaceClusters(ctx context.Context, rows []ClusterRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clusters`); err != nil {
		return fmt.Errorf("failed to clear clusters: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO clusters (domain, lang, cluster, mean_distance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (domain) DO UPDATE SET
			lang = EXCLUDED.lang,
			cluster = EXCLUDED.cluster,
			mean_distance = EXCLUDED.mean_distance
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cluster insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.DomainName, row.Language, row.Cluster, nullFloat(row.MeanDistance)); err != nil {
			return fmt.Errorf("failed to write cluster for %s: %w", row.DomainName, err)
		}
	}

	return tx.Commit()
}

// LoadClusters returns the labels of the last clustering run
func (s *Storage) LoadClusters(ctx context.Context) ([]ClusterRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, lang, cluster, mean_distance
		FROM clusters
		ORDER BY domain
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load clusters: %w", err)
	}
	defer rows.Close()

	var out []ClusterRow
	for rows.Next() {
		var row ClusterRow
		var distance sql.NullFloat64
		if err := rows.Scan(&row.DomainName, &row.Language, &row.Cluster, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		row.MeanDistance = floatPtr(distance)
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clusters: %w", err)
	}

	return out, nil
}

// ReplaceComponents discards the previous component table and writes the current decomposition
func (s *Storage) ReplaceComponents(ctx context.Context, rows []ComponentRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM components`); err != nil {
		return fmt.Errorf("failed to clear components: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO components (domain, component, all_links, in_links, out_links)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (domain) DO UPDATE SET
			component = EXCLUDED.component,
			all_links = EXCLUDED.all_links,
			in_links = EXCLUDED.in_links,
			out_links = EXCLUDED.out_links
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare component insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.DomainName, row.Component, row.AllLinks, row.InLinks, row.OutLinks); err != nil {
			return fmt.Errorf("failed to write component for %s: %w", row.DomainName, err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func encodeLinks(links []string) (any, error) {
	if links == nil {
		return nil, nil
	}
	data, err := json.Marshal(links)
	if err != nil {
		return nil, fmt.Errorf("failed to encode links: %w", err)
	}
	return string(data), nil
}

func decodeLinks(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var links []string
	if err := json.Unmarshal([]byte(raw.String), &links); err != nil {
		return nil, fmt.Errorf("failed to decode links: %w", err)
	}
	return links, nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
