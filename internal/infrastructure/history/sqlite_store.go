// Package history persists projects, experiment records and pending
// promotions in a SQLite database.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/pkg/filesystem"
	"github.com/grimoiredev/grimoire/internal/ports"
)

// SQLiteStore persists the local experiment history.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates (or opens) the record database. An empty path
// defaults to ~/.grimoire/history/records.db.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = filepath.Join(filesystem.UserHomeDir(), ".grimoire", "history", "records.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history db: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		generate_url TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		git_repo_url TEXT,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(id),
		user_prompt TEXT NOT NULL,
		system_prompt TEXT,
		variables TEXT,
		temperature REAL,
		max_len INTEGER,
		top_p REAL,
		top_k INTEGER,
		output TEXT,
		rating TEXT,
		notes TEXT,
		promotion TEXT NOT NULL DEFAULT 'none',
		merged_pr INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS pending_promotions (
		record_id INTEGER PRIMARY KEY REFERENCES records(id),
		project_id INTEGER NOT NULL REFERENCES projects(id),
		pr_url TEXT NOT NULL,
		pr_number INTEGER NOT NULL,
		merged INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);`)
	return err
}

// CreateProject inserts a project and returns it with its assigned id.
func (s *SQLiteStore) CreateProject(p domain.Project) (domain.Project, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.Exec(`INSERT INTO projects
		(name, description, generate_url, provider_id, git_repo_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.GenerateURL, p.ProviderID, p.GitRepoURL,
		p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return domain.Project{}, err
	}
	p.ID, err = result.LastInsertId()
	return p, err
}

// Projects lists projects newest first.
func (s *SQLiteStore) Projects() ([]domain.Project, error) {
	rows, err := s.db.Query(`SELECT id, name, description, generate_url, provider_id, git_repo_url, created_at
		FROM projects ORDER BY datetime(created_at) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Project fetches one project by id.
func (s *SQLiteStore) Project(id int64) (domain.Project, error) {
	row := s.db.QueryRow(`SELECT id, name, description, generate_url, provider_id, git_repo_url, created_at
		FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return domain.Project{}, fmt.Errorf("project %d not found", id)
	}
	return p, err
}

// SaveRecord inserts a record and returns it with its assigned id.
func (s *SQLiteStore) SaveRecord(r domain.Record) (domain.Record, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Promotion == "" {
		r.Promotion = domain.PromotionNone
	}
	variables, err := encodeVariables(r.Variables)
	if err != nil {
		return domain.Record{}, err
	}
	result, err := s.db.Exec(`INSERT INTO records
		(project_id, user_prompt, system_prompt, variables, temperature, max_len, top_p, top_k,
		 output, rating, notes, promotion, merged_pr, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ProjectID, r.UserPrompt, r.SystemPrompt, variables,
		r.Params.Temperature, r.Params.MaxLen, r.Params.TopP, r.Params.TopK,
		r.Output, string(r.Rating), r.Notes, string(r.Promotion), boolToInt(r.MergedPR),
		r.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return domain.Record{}, err
	}
	r.ID, err = result.LastInsertId()
	return r, err
}

// Records lists a project's records newest first.
func (s *SQLiteStore) Records(projectID int64) ([]domain.Record, error) {
	rows, err := s.db.Query(recordColumns+` FROM records
		WHERE project_id = ? ORDER BY datetime(created_at) DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Record fetches one record by id.
func (s *SQLiteStore) Record(id int64) (domain.Record, error) {
	row := s.db.QueryRow(recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return domain.Record{}, fmt.Errorf("record %d not found", id)
	}
	return rec, err
}

// UpdateRating sets the rating on a record.
func (s *SQLiteStore) UpdateRating(id int64, rating domain.Rating) error {
	return s.updateColumn(id, "rating", string(rating))
}

// UpdateNotes sets free-form notes on a record.
func (s *SQLiteStore) UpdateNotes(id int64, notes string) error {
	return s.updateColumn(id, "notes", notes)
}

// SetPromotion moves a record to the given promotion state. Reaching the
// merged state also flips the merged-PR flag.
func (s *SQLiteStore) SetPromotion(id int64, state domain.PromotionState) error {
	merged := 0
	if state == domain.PromotionProdMerged {
		merged = 1
	}
	result, err := s.db.Exec(`UPDATE records SET promotion = ?, merged_pr = ? WHERE id = ?`,
		string(state), merged, id)
	if err != nil {
		return err
	}
	return requireRow(result, id)
}

// ClearTestExcept removes the test tag from every other record of the
// project, keeping at most one test pin.
func (s *SQLiteStore) ClearTestExcept(projectID, keepID int64) error {
	_, err := s.db.Exec(`UPDATE records SET promotion = ?
		WHERE project_id = ? AND promotion = ? AND id != ?`,
		string(domain.PromotionNone), projectID, string(domain.PromotionTest), keepID)
	return err
}

// SavePendingPromotion records the pull request a prod promotion opened.
func (s *SQLiteStore) SavePendingPromotion(pp domain.PendingPromotion) error {
	if pp.CreatedAt.IsZero() {
		pp.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO pending_promotions
		(record_id, project_id, pr_url, pr_number, merged, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		pp.RecordID, pp.ProjectID, pp.PRURL, pp.PRNumber, boolToInt(pp.Merged),
		pp.CreatedAt.Format(time.RFC3339))
	return err
}

// PendingPromotions lists a project's promotion PRs, unmerged and merged.
func (s *SQLiteStore) PendingPromotions(projectID int64) ([]domain.PendingPromotion, error) {
	rows, err := s.db.Query(`SELECT record_id, project_id, pr_url, pr_number, merged, created_at
		FROM pending_promotions WHERE project_id = ? ORDER BY datetime(created_at) DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var promotions []domain.PendingPromotion
	for rows.Next() {
		var pp domain.PendingPromotion
		var merged int
		var created string
		if err := rows.Scan(&pp.RecordID, &pp.ProjectID, &pp.PRURL, &pp.PRNumber, &merged, &created); err != nil {
			return nil, err
		}
		pp.Merged = merged == 1
		if ts, err := time.Parse(time.RFC3339, created); err == nil {
			pp.CreatedAt = ts
		}
		promotions = append(promotions, pp)
	}
	return promotions, rows.Err()
}

// MarkPromotionMerged flips a pending promotion to merged.
func (s *SQLiteStore) MarkPromotionMerged(recordID int64) error {
	_, err := s.db.Exec(`UPDATE pending_promotions SET merged = 1 WHERE record_id = ?`, recordID)
	return err
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const recordColumns = `SELECT id, project_id, user_prompt, system_prompt, variables,
	temperature, max_len, top_p, top_k, output, rating, notes, promotion, merged_pr, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (domain.Project, error) {
	var p domain.Project
	var description, repoURL sql.NullString
	var created string
	if err := row.Scan(&p.ID, &p.Name, &description, &p.GenerateURL, &p.ProviderID, &repoURL, &created); err != nil {
		return domain.Project{}, err
	}
	p.Description = description.String
	p.GitRepoURL = repoURL.String
	if ts, err := time.Parse(time.RFC3339, created); err == nil {
		p.CreatedAt = ts
	}
	return p, nil
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var rec domain.Record
	var systemPrompt, variables, output, rating, notes sql.NullString
	var merged int
	var created, promotion string
	if err := row.Scan(&rec.ID, &rec.ProjectID, &rec.UserPrompt, &systemPrompt, &variables,
		&rec.Params.Temperature, &rec.Params.MaxLen, &rec.Params.TopP, &rec.Params.TopK,
		&output, &rating, &notes, &promotion, &merged, &created); err != nil {
		return domain.Record{}, err
	}
	rec.SystemPrompt = systemPrompt.String
	rec.Output = output.String
	rec.Rating = domain.Rating(rating.String)
	rec.Notes = notes.String
	rec.Promotion = domain.PromotionState(promotion)
	rec.MergedPR = merged == 1
	if variables.String != "" {
		// Unparseable variables degrade to none, matching their best-effort role.
		_ = json.Unmarshal([]byte(variables.String), &rec.Variables)
	}
	if ts, err := time.Parse(time.RFC3339, created); err == nil {
		rec.CreatedAt = ts
	}
	return rec, nil
}

func (s *SQLiteStore) updateColumn(id int64, column, value string) error {
	result, err := s.db.Exec(fmt.Sprintf(`UPDATE records SET %s = ? WHERE id = ?`, column), value, id)
	if err != nil {
		return err
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %d not found", id)
	}
	return nil
}

func encodeVariables(vars map[string]string) (interface{}, error) {
	if len(vars) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("encode variables: %w", err)
	}
	return string(raw), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.RecordStore = (*SQLiteStore)(nil)
