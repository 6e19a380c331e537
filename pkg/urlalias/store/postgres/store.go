package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-urlalias/pkg/urlalias"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements urlalias.Store using PostgreSQL
type Store struct {
	db DBTX
}

// New creates a new PostgreSQL store
func New(db DBTX) *Store {
	return &Store{db: db}
}

// NewWithPool creates a new PostgreSQL store with connection pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

const selectColumns = `id, link, parent, type, destination, path_data, language_codes,
	always_available, is_history, is_custom, forward, created_at`

// Error handling helper
func (s *Store) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return urlalias.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			err = fmt.Errorf("%w: duplicate alias record", urlalias.ErrForbidden)
		case "23514": // check_violation
			err = fmt.Errorf("%w: %s", urlalias.ErrInvalidArgument, pgErr.ConstraintName)
		case "23502": // not_null_violation
			err = fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			err = fmt.Errorf("table does not exist - database migration required")
		default:
			err = fmt.Errorf("%s (code: %s)", pgErr.Message, pgErr.Code)
		}
	}

	return &urlalias.StoreError{Backend: "postgres", Op: operation, Err: err}
}

// where renders the match as a WHERE clause with positional arguments.
func where(m urlalias.Match) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if len(m.Parents) > 0 {
		add("parent = ANY($%d)", m.Parents)
	}
	if m.Link != nil {
		add("link = $%d", *m.Link)
	}
	if m.Type != nil {
		add("type = $%d", string(*m.Type))
	}
	if m.Destination != nil {
		add("destination = $%d", *m.Destination)
	}
	if m.IsHistory != nil {
		add("is_history = $%d", *m.IsHistory)
	}
	if m.IsCustom != nil {
		add("is_custom = $%d", *m.IsCustom)
	}
	if m.LanguageCode != nil {
		add("$%d = ANY(language_codes)", *m.LanguageCode)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanAlias(row pgx.Row) (*urlalias.URLAlias, error) {
	var (
		a        urlalias.URLAlias
		kind     string
		pathData []byte
	)
	err := row.Scan(&a.ID.ID, &a.ID.Link, &a.ID.Parent, &kind, &a.Destination, &pathData, &a.LanguageCodes,
		&a.AlwaysAvailable, &a.IsHistory, &a.IsCustom, &a.Forward, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Type = urlalias.AliasType(kind)
	if err := json.Unmarshal(pathData, &a.PathData); err != nil {
		return nil, fmt.Errorf("decode path_data: %w", err)
	}
	return &a, nil
}

func (s *Store) Find(ctx context.Context, m urlalias.Match) ([]*urlalias.URLAlias, error) {
	clause, args := where(m)
	rows, err := s.db.Query(ctx, "SELECT "+selectColumns+" FROM url_alias"+clause+" ORDER BY seq", args...)
	if err != nil {
		return nil, s.handlePostgresError("find", err)
	}
	defer rows.Close()

	result := make([]*urlalias.URLAlias, 0)
	for rows.Next() {
		a, err := scanAlias(rows)
		if err != nil {
			return nil, s.handlePostgresError("find", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, s.handlePostgresError("find", err)
	}
	return result, nil
}

func (s *Store) Create(ctx context.Context, alias *urlalias.URLAlias) (*urlalias.URLAlias, error) {
	stored := alias.Clone()
	stored.DisplayID = ""
	if stored.ID.ID == uuid.Nil {
		stored.ID.ID = uuid.New()
	}
	stored.CreatedAt = time.Now().UTC()
	if stored.LanguageCodes == nil {
		stored.LanguageCodes = []string{}
	}
	pathData, err := json.Marshal(stored.PathData)
	if err != nil {
		return nil, s.handlePostgresError("create", err)
	}

	query := `
		INSERT INTO url_alias (
			id, link, parent, type, destination, path_data, language_codes,
			always_available, is_history, is_custom, forward, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = s.db.Exec(ctx, query,
		stored.ID.ID, stored.ID.Link, stored.ID.Parent, string(stored.Type), stored.Destination,
		pathData, stored.LanguageCodes, stored.AlwaysAvailable, stored.IsHistory, stored.IsCustom,
		stored.Forward, stored.CreatedAt)
	if err != nil {
		return nil, s.handlePostgresError("create", err)
	}
	return stored, nil
}

func (s *Store) Update(ctx context.Context, alias *urlalias.URLAlias) error {
	pathData, err := json.Marshal(alias.PathData)
	if err != nil {
		return s.handlePostgresError("update", err)
	}
	languageCodes := alias.LanguageCodes
	if languageCodes == nil {
		languageCodes = []string{}
	}

	query := `
		UPDATE url_alias SET
			link = $2, parent = $3, type = $4, destination = $5, path_data = $6,
			language_codes = $7, always_available = $8, is_history = $9,
			is_custom = $10, forward = $11
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query,
		alias.ID.ID, alias.ID.Link, alias.ID.Parent, string(alias.Type), alias.Destination,
		pathData, languageCodes, alias.AlwaysAvailable, alias.IsHistory, alias.IsCustom, alias.Forward)
	if err != nil {
		return s.handlePostgresError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return urlalias.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM url_alias WHERE id = $1`, id)
	if err != nil {
		return s.handlePostgresError("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return urlalias.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteByMatch(ctx context.Context, m urlalias.Match) (int, error) {
	clause, args := where(m)
	tag, err := s.db.Exec(ctx, "DELETE FROM url_alias"+clause, args...)
	if err != nil {
		return 0, s.handlePostgresError("delete by match", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*urlalias.URLAlias, error) {
	row := s.db.QueryRow(ctx, "SELECT "+selectColumns+" FROM url_alias WHERE id = $1", id)
	a, err := scanAlias(row)
	if err != nil {
		return nil, s.handlePostgresError("load", err)
	}
	return a, nil
}

func (s *Store) NextLinkID(ctx context.Context) (int64, error) {
	var link int64
	if err := s.db.QueryRow(ctx, `SELECT nextval('url_alias_link_seq')`).Scan(&link); err != nil {
		return 0, s.handlePostgresError("next link", err)
	}
	return link, nil
}
