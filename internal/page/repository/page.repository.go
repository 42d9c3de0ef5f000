package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"halaman/internal/page/model"
	"halaman/pkg/logger"
)

var (
	ErrPageNotFound    = errors.New("page not found")
	ErrVersionNotFound = errors.New("version not found")
)

type PageRepository struct {
	DB *sql.DB
}

func NewPageRepository(db *sql.DB) *PageRepository {
	return &PageRepository{DB: db}
}

const pageColumns = "id, title, content, parent_id, position, icon, created_at, updated_at"

func scanPage(row interface{ Scan(...any) error }) (*model.Page, error) {
	var p model.Page
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.ParentID, &p.Position, &p.Icon, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every page without content, ordered by (position,
// created_at) so the tree builder sees siblings in display order.
func (r *PageRepository) List() ([]model.Page, error) {
	rows, err := r.DB.Query(`SELECT id, title, parent_id, position, icon, created_at, updated_at
		FROM pages ORDER BY position ASC, created_at ASC`)
	if err != nil {
		logger.Sugar.Errorf("Failed to list pages: %v", err)
		return nil, err
	}
	defer rows.Close()

	pages := []model.Page{}
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.Title, &p.ParentID, &p.Position, &p.Icon, &p.CreatedAt, &p.UpdatedAt); err != nil {
			logger.Sugar.Errorf("Failed to scan page row: %v", err)
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (r *PageRepository) Get(id string) (*model.Page, error) {
	page, err := scanPage(r.DB.QueryRow(`SELECT `+pageColumns+` FROM pages WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPageNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get page %s: %v", id, err)
		return nil, err
	}
	return page, nil
}

// NextPosition returns one past the highest position among the siblings
// under parentID (root siblings when nil).
func (r *PageRepository) NextPosition(parentID *string) (int, error) {
	var next int
	err := r.DB.QueryRow(`SELECT COALESCE(MAX(position), -1) + 1 FROM pages
		WHERE parent_id IS NOT DISTINCT FROM $1`, parentID).Scan(&next)
	if err != nil {
		logger.Sugar.Errorf("Failed to compute next position: %v", err)
		return 0, err
	}
	return next, nil
}

// Create inserts the page and fills its server-assigned timestamps.
func (r *PageRepository) Create(p *model.Page) error {
	err := r.DB.QueryRow(`INSERT INTO pages (id, title, content, parent_id, position, icon)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		p.ID, p.Title, p.Content, p.ParentID, p.Position, p.Icon,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create page %s: %v", p.ID, err)
	}
	return err
}

// Update applies a sparse patch in a single transaction: it reads the
// current row under lock, snapshots the prior title/content into
// page_versions when the patch changes either, then writes the patched
// fields. A version is never taken for parent_id, position, or icon alone.
func (r *PageRepository) Update(id string, patch model.PagePatch) (*model.Page, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		logger.Sugar.Errorf("Failed to begin update tx for page %s: %v", id, err)
		return nil, err
	}
	defer tx.Rollback()

	existing, err := scanPage(tx.QueryRow(`SELECT `+pageColumns+` FROM pages WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPageNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to read page %s for update: %v", id, err)
		return nil, err
	}

	contentChanged := patch.Content != nil && *patch.Content != existing.Content
	titleChanged := patch.Title != nil && *patch.Title != existing.Title
	if contentChanged || titleChanged {
		_, err = tx.Exec(`INSERT INTO page_versions (page_id, title, content) VALUES ($1, $2, $3)`,
			existing.ID, existing.Title, existing.Content)
		if err != nil {
			logger.Sugar.Errorf("Failed to snapshot page %s: %v", id, err)
			return nil, err
		}
	}

	sets := []string{}
	args := []any{}
	addSet := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Title != nil {
		addSet("title", *patch.Title)
	}
	if patch.Content != nil {
		addSet("content", *patch.Content)
	}
	if patch.ParentID.Set {
		addSet("parent_id", patch.ParentID.Ptr())
	}
	if patch.Position != nil {
		addSet("position", *patch.Position)
	}
	if patch.Icon != nil {
		addSet("icon", *patch.Icon)
	}

	updated := existing
	if len(sets) > 0 {
		sets = append(sets, "updated_at = NOW()")
		args = append(args, id)
		query := fmt.Sprintf(`UPDATE pages SET %s WHERE id = $%d RETURNING `+pageColumns,
			strings.Join(sets, ", "), len(args))
		updated, err = scanPage(tx.QueryRow(query, args...))
		if err != nil {
			logger.Sugar.Errorf("Failed to update page %s: %v", id, err)
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit update for page %s: %v", id, err)
		return nil, err
	}
	return updated, nil
}

// Delete removes the page in a single transaction, promoting its direct
// children to roots and dropping its version history. Descendants are
// never deleted recursively.
func (r *PageRepository) Delete(id string) error {
	tx, err := r.DB.Begin()
	if err != nil {
		logger.Sugar.Errorf("Failed to begin delete tx for page %s: %v", id, err)
		return err
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRow(`SELECT id FROM pages WHERE id = $1 FOR UPDATE`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPageNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to check page %s before delete: %v", id, err)
		return err
	}

	if _, err = tx.Exec(`UPDATE pages SET parent_id = NULL WHERE parent_id = $1`, id); err != nil {
		logger.Sugar.Errorf("Failed to promote children of page %s: %v", id, err)
		return err
	}
	if _, err = tx.Exec(`DELETE FROM page_versions WHERE page_id = $1`, id); err != nil {
		logger.Sugar.Errorf("Failed to delete versions of page %s: %v", id, err)
		return err
	}
	if _, err = tx.Exec(`DELETE FROM pages WHERE id = $1`, id); err != nil {
		logger.Sugar.Errorf("Failed to delete page %s: %v", id, err)
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit delete for page %s: %v", id, err)
		return err
	}
	return nil
}

// ReorderBatch moves every item to its new parent and position as one
// atomic unit. An unknown id rolls the whole batch back; readers never
// observe a half-applied reorder.
func (r *PageRepository) ReorderBatch(items []model.ReorderItem) error {
	tx, err := r.DB.Begin()
	if err != nil {
		logger.Sugar.Errorf("Failed to begin reorder tx: %v", err)
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		res, err := tx.Exec(`UPDATE pages SET parent_id = $1, position = $2, updated_at = NOW() WHERE id = $3`,
			item.ParentID, item.Position, item.ID)
		if err != nil {
			logger.Sugar.Errorf("Failed to reorder page %s: %v", item.ID, err)
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("reorder page %s: %w", item.ID, ErrPageNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit reorder: %v", err)
		return err
	}
	return nil
}

// Search matches the query as a case-insensitive substring of title or
// content, newest-updated first, with a bounded content prefix as snippet.
func (r *PageRepository) Search(query string, limit int) ([]model.SearchResult, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := r.DB.Query(`SELECT id, title, parent_id, icon, updated_at, substr(content, 1, 200) AS snippet
		FROM pages
		WHERE title ILIKE $1 OR content ILIKE $1
		ORDER BY updated_at DESC
		LIMIT $2`, pattern, limit)
	if err != nil {
		logger.Sugar.Errorf("Failed to search pages: %v", err)
		return nil, err
	}
	defer rows.Close()

	results := []model.SearchResult{}
	for rows.Next() {
		var res model.SearchResult
		if err := rows.Scan(&res.ID, &res.Title, &res.ParentID, &res.Icon, &res.UpdatedAt, &res.Snippet); err != nil {
			logger.Sugar.Errorf("Failed to scan search row: %v", err)
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// escapeLike neutralizes LIKE metacharacters so the query stays a plain
// substring match.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// ListVersions returns the newest snapshots first, content omitted.
func (r *PageRepository) ListVersions(pageID string, limit int) ([]model.PageVersion, error) {
	rows, err := r.DB.Query(`SELECT id, page_id, title, created_at
		FROM page_versions WHERE page_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, pageID, limit)
	if err != nil {
		logger.Sugar.Errorf("Failed to list versions for page %s: %v", pageID, err)
		return nil, err
	}
	defer rows.Close()

	versions := []model.PageVersion{}
	for rows.Next() {
		var v model.PageVersion
		if err := rows.Scan(&v.ID, &v.PageID, &v.Title, &v.CreatedAt); err != nil {
			logger.Sugar.Errorf("Failed to scan version row: %v", err)
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *PageRepository) GetVersion(pageID string, versionID int64) (*model.PageVersion, error) {
	var v model.PageVersion
	err := r.DB.QueryRow(`SELECT id, page_id, title, content, created_at
		FROM page_versions WHERE id = $1 AND page_id = $2`, versionID, pageID).
		Scan(&v.ID, &v.PageID, &v.Title, &v.Content, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get version %d of page %s: %v", versionID, pageID, err)
		return nil, err
	}
	return &v, nil
}
