package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"halaman/internal/page/model"
	"halaman/internal/page/repository"
)

func ptr(s string) *string { return &s }

func newMockService(t *testing.T) (*PageService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPageService(repository.NewPageRepository(db)), mock
}

func listRows(pages ...model.Page) *sqlmock.Rows {
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "parent_id", "position", "icon", "created_at", "updated_at"})
	for _, p := range pages {
		rows.AddRow(p.ID, p.Title, p.ParentID, p.Position, "📄", now, now)
	}
	return rows
}

func TestCreatePageAppliesDefaults(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(position), -1) + 1 FROM pages WHERE parent_id IS NOT DISTINCT FROM $1")).
		WithArgs(nil).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO pages (id, title, content, parent_id, position, icon) VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at")).
		WithArgs(sqlmock.AnyArg(), "Untitled", "", nil, 2, "📄").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))

	page, err := svc.CreatePage(model.CreatePageRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, page.ID)
	assert.Equal(t, "Untitled", page.Title)
	assert.Equal(t, "📄", page.Icon)
	assert.Equal(t, 2, page.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePageKeepsProvidedFields(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("parent-1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO pages").
		WithArgs(sqlmock.AnyArg(), "Roadmap", "", "parent-1", 0, "🗺️").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))

	page, err := svc.CreatePage(model.CreatePageRequest{Title: "Roadmap", ParentID: ptr("parent-1"), Icon: "🗺️"})
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", page.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReorderRejectsCycleBeforeWriting(t *testing.T) {
	svc, mock := newMockService(t)

	// a is b's parent; moving a under b closes the loop. Only the list
	// read runs, no transaction is opened.
	mock.ExpectQuery("SELECT id, title, parent_id").
		WillReturnRows(listRows(
			model.Page{ID: "a"},
			model.Page{ID: "b", ParentID: ptr("a")},
		))

	err := svc.Reorder([]model.ReorderItem{{ID: "a", ParentID: ptr("b"), Position: 0}})
	assert.ErrorIs(t, err, ErrReorderCycle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReorderRejectsSelfParent(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT id, title, parent_id").
		WillReturnRows(listRows(model.Page{ID: "a"}))

	err := svc.Reorder([]model.ReorderItem{{ID: "a", ParentID: ptr("a"), Position: 0}})
	assert.ErrorIs(t, err, ErrReorderCycle)
}

func TestReorderValidMoveReachesStore(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT id, title, parent_id").
		WillReturnRows(listRows(
			model.Page{ID: "a"},
			model.Page{ID: "b"},
		))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE pages SET parent_id").
		WithArgs("a", 0, "b").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.Reorder([]model.ReorderItem{{ID: "b", ParentID: ptr("a"), Position: 0}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReorderEmptyBatchIsNoop(t *testing.T) {
	svc, mock := newMockService(t)

	require.NoError(t, svc.Reorder(nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchBlankQueryNeverHitsStore(t *testing.T) {
	svc, mock := newMockService(t)

	results, err := svc.Search("   ")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterTreeKeepsAncestorsOfMatches(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT id, title, parent_id").
		WillReturnRows(listRows(
			model.Page{ID: "root", Title: "Projects"},
			model.Page{ID: "mid", Title: "Backend", ParentID: ptr("root")},
			model.Page{ID: "leaf", Title: "Schema notes", ParentID: ptr("mid")},
			model.Page{ID: "other", Title: "Groceries"},
		))

	roots, err := svc.FilterTree("schema")
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "root", roots[0].ID)
	require.Len(t, roots[0].Children, 1)
	require.Len(t, roots[0].Children[0].Children, 1)
	assert.Equal(t, "leaf", roots[0].Children[0].Children[0].ID)
}

func TestFilterTreeBlankQueryReturnsFullForest(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT id, title, parent_id").
		WillReturnRows(listRows(
			model.Page{ID: "a", Title: "A"},
			model.Page{ID: "b", Title: "B", ParentID: ptr("a")},
		))

	roots, err := svc.FilterTree("")
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Len(t, roots[0].Children, 1)
}

func TestBreadcrumbsTrailRootFirst(t *testing.T) {
	svc, mock := newMockService(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, content, parent_id, position, icon, created_at, updated_at FROM pages WHERE id = $1")).
		WithArgs("leaf").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "parent_id", "position", "icon", "created_at", "updated_at"}).
			AddRow("leaf", "Leaf", "", "mid", 0, "📄", now, now))
	mock.ExpectQuery("SELECT id, title, parent_id").
		WillReturnRows(listRows(
			model.Page{ID: "root", Title: "Root"},
			model.Page{ID: "mid", Title: "Mid", ParentID: ptr("root")},
			model.Page{ID: "leaf", Title: "Leaf", ParentID: ptr("mid")},
		))

	crumbs, err := svc.Breadcrumbs("leaf")
	require.NoError(t, err)
	require.Len(t, crumbs, 3)
	assert.Equal(t, "root", crumbs[0].ID)
	assert.Equal(t, "leaf", crumbs[2].ID)
}

func TestBreadcrumbsMissingPage(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT id, title, content, parent_id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Breadcrumbs("ghost")
	assert.ErrorIs(t, err, repository.ErrPageNotFound)
}

func TestRestoreVersionSnapshotsCurrentStateFirst(t *testing.T) {
	svc, mock := newMockService(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, page_id, title, content, created_at FROM page_versions WHERE id = $1 AND page_id = $2")).
		WithArgs(int64(7), "p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "page_id", "title", "content", "created_at"}).
			AddRow(int64(7), "p1", "Old title", "old content", now))

	// Restoring is a plain update, so the pre-restore state gets its own
	// snapshot and the history never loses an entry.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, title, content, parent_id, position, icon, created_at, updated_at FROM pages WHERE id = .* FOR UPDATE").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "parent_id", "position", "icon", "created_at", "updated_at"}).
			AddRow("p1", "Current title", "current content", nil, 0, "📄", now, now))
	mock.ExpectExec("INSERT INTO page_versions").
		WithArgs("p1", "Current title", "current content").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectQuery("UPDATE pages SET title = .*, content = .*, updated_at = NOW").
		WithArgs("Old title", "old content", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "parent_id", "position", "icon", "created_at", "updated_at"}).
			AddRow("p1", "Old title", "old content", nil, 0, "📄", now, now))
	mock.ExpectCommit()

	page, err := svc.RestoreVersion("p1", 7)
	require.NoError(t, err)
	assert.Equal(t, "Old title", page.Title)
	assert.Equal(t, "old content", page.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestoreUnknownVersion(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT id, page_id, title, content, created_at FROM page_versions").
		WithArgs(int64(99), "p1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.RestoreVersion("p1", 99)
	assert.ErrorIs(t, err, repository.ErrVersionNotFound)
}
