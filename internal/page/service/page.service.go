package service

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"halaman/internal/page/model"
	"halaman/internal/page/repository"
	"halaman/internal/page/tree"
)

// ErrReorderCycle rejects a reorder batch that would make a page an
// ancestor of itself.
var ErrReorderCycle = errors.New("reorder would create a cycle")

const (
	defaultTitle = "Untitled"
	defaultIcon  = "📄"

	searchLimit   = 20
	versionsLimit = 50
)

type PageService struct {
	Repo *repository.PageRepository
}

func NewPageService(repo *repository.PageRepository) *PageService {
	return &PageService{Repo: repo}
}

// CreatePage fills defaults and appends the page after its siblings.
func (s *PageService) CreatePage(req model.CreatePageRequest) (*model.Page, error) {
	if req.Title == "" {
		req.Title = defaultTitle
	}
	if req.Icon == "" {
		req.Icon = defaultIcon
	}

	position, err := s.Repo.NextPosition(req.ParentID)
	if err != nil {
		return nil, err
	}

	page := &model.Page{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Content:  req.Content,
		ParentID: req.ParentID,
		Position: position,
		Icon:     req.Icon,
	}
	if err := s.Repo.Create(page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *PageService) ListPages() ([]model.Page, error) {
	return s.Repo.List()
}

func (s *PageService) GetPage(id string) (*model.Page, error) {
	return s.Repo.Get(id)
}

func (s *PageService) UpdatePage(id string, patch model.PagePatch) (*model.Page, error) {
	return s.Repo.Update(id, patch)
}

func (s *PageService) DeletePage(id string) error {
	return s.Repo.Delete(id)
}

// Reorder applies the batch after simulating it against the current
// parent map: any item that would become its own ancestor rejects the
// whole batch before a single row is touched.
func (s *PageService) Reorder(items []model.ReorderItem) error {
	if len(items) == 0 {
		return nil
	}

	pages, err := s.Repo.List()
	if err != nil {
		return err
	}
	parents := make(map[string]*string, len(pages))
	for _, p := range pages {
		parents[p.ID] = p.ParentID
	}
	for _, item := range items {
		parents[item.ID] = item.ParentID
	}

	for _, item := range items {
		seen := map[string]bool{item.ID: true}
		cur := item.ParentID
		for cur != nil {
			if seen[*cur] {
				return ErrReorderCycle
			}
			seen[*cur] = true
			next, ok := parents[*cur]
			if !ok {
				break
			}
			cur = next
		}
	}

	return s.Repo.ReorderBatch(items)
}

// Search answers the command palette: title-or-content substring match,
// most recently updated first, capped. A blank query is an empty result,
// not match-everything, and never reaches the store.
func (s *PageService) Search(query string) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []model.SearchResult{}, nil
	}
	return s.Repo.Search(query, searchLimit)
}

// FilterTree answers the sidebar: the full forest for a blank query,
// otherwise the ancestor-inclusive filter over titles.
func (s *PageService) FilterTree(query string) ([]*tree.Node, error) {
	pages, err := s.Repo.List()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return tree.Build(pages), nil
	}
	return tree.Filter(pages, tree.MatchTitle(query)), nil
}

// Breadcrumbs returns the root-to-page trail for the header.
func (s *PageService) Breadcrumbs(id string) ([]model.Breadcrumb, error) {
	if _, err := s.Repo.Get(id); err != nil {
		return nil, err
	}
	pages, err := s.Repo.List()
	if err != nil {
		return nil, err
	}

	trail := tree.Trail(pages, id)
	crumbs := make([]model.Breadcrumb, 0, len(trail))
	for _, p := range trail {
		crumbs = append(crumbs, model.Breadcrumb{ID: p.ID, Title: p.Title, Icon: p.Icon})
	}
	return crumbs, nil
}

func (s *PageService) ListVersions(pageID string) ([]model.PageVersion, error) {
	return s.Repo.ListVersions(pageID, versionsLimit)
}

func (s *PageService) GetVersion(pageID string, versionID int64) (*model.PageVersion, error) {
	return s.Repo.GetVersion(pageID, versionID)
}

// RestoreVersion writes a snapshot's title/content back onto the page.
// It goes through the normal update path, so the current state is
// versioned before being overwritten and nothing is ever rolled back.
func (s *PageService) RestoreVersion(pageID string, versionID int64) (*model.Page, error) {
	v, err := s.Repo.GetVersion(pageID, versionID)
	if err != nil {
		return nil, err
	}
	title := v.Title
	content := v.Content
	return s.Repo.Update(pageID, model.PagePatch{Title: &title, Content: &content})
}
