package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/ykarpov/ListKeeper/internal/apperr"
	"github.com/ykarpov/ListKeeper/internal/models"
)

// memRepo is an in-memory stand-in for the Postgres repositories. It
// mirrors their semantics: explicit cascades, NotFound on missing ids,
// and orphan locator reporting for blob release.
type memRepo struct {
	mu            sync.Mutex
	insertFileErr error
	clOrder    []string
	checklists map[string]*models.Checklist
	catOrder   map[string][]string
	categories map[string]*models.Category
	itemOrder  map[string][]string
	items      map[string]*models.Item
	fileOrder  map[string][]string
	files      map[string]*models.FileAttachment
	links      map[string]*models.ShareLink
}

func newMemRepo() *memRepo {
	return &memRepo{
		checklists: make(map[string]*models.Checklist),
		catOrder:   make(map[string][]string),
		categories: make(map[string]*models.Category),
		itemOrder:  make(map[string][]string),
		items:      make(map[string]*models.Item),
		fileOrder:  make(map[string][]string),
		files:      make(map[string]*models.FileAttachment),
		links:      make(map[string]*models.ShareLink),
	}
}

func (m *memRepo) CreateChecklist(_ context.Context, c *models.Checklist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc := *c
	cc.Categories = nil
	m.checklists[c.ID] = &cc
	m.clOrder = append(m.clOrder, c.ID)
	return nil
}

func (m *memRepo) GetChecklistMeta(_ context.Context, id string) (*models.Checklist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checklists[id]
	if !ok {
		return nil, fmt.Errorf("checklist %s: %w", id, apperr.ErrNotFound)
	}
	cc := *c
	return &cc, nil
}

func (m *memRepo) GetChecklistTree(_ context.Context, id string) (*models.Checklist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checklists[id]
	if !ok {
		return nil, fmt.Errorf("checklist %s: %w", id, apperr.ErrNotFound)
	}
	tree := *c
	tree.Categories = make([]models.Category, 0)
	for _, catID := range m.catOrder[id] {
		cat := *m.categories[catID]
		cat.Items = make([]models.Item, 0)
		cat.Files = m.filesOf(catID)
		for _, itemID := range m.itemOrder[catID] {
			it := *m.items[itemID]
			it.Files = m.filesOf(itemID)
			cat.Items = append(cat.Items, it)
		}
		tree.Categories = append(tree.Categories, cat)
	}
	return &tree, nil
}

func (m *memRepo) filesOf(parentID string) []models.FileAttachment {
	out := make([]models.FileAttachment, 0)
	for _, fid := range m.fileOrder[parentID] {
		out = append(out, *m.files[fid])
	}
	return out
}

func (m *memRepo) ListChecklists(_ context.Context, ownerID string) ([]models.ChecklistSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ChecklistSummary, 0)
	for _, id := range m.clOrder {
		c, ok := m.checklists[id]
		if !ok || c.OwnerID != ownerID {
			continue
		}
		sum := models.ChecklistSummary{ID: c.ID, Title: c.Title, Description: c.Description}
		for _, catID := range m.catOrder[id] {
			sum.CategoryCount++
			sum.ItemCount += len(m.itemOrder[catID])
		}
		out = append(out, sum)
	}
	return out, nil
}

func (m *memRepo) DeleteChecklist(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checklists[id]; !ok {
		return nil, fmt.Errorf("checklist %s: %w", id, apperr.ErrNotFound)
	}
	var urls []string
	for _, catID := range m.catOrder[id] {
		urls = append(urls, m.dropCategoryLocked(catID)...)
	}
	delete(m.catOrder, id)
	delete(m.checklists, id)
	for token, link := range m.links {
		if link.ChecklistID == id {
			delete(m.links, token)
		}
	}
	return m.orphansLocked(urls), nil
}

func (m *memRepo) InsertChecklistTree(_ context.Context, c *models.Checklist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta := *c
	meta.Categories = nil
	m.checklists[c.ID] = &meta
	m.clOrder = append(m.clOrder, c.ID)
	for _, cat := range c.Categories {
		catCopy := cat
		catCopy.Items, catCopy.Files = nil, nil
		m.categories[cat.ID] = &catCopy
		m.catOrder[c.ID] = append(m.catOrder[c.ID], cat.ID)
		for _, f := range cat.Files {
			fc := f
			m.files[f.ID] = &fc
			m.fileOrder[cat.ID] = append(m.fileOrder[cat.ID], f.ID)
		}
		for _, it := range cat.Items {
			itCopy := it
			itCopy.Files = nil
			m.items[it.ID] = &itCopy
			m.itemOrder[cat.ID] = append(m.itemOrder[cat.ID], it.ID)
			for _, f := range it.Files {
				fc := f
				m.files[f.ID] = &fc
				m.fileOrder[it.ID] = append(m.fileOrder[it.ID], f.ID)
			}
		}
	}
	return nil
}

func (m *memRepo) CreateCategory(_ context.Context, cat *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checklists[cat.ChecklistID]; !ok {
		return fmt.Errorf("checklist %s: %w", cat.ChecklistID, apperr.ErrNotFound)
	}
	cc := *cat
	m.categories[cat.ID] = &cc
	m.catOrder[cat.ChecklistID] = append(m.catOrder[cat.ChecklistID], cat.ID)
	return nil
}

func (m *memRepo) RenameCategory(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.categories[id]
	if !ok {
		return fmt.Errorf("category %s: %w", id, apperr.ErrNotFound)
	}
	cat.Name = name
	return nil
}

func (m *memRepo) DeleteCategory(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", id, apperr.ErrNotFound)
	}
	urls := m.dropCategoryLocked(id)
	order := m.catOrder[cat.ChecklistID]
	for i, cid := range order {
		if cid == id {
			m.catOrder[cat.ChecklistID] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	return m.orphansLocked(urls), nil
}

// dropCategoryLocked removes a category with its items and files,
// returning the file locators that were referenced under it.
func (m *memRepo) dropCategoryLocked(id string) []string {
	var urls []string
	for _, fid := range m.fileOrder[id] {
		urls = append(urls, m.files[fid].URL)
		delete(m.files, fid)
	}
	delete(m.fileOrder, id)
	for _, itemID := range m.itemOrder[id] {
		for _, fid := range m.fileOrder[itemID] {
			urls = append(urls, m.files[fid].URL)
			delete(m.files, fid)
		}
		delete(m.fileOrder, itemID)
		delete(m.items, itemID)
	}
	delete(m.itemOrder, id)
	delete(m.categories, id)
	return urls
}

func (m *memRepo) orphansLocked(urls []string) []string {
	var orphans []string
	seen := make(map[string]bool)
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		referenced := false
		for _, f := range m.files {
			if f.URL == u {
				referenced = true
				break
			}
		}
		if !referenced {
			orphans = append(orphans, u)
		}
	}
	return orphans
}

func (m *memRepo) CreateItem(_ context.Context, it *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[it.CategoryID]; !ok {
		return fmt.Errorf("category %s: %w", it.CategoryID, apperr.ErrNotFound)
	}
	cc := *it
	m.items[it.ID] = &cc
	m.itemOrder[it.CategoryID] = append(m.itemOrder[it.CategoryID], it.ID)
	return nil
}

func (m *memRepo) RenameItem(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, apperr.ErrNotFound)
	}
	it.Name = name
	return nil
}

func (m *memRepo) ToggleItem(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return false, fmt.Errorf("item %s: %w", id, apperr.ErrNotFound)
	}
	it.IsCompleted = !it.IsCompleted
	return it.IsCompleted, nil
}

func (m *memRepo) DeleteItem(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, apperr.ErrNotFound)
	}
	var urls []string
	for _, fid := range m.fileOrder[id] {
		urls = append(urls, m.files[fid].URL)
		delete(m.files, fid)
	}
	delete(m.fileOrder, id)
	delete(m.items, id)
	order := m.itemOrder[it.CategoryID]
	for i, iid := range order {
		if iid == id {
			m.itemOrder[it.CategoryID] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	return m.orphansLocked(urls), nil
}

func (m *memRepo) ChecklistIDForCategory(_ context.Context, categoryID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.categories[categoryID]
	if !ok {
		return "", fmt.Errorf("category %s: %w", categoryID, apperr.ErrNotFound)
	}
	return cat.ChecklistID, nil
}

func (m *memRepo) ChecklistIDForItem(_ context.Context, itemID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok {
		return "", fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
	}
	cat, ok := m.categories[it.CategoryID]
	if !ok {
		return "", fmt.Errorf("category %s: %w", it.CategoryID, apperr.ErrNotFound)
	}
	return cat.ChecklistID, nil
}

func (m *memRepo) InsertFile(_ context.Context, f *models.FileAttachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertFileErr != nil {
		return m.insertFileErr
	}
	switch f.ParentKind {
	case models.ParentCategory:
		if _, ok := m.categories[f.ParentID]; !ok {
			return fmt.Errorf("category %s: %w", f.ParentID, apperr.ErrNotFound)
		}
	case models.ParentItem:
		if _, ok := m.items[f.ParentID]; !ok {
			return fmt.Errorf("item %s: %w", f.ParentID, apperr.ErrNotFound)
		}
	default:
		return fmt.Errorf("parent kind %q: %w", f.ParentKind, apperr.ErrValidation)
	}
	cc := *f
	m.files[f.ID] = &cc
	m.fileOrder[f.ParentID] = append(m.fileOrder[f.ParentID], f.ID)
	return nil
}

func (m *memRepo) GetFile(_ context.Context, id string) (*models.FileAttachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	cc := *f
	return &cc, nil
}

func (m *memRepo) DeleteFile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	delete(m.files, id)
	order := m.fileOrder[f.ParentID]
	for i, fid := range order {
		if fid == id {
			m.fileOrder[f.ParentID] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memRepo) CountURLRefs(_ context.Context, url string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.files {
		if f.URL == url {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) ChecklistIDForFile(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	f, ok := m.files[id]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	if f.ParentKind == models.ParentCategory {
		return m.ChecklistIDForCategory(ctx, f.ParentID)
	}
	return m.ChecklistIDForItem(ctx, f.ParentID)
}

func (m *memRepo) CreateShareLink(_ context.Context, link *models.ShareLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.ChecklistID == link.ChecklistID && !l.Revoked {
			l.Revoked = true
		}
	}
	cc := *link
	m.links[link.Token] = &cc
	return nil
}

func (m *memRepo) ResolveShareLink(_ context.Context, token string) (*models.ShareLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[token]
	if !ok || link.Revoked {
		return nil, fmt.Errorf("share link: %w", apperr.ErrNotFound)
	}
	cc := *link
	return &cc, nil
}

// fakeBlob is an in-memory blob store.
type fakeBlob struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failSave bool
	seq      int
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: make(map[string][]byte)}
}

func (b *fakeBlob) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if b.failSave {
		return "", fmt.Errorf("blob store unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	locator := fmt.Sprintf("/media/%d_%s", b.seq, name)
	b.objects[locator] = data
	return locator, nil
}

func (b *fakeBlob) Delete(_ context.Context, locator string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[locator]; !ok {
		return fmt.Errorf("locator %q: %w", locator, apperr.ErrNotFound)
	}
	delete(b.objects, locator)
	return nil
}

func (b *fakeBlob) has(locator string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[locator]
	return ok
}

// testEnv wires the services over shared in-memory fakes.
type testEnv struct {
	repo       *memRepo
	blobs      *fakeBlob
	checklists *ChecklistService
	shares     *ShareService
	files      *FileService
}

func newTestEnv() *testEnv {
	repo := newMemRepo()
	blobs := newFakeBlob()
	locks := NewLocks()
	access := NewAccessService(repo, repo)
	log := zap.NewNop()
	return &testEnv{
		repo:       repo,
		blobs:      blobs,
		checklists: NewChecklistService(repo, access, blobs, locks, log),
		shares:     NewShareService(repo, repo, access),
		files:      NewFileService(repo, repo, access, blobs, locks, log),
	}
}
