package aggregate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/docstore"
	"github.com/potluck-app/potluck/internal/model"
)

// mockStore is an in-memory docstore.Store for loader tests. Collections
// preserve insertion order; failGets forces Get errors for specific docs.
type mockStore struct {
	mu       sync.Mutex
	docs     map[string][]docstore.Doc // collection -> ordered docs
	failGets map[string]error          // "collection/id" -> error
	listErr  error
	getCalls int
}

func newMockStore() *mockStore {
	return &mockStore{
		docs:     make(map[string][]docstore.Doc),
		failGets: make(map[string]error),
	}
}

func (m *mockStore) add(collection, id string, doc docstore.Doc) {
	d := docstore.Doc{"id": id}
	for k, v := range doc {
		d[k] = v
	}
	m.docs[collection] = append(m.docs[collection], d)
}

func (m *mockStore) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	m.mu.Lock()
	m.getCalls++
	m.mu.Unlock()
	if err, ok := m.failGets[collection+"/"+id]; ok {
		return nil, err
	}
	for _, d := range m.docs[collection] {
		if d["id"] == id {
			return d, nil
		}
	}
	return nil, apperror.NotFound(collection, id)
}

func (m *mockStore) Query(ctx context.Context, collection, field string, op docstore.Op, value any) ([]docstore.Doc, error) {
	out := []docstore.Doc{}
	for _, d := range m.docs[collection] {
		switch op {
		case docstore.OpEqual:
			if d[field] == value {
				out = append(out, d)
			}
		case docstore.OpArrayContains:
			arr, _ := d[field].([]any)
			for _, v := range arr {
				if v == value {
					out = append(out, d)
					break
				}
			}
		}
	}
	return out, nil
}

func (m *mockStore) List(ctx context.Context, collection string) ([]docstore.Doc, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []docstore.Doc{}
	out = append(out, m.docs[collection]...)
	return out, nil
}

func (m *mockStore) Add(ctx context.Context, collection string, doc docstore.Doc) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockStore) Set(ctx context.Context, collection, id string, doc docstore.Doc) error {
	return errors.New("not implemented")
}

func (m *mockStore) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return errors.New("not implemented")
}

func (m *mockStore) Delete(ctx context.Context, collection, id string) error {
	return errors.New("not implemented")
}

func newTestLoader(store docstore.Store) *Loader {
	return NewLoader(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedUser(store *mockStore, id, username string) {
	store.add(model.CollectionUsers, id, docstore.Doc{"username": username})
}

func seedRecipe(store *mockStore, id, name, authorID string) {
	store.add(model.CollectionRecipes, id, docstore.Doc{
		"name":              name,
		"submittedByUserID": authorID,
	})
}

func TestLoadRecipes_JoinsAuthors(t *testing.T) {
	store := newMockStore()
	seedUser(store, "u1", "alice")
	seedUser(store, "u2", "bob")
	seedRecipe(store, "r1", "Soup", "u1")
	seedRecipe(store, "r2", "Salad", "u2")

	views, err := newTestLoader(store).LoadRecipes(context.Background())
	if err != nil {
		t.Fatalf("LoadRecipes: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2", len(views))
	}
	if views[0].Name != "Soup" || views[0].Author != "@alice" {
		t.Errorf("views[0] = %q by %q, want Soup by @alice", views[0].Name, views[0].Author)
	}
	if views[1].Name != "Salad" || views[1].Author != "@bob" {
		t.Errorf("views[1] = %q by %q, want Salad by @bob", views[1].Name, views[1].Author)
	}
}

func TestLoadRecipes_MissingAuthorGetsSentinel(t *testing.T) {
	store := newMockStore()
	seedUser(store, "u2", "bob")
	seedRecipe(store, "r1", "Soup", "u1") // u1 does not exist
	seedRecipe(store, "r2", "Salad", "u2")

	views, err := newTestLoader(store).LoadRecipes(context.Background())
	if err != nil {
		t.Fatalf("LoadRecipes: %v", err)
	}
	if views[0].Author != "unknown" {
		t.Errorf("missing author rendered as %q, want unknown", views[0].Author)
	}
	if views[1].Author != "@bob" {
		t.Errorf("intact author rendered as %q, want @bob", views[1].Author)
	}
}

func TestLoadRecipes_FailedLookupDoesNotAbortBatch(t *testing.T) {
	store := newMockStore()
	seedUser(store, "u2", "bob")
	seedRecipe(store, "r1", "Soup", "u1")
	seedRecipe(store, "r2", "Salad", "u2")
	store.failGets["users/u1"] = errors.New("connection reset")

	views, err := newTestLoader(store).LoadRecipes(context.Background())
	if err != nil {
		t.Fatalf("one failed author lookup aborted the batch: %v", err)
	}
	if views[0].Author != "unknown" {
		t.Errorf("failed branch rendered as %q, want unknown", views[0].Author)
	}
	if views[1].Author != "@bob" {
		t.Errorf("healthy branch rendered as %q, want @bob", views[1].Author)
	}
}

func TestLoadRecipes_CachesSnapshot(t *testing.T) {
	store := newMockStore()
	seedUser(store, "u1", "alice")
	seedRecipe(store, "r1", "Soup", "u1")

	loader := newTestLoader(store)
	if _, err := loader.LoadRecipes(context.Background()); err != nil {
		t.Fatal(err)
	}
	calls := store.getCalls

	if _, err := loader.LoadRecipes(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.getCalls != calls {
		t.Errorf("second load hit the store (%d extra gets), want cache hit", store.getCalls-calls)
	}

	loader.Cache().Invalidate(model.CollectionRecipes)
	if _, err := loader.LoadRecipes(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.getCalls == calls {
		t.Error("load after Invalidate did not hit the store")
	}
}

func TestLoadRecipes_CachedSnapshotIsIsolated(t *testing.T) {
	store := newMockStore()
	seedUser(store, "u1", "alice")
	seedRecipe(store, "r1", "Soup", "u1")

	loader := newTestLoader(store)
	first, err := loader.LoadRecipes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	first[0].Saved = true // per-user marking must not leak into the cache

	second, err := loader.LoadRecipes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second[0].Saved {
		t.Error("per-user Saved flag leaked into the shared snapshot")
	}
}

func TestLoadRecipes_StoreError(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("store down")

	_, err := newTestLoader(store).LoadRecipes(context.Background())
	if !errors.Is(err, apperror.ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestLoadRecipe_NotFound(t *testing.T) {
	store := newMockStore()
	_, err := newTestLoader(store).LoadRecipe(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestLoadSavedRecipes_SkipsDeletedAndMarksSaved(t *testing.T) {
	store := newMockStore()
	seedUser(store, "u1", "alice")
	seedRecipe(store, "r1", "Soup", "u1")
	seedRecipe(store, "r3", "Stew", "gone") // author deleted

	user := &model.User{ID: "u9", FavouriteRecipeIDs: []string{"r1", "r2", "r3"}}

	views, err := newTestLoader(store).LoadSavedRecipes(context.Background(), user)
	if err != nil {
		t.Fatalf("LoadSavedRecipes: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2 (r2 was deleted and must be skipped)", len(views))
	}
	for _, v := range views {
		if !v.Saved {
			t.Errorf("saved view %q not marked Saved", v.Name)
		}
	}
	if views[1].Author != "deleted" {
		t.Errorf("authorless saved card rendered as %q, want deleted", views[1].Author)
	}
}

func TestLoadSavedRecipes_AnonymousRejected(t *testing.T) {
	_, err := newTestLoader(newMockStore()).LoadSavedRecipes(context.Background(), nil)
	if !errors.Is(err, apperror.ErrAuthRequired) {
		t.Errorf("got %v, want ErrAuthRequired", err)
	}
}

func TestLoadCommunities_CreatorAndMemberCount(t *testing.T) {
	store := newMockStore()
	seedUser(store, "u1", "alice")
	store.add(model.CollectionCommunities, "c1", docstore.Doc{
		"communityName": "Bakers",
		"createdBy":     "u1",
		"membersUID":    []any{"u1", "u2", "u3"},
	})

	views, err := newTestLoader(store).LoadCommunities(context.Background())
	if err != nil {
		t.Fatalf("LoadCommunities: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d views, want 1", len(views))
	}
	if views[0].Creator != "@alice" {
		t.Errorf("creator = %q, want @alice", views[0].Creator)
	}
	if views[0].MemberCount != 3 {
		t.Errorf("member count = %d, want 3", views[0].MemberCount)
	}
}

func TestLoadCommunities_MissingCreatorKeepsHandleStyle(t *testing.T) {
	store := newMockStore()
	store.add(model.CollectionCommunities, "c1", docstore.Doc{
		"communityName": "Bakers",
		"createdBy":     "ghost",
		"membersUID":    []any{"u2"},
	})

	views, err := newTestLoader(store).LoadCommunities(context.Background())
	if err != nil {
		t.Fatalf("LoadCommunities: %v", err)
	}
	if views[0].Creator != "@unknown" {
		t.Errorf("creator = %q, want @unknown", views[0].Creator)
	}
}

func TestLoadUserCommunities(t *testing.T) {
	store := newMockStore()
	seedUser(store, "u1", "alice")
	store.add(model.CollectionCommunities, "c1", docstore.Doc{
		"communityName": "Bakers",
		"createdBy":     "u1",
		"membersUID":    []any{"u1", "u2"},
	})
	store.add(model.CollectionCommunities, "c2", docstore.Doc{
		"communityName": "Grillers",
		"createdBy":     "u1",
		"membersUID":    []any{"u1"},
	})

	views, err := newTestLoader(store).LoadUserCommunities(context.Background(), "u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].CommunityName != "Bakers" {
		t.Errorf("got %d views, want just Bakers", len(views))
	}
}

func TestLoadCommunityRecipes(t *testing.T) {
	store := newMockStore()
	seedUser(store, "u1", "alice")
	store.add(model.CollectionRecipes, "r1", docstore.Doc{
		"name":              "Soup",
		"submittedByUserID": "u1",
		"communityId":       []any{"c1"},
	})
	seedRecipe(store, "r2", "Salad", "u1")

	views, err := newTestLoader(store).LoadCommunityRecipes(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].Name != "Soup" {
		t.Errorf("got %d views, want just Soup", len(views))
	}
}

func TestMarkSaved(t *testing.T) {
	views := []model.RecipeView{
		{Recipe: model.Recipe{ID: "r1"}},
		{Recipe: model.Recipe{ID: "r2"}},
	}
	user := &model.User{FavouriteRecipeIDs: []string{"r2"}}

	MarkSaved(views, user)
	if views[0].Saved || !views[1].Saved {
		t.Errorf("Saved flags = %v/%v, want false/true", views[0].Saved, views[1].Saved)
	}

	MarkSaved(views, nil) // must not panic or change anything
	if !views[1].Saved {
		t.Error("MarkSaved(nil user) cleared flags")
	}
}

func TestCache_ResetClearsEverything(t *testing.T) {
	c := NewCache()
	c.put("a", 1)
	c.put("b", 2)
	c.Reset()
	if _, ok := c.get("a"); ok {
		t.Error("entry survived Reset")
	}
	if _, ok := c.get("b"); ok {
		t.Error("entry survived Reset")
	}
}
