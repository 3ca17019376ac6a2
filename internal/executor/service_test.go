package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/storepilotai/storepilot/internal/actions"
	"github.com/storepilotai/storepilot/internal/history"
	"github.com/storepilotai/storepilot/internal/shopify"
)

// fakeClient implements shopify.StoreClient against in-memory fixtures.
type fakeClient struct {
	products []shopify.Record
	pages    []shopify.Record
	listErr  map[string]error
	failKind map[string]error
	calls    []string
	nextID   int64
	created  []shopify.ProductInput
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		listErr:  map[string]error{},
		failKind: map[string]error{},
		nextID:   100,
	}
}

func (f *fakeClient) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeClient) ListProducts(context.Context) ([]shopify.Record, error) {
	f.record("list_products")
	if err := f.listErr["products"]; err != nil {
		return nil, err
	}
	return f.products, nil
}

func (f *fakeClient) ListPages(context.Context) ([]shopify.Record, error) {
	f.record("list_pages")
	if err := f.listErr["pages"]; err != nil {
		return nil, err
	}
	return f.pages, nil
}

func (f *fakeClient) ListCollections(context.Context) ([]shopify.Record, error) {
	f.record("list_collections")
	if err := f.listErr["collections"]; err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeClient) ListThemes(context.Context) ([]shopify.Record, error) {
	f.record("list_themes")
	return nil, nil
}

func (f *fakeClient) GetShopInfo(context.Context) (shopify.Record, error) {
	f.record("shop_info")
	return shopify.Record{Name: "Demo", Domain: "demo.myshopify.com"}, nil
}

func (f *fakeClient) CreateProduct(_ context.Context, input shopify.ProductInput) (shopify.Record, error) {
	f.record("create_product " + input.Title)
	if err := f.failKind["create_product"]; err != nil {
		return shopify.Record{}, err
	}
	f.created = append(f.created, input)
	f.nextID++
	record := shopify.Record{ID: f.nextID, Title: input.Title}
	f.products = append(f.products, record)
	return record, nil
}

func (f *fakeClient) UpdateProduct(_ context.Context, id int64, input shopify.ProductInput) (shopify.Record, error) {
	f.record(fmt.Sprintf("update_product %d", id))
	if err := f.failKind["update_product"]; err != nil {
		return shopify.Record{}, err
	}
	for i := range f.products {
		if f.products[i].ID != id {
			continue
		}
		if input.Title != "" {
			f.products[i].Title = input.Title
		}
		if input.Description != "" {
			f.products[i].BodyHTML = input.Description
		}
		if input.Price != nil {
			price := fmt.Sprintf("%.2f", *input.Price)
			if len(f.products[i].Variants) == 0 {
				f.products[i].Variants = []shopify.Variant{{ID: id * 10}}
			}
			f.products[i].Variants[0].Price = price
		}
		return f.products[i], nil
	}
	return shopify.Record{}, fmt.Errorf("product %d not found", id)
}

func (f *fakeClient) CreatePage(_ context.Context, input shopify.PageInput) (shopify.Record, error) {
	f.record("create_page " + input.Title)
	if err := f.failKind["create_page"]; err != nil {
		return shopify.Record{}, err
	}
	f.nextID++
	record := shopify.Record{ID: f.nextID, Title: input.Title, BodyHTML: input.Content}
	f.pages = append(f.pages, record)
	return record, nil
}

func (f *fakeClient) UpdatePage(_ context.Context, id int64, input shopify.PageInput) (shopify.Record, error) {
	f.record(fmt.Sprintf("update_page %d", id))
	for i := range f.pages {
		if f.pages[i].ID == id {
			if input.Title != "" {
				f.pages[i].Title = input.Title
			}
			if input.Content != "" {
				f.pages[i].BodyHTML = input.Content
			}
			return f.pages[i], nil
		}
	}
	return shopify.Record{}, fmt.Errorf("page %d not found", id)
}

func (f *fakeClient) CreateCollection(_ context.Context, input shopify.CollectionInput) (shopify.Record, error) {
	f.record("create_collection " + input.Title)
	f.nextID++
	return shopify.Record{ID: f.nextID, Title: input.Title}, nil
}

func (f *fakeClient) UpdateProductSEO(_ context.Context, id int64, _ shopify.SEOInput) (shopify.Record, error) {
	f.record(fmt.Sprintf("update_seo %d", id))
	return shopify.Record{ID: id}, nil
}

func (f *fakeClient) SetActiveTheme(_ context.Context, id int64) (shopify.Record, error) {
	f.record(fmt.Sprintf("set_theme %d", id))
	return shopify.Record{ID: id, Role: "main"}, nil
}

// fakeAcquirer returns one placeholder per prompt and records what it saw.
type fakeAcquirer struct {
	prompts []string
}

func (f *fakeAcquirer) Acquire(_ context.Context, prompts []string) []shopify.Image {
	f.prompts = append(f.prompts, prompts...)
	result := make([]shopify.Image, len(prompts))
	for i := range prompts {
		result[i] = shopify.Image{Src: "https://picsum.photos/seed/test/800/800"}
	}
	return result
}

func newTestService(store history.Store, acquirer *fakeAcquirer) *Service {
	if acquirer == nil {
		acquirer = &fakeAcquirer{}
	}
	return NewService(slog.Default(), store, acquirer)
}

func TestExecuteBatch_CreatePage(t *testing.T) {
	t.Parallel()
	store := history.NewMemoryStore(0)
	client := newFakeClient()
	svc := newTestService(store, nil)

	result, err := svc.ExecuteBatch(context.Background(), client, "demo.myshopify.com", "add an about page", []actions.Candidate{
		{"type": "create_page", "title": "About", "content": "Hi"},
	})
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if result.SuccessCount != 1 || result.FailureCount != 0 {
		t.Fatalf("counts = %d/%d", result.SuccessCount, result.FailureCount)
	}
	if len(result.Results) != 1 || !result.Results[0].Success {
		t.Fatalf("unexpected results: %+v", result.Results)
	}

	entry, err := store.Get(context.Background(), result.HistoryID)
	if err != nil {
		t.Fatalf("history entry missing: %v", err)
	}
	if entry.Status != history.StatusExecuted {
		t.Errorf("status = %q", entry.Status)
	}
	if entry.Summary != "Executed 1/1 actions" {
		t.Errorf("summary = %q", entry.Summary)
	}
	if entry.Prompt != "add an about page" || entry.StoreDomain != "demo.myshopify.com" {
		t.Errorf("entry metadata lost: %+v", entry)
	}
	if entry.Before == nil || entry.After == nil {
		t.Fatal("both snapshots must be captured")
	}
	if len(entry.Before.Pages) != 0 || len(entry.After.Pages) != 1 {
		t.Errorf("snapshots should reflect the mutation: before=%d after=%d",
			len(entry.Before.Pages), len(entry.After.Pages))
	}
}

func TestExecuteBatch_RejectsInvalidBatch(t *testing.T) {
	t.Parallel()
	store := history.NewMemoryStore(0)
	client := newFakeClient()
	svc := newTestService(store, nil)

	_, err := svc.ExecuteBatch(context.Background(), client, "demo", "nuke it", []actions.Candidate{
		{"type": "delete_store"},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(client.calls) != 0 {
		t.Errorf("nothing may execute on validation failure, saw %v", client.calls)
	}
	if count, _ := store.Count(context.Background()); count != 0 {
		t.Errorf("nothing may be persisted on validation failure, count = %d", count)
	}
}

func TestExecuteBatch_PartialFailureContinues(t *testing.T) {
	t.Parallel()
	store := history.NewMemoryStore(0)
	client := newFakeClient()
	client.failKind["create_page"] = errors.New("boom")
	svc := newTestService(store, nil)

	result, err := svc.ExecuteBatch(context.Background(), client, "demo", "two things", []actions.Candidate{
		{"type": "create_page", "title": "About", "content": "Hi"},
		{"type": "create_collection", "title": "Summer"},
	})
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if result.SuccessCount != 1 || result.FailureCount != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", result.SuccessCount, result.FailureCount)
	}
	if result.Results[0].Success || result.Results[0].Error == "" {
		t.Errorf("first result should carry the failure: %+v", result.Results[0])
	}
	if !result.Results[1].Success {
		t.Errorf("sibling action must still run: %+v", result.Results[1])
	}

	entry, _ := store.Get(context.Background(), result.HistoryID)
	if entry.Summary != "Executed 1/2 actions" {
		t.Errorf("summary = %q", entry.Summary)
	}
}

func TestExecuteBatch_PreservesOrder(t *testing.T) {
	t.Parallel()
	store := history.NewMemoryStore(0)
	client := newFakeClient()
	svc := newTestService(store, nil)

	_, err := svc.ExecuteBatch(context.Background(), client, "demo", "pages", []actions.Candidate{
		{"type": "create_page", "title": "One", "content": "1"},
		{"type": "create_page", "title": "Two", "content": "2"},
		{"type": "create_page", "title": "Three", "content": "3"},
	})
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}

	var mutations []string
	for _, call := range client.calls {
		if strings.HasPrefix(call, "create_page") {
			mutations = append(mutations, call)
		}
	}
	want := []string{"create_page One", "create_page Two", "create_page Three"}
	if len(mutations) != 3 {
		t.Fatalf("mutations = %v", mutations)
	}
	for i := range want {
		if mutations[i] != want[i] {
			t.Fatalf("mutation order = %v, want %v", mutations, want)
		}
	}
}

func TestExecuteBatch_SnapshotReadDegrades(t *testing.T) {
	t.Parallel()
	store := history.NewMemoryStore(0)
	client := newFakeClient()
	client.listErr["products"] = errors.New("read timeout")
	svc := newTestService(store, nil)

	result, err := svc.ExecuteBatch(context.Background(), client, "demo", "add page", []actions.Candidate{
		{"type": "create_page", "title": "About", "content": "Hi"},
	})
	if err != nil {
		t.Fatalf("a degraded snapshot must not abort the batch: %v", err)
	}
	entry, _ := store.Get(context.Background(), result.HistoryID)
	if len(entry.Before.Degraded) == 0 || entry.Before.Degraded[0] != "products" {
		t.Errorf("degraded collections should be surfaced: %+v", entry.Before)
	}
	if len(entry.Before.Products) != 0 {
		t.Errorf("degraded read must leave an empty slice")
	}
}

func TestExecuteBatch_EnrichesProductImages(t *testing.T) {
	t.Parallel()
	store := history.NewMemoryStore(0)
	client := newFakeClient()
	acquirer := &fakeAcquirer{}
	svc := newTestService(store, acquirer)

	result, err := svc.ExecuteBatch(context.Background(), client, "demo", "new mug", []actions.Candidate{
		{"type": "create_product", "title": "Ceramic Mug", "price": "12.50"},
	})
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if len(acquirer.prompts) != 1 || !strings.Contains(acquirer.prompts[0], "Ceramic Mug") {
		t.Fatalf("acquirer should get a title-derived prompt, got %v", acquirer.prompts)
	}
	if len(client.created) != 1 || len(client.created[0].Images) != 1 {
		t.Fatalf("created product should carry the acquired image: %+v", client.created)
	}
	if client.created[0].Price == nil || *client.created[0].Price != 12.5 {
		t.Errorf("price should be coerced and passed through: %v", client.created[0].Price)
	}

	// Bulky image payloads must not leak into history.
	entry, _ := store.Get(context.Background(), result.HistoryID)
	if entry.Actions[0].Has("images") || entry.Actions[0].Has("image_prompts") {
		t.Errorf("stored action should not embed image payloads: %+v", entry.Actions[0].Fields)
	}
}

func TestExecuteBatch_KeepsModelSuppliedImageURLs(t *testing.T) {
	t.Parallel()
	store := history.NewMemoryStore(0)
	client := newFakeClient()
	acquirer := &fakeAcquirer{}
	svc := newTestService(store, acquirer)

	_, err := svc.ExecuteBatch(context.Background(), client, "demo", "new mug", []actions.Candidate{
		{"type": "create_product", "title": "Mug", "images": []any{"https://picsum.photos/seed/mug/800/800"}},
	})
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if len(acquirer.prompts) != 0 {
		t.Errorf("acquirer must not run when the model supplied images")
	}
	if len(client.created) != 1 || client.created[0].Images[0].Src != "https://picsum.photos/seed/mug/800/800" {
		t.Errorf("model-supplied URLs should pass through: %+v", client.created)
	}
}

func TestDispatch_AdjustPriceMapsToProductUpdate(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	client.products = []shopify.Record{{ID: 7, Title: "Mug", Variants: []shopify.Variant{{ID: 70, Price: "9.99"}}}}

	action := actions.Action{Kind: actions.KindAdjustPrice, Fields: map[string]any{
		"product_id": float64(7),
		"new_price":  19.99,
	}}
	record, err := dispatch(context.Background(), client, action)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if record.Price() != "19.99" {
		t.Errorf("price = %q, want 19.99", record.Price())
	}
}

func TestDispatch_UnhandledKind(t *testing.T) {
	t.Parallel()
	client := newFakeClient()
	_, err := dispatch(context.Background(), client, actions.Action{Kind: "mystery", Fields: map[string]any{}})
	if err == nil || !strings.Contains(err.Error(), "unhandled action kind") {
		t.Fatalf("expected invariant error, got %v", err)
	}
}
