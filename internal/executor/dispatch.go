package executor

import (
	"context"
	"fmt"

	"github.com/storepilotai/storepilot/internal/actions"
	"github.com/storepilotai/storepilot/internal/shopify"
)

// dispatch maps one validated action to its single store mutation. The
// mapping is exhaustive over the allowed kinds; anything else slipping
// through validation is a programming error, not user input.
func dispatch(ctx context.Context, client shopify.StoreClient, action actions.Action) (shopify.Record, error) {
	switch action.Kind {
	case actions.KindCreateProduct:
		return client.CreateProduct(ctx, shopify.ProductInput{
			Title:       action.Str("title"),
			Description: action.Str("description"),
			Price:       numField(action, "price"),
			Vendor:      action.Str("vendor"),
			ProductType: action.Str("product_type"),
			Tags:        action.Str("tags"),
			Images:      imagesFromAction(action),
		})

	case actions.KindUpdateProduct:
		return client.UpdateProduct(ctx, action.ID("product_id"), shopify.ProductInput{
			Title:       action.Str("title"),
			Description: action.Str("description"),
			Price:       numField(action, "price"),
			Vendor:      action.Str("vendor"),
			ProductType: action.Str("product_type"),
			Tags:        action.Str("tags"),
		})

	case actions.KindCreatePage:
		return client.CreatePage(ctx, shopify.PageInput{
			Title:   action.Str("title"),
			Content: action.Str("content"),
		})

	case actions.KindUpdatePage:
		return client.UpdatePage(ctx, action.ID("page_id"), shopify.PageInput{
			Title:   action.Str("title"),
			Content: action.Str("content"),
		})

	case actions.KindCreateCollection:
		return client.CreateCollection(ctx, shopify.CollectionInput{
			Title:       action.Str("title"),
			Description: action.Str("description"),
			SortOrder:   action.Str("sort_order"),
		})

	case actions.KindAdjustPrice:
		return client.UpdateProduct(ctx, action.ID("product_id"), shopify.ProductInput{
			Price: numField(action, "new_price"),
		})

	case actions.KindGenerateSEO:
		return client.UpdateProductSEO(ctx, action.ID("product_id"), shopify.SEOInput{
			MetaTitle:       action.Str("meta_title"),
			MetaDescription: action.Str("meta_description"),
		})

	case actions.KindSetActiveTheme:
		return client.SetActiveTheme(ctx, action.ID("theme_id"))

	default:
		return shopify.Record{}, fmt.Errorf("unhandled action kind %q", action.Kind)
	}
}

func numField(action actions.Action, field string) *float64 {
	value, ok := action.Num(field)
	if !ok {
		return nil
	}
	return &value
}

// imagesFromAction normalizes the images field, which may hold plain URL
// strings (from the model), {src}/{attachment} objects (from JSON), or
// shopify.Image values (from enrichment).
func imagesFromAction(action actions.Action) []shopify.Image {
	raw, ok := action.Fields["images"].([]any)
	if !ok {
		return nil
	}
	result := make([]shopify.Image, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			result = append(result, shopify.Image{Src: v})
		case shopify.Image:
			result = append(result, v)
		case map[string]any:
			img := shopify.Image{}
			if src, ok := v["src"].(string); ok {
				img.Src = src
			}
			if attachment, ok := v["attachment"].(string); ok {
				img.Attachment = attachment
			}
			if img.Src != "" || img.Attachment != "" {
				result = append(result, img)
			}
		}
	}
	return result
}
