package generator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/storepilotai/storepilot/internal/actions"
	"github.com/storepilotai/storepilot/internal/shopify"
)

// StoreContext is the current store state handed to the model so it can
// reference real record ids.
type StoreContext struct {
	Products    []shopify.Record
	Pages       []shopify.Record
	Collections []shopify.Record
	Themes      []shopify.Record
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

func systemPrompt() string {
	return `You are a Shopify store AI assistant. You help store owners manage their store by generating structured actions.

CRITICAL RULES:
1. You MUST respond with ONLY valid JSON, no markdown fences, no explanations, no commentary.
2. Your response MUST be a JSON object with an "actions" array.
3. Each action MUST have a "type" field and the required fields for that type.
4. If you need to reference existing products/pages, use the IDs provided in the store context.
5. Be creative and helpful, but NEVER destructive.

IMAGE RULES (VERY IMPORTANT):
- When creating products, ALWAYS include the "images" field with real, working image URLs.
- Use picsum.photos for product images. Format: "https://picsum.photos/seed/{unique-keyword}/800/800"
  - Replace {unique-keyword} with a relevant word (e.g., "blue-tshirt", "leather-bag", "sneakers-white").
  - Each product MUST have a DIFFERENT seed keyword so they get unique images.
- NEVER use made-up URLs, fake Unsplash links, or placeholder domains. Only use picsum.photos.
- Include 1-3 images per product.

` + actions.SchemaPrompt() + `

RESPONSE FORMAT (strictly follow this):
{
  "actions": [
    {
      "type": "action_type",
      "field1": "value1",
      "field2": "value2"
    }
  ],
  "summary": "Brief human-readable summary of what these actions will do"
}

If you cannot fulfill the request with the allowed actions, return:
{
  "actions": [],
  "summary": "Explanation of why you cannot do this"
}`
}

func renderStoreContext(store StoreContext) string {
	var b strings.Builder
	b.WriteString("=== CURRENT STORE DATA ===\n\n")

	if len(store.Products) > 0 {
		b.WriteString("PRODUCTS:\n")
		for _, p := range store.Products {
			price := p.Price()
			if price == "" {
				price = "N/A"
			}
			fmt.Fprintf(&b, "- ID: %d | Title: %q | Price: $%s | Status: %s\n", p.ID, p.Title, price, p.Status)
			if p.BodyHTML != "" {
				fmt.Fprintf(&b, "  Description: %s\n", stripHTML(p.BodyHTML, 200))
			}
		}
		b.WriteString("\n")
	} else {
		b.WriteString("PRODUCTS: No products in store yet.\n\n")
	}

	if len(store.Pages) > 0 {
		b.WriteString("PAGES:\n")
		for _, p := range store.Pages {
			fmt.Fprintf(&b, "- ID: %d | Title: %q\n", p.ID, p.Title)
		}
		b.WriteString("\n")
	}

	if len(store.Collections) > 0 {
		b.WriteString("COLLECTIONS:\n")
		for _, c := range store.Collections {
			fmt.Fprintf(&b, "- ID: %d | Title: %q\n", c.ID, c.Title)
		}
		b.WriteString("\n")
	}

	if len(store.Themes) > 0 {
		b.WriteString("THEMES:\n")
		for _, theme := range store.Themes {
			fmt.Fprintf(&b, "- ID: %d | Name: %q | Role: %s\n", theme.ID, theme.Name, theme.Role)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func stripHTML(html string, limit int) string {
	text := htmlTag.ReplaceAllString(html, "")
	if len(text) > limit {
		text = text[:limit]
	}
	return text
}
