// Package actions defines the closed set of store mutations the AI may
// propose and validates untrusted candidate actions against it.
package actions

import (
	"sort"
	"strings"
)

// Kind identifies one allowed store mutation.
type Kind string

// Allowed action kinds. Anything outside this set is rejected by the validator.
const (
	KindCreateProduct    Kind = "create_product"
	KindUpdateProduct    Kind = "update_product"
	KindCreatePage       Kind = "create_page"
	KindUpdatePage       Kind = "update_page"
	KindCreateCollection Kind = "create_collection"
	KindAdjustPrice      Kind = "adjust_price"
	KindGenerateSEO      Kind = "generate_seo"
	KindSetActiveTheme   Kind = "set_active_theme"
)

// FieldType is the declared primitive type of an action field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldArray  FieldType = "array"
)

// Schema declares the shape of one action kind.
type Schema struct {
	Description string
	Required    []string
	Optional    []string
	FieldTypes  map[string]FieldType
}

// MaxBatchSize is the maximum number of candidate actions accepted per request.
const MaxBatchSize = 50

const maxTitleLength = 255

var allowed = map[Kind]Schema{
	KindCreateProduct: {
		Description: "Create a new product in the store",
		Required:    []string{"title"},
		Optional:    []string{"description", "price", "vendor", "product_type", "tags", "images", "image_prompts"},
		FieldTypes: map[string]FieldType{
			"title":         FieldString,
			"description":   FieldString,
			"price":         FieldNumber,
			"vendor":        FieldString,
			"product_type":  FieldString,
			"tags":          FieldString,
			"images":        FieldArray,
			"image_prompts": FieldArray,
		},
	},
	KindUpdateProduct: {
		Description: "Update an existing product",
		Required:    []string{"product_id"},
		Optional:    []string{"title", "description", "price", "vendor", "product_type", "tags"},
		FieldTypes: map[string]FieldType{
			"product_id":   FieldNumber,
			"title":        FieldString,
			"description":  FieldString,
			"price":        FieldNumber,
			"vendor":       FieldString,
			"product_type": FieldString,
			"tags":         FieldString,
		},
	},
	KindCreatePage: {
		Description: "Create a new page (About Us, Contact, etc.)",
		Required:    []string{"title", "content"},
		FieldTypes: map[string]FieldType{
			"title":   FieldString,
			"content": FieldString,
		},
	},
	KindUpdatePage: {
		Description: "Update an existing page",
		Required:    []string{"page_id"},
		Optional:    []string{"title", "content"},
		FieldTypes: map[string]FieldType{
			"page_id": FieldNumber,
			"title":   FieldString,
			"content": FieldString,
		},
	},
	KindCreateCollection: {
		Description: "Create a new product collection",
		Required:    []string{"title"},
		Optional:    []string{"description", "sort_order"},
		FieldTypes: map[string]FieldType{
			"title":       FieldString,
			"description": FieldString,
			"sort_order":  FieldString,
		},
	},
	KindAdjustPrice: {
		Description: "Change the price of a product",
		Required:    []string{"product_id", "new_price"},
		FieldTypes: map[string]FieldType{
			"product_id": FieldNumber,
			"new_price":  FieldNumber,
		},
	},
	KindGenerateSEO: {
		Description: "Generate SEO metadata for a product",
		Required:    []string{"product_id", "meta_title", "meta_description"},
		FieldTypes: map[string]FieldType{
			"product_id":       FieldNumber,
			"meta_title":       FieldString,
			"meta_description": FieldString,
		},
	},
	KindSetActiveTheme: {
		Description: "Set the active/published theme for the store (switch theme)",
		Required:    []string{"theme_id"},
		FieldTypes: map[string]FieldType{
			"theme_id": FieldNumber,
		},
	},
}

// blocked kinds are never executed, regardless of payload. The generator is
// told about them so it does not propose destructive operations.
var blocked = map[Kind]struct{}{
	"delete_product":        {},
	"delete_all_products":   {},
	"delete_page":           {},
	"delete_all_pages":      {},
	"delete_collection":     {},
	"delete_store":          {},
	"modify_admin_settings": {},
	"delete_customer":       {},
	"modify_checkout":       {},
}

// Lookup returns the schema for kind, or false when kind is not allowed.
func Lookup(kind Kind) (Schema, bool) {
	schema, ok := allowed[kind]
	return schema, ok
}

// IsBlocked reports whether kind is on the explicit deny list.
func IsBlocked(kind Kind) bool {
	_, ok := blocked[kind]
	return ok
}

// Kinds returns all allowed kinds in stable (sorted) order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(allowed))
	for kind := range allowed {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// BlockedKinds returns the deny list in stable (sorted) order.
func BlockedKinds() []Kind {
	kinds := make([]Kind, 0, len(blocked))
	for kind := range blocked {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// SchemaPrompt renders the allow and deny lists as text for the generator's
// system prompt.
func SchemaPrompt() string {
	var b strings.Builder
	b.WriteString("You may ONLY return actions from this list:\n\n")
	for _, kind := range Kinds() {
		schema := allowed[kind]
		b.WriteString("- **" + string(kind) + "**: " + schema.Description + "\n")
		b.WriteString("  Required fields: " + strings.Join(schema.Required, ", ") + "\n")
		if len(schema.Optional) > 0 {
			b.WriteString("  Optional fields: " + strings.Join(schema.Optional, ", ") + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nYou are NEVER allowed to:\n")
	for _, kind := range BlockedKinds() {
		b.WriteString("- " + string(kind) + "\n")
	}
	return b.String()
}
