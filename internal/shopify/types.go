package shopify

// Record is the superset of the Shopify Admin API resources this service
// touches (products, pages, custom collections, themes, shop). Only the
// fields the pipeline reads or replays are mapped.
type Record struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title,omitempty"`
	BodyHTML    string    `json:"body_html,omitempty"`
	Handle      string    `json:"handle,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	ProductType string    `json:"product_type,omitempty"`
	Tags        string    `json:"tags,omitempty"`
	Status      string    `json:"status,omitempty"`
	Role        string    `json:"role,omitempty"`
	Name        string    `json:"name,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	Email       string    `json:"email,omitempty"`
	SortOrder   string    `json:"sort_order,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
	Images      []Image   `json:"images,omitempty"`
}

// Variant is a product variant; price changes go through the first variant.
type Variant struct {
	ID                  int64  `json:"id,omitempty"`
	Price               string `json:"price,omitempty"`
	InventoryManagement string `json:"inventory_management,omitempty"`
}

// Image is a product image, either referenced by URL or embedded as base64.
type Image struct {
	Src        string `json:"src,omitempty"`
	Attachment string `json:"attachment,omitempty"`
}

// Price returns the first variant's price, or "" when the record has none.
func (r Record) Price() string {
	if len(r.Variants) == 0 {
		return ""
	}
	return r.Variants[0].Price
}

// ProductInput carries the writable product fields. Nil Price means "leave
// the price alone".
type ProductInput struct {
	Title       string
	Description string
	Price       *float64
	Vendor      string
	ProductType string
	Tags        string
	Images      []Image
}

// PageInput carries the writable page fields.
type PageInput struct {
	Title   string
	Content string
}

// CollectionInput carries the writable custom collection fields.
type CollectionInput struct {
	Title       string
	Description string
	SortOrder   string
}

// SEOInput carries the global SEO metafields of a product.
type SEOInput struct {
	MetaTitle       string
	MetaDescription string
}
