package dataset

// Schema is the fixed column layout of a raw dataset
type Schema struct {
	Name    Name
	File    string
	Columns []Column
}

// Raw column layouts as delivered by the source files. Date-like columns are
// strings here; the Cleaning Normalizer parses them.
var schemas = map[Name]Schema{
	Customers: {
		Name: Customers,
		File: "olist_customers_dataset.csv",
		Columns: []Column{
			{Name: "customer_id", Type: TypeString},
			{Name: "customer_unique_id", Type: TypeString},
			{Name: "customer_zip_code_prefix", Type: TypeInteger},
			{Name: "customer_city", Type: TypeString},
			{Name: "customer_state", Type: TypeString},
		},
	},
	Geolocation: {
		Name: Geolocation,
		File: "olist_geolocation_dataset.csv",
		Columns: []Column{
			{Name: "geolocation_zip_code_prefix", Type: TypeInteger},
			{Name: "geolocation_lat", Type: TypeFloat},
			{Name: "geolocation_lng", Type: TypeFloat},
			{Name: "geolocation_city", Type: TypeString},
			{Name: "geolocation_state", Type: TypeString},
		},
	},
	OrderItems: {
		Name: OrderItems,
		File: "olist_order_items_dataset.csv",
		Columns: []Column{
			{Name: "order_id", Type: TypeString},
			{Name: "order_item_id", Type: TypeInteger},
			{Name: "product_id", Type: TypeString},
			{Name: "seller_id", Type: TypeString},
			{Name: "shipping_limit_date", Type: TypeString},
			{Name: "price", Type: TypeFloat},
			{Name: "freight_value", Type: TypeFloat},
		},
	},
	OrderPayments: {
		Name: OrderPayments,
		File: "olist_order_payments_dataset.csv",
		Columns: []Column{
			{Name: "order_id", Type: TypeString},
			{Name: "payment_sequential", Type: TypeInteger},
			{Name: "payment_type", Type: TypeString},
			{Name: "payment_installments", Type: TypeInteger},
			{Name: "payment_value", Type: TypeFloat},
		},
	},
	OrderReviews: {
		Name: OrderReviews,
		File: "olist_order_reviews_dataset.csv",
		Columns: []Column{
			{Name: "review_id", Type: TypeString},
			{Name: "order_id", Type: TypeString},
			{Name: "review_score", Type: TypeInteger},
			{Name: "review_comment_title", Type: TypeString},
			{Name: "review_comment_message", Type: TypeString},
			{Name: "review_creation_date", Type: TypeString},
			{Name: "review_answer_timestamp", Type: TypeString},
		},
	},
	Orders: {
		Name: Orders,
		File: "olist_orders_dataset.csv",
		Columns: []Column{
			{Name: "order_id", Type: TypeString},
			{Name: "customer_id", Type: TypeString},
			{Name: "order_status", Type: TypeString},
			{Name: "order_purchase_timestamp", Type: TypeString},
			{Name: "order_approved_at", Type: TypeString},
			{Name: "order_delivered_carrier_date", Type: TypeString},
			{Name: "order_delivered_customer_date", Type: TypeString},
			{Name: "order_estimated_delivery_date", Type: TypeString},
		},
	},
	Products: {
		Name: Products,
		File: "olist_products_dataset.csv",
		Columns: []Column{
			{Name: "product_id", Type: TypeString},
			{Name: "product_category_name", Type: TypeString},
			{Name: "product_name_lenght", Type: TypeFloat},
			{Name: "product_description_lenght", Type: TypeFloat},
			{Name: "product_photos_qty", Type: TypeFloat},
			{Name: "product_weight_g", Type: TypeFloat},
			{Name: "product_length_cm", Type: TypeFloat},
			{Name: "product_height_cm", Type: TypeFloat},
			{Name: "product_width_cm", Type: TypeFloat},
		},
	},
	Sellers: {
		Name: Sellers,
		File: "olist_sellers_dataset.csv",
		Columns: []Column{
			{Name: "seller_id", Type: TypeString},
			{Name: "seller_zip_code_prefix", Type: TypeInteger},
			{Name: "seller_city", Type: TypeString},
			{Name: "seller_state", Type: TypeString},
		},
	},
	CategoryTranslation: {
		Name: CategoryTranslation,
		File: "product_category_name_translation.csv",
		Columns: []Column{
			{Name: "product_category_name", Type: TypeString},
			{Name: "product_category_name_english", Type: TypeString},
		},
	},
}

// SchemaFor returns the fixed raw schema of a dataset
func SchemaFor(name Name) (Schema, bool) {
	s, ok := schemas[name]
	return s, ok
}

// DefaultFiles returns the default file name of every dataset
func DefaultFiles() map[Name]string {
	files := make(map[Name]string, len(schemas))
	for name, s := range schemas {
		files[name] = s.File
	}
	return files
}

// ColumnType returns the declared type of a column
func (s Schema) ColumnType(name string) (ColumnType, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	return "", false
}

// NewTable creates an empty raw table carrying the dataset's schema
func (s Schema) NewTable(source string) *Table {
	cols := make([]Column, len(s.Columns))
	copy(cols, s.Columns)
	return &Table{
		Name:    s.Name,
		Source:  source,
		Columns: cols,
	}
}
