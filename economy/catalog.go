/*
catalog.go - Shop and product configuration

PURPOSE:
  The engine does not decide what a purchase costs or grants; that is
  catalog configuration, injected as data. Products map premium orders to
  currency grants (with a real-money price carried for the audit trail);
  shop items map item ids to currency costs and bind policies.
*/
package economy

import "github.com/shopspring/decimal"

// Product is a premium-currency package purchasable for real money.
type Product struct {
	ID       string
	Coins    int64           // Virtual currency credited on verification
	PriceUSD decimal.Decimal // Real-money price, logged with the record
}

// ShopItem is an in-game item purchasable with virtual currency.
type ShopItem struct {
	ID   string
	Cost int64 // Price per unit, in virtual currency
	Bind BindPolicy
}

// Catalog is an immutable lookup of products and shop items.
type Catalog struct {
	products map[string]Product
	items    map[string]ShopItem
}

func NewCatalog(products []Product, items []ShopItem) *Catalog {
	c := &Catalog{
		products: make(map[string]Product, len(products)),
		items:    make(map[string]ShopItem, len(items)),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

// Product looks up a premium product by id.
func (c *Catalog) Product(id string) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// Item looks up a shop item by id.
func (c *Catalog) Item(id string) (ShopItem, bool) {
	it, ok := c.items[id]
	return it, ok
}

// DefaultCatalog returns a small development catalog. Production servers
// load theirs from shop configuration.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		[]Product{
			{ID: "coins_100", Coins: 100, PriceUSD: decimal.RequireFromString("0.99")},
			{ID: "coins_550", Coins: 550, PriceUSD: decimal.RequireFromString("4.99")},
			{ID: "coins_1200", Coins: 1200, PriceUSD: decimal.RequireFromString("9.99")},
		},
		[]ShopItem{
			{ID: "health_potion", Cost: 10, Bind: BindNone},
			{ID: "mount_whistle", Cost: 250, Bind: BindOnPickup},
			{ID: "iron_blade", Cost: 80, Bind: BindOnEquip},
		},
	)
}
