// Package cart implements the storefront basket: merge-by-key line items,
// quantity arithmetic and whole-array persistence.
package cart

import (
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Item one product (plus optional variant) and its quantity
type Item struct {
	ProductID int64   `json:"productId,string"`
	Variant   string  `json:"variant,omitempty"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
}

// Key identifies a cart line: product id plus variant
func (it Item) Key() string {
	return LineKey(it.ProductID, it.Variant)
}

func LineKey(productID int64, variant string) string {
	return strconv.FormatInt(productID, 10) + "::" + variant
}

// MaxQuantity upper bound of a single line's quantity
const MaxQuantity = 999

// Cart ordered list of lines; the zero value is an empty cart
type Cart struct {
	Items []Item `json:"items"`
}

func New() *Cart {
	return &Cart{Items: []Item{}}
}

func (c *Cart) find(key string) int {
	for i := range c.Items {
		if c.Items[i].Key() == key {
			return i
		}
	}
	return -1
}

// Add merges the item into an existing line with the same key or appends it
func (c *Cart) Add(item Item) {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if i := c.find(item.Key()); i >= 0 {
		c.Items[i].Quantity = clampQuantity(c.Items[i].Quantity + item.Quantity)
		return
	}
	item.Quantity = clampQuantity(item.Quantity)
	c.Items = append(c.Items, item)
}

func clampQuantity(qty int) int {
	if qty > MaxQuantity {
		return MaxQuantity
	}
	return qty
}

// Remove drops the line, reports whether it existed
func (c *Cart) Remove(key string) bool {
	i := c.find(key)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// SetQuantity quantity <= 0 removes the line
func (c *Cart) SetQuantity(key string, qty int) bool {
	i := c.find(key)
	if i < 0 {
		return false
	}
	if qty <= 0 {
		return c.Remove(key)
	}
	c.Items[i].Quantity = clampQuantity(qty)
	return true
}

func (c *Cart) Clear() {
	c.Items = []Item{}
}

func (c *Cart) TotalPrice() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Encode serializes the line array
func (c *Cart) Encode() ([]byte, error) {
	items := c.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(items)
}

// Decode restores a cart from its serialized line array. Anything that is not
// a JSON array of lines yields an empty cart.
func Decode(data []byte) *Cart {
	c := New()
	if len(data) == 0 {
		return c
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return c
	}
	for _, it := range items {
		if it.Quantity > 0 {
			c.Items = append(c.Items, it)
		}
	}
	return c
}
