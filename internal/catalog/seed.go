package catalog

import "github.com/noah-isme/pos-terminal/internal/money"

// SeedItems returns the demo catalog the terminal ships with.
func SeedItems() []Item {
	return []Item{
		{ID: "itm-1001", SKU: "GRD-001", Name: "Burr Coffee Grinder", Category: "equipment", TaxCategory: "standard", Price: money.MustParse("49.99"), AvailableStock: 24},
		{ID: "itm-1002", SKU: "KTL-001", Name: "Gooseneck Kettle", Category: "equipment", TaxCategory: "standard", Price: money.MustParse("24.99"), AvailableStock: 18},
		{ID: "itm-1003", SKU: "ESP-001", Name: "Double Espresso", Category: "beverage", TaxCategory: "prepared-food", Price: money.MustParse("3.50"), AvailableStock: 500},
		{ID: "itm-1004", SKU: "LAT-001", Name: "Latte", Category: "beverage", TaxCategory: "prepared-food", Price: money.MustParse("4.50"), AvailableStock: 500},
		{ID: "itm-1005", SKU: "CRO-001", Name: "Butter Croissant", Category: "bakery", TaxCategory: "prepared-food", Price: money.MustParse("3.25"), AvailableStock: 60},
		{ID: "itm-1006", SKU: "BEAN-250", Name: "House Blend Beans 250g", Category: "retail", TaxCategory: "grocery", Price: money.MustParse("12.99"), AvailableStock: 80},
		{ID: "itm-1007", SKU: "MUG-001", Name: "Ceramic Mug", Category: "retail", TaxCategory: "standard", Price: money.MustParse("14.00"), AvailableStock: 35},
		{ID: "itm-1008", SKU: "SAND-01", Name: "Chicken Pesto Sandwich", Category: "kitchen", TaxCategory: "prepared-food", Price: money.MustParse("8.75"), AvailableStock: 40},
	}
}

// SeedModifiers holds the demo modifier surcharges by id.
var SeedModifiers = map[string]struct {
	Name  string
	Price money.Money
	Group string
}{
	"mod-oat":   {Name: "Oat Milk", Price: money.MustParse("0.50"), Group: "milk"},
	"mod-soy":   {Name: "Soy Milk", Price: money.MustParse("0.50"), Group: "milk"},
	"mod-shot":  {Name: "Extra Shot", Price: money.MustParse("1.00"), Group: "coffee"},
	"mod-syrup": {Name: "Vanilla Syrup", Price: money.MustParse("0.75"), Group: "flavor"},
}
