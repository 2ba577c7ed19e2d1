package catalog

import "studio/internal/domain"

var seedProducts = []domain.Product{
	{
		ID: "tee-classic", Name: "Classic Cotton Tee", Category: "Tops",
		Description: "Soft combed cotton t-shirt with a relaxed fit for everyday wear.",
		Tags:        []string{"t-shirt", "cotton", "casual", "basic"},
		Colors:      []string{"White", "Black", "Navy"}, Price: 129000,
	},
	{
		ID: "batik-shirt", Name: "Batik Parang Shirt", Category: "Tops",
		Description: "Hand-stamped batik shirt in breathable cotton, suited to formal events.",
		Tags:        []string{"batik", "formal", "shirt", "traditional"},
		Colors:      []string{"Brown", "Indigo"}, Price: 349000,
	},
	{
		ID: "linen-pants", Name: "Linen Wide Pants", Category: "Bottoms",
		Description: "Lightweight linen trousers with an elastic waist for hot days.",
		Tags:        []string{"pants", "linen", "summer", "relaxed"},
		Colors:      []string{"Beige", "Olive", "Black"}, Price: 259000,
	},
	{
		ID: "denim-jacket", Name: "Denim Trucker Jacket", Category: "Outerwear",
		Description: "Rigid denim jacket that softens with wear, with chest pockets.",
		Tags:        []string{"jacket", "denim", "layering"},
		Colors:      []string{"Light Blue", "Dark Blue"}, Price: 499000,
	},
	{
		ID: "rain-parka", Name: "Packable Rain Parka", Category: "Outerwear",
		Description: "Waterproof parka that folds into its own pocket for travel.",
		Tags:        []string{"jacket", "rain", "waterproof", "travel"},
		Colors:      []string{"Yellow", "Black"}, Price: 459000,
	},
	{
		ID: "canvas-tote", Name: "Canvas Tote Bag", Category: "Accessories",
		Description: "Heavy canvas tote with an inner zip pocket, fits a laptop.",
		Tags:        []string{"bag", "tote", "canvas", "laptop"},
		Colors:      []string{"Natural", "Black"}, Price: 149000,
	},
	{
		ID: "songket-scarf", Name: "Songket Silk Scarf", Category: "Accessories",
		Description: "Woven silk scarf with gold songket thread, made in Palembang.",
		Tags:        []string{"scarf", "silk", "songket", "gift"},
		Colors:      []string{"Red", "Gold", "Emerald"}, Price: 275000,
	},
	{
		ID: "leather-sneaker", Name: "Leather Court Sneaker", Category: "Footwear",
		Description: "Minimal leather sneaker with a cushioned rubber sole.",
		Tags:        []string{"shoes", "sneaker", "leather", "casual"},
		Colors:      []string{"White", "Black"}, Price: 599000,
	},
}

var seedKnowledge = []domain.KnowledgeEntry{
	{
		Topic:    "shipping",
		Keywords: []string{"delivery", "courier", "ongkir", "arrive"},
		Answer:   "Orders ship within 1 business day. Delivery in Java takes 2-3 days, other islands 3-7 days. Shipping is free above Rp300.000.",
	},
	{
		Topic:    "returns",
		Keywords: []string{"refund", "exchange", "return", "size"},
		Answer:   "Unworn items can be returned or exchanged within 14 days. Size exchanges are free; refunds go back to the original payment method.",
	},
	{
		Topic:    "payment",
		Keywords: []string{"pay", "qris", "transfer", "card", "cod"},
		Answer:   "We accept QRIS, bank transfer, credit cards and cash on delivery in selected cities.",
	},
	{
		Topic:    "care",
		Keywords: []string{"wash", "clean", "batik", "silk", "linen"},
		Answer:   "Hand wash batik and silk in cold water with mild soap and dry in the shade. Linen and cotton can be machine washed on a gentle cycle.",
	},
	{
		Topic:    "sizing",
		Keywords: []string{"size", "fit", "measure", "chart"},
		Answer:   "Our tops run true to size. If you are between sizes, pick the larger one for a relaxed fit.",
	},
}
