package realtime

import "studio/internal/providers/openai"

// Function names the assistant may call.
const (
	FnRecommendProducts  = "recommend_products"
	FnAddToCart          = "add_to_cart"
	FnInitiateCheckout   = "initiate_checkout"
	FnStartVisualization = "start_visualization"
	FnChangeProductColor = "change_product_color"
	FnGetKnowledgeBase   = "get_knowledge_base"
)

// Instructions is the system prompt of the shopping assistant.
const Instructions = `You are a friendly shopping assistant for an online clothing store.
Keep answers short and conversational. Use recommend_products before naming products,
and only mention products it returns. Confirm colour and quantity before add_to_cart.
Use get_knowledge_base for shipping, returns, payment, care and sizing questions.
When the shopper wants to see an item on themselves call start_visualization.
Call initiate_checkout only when the shopper asks to pay.`

func obj(props map[string]any, required ...string) map[string]any {
	out := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

var str = map[string]any{"type": "string"}

// Tools declares every dispatchable function for the session.
func Tools() []openai.Tool {
	return []openai.Tool{
		{
			Type: "function", Name: FnRecommendProducts,
			Description: "Search the catalog by keywords and optional category.",
			Parameters: obj(map[string]any{
				"query":    str,
				"category": str,
				"limit":    map[string]any{"type": "integer", "minimum": 1, "maximum": 10},
			}),
		},
		{
			Type: "function", Name: FnAddToCart,
			Description: "Add a product to the shopper's cart.",
			Parameters: obj(map[string]any{
				"product_id": str,
				"color":      str,
				"quantity":   map[string]any{"type": "integer", "minimum": 1},
			}, "product_id"),
		},
		{
			Type: "function", Name: FnInitiateCheckout,
			Description: "Open the checkout with the current cart.",
			Parameters:  obj(map[string]any{}),
		},
		{
			Type: "function", Name: FnStartVisualization,
			Description: "Show the product on the shopper's reference photo.",
			Parameters:  obj(map[string]any{"product_id": str, "color": str}, "product_id"),
		},
		{
			Type: "function", Name: FnChangeProductColor,
			Description: "Switch the colour of a product being viewed or in the cart.",
			Parameters:  obj(map[string]any{"product_id": str, "color": str}, "product_id", "color"),
		},
		{
			Type: "function", Name: FnGetKnowledgeBase,
			Description: "Look up store policies and product care answers.",
			Parameters:  obj(map[string]any{"topic": str}),
		},
	}
}
