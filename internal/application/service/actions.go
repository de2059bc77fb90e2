package service

import "browser-agent/internal/domain/entity"

// ActionCatalog lists every browser action the engine can execute. The model
// adapters expose it as tool definitions and the session implementation
// dispatches on the same names, so the two sides never drift apart.
func ActionCatalog() []entity.ActionDefinition {
	return []entity.ActionDefinition{
		{
			Name:        "navigate",
			Description: "Navigates the browser to a URL",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"url": map[string]interface{}{
						"type":        "string",
						"description": "URL to navigate to",
					},
				},
				"required": []string{"url"},
			},
		},
		{
			Name:        "click",
			Description: "Clicks an element by CSS or XPath selector",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"selector": map[string]interface{}{
						"type":        "string",
						"description": "CSS or XPath selector of the element",
					},
				},
				"required": []string{"selector"},
			},
		},
		{
			Name:        "fill",
			Description: "Clears an input field and types text into it",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"selector": map[string]interface{}{
						"type":        "string",
						"description": "CSS selector of the input field",
					},
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Text to type",
					},
				},
				"required": []string{"selector", "text"},
			},
		},
		{
			Name:        "press_enter",
			Description: "Presses Enter on the focused element",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "scroll",
			Description: "Scrolls the page",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"direction": map[string]interface{}{
						"type":        "string",
						"description": "One of: up, down, top, bottom",
					},
				},
				"required": []string{"direction"},
			},
		},
		{
			Name:        "extract_text",
			Description: "Returns the cleaned text content of the current page",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "ui_summary",
			Description: "Lists visible interactive elements (buttons, inputs, links) with selectors",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "screenshot",
			Description: "Captures a screenshot of the current page and stores it as an artifact",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}
