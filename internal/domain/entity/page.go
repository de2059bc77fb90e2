package entity

// UIElement is one interactive element found on the current page, reported
// back to the model as part of a ui_summary observation.
type UIElement struct {
	ID       string
	Type     string
	Text     string
	Label    string
	Selector string
}
