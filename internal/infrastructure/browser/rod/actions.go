package rod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"browser-agent/internal/domain/entity"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

const maxUIElements = 200

type navigateArgs struct {
	URL string `json:"url"`
}

type clickArgs struct {
	Selector string `json:"selector"`
}

type fillArgs struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

type scrollArgs struct {
	Direction string `json:"direction"`
}

func (s *Session) dispatch(ctx context.Context, action entity.Action) (string, error) {
	switch action.Name {
	case "navigate":
		var args navigateArgs
		if err := parseArgs(action, &args); err != nil {
			return "", err
		}
		return s.navigate(ctx, args.URL)
	case "click":
		var args clickArgs
		if err := parseArgs(action, &args); err != nil {
			return "", err
		}
		return s.click(ctx, args.Selector)
	case "fill":
		var args fillArgs
		if err := parseArgs(action, &args); err != nil {
			return "", err
		}
		return s.fill(ctx, args.Selector, args.Text)
	case "press_enter":
		return s.pressEnter(ctx)
	case "scroll":
		var args scrollArgs
		if err := parseArgs(action, &args); err != nil {
			return "", err
		}
		return s.scroll(ctx, args.Direction)
	case "extract_text":
		return s.extractText(ctx)
	case "ui_summary":
		return s.uiSummary(ctx)
	case "screenshot":
		return s.screenshot(ctx)
	default:
		return "", fmt.Errorf("unknown action %q", action.Name)
	}
}

func parseArgs(action entity.Action, into interface{}) error {
	args := action.Arguments
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if err := json.Unmarshal([]byte(args), into); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", action.Name, err)
	}
	return nil
}

func (s *Session) navigate(ctx context.Context, url string) (string, error) {
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page did not finish loading: %w", err)
	}
	page.WaitIdle(5 * time.Second)

	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page info: %w", err)
	}
	return fmt.Sprintf("Navigated to %s (%s)", info.URL, info.Title), nil
}

func (s *Session) click(ctx context.Context, selector string) (string, error) {
	el, err := s.element(ctx, selector)
	if err != nil {
		return "", err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("click failed: %w", err)
	}
	s.page.Context(ctx).WaitIdle(2 * time.Second)
	return fmt.Sprintf("Clicked %s", selector), nil
}

func (s *Session) fill(ctx context.Context, selector, text string) (string, error) {
	el, err := s.element(ctx, selector)
	if err != nil {
		return "", err
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(text); err != nil {
		return "", fmt.Errorf("input failed: %w", err)
	}
	return fmt.Sprintf("Filled %s", selector), nil
}

func (s *Session) pressEnter(ctx context.Context) (string, error) {
	el, err := s.element(ctx, "body")
	if err != nil {
		return "", err
	}
	if err := el.Input("\r"); err != nil {
		return "", fmt.Errorf("failed to press Enter: %w", err)
	}
	s.page.Context(ctx).WaitIdle(1 * time.Second)
	return "Pressed Enter", nil
}

func (s *Session) scroll(ctx context.Context, direction string) (string, error) {
	page := s.page.Context(ctx)
	var script string
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "down":
		script = `() => window.scrollBy(0, window.innerHeight * 2)`
	case "up":
		script = `() => window.scrollBy(0, -window.innerHeight * 2)`
	case "top":
		script = `() => window.scrollTo(0, 0)`
	case "bottom":
		script = `() => window.scrollTo(0, document.body.scrollHeight)`
	default:
		return "", fmt.Errorf("unknown scroll direction %q", direction)
	}
	if _, err := page.Eval(script); err != nil {
		return "", fmt.Errorf("scroll failed: %w", err)
	}
	page.WaitIdle(800 * time.Millisecond)
	return fmt.Sprintf("Scrolled %s", direction), nil
}

func (s *Session) extractText(ctx context.Context) (string, error) {
	el, err := s.element(ctx, "body")
	if err != nil {
		return "", err
	}
	rawHTML, err := el.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return ExtractPageText(rawHTML, defaultTextLimit), nil
}

func (s *Session) uiSummary(ctx context.Context) (string, error) {
	elements := s.collectUIElements(ctx)
	if len(elements) == 0 {
		return "No interactive elements found", nil
	}

	var sb strings.Builder
	for _, el := range elements {
		fmt.Fprintf(&sb, "[%s] %s", el.Type, el.Selector)
		if el.Text != "" {
			fmt.Fprintf(&sb, " text=%q", el.Text)
		}
		if el.Label != "" {
			fmt.Fprintf(&sb, " label=%q", el.Label)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (s *Session) collectUIElements(ctx context.Context) []entity.UIElement {
	page := s.page.Context(ctx)
	var result []entity.UIElement
	seen := make(map[string]bool)

	add := func(el *rod.Element, typ string) {
		if el == nil || len(result) >= maxUIElements {
			return
		}
		visible, err := el.Visible()
		if err != nil || !visible {
			return
		}
		xel, err := el.ElementX("@")
		if err != nil {
			return
		}
		selector := xel.String()
		if seen[selector] {
			return
		}
		seen[selector] = true

		text, _ := el.Text()
		aria, _ := el.Attribute("aria-label")
		result = append(result, entity.UIElement{
			ID:       fmt.Sprintf("ui-%04d", len(result)),
			Type:     typ,
			Text:     strings.TrimSpace(text),
			Label:    derefString(aria),
			Selector: selector,
		})
	}

	groups := []struct {
		query string
		typ   string
	}{
		{"button, [role='button'], [aria-label]:not([aria-label=''])", "button"},
		{"input, textarea, select", "input"},
		{"a", "link"},
	}
	for _, g := range groups {
		elements, err := page.Elements(g.query)
		if err != nil {
			continue
		}
		for _, el := range elements {
			add(el, g.typ)
		}
	}
	return result
}

func (s *Session) screenshot(ctx context.Context) (string, error) {
	imgBytes, err := s.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return "", fmt.Errorf("image decode failed: %w", err)
	}
	if img.Bounds().Dx() > 1024 {
		img = imaging.Resize(img, 1024, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return "", fmt.Errorf("jpeg encode failed: %w", err)
	}

	name := fmt.Sprintf("screenshot_%s.jpg", time.Now().Format("15-04-05.000"))
	if s.recorder != nil {
		s.recorder.RecordArtifact(s.id, name, buf.Bytes())
	}
	return fmt.Sprintf("Screenshot captured (%dx%d), stored as %s",
		img.Bounds().Dx(), img.Bounds().Dy(), name), nil
}

// element resolves a CSS or XPath selector with the session's lookup
// timeout.
func (s *Session) element(ctx context.Context, selector string) (*rod.Element, error) {
	page := s.page.Context(ctx).Timeout(s.timeout)

	var el *rod.Element
	var err error
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		el, err = page.ElementX(selector)
	} else {
		el, err = page.Element(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return el, nil
}

func derefString(s *string) string {
	if s != nil {
		return *s
	}
	return ""
}
