package selector

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"webreplay/backend/internal/models"
)

const (
	// maxPathDepth bounds the ancestor walk of the structural CSS strategy.
	maxPathDepth = 5
	// maxTextLength caps the auxiliary text matcher.
	maxTextLength = 100
	// maxLabelLength caps aria-label/placeholder values usable as locators.
	maxLabelLength = 50
	// maxClassTokens is how many meaningful class tokens a path level keeps.
	maxClassTokens = 2
	// maxDataAttrLength caps the single custom data-* attribute snapshotted.
	maxDataAttrLength = 64
)

// snapshotAttrs is the curated attribute set copied into the selector for
// auxiliary matching at resolve time.
var snapshotAttrs = []string{
	"id", "name", "type", "placeholder", "aria-label", "aria-labelledby",
	"data-testid", "data-test-id", "role", "href", "value", "for", "title", "alt",
}

var (
	safeIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	// Generated class prefixes from CSS-in-JS toolchains.
	generatedClassPattern = regexp.MustCompile(`^(css|jss|sc|mui|chakra|emotion|svelte|ng)-`)
	// Utility-framework tokens like p-4, mt-2, bg-red-500, hover:underline.
	utilityClassPattern = regexp.MustCompile(`^(p|m|px|py|pt|pb|pl|pr|mx|my|mt|mb|ml|mr|w|h|gap|top|left|right|bottom|bg|text|border|rounded|flex|grid|items|justify|space|z)-`)
)

// Generator builds redundant, ranked ElementSelector values from element
// snapshots. Every strategy that applies is recorded simultaneously so the
// resolver can fall back between them at replay time; only the CSS slot is
// priority-ordered (first applicable construction wins).
type Generator struct {
	logger *zap.Logger
}

func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger}
}

// Selector converts a snapshot into a multi-strategy selector. CSS and XPath
// are always populated, possibly imprecisely; text and attributes only when
// the element exposed them.
func (g *Generator) Selector(snap Snapshot) models.ElementSelector {
	tag := strings.ToLower(snap.TagName)
	if tag == "" {
		tag = "*"
	}

	sel := models.ElementSelector{
		TagName: tag,
		CSS:     g.cssSelector(snap, tag),
		XPath:   xpathSelector(snap, tag),
	}

	if text := strings.TrimSpace(snap.Text); text != "" && len(text) < maxTextLength {
		sel.Text = text
	}

	attrs := make(map[string]string)
	for _, name := range snapshotAttrs {
		if v := snap.Attr(name); v != "" {
			attrs[name] = v
		}
	}
	if name, v := firstCustomDataAttr(snap.Attributes); name != "" && len(v) <= maxDataAttrLength {
		attrs[name] = v
	}
	if len(snap.ShadowHosts) > 0 {
		attrs[models.ShadowPathAttr] = strings.Join(snap.ShadowHosts, models.ShadowPathSeparator)
	}
	if len(attrs) > 0 {
		sel.Attributes = attrs
	}

	g.logger.Debug("generated selector",
		zap.String("tag", tag),
		zap.String("css", sel.CSS),
		zap.Int("shadow_hosts", len(snap.ShadowHosts)))
	return sel
}

// cssSelector tries each construction in priority order and keeps the first
// that applies. The structural path is the unconditional fallback.
func (g *Generator) cssSelector(snap Snapshot, tag string) string {
	constructions := []func(Snapshot, string) (string, bool){
		cssByID,
		cssByTestID,
		cssByName,
		cssByAriaLabel,
		cssByPlaceholder,
	}
	for _, build := range constructions {
		if css, ok := build(snap, tag); ok {
			return css
		}
	}
	return cssByPath(snap, tag)
}

func cssByID(snap Snapshot, _ string) (string, bool) {
	id := snap.Attr("id")
	if id == "" || !safeIDPattern.MatchString(id) {
		return "", false
	}
	return "#" + id, true
}

func cssByTestID(snap Snapshot, _ string) (string, bool) {
	for _, name := range []string{"data-testid", "data-test-id"} {
		if v := snap.Attr(name); v != "" {
			return fmt.Sprintf(`[%s=%s]`, name, quoteAttr(v)), true
		}
	}
	return "", false
}

func cssByName(snap Snapshot, tag string) (string, bool) {
	if v := snap.Attr("name"); v != "" {
		return fmt.Sprintf(`%s[name=%s]`, tag, quoteAttr(v)), true
	}
	return "", false
}

func cssByAriaLabel(snap Snapshot, tag string) (string, bool) {
	if v := snap.Attr("aria-label"); v != "" && len(v) < maxLabelLength {
		return fmt.Sprintf(`%s[aria-label=%s]`, tag, quoteAttr(v)), true
	}
	return "", false
}

func cssByPlaceholder(snap Snapshot, tag string) (string, bool) {
	if v := snap.Attr("placeholder"); v != "" && len(v) < maxLabelLength {
		return fmt.Sprintf(`%s[placeholder=%s]`, tag, quoteAttr(v)), true
	}
	return "", false
}

// cssByPath walks the ancestor chain (self first) up to maxPathDepth levels,
// anchoring on the nearest safe id and otherwise describing each level by
// tag, up to two meaningful class tokens and an nth-of-type index when
// same-tag siblings exist.
func cssByPath(snap Snapshot, tag string) string {
	if len(snap.Ancestors) == 0 {
		return tag
	}

	var parts []string
	for i, level := range snap.Ancestors {
		if i >= maxPathDepth {
			break
		}
		if level.ID != "" && safeIDPattern.MatchString(level.ID) {
			parts = append(parts, "#"+level.ID)
			break
		}
		parts = append(parts, levelSelector(level))
	}

	// Ancestors are ordered self-first; CSS paths read root-first.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func levelSelector(level Ancestor) string {
	tag := strings.ToLower(level.Tag)
	if tag == "" {
		tag = "*"
	}
	var sb strings.Builder
	sb.WriteString(tag)
	kept := 0
	for _, c := range level.Classes {
		if kept == maxClassTokens {
			break
		}
		if MeaningfulClass(c) {
			sb.WriteString("." + c)
			kept++
		}
	}
	if level.TypeCount > 1 && level.TypeIndex > 0 {
		fmt.Fprintf(&sb, ":nth-of-type(%d)", level.TypeIndex)
	}
	return sb.String()
}

// xpathSelector is computed independently of the CSS construction: an
// id-anchored path when a safe id exists anywhere in the chain, otherwise a
// positional tag path disambiguated by sibling index.
func xpathSelector(snap Snapshot, tag string) string {
	if len(snap.Ancestors) == 0 {
		return "//" + tag
	}

	var parts []string
	anchored := false
	for _, level := range snap.Ancestors {
		if level.ID != "" && safeIDPattern.MatchString(level.ID) {
			parts = append(parts, fmt.Sprintf(`//*[@id='%s']`, level.ID))
			anchored = true
			break
		}
		levelTag := strings.ToLower(level.Tag)
		if levelTag == "" {
			levelTag = "*"
		}
		if level.TypeCount > 1 && level.TypeIndex > 0 {
			parts = append(parts, fmt.Sprintf("%s[%d]", levelTag, level.TypeIndex))
		} else {
			parts = append(parts, levelTag)
		}
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	xpath := strings.Join(parts, "/")
	if anchored {
		return xpath
	}
	return "//" + xpath
}

// MeaningfulClass filters class tokens that look auto-generated or purely
// presentational: numeric- or underscore-leading, very short, CSS-in-JS
// hashes, or utility-framework tokens.
func MeaningfulClass(c string) bool {
	if len(c) < 3 {
		return false
	}
	first := c[0]
	if (first >= '0' && first <= '9') || first == '_' || first == '-' {
		return false
	}
	if strings.ContainsAny(c, ":[]/\\!") {
		return false
	}
	lower := strings.ToLower(c)
	if generatedClassPattern.MatchString(lower) || utilityClassPattern.MatchString(lower) {
		return false
	}
	return true
}

func firstCustomDataAttr(attrs map[string]string) (string, string) {
	best := ""
	for name := range attrs {
		if !strings.HasPrefix(name, "data-") {
			continue
		}
		if name == "data-testid" || name == "data-test-id" {
			continue
		}
		if best == "" || name < best {
			best = name
		}
	}
	if best == "" {
		return "", ""
	}
	return best, attrs[best]
}

// quoteAttr renders an attribute value for use inside a CSS attribute
// selector, double-quoted with embedded quotes escaped.
func quoteAttr(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}
