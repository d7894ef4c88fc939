package selector

// Snapshot is the raw description of one live element, captured in-page at
// record time. It carries everything the generator needs so that selector
// construction itself runs in Go and never has to touch the document again.
type Snapshot struct {
	TagName     string            `json:"tagName"`
	Text        string            `json:"text,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Ancestors   []Ancestor        `json:"ancestors"`
	ShadowHosts []string          `json:"shadowHosts,omitempty"`
}

// Ancestor is one level of the element's ancestor chain, self first. The
// type index/count pair disambiguates same-tag siblings (1-based, matching
// CSS nth-of-type and XPath positional predicates).
type Ancestor struct {
	Tag       string   `json:"tag"`
	ID        string   `json:"id,omitempty"`
	Classes   []string `json:"classes,omitempty"`
	TypeIndex int      `json:"typeIndex"`
	TypeCount int      `json:"typeCount"`
}

// Attr returns a snapshot attribute value, or "" when absent.
func (s Snapshot) Attr(name string) string {
	return s.Attributes[name]
}
