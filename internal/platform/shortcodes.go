package platform

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"customfields/internal/engine"
)

var attrPattern = regexp.MustCompile(`([\w-]+)\s*=\s*"([^"]*)"|([\w-]+)\s*=\s*'([^']*)'|([\w-]+)\s*=\s*([^\s'"\]]+)`)

func (p *Platform) RegisterShortcode(name string, fn engine.ShortcodeFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("shortcode needs a name and a callback")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.shortcodes[name]; ok {
		return fmt.Errorf("%w: %s", ErrShortcodeExists, name)
	}
	p.shortcodes[name] = fn
	return nil
}

// Shortcodes returns the registered shortcode names, sorted.
func (p *Platform) Shortcodes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.shortcodes))
	for name := range p.shortcodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderShortcode invokes one shortcode directly.
func (p *Platform) RenderShortcode(name string, attrs map[string]string, content string) (string, error) {
	p.mu.RLock()
	fn, ok := p.shortcodes[name]
	p.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownShortcode, name)
	}
	if attrs == nil {
		attrs = map[string]string{}
	}
	return fn(attrs, content, name), nil
}

// DoShortcodes expands every registered shortcode in text. Both the
// enclosing form [name a="b"]content[/name] and the self-closing forms
// [name] and [name /] are recognised; unknown tags are left alone.
func (p *Platform) DoShortcodes(text string) string {
	for _, name := range p.Shortcodes() {
		if !strings.Contains(text, "["+name) {
			continue
		}
		q := regexp.QuoteMeta(name)
		re := regexp.MustCompile(`(?s)\[` + q + `((?:\s[^\]]*?)?)\s*(/)?\](?:(.*?)\[/` + q + `\])?`)
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			m := re.FindStringSubmatch(match)
			content := ""
			if m[2] == "" {
				content = m[3]
			}
			out, err := p.RenderShortcode(name, ParseShortcodeAttrs(m[1]), content)
			if err != nil {
				return match
			}
			return out
		})
	}
	return text
}

// ParseShortcodeAttrs reads key="value", key='value' and key=value pairs.
// Keys are lowercased.
func ParseShortcodeAttrs(s string) map[string]string {
	attrs := map[string]string{}
	for _, m := range attrPattern.FindAllStringSubmatch(s, -1) {
		switch {
		case m[1] != "":
			attrs[strings.ToLower(m[1])] = m[2]
		case m[3] != "":
			attrs[strings.ToLower(m[3])] = m[4]
		case m[5] != "":
			attrs[strings.ToLower(m[5])] = m[6]
		}
	}
	return attrs
}
