package search

import (
	"net/url"
	"sort"
	"strings"
)

// Query parameters that only track the visitor and never change the page.
var trackingParams = map[string]bool{
	"utm":     true,
	"fbclid":  true,
	"gclid":   true,
	"dclid":   true,
	"msclkid": true,
	"mc_cid":  true,
	"mc_eid":  true,
	"yclid":   true,
	"igshid":  true,
	"ref":     true,
	"ref_src": true,
	"spm":     true,
	"_ga":     true,
}

func isTrackingParam(name string) bool {
	name = strings.ToLower(name)
	return trackingParams[name] || strings.HasPrefix(name, "utm_")
}

// NormalizeURL reduces raw to the form used as the dedup key: lowercase scheme
// and host, path without trailing slash, tracking parameters dropped, the
// rest sorted, fragment removed. Unparseable input is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(strings.TrimRight(u.EscapedPath(), "/"))

	q := u.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		if !isTrackingParam(k) {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		kept := url.Values{}
		for _, k := range keys {
			kept[k] = q[k]
		}
		b.WriteByte('?')
		b.WriteString(kept.Encode())
	}
	return b.String()
}
