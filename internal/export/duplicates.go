package export

import (
	"net/url"
	"sort"
	"strings"

	"github.com/lotas/flowtabs/internal/types"
)

// NormalizeURL drops the fragment, sorts query values and trims a trailing
// slash so equivalent addresses compare equal.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	params := u.Query()
	for k := range params {
		sort.Strings(params[k])
	}
	u.RawQuery = params.Encode()
	result := u.String()
	if strings.HasSuffix(result, "/") && result != u.Scheme+"://"+u.Host+"/" {
		result = strings.TrimRight(result, "/")
	}
	return result
}

// Duplicates maps the id of every tab whose normalized URL is shared with
// another tab to the ids of the others.
func Duplicates(tabs []types.TabRecord) map[int][]int {
	byURL := make(map[string][]int)
	for _, t := range tabs {
		if t.URL == "" {
			continue
		}
		n := NormalizeURL(t.URL)
		byURL[n] = append(byURL[n], t.ID)
	}
	out := make(map[int][]int)
	for _, ids := range byURL {
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			for _, other := range ids {
				if other != id {
					out[id] = append(out[id], other)
				}
			}
		}
	}
	return out
}
