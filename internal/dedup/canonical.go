package dedup

import (
	"net/url"
	"sort"
	"strings"
)

func isTrackingParam(k string) bool {
	lk := strings.ToLower(k)
	switch {
	case strings.HasPrefix(lk, "utm_"), strings.HasPrefix(lk, "trk"):
		return true
	case lk == "gclid", lk == "fbclid", lk == "msclkid",
		lk == "mc_cid", lk == "mc_eid", lk == "mkt_tok", lk == "ref":
		return true
	}
	return false
}

// CanonicalURL reduces a posting URL to a stable form so that the same job
// reached through different tracking links hashes the same.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for k := range q {
		if isTrackingParam(k) {
			q.Del(k)
		}
	}

	// linkedin links carry a pile of session params; only the job id matters
	if strings.Contains(u.Host, "linkedin.com") {
		keep := url.Values{}
		if v := q.Get("currentJobId"); v != "" {
			keep.Set("currentJobId", v)
		}
		q = keep
	}

	for k := range q {
		sort.Strings(q[k])
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}
