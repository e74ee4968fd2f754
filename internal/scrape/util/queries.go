package util

import "strings"

var IndiaCities = []string{"Bengaluru", "Mumbai", "Pune", "Delhi", "Hyderabad", "Chennai"}

// GenerateQueries builds a bounded, ordered, de-duplicated list of search
// terms. variants >= 2 adds "<kw> engineer", variants >= 3 also adds
// "<kw> developer". India mode fills the remaining room with the first
// keyword crossed with Indian cities.
func GenerateQueries(keywords []string, indiaMode bool, maxQueries, variants int) []string {
	if maxQueries <= 0 {
		return nil
	}
	var base []string
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			base = append(base, kw)
		}
	}
	if len(base) == 0 {
		return nil
	}

	out := make([]string, 0, maxQueries)
	seen := map[string]bool{}
	add := func(q string) bool {
		if len(out) >= maxQueries {
			return false
		}
		k := strings.ToLower(q)
		if !seen[k] {
			seen[k] = true
			out = append(out, q)
		}
		return true
	}

	for _, kw := range base {
		if !add(kw) {
			break
		}
		if variants >= 2 {
			add(kw + " engineer")
		}
		if variants >= 3 {
			add(kw + " developer")
		}
	}
	if indiaMode {
		for _, city := range IndiaCities {
			if !add(base[0] + " " + city) {
				break
			}
		}
	}
	return out
}
