package params

import (
	"fmt"
	"hash/fnv"
	"io"
	"sort"
)

// Fingerprint hashes the complete parameter tuple. Map keys are visited in
// sorted order so equal tuples always hash equally.
func Fingerprint(tabID int, f Fields, g Global, v Variables) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "tab=%d;", tabID)
	fmt.Fprintf(h, "f=%v|%v|%v|%q|%q|%q|%s;",
		f.Intercept, f.Contrast, f.RandomWidth, f.Basis, f.Formula, f.Projection, f.Coding)
	fmt.Fprintf(h, "g=%+v;", g)
	writeVariables(h, v)
	return h.Sum64()
}

func writeVariables(w io.Writer, v Variables) {
	cats := make([]string, 0, len(v.Categorical))
	for k := range v.Categorical {
		cats = append(cats, k)
	}
	sort.Strings(cats)
	for _, k := range cats {
		fmt.Fprintf(w, "c:%q=%q;", k, v.Categorical[k])
	}

	conts := make([]string, 0, len(v.Continuous))
	for k := range v.Continuous {
		conts = append(conts, k)
	}
	sort.Strings(conts)
	for _, k := range conts {
		fmt.Fprintf(w, "r:%q=%+v;", k, v.Continuous[k])
	}
}
