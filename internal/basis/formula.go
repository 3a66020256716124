package basis

import (
	"fmt"
	"sort"
	"strings"
)

// Groups accepted on the right side of a random-effect bar.
var randomGroups = map[string]bool{"subject": true, "item": true}

// RandomTerm is "(1 + x | subject)": per-group deviations of the listed terms.
type RandomTerm struct {
	Intercept bool
	Terms     []string
	Group     string
}

// Formula is the parsed right-hand side of a model formula.
type Formula struct {
	Intercept bool
	Fixed     []string
	Random    []RandomTerm
}

// ParseFormula parses text such as "0 ~ 1 + condition + (1 | subject)". The
// "0 ~" response prefix is optional.
func ParseFormula(text string) (Formula, error) {
	toks, err := lex("formula", text)
	if err != nil {
		return Formula{}, err
	}
	c := &cursor{field: "formula", input: text, toks: toks}

	if len(toks) > 2 && toks[1].kind == tokTilde {
		if t := c.next(); t.kind != tokNumber || t.num != 0 {
			return Formula{}, c.fail(t, "response must be 0")
		}
		c.next()
	}

	var f Formula
	seen := map[string]bool{}
	for {
		t := c.peek()
		switch t.kind {
		case tokNumber:
			c.next()
			switch t.num {
			case 1:
				f.Intercept = true
			case 0:
				f.Intercept = false
			default:
				return Formula{}, c.fail(t, "only 0 or 1 may appear as a constant term")
			}
		case tokIdent:
			c.next()
			if seen[t.text] {
				return Formula{}, c.fail(t, fmt.Sprintf("duplicate term %q", t.text))
			}
			seen[t.text] = true
			f.Fixed = append(f.Fixed, t.text)
		case tokLParen:
			c.next()
			rt, err := parseRandom(c)
			if err != nil {
				return Formula{}, err
			}
			f.Random = append(f.Random, rt)
		default:
			return Formula{}, c.fail(t, "expected a term")
		}

		if c.accept(tokPlus) {
			continue
		}
		if t := c.peek(); t.kind != tokEOF {
			return Formula{}, c.fail(t, "expected '+' or end of formula")
		}
		return f, nil
	}
}

func parseRandom(c *cursor) (RandomTerm, error) {
	var rt RandomTerm
	for {
		t := c.next()
		switch {
		case t.kind == tokNumber && t.num == 1:
			rt.Intercept = true
		case t.kind == tokNumber && t.num == 0:
			rt.Intercept = false
		case t.kind == tokIdent:
			rt.Terms = append(rt.Terms, t.text)
		default:
			return RandomTerm{}, c.fail(t, "expected a term inside random effect")
		}
		if c.accept(tokPlus) {
			continue
		}
		if t := c.next(); t.kind != tokBar {
			return RandomTerm{}, c.fail(t, "expected '|'")
		}
		break
	}

	g := c.next()
	if g.kind != tokIdent || !randomGroups[g.text] {
		return RandomTerm{}, c.fail(g, "grouping must be subject or item")
	}
	rt.Group = g.text
	if t := c.next(); t.kind != tokRParen {
		return RandomTerm{}, c.fail(t, "expected ')'")
	}
	return rt, nil
}

// Check verifies that every term names one of the given design variables.
func (f Formula) Check(variables []string) error {
	known := make(map[string]bool, len(variables))
	for _, v := range variables {
		known[v] = true
	}
	var unknown []string
	for _, term := range f.Fixed {
		if !known[term] {
			unknown = append(unknown, term)
		}
	}
	for _, rt := range f.Random {
		for _, term := range rt.Terms {
			if !known[term] {
				unknown = append(unknown, term)
			}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("basis: formula references unknown variables: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// HasRandom reports whether any random-effect term groups by g.
func (f Formula) HasRandom(g string) bool {
	for _, rt := range f.Random {
		if rt.Group == g {
			return true
		}
	}
	return false
}

func (f Formula) String() string {
	terms := []string{"0"}
	if f.Intercept {
		terms[0] = "1"
	}
	terms = append(terms, f.Fixed...)
	for _, rt := range f.Random {
		inner := []string{"0"}
		if rt.Intercept {
			inner[0] = "1"
		}
		inner = append(inner, rt.Terms...)
		terms = append(terms, "("+strings.Join(inner, " + ")+" | "+rt.Group+")")
	}
	return "0 ~ " + strings.Join(terms, " + ")
}
