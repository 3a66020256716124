package basis

// ParseProjection parses a channel weight vector such as "[1, 0.5, -0.2]" or
// "1 0.5 -0.2".
func ParseProjection(text string) ([]float64, error) {
	toks, err := lex("projection", text)
	if err != nil {
		return nil, err
	}
	c := &cursor{field: "projection", input: text, toks: toks}

	bracketed := c.accept(tokLBracket)
	var out []float64
	for {
		t := c.peek()
		if t.kind != tokNumber {
			break
		}
		c.next()
		out = append(out, t.num)
		c.accept(tokComma)
	}
	if bracketed {
		if t := c.next(); t.kind != tokRBracket {
			return nil, c.fail(t, "expected ']'")
		}
	}
	if t := c.peek(); t.kind != tokEOF {
		return nil, c.fail(t, "expected a number")
	}
	if len(out) == 0 {
		return nil, c.fail(c.peek(), "projection needs at least one channel weight")
	}
	return out, nil
}
