// Package basis parses the user-editable text fields of a tab into safe,
// declarative values: a basis function from a fixed catalog, a formula from a
// small whitelisted grammar, and a channel projection vector.
//
// Nothing here evaluates code. Every accepted input maps onto one of:
//
//   - [Basis]: a catalog entry with numeric arguments, sampled by [Basis.Sample]
//   - [Formula]: an intercept flag, fixed terms and random-effect terms
//   - a []float64 projection vector
//
// # Grammar
//
//	basis      = [ "-" ] name [ "(" number { "," number } ")" ]
//	formula    = [ "0" "~" ] term { "+" term }
//	term       = "1" | "0" | ident | "(" inner { "+" inner } "|" ident ")"
//	projection = [ "[" ] number { ("," | " ") number } [ "]" ]
package basis
