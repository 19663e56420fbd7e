package strategy

import "strconv"

// EncodeString quotes s the way the strategy language's string literals
// expect: a double-quoted, backslash-escaped literal that the tokenizer in
// this package can read back byte-for-byte. Go's `strconv.Quote` produces
// the same shape as Rust's Debug-quoting (`format!("{s:?}")"), which the
// strategy format's string syntax is itself modeled on.
//
// Used to escape {input}/{output} placeholders before they are substituted
// into a default strategy template and re-parsed.
func EncodeString(s string) string {
	return strconv.Quote(s)
}
