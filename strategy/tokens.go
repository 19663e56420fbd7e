package strategy

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/purplesyringa/sunwalker-conductor/types"
)

// tokenKind discriminates a single token of a strategy-format line, per
// spec §4.5.
type tokenKind int

const (
	tokString tokenKind = iota
	tokFile
	tokRedirect
	tokRedirectTo
)

// standardStream names one of the three redirectable file descriptors.
type standardStream int

const (
	streamStdin standardStream = iota
	streamStdout
	streamStderr
)

// token is one lexical unit of a strategy-format line: a bare/quoted string
// (with variable references already encoded as `\0name\0`), a `%file`
// reference, a redirect (`<`, `>`, `N<`, `N>`), or a redirect-to-stream
// (`N>&M`, `N<&M`).
type token struct {
	kind     tokenKind
	text     string // for tokString, tokFile
	stream   standardStream
	streamTo standardStream
}

// shellEscapeToken matches a single C-style escape sequence recognized both
// inside quoted strings and in bare (unquoted) text, per spec §4.5: octal
// \[0-3][0-7][0-7], named letter escapes, \xHH, \uHHHH, \UHHHHHHHH, or any
// other \c (handled as a fallback during decode, not matched distinctly
// here).
var shellEscapeToken = regexp.MustCompile(`\\(?:[0-3][0-7]{2}|[abefnrtv]|x[0-9a-fA-F]{2}|u[0-9a-fA-F]{4}|U[0-9a-fA-F]{8}|.)`)

// chunkPattern returns the regex matching one piece of a shell argument: a
// quoted run (which may itself contain escapes and spaces — the closing
// quote is the only boundary), a `$var`/`${var}` variable
// reference (complex mode only), or a single non-whitespace character/escape
// (bare text is whitespace-delimited; quoting is required to embed spaces).
func chunkPattern(complex bool) string {
	quoted := `"(?P<quoted>(?:` + shellEscapeToken.String() + `|[^"])*?)"`
	char := `(?P<char>` + shellEscapeToken.String() + `|\S)`
	if !complex {
		return quoted + `|` + char
	}
	variable := `\$(?P<variable>\w+|\{\w+\})`
	return quoted + `|` + variable + `|` + char
}

// commandPattern returns the top-level regex for one strategy-format line:
// redirects and `%file` tokens are recognized first (complex mode only),
// everything else is an "argument" — a maximal run of chunks.
func commandPattern(complex bool) *regexp.Regexp {
	chunk := chunkPattern(complex)
	argument := `(?P<argument>(?:` + chunk + `)+)`
	if !complex {
		return regexp.MustCompile(argument)
	}
	redirect := `(?P<redirect>\d*[<>])(?:&(?P<to>\d+))?`
	file := `%(?P<file>\w+)`
	return regexp.MustCompile(redirect + `|` + file + `|` + argument)
}

var (
	complexCommandRE = commandPattern(true)
	simpleCommandRE  = commandPattern(false)
	complexChunkRE   = regexp.MustCompile(chunkPattern(true))
	simpleChunkRE    = regexp.MustCompile(chunkPattern(false))
)

// splitTokens tokenizes one strategy-format line. complex enables variable
// references, %file tokens, and redirects; outer directive lines ("file",
// "pipe", "block NAME", "tactic ...") as well as the shell command line all
// parse with complex=true in this implementation, matching how the original
// parser always calls split_tokens(line, true).
func splitTokens(line string, complex bool) ([]token, error) {
	re := simpleCommandRE
	chunkRE := simpleChunkRE
	if complex {
		re = complexCommandRE
		chunkRE = complexChunkRE
	}

	groupIndex := make(map[string]int)
	for i, n := range re.SubexpNames() {
		if n != "" {
			groupIndex[n] = i
		}
	}
	// submatch returns (text, participated) for the named group at the
	// given match, using index positions so an empty-but-participating
	// group (e.g. a quoted empty string) is distinguished from a group
	// that did not match at all.
	submatch := func(idx []int, name string) (string, bool) {
		i, ok := groupIndex[name]
		if !ok {
			return "", false
		}
		lo, hi := idx[2*i], idx[2*i+1]
		if lo < 0 {
			return "", false
		}
		return line[lo:hi], true
	}

	var tokens []token
	for _, idx := range re.FindAllSubmatchIndex([]byte(line), -1) {
		if complex {
			if redirect, ok := submatch(idx, "redirect"); ok {
				stream, err := parseStream(redirect)
				if err != nil {
					return nil, err
				}
				if to, ok := submatch(idx, "to"); ok {
					n, err := strconv.Atoi(to)
					if err != nil {
						return nil, types.WrapConfigurationFailure(err, "invalid file descriptor in redirect %q", redirect)
					}
					isOutput := strings.HasSuffix(redirect, ">")
					streamTo, err := streamForFD(isOutput, n)
					if err != nil {
						return nil, types.ConfigurationFailure("redirect %s&%d is not supported due to operating system incompatibilities", redirect, n)
					}
					tokens = append(tokens, token{kind: tokRedirectTo, stream: stream, streamTo: streamTo})
					continue
				}
				tokens = append(tokens, token{kind: tokRedirect, stream: stream})
				continue
			}
			if file, ok := submatch(idx, "file"); ok {
				tokens = append(tokens, token{kind: tokFile, text: file})
				continue
			}
		}

		argument, ok := submatch(idx, "argument")
		if !ok {
			continue
		}
		decoded, err := decodeArgument(argument, chunkRE)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token{kind: tokString, text: decoded})
	}
	return tokens, nil
}

// decodeArgument decodes one argument run (a concatenation of quoted runs,
// variable references, and bare escaped/literal characters) into its
// string value, encoding variable references as `\0name\0` sentinels.
func decodeArgument(argument string, chunkRE *regexp.Regexp) (string, error) {
	groupIndex := make(map[string]int)
	for i, n := range chunkRE.SubexpNames() {
		if n != "" {
			groupIndex[n] = i
		}
	}
	submatch := func(idx []int, name string) (string, bool) {
		i, ok := groupIndex[name]
		if !ok {
			return "", false
		}
		lo, hi := idx[2*i], idx[2*i+1]
		if lo < 0 {
			return "", false
		}
		return argument[lo:hi], true
	}

	var sb strings.Builder
	for _, idx := range chunkRE.FindAllSubmatchIndex([]byte(argument), -1) {
		if quoted, ok := submatch(idx, "quoted"); ok {
			decoded, err := parseEscapes(quoted)
			if err != nil {
				return "", err
			}
			sb.WriteString(decoded)
			continue
		}
		if variable, ok := submatch(idx, "variable"); ok {
			variable = strings.TrimPrefix(variable, "{")
			variable = strings.TrimSuffix(variable, "}")
			sb.WriteByte(0)
			sb.WriteString(variable)
			sb.WriteByte(0)
			continue
		}
		if char, ok := submatch(idx, "char"); ok {
			decoded, err := parseEscapes(char)
			if err != nil {
				return "", err
			}
			sb.WriteString(decoded)
		}
	}
	return sb.String(), nil
}

func parseStream(redirect string) (standardStream, error) {
	isOutput := strings.HasSuffix(redirect, ">")
	fdStr := strings.TrimSuffix(strings.TrimSuffix(redirect, ">"), "<")
	fd := 0
	if fdStr != "" {
		n, err := strconv.Atoi(fdStr)
		if err != nil {
			return 0, types.WrapConfigurationFailure(err, "invalid file descriptor in redirect %q", redirect)
		}
		fd = n
	} else if isOutput {
		fd = 1
	}
	return streamForFD(isOutput, fd)
}

func streamForFD(isOutput bool, fd int) (standardStream, error) {
	switch {
	case !isOutput && fd == 0:
		return streamStdin, nil
	case isOutput && fd == 1:
		return streamStdout, nil
	case isOutput && fd == 2:
		return streamStderr, nil
	default:
		arrow := "<"
		if isOutput {
			arrow = ">"
		}
		return 0, types.ConfigurationFailure("redirect %d%s is not supported due to operating system incompatibilities", fd, arrow)
	}
}

// parseEscapes decodes C-style escapes within text per spec §4.5: octal
// \[0-3][0-7][0-7], named letter escapes, \xHH, \uHHHH, \UHHHHHHHH, and any
// other \c decoding to the literal character c. Non-backslash characters
// pass through unchanged. The decoded result must not contain a literal NUL
// byte (NUL is reserved for variable-reference sentinels).
func parseEscapes(text string) (string, error) {
	var sb strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '\\' || i == len(runes)-1 {
			sb.WriteRune(c)
			continue
		}
		rest := runes[i+1:]
		n, decoded, err := decodeOneEscape(rest)
		if err != nil {
			return "", err
		}
		sb.WriteString(decoded)
		i += n
	}
	result := sb.String()
	if strings.ContainsRune(result, 0) {
		return "", types.ConfigurationFailure("strategy: strings must not contain null characters")
	}
	return result, nil
}

// decodeOneEscape decodes the escape sequence starting right after a
// backslash in rest, returning how many runes of rest it consumed (not
// counting the backslash itself) and the decoded text.
func decodeOneEscape(rest []rune) (int, string, error) {
	if len(rest) == 0 {
		return 0, "\\", nil
	}
	c := rest[0]
	switch c {
	case 'a':
		return 1, "\a", nil
	case 'b':
		return 1, "\b", nil
	case 'e':
		return 1, "\x1b", nil
	case 'f':
		return 1, "\f", nil
	case 'n':
		return 1, "\n", nil
	case 'r':
		return 1, "\r", nil
	case 't':
		return 1, "\t", nil
	case 'v':
		return 1, "\v", nil
	case 'x':
		if len(rest) >= 3 {
			if v, err := strconv.ParseUint(string(rest[1:3]), 16, 8); err == nil {
				return 3, string(rune(v)), nil
			}
		}
		return 1, string(c), nil
	case 'u':
		if len(rest) >= 5 {
			if v, err := strconv.ParseUint(string(rest[1:5]), 16, 32); err == nil {
				return 5, string(rune(v)), nil
			}
		}
		return 1, string(c), nil
	case 'U':
		if len(rest) >= 9 {
			if v, err := strconv.ParseUint(string(rest[1:9]), 16, 32); err == nil {
				return 9, string(rune(v)), nil
			}
		}
		return 1, string(c), nil
	default:
		if c >= '0' && c <= '3' && len(rest) >= 3 && isOctalDigit(rest[1]) && isOctalDigit(rest[2]) {
			v := (int(c-'0') << 6) | (int(rest[1]-'0') << 3) | int(rest[2]-'0')
			return 3, string(rune(v)), nil
		}
		return 1, string(c), nil
	}
}

func isOctalDigit(r rune) bool {
	return r >= '0' && r <= '7'
}
