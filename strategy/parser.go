// Package strategy implements the strategy mini-language described in
// spec §4.5: a small line-oriented format describing how a solution and
// auxiliary programs (checkers, interactors) are wired together into a
// pipeline of blocks, files, and pipes.
package strategy

import (
	"strings"

	"github.com/purplesyringa/sunwalker-conductor/types"
)

// ParsedStrategy is the result of parsing one strategy-format document: the
// declared files/pipes and the ordered list of blocks. Caller code (the
// Polygon converter) is responsible for folding this into a complete
// types.StrategyFactory alongside the cached-program table and root.
type ParsedStrategy struct {
	Files  map[string]types.FileKind
	Blocks []types.Block
}

// Parse parses a strategy-format document. Lines starting at column 0 are
// outer directives (`file`, `pipe`, `block NAME`); lines indented with
// leading whitespace belong to the most recently opened block, and the last
// such line is the block's shell command.
func Parse(file string) (*ParsedStrategy, error) {
	result := &ParsedStrategy{Files: make(map[string]types.FileKind)}

	var currentName string
	var currentLines []string
	haveBlock := false

	commit := func() error {
		if !haveBlock {
			return nil
		}
		block, err := parseBlock(currentName, currentLines)
		if err != nil {
			return types.WrapConfigurationFailure(err, "in block %s", currentName)
		}
		result.Blocks = append(result.Blocks, block)
		haveBlock = false
		currentLines = nil
		return nil
	}

	for _, line := range strings.Split(file, "\n") {
		if line == "" {
			continue
		}
		if isSpace(rune(line[0])) {
			if !haveBlock {
				return nil, types.ConfigurationFailure("strategy: whitespace-indented line outside any block")
			}
			currentLines = append(currentLines, strings.TrimLeft(line, " \t"))
			continue
		}

		tokens, err := splitTokens(line, true)
		if err != nil {
			return nil, err
		}
		if len(tokens) == 0 || tokens[0].kind != tokString {
			return nil, types.ConfigurationFailure("strategy: each line outside blocks must start with a directive, which is a normal identifier, not a redirect or a filename")
		}
		command := tokens[0].text
		rest := tokens[1:]

		switch command {
		case "file", "pipe":
			if haveBlock || len(result.Blocks) > 0 {
				return nil, types.ConfigurationFailure("strategy: directive %q must appear before blocks", command)
			}
			kind := types.FileRegular
			if command == "pipe" {
				kind = types.FilePipe
			}
			for _, tok := range rest {
				if tok.kind != tokFile {
					return nil, types.ConfigurationFailure("strategy: directive %q must be followed by filenames, each of which starts with %%", command)
				}
				if _, exists := result.Files[tok.text]; exists {
					return nil, types.ConfigurationFailure("strategy: filename %%%s is defined twice", tok.text)
				}
				result.Files[tok.text] = kind
			}

		case "block":
			if err := commit(); err != nil {
				return nil, err
			}
			if len(rest) == 0 {
				return nil, types.ConfigurationFailure("strategy: directive 'block' must be followed by a block name")
			}
			if rest[0].kind != tokString {
				return nil, types.ConfigurationFailure("strategy: directive 'block' must be followed by a block name, which is a normal identifier, not a redirect or a filename")
			}
			name := rest[0].text
			if name == "" {
				return nil, types.ConfigurationFailure("strategy: directive 'block' must be followed by a non-empty block name")
			}
			if len(rest) > 1 {
				return nil, types.ConfigurationFailure("strategy: the block name %q in directive 'block' is followed by stray text", name)
			}
			currentName = name
			haveBlock = true

		default:
			return nil, types.ConfigurationFailure("strategy: unknown directive %q at the outer level; supported directives are 'file', 'pipe', and 'block'", command)
		}
	}
	if err := commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

// parseBlock parses the body of one block: zero or more `tactic`/`ro`/`rw`
// directive lines, followed by exactly one shell command line.
func parseBlock(name string, lines []string) (types.Block, error) {
	if len(lines) == 0 {
		return types.Block{}, types.ConfigurationFailure("block contains no content")
	}
	shellCommand := lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	block := types.Block{
		Name:     name,
		Bindings: make(map[string]types.Binding),
	}
	haveTactic := false

	for _, line := range lines {
		tokens, err := splitTokens(line, true)
		if err != nil {
			return types.Block{}, err
		}
		if len(tokens) == 0 || tokens[0].kind != tokString {
			return types.Block{}, types.ConfigurationFailure("each block line must start with a directive, which is a normal identifier, not a redirect or a filename")
		}
		command := tokens[0].text
		rest := tokens[1:]

		switch command {
		case "tactic":
			if len(rest) == 0 || rest[0].kind != tokString {
				return types.Block{}, types.ConfigurationFailure("directive 'tactic' must be followed by a tactic name: 'user' or 'testlib'")
			}
			switch rest[0].text {
			case "user":
				block.Tactic = types.TacticUser
			case "testlib":
				block.Tactic = types.TacticTestlib
			default:
				return types.Block{}, types.ConfigurationFailure("unknown tactic %q: the supported tactics are 'user' and 'testlib'", rest[0].text)
			}
			if len(rest) > 1 {
				return types.Block{}, types.ConfigurationFailure("the tactic name %q in directive 'tactic' is followed by stray text", rest[0].text)
			}
			if haveTactic {
				return types.Block{}, types.ConfigurationFailure("directive 'tactic' can only appear once per block")
			}
			haveTactic = true

		case "ro", "rw":
			if len(rest) == 0 {
				return types.Block{}, types.ConfigurationFailure("directive %q must be followed by a source filename", command)
			}
			source, err := tokenToPattern(rest[0])
			if err != nil {
				return types.Block{}, types.ConfigurationFailure("directive %q must be followed by a source filename, which must be either a filename or normal text", command)
			}
			rest = rest[1:]

			if len(rest) == 0 || rest[0].kind != tokString || rest[0].text != "as" {
				return types.Block{}, types.ConfigurationFailure("directive %q must be followed by a source filename, and then by 'as'", command)
			}
			rest = rest[1:]

			if len(rest) == 0 || rest[0].kind != tokString {
				return types.Block{}, types.ConfigurationFailure("the 'as' in directive %q must be followed by a target location, which must be a normal string", command)
			}
			location := rest[0].text
			if location == "" {
				return types.Block{}, types.ConfigurationFailure("the 'as' in directive %q must be followed by a non-empty target location", command)
			}

			if _, exists := block.Bindings[location]; exists {
				return types.Block{}, types.ConfigurationFailure("target location %q is mapped twice", location)
			}
			block.Bindings[location] = types.Binding{
				Readable: true,
				Writable: command == "rw",
				Source:   source,
			}

		default:
			return types.Block{}, types.ConfigurationFailure("unknown directive %q at block level; supported directives are 'tactic', 'ro', and 'rw'", command)
		}
	}
	if !haveTactic {
		return types.Block{}, types.ConfigurationFailure("directive 'tactic' is missing")
	}

	if err := parseShellCommand(&block, shellCommand); err != nil {
		return types.Block{}, err
	}
	return block, nil
}

func tokenToPattern(tok token) (types.Pattern, error) {
	switch tok.kind {
	case tokString:
		return types.Pattern{Kind: types.PatternVariableText, Text: tok.text}, nil
	case tokFile:
		return types.Pattern{Kind: types.PatternFile, Text: tok.text}, nil
	default:
		return types.Pattern{}, types.ConfigurationFailure("expected a filename or normal text")
	}
}

// parseShellCommand parses the last line of a block (spec §4.5 "Command
// assembly"): redirect tokens consume the next token as their target,
// RedirectTo copies the current pattern of the source stream at the moment
// of the redirect (snapshot semantics — a later reassignment of the source
// stream does not retroactively affect an earlier copy), and all remaining
// tokens become argv with argv[0] extracted as the block's command.
func parseShellCommand(block *types.Block, line string) error {
	tokens, err := splitTokens(line, true)
	if err != nil {
		return types.WrapConfigurationFailure(err, "failed to parse shell command")
	}

	streamSlot := func(s standardStream) **types.Pattern {
		switch s {
		case streamStdin:
			return &block.Stdin
		case streamStdout:
			return &block.Stdout
		default:
			return &block.Stderr
		}
	}

	var argv []types.Pattern
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.kind {
		case tokRedirect:
			i++
			if i >= len(tokens) {
				return types.ConfigurationFailure("a redirect should be followed by a file path, but EOL was seen")
			}
			next := tokens[i]
			if next.kind == tokRedirect || next.kind == tokRedirectTo {
				return types.ConfigurationFailure("a redirect should be followed by a file path, but another redirect was seen")
			}
			pattern, err := tokenToPattern(next)
			if err != nil {
				return err
			}
			slot := streamSlot(tok.stream)
			if pattern.IsDevNull() {
				*slot = nil
			} else {
				p := pattern
				*slot = &p
			}

		case tokRedirectTo:
			dst := streamSlot(tok.stream)
			src := streamSlot(tok.streamTo)
			if *src == nil {
				*dst = nil
			} else {
				p := **src
				*dst = &p
			}

		case tokString:
			argv = append(argv, types.Pattern{Kind: types.PatternVariableText, Text: tok.text})

		case tokFile:
			argv = append(argv, types.Pattern{Kind: types.PatternFile, Text: tok.text})
		}
	}

	if len(argv) == 0 {
		return types.ConfigurationFailure("command is missing")
	}
	first := argv[0]
	if first.Kind == types.PatternFile {
		return types.ConfigurationFailure("the command must be a simple identifier, but it is %%%s, which is a filename", first.Text)
	}
	if strings.ContainsRune(first.Text, 0) {
		return types.ConfigurationFailure("the command must be a simple identifier, but it contains a variable reference")
	}
	block.Command = first.Text
	block.Argv = argv[1:]
	return nil
}
