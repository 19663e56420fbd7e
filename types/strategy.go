package types

// FileKind discriminates a strategy file entry: a regular file materialized
// on disk in the sandbox, or an OS pipe connecting two blocks.
type FileKind string

const (
	FileRegular FileKind = "Regular"
	FilePipe    FileKind = "Pipe"
)

// Tactic names who runs a block: the contestant's program, or a trusted
// testlib helper (checker/interactor).
type Tactic string

const (
	TacticUser    Tactic = "User"
	TacticTestlib Tactic = "Testlib"
)

// PatternKind discriminates a Pattern: a reference to a named file entry, or
// literal text possibly containing variable references.
type PatternKind string

const (
	PatternFile         PatternKind = "File"
	PatternVariableText PatternKind = "VariableText"
)

// Pattern is either a named file entry (File) or a literal string possibly
// containing embedded `\0name\0` variable references (VariableText).
type Pattern struct {
	Kind PatternKind `msgpack:"kind" json:"kind"`
	// Text holds the logical file name when Kind == PatternFile, or the
	// literal (possibly variable-bearing) text when Kind == PatternVariableText.
	Text string `msgpack:"text" json:"text"`
}

// IsDevNull reports whether p is the literal text "/dev/null", the sentinel
// normalized to "no redirection" by the strategy parser.
func (p Pattern) IsDevNull() bool {
	return p.Kind == PatternVariableText && p.Text == "/dev/null"
}

// Binding is one entry of a block's bindings map: a target location inside
// the sandbox mapped from a source pattern, with explicit read/write flags.
type Binding struct {
	Readable bool    `msgpack:"readable" json:"readable"`
	Writable bool    `msgpack:"writable" json:"writable"`
	Source   Pattern `msgpack:"source" json:"source"`
}

// Block is one process invocation inside a test strategy.
type Block struct {
	Name     string             `msgpack:"name" json:"name"`
	Tactic   Tactic             `msgpack:"tactic" json:"tactic"`
	Bindings map[string]Binding `msgpack:"bindings" json:"bindings"`
	// Command is the program's lookup key (argv[0], extracted out of argv).
	Command string `msgpack:"command" json:"command"`
	Argv    []Pattern `msgpack:"argv" json:"argv"`
	// Stdin, Stdout, Stderr are nil when the stream inherits null (including
	// the literal "/dev/null", which the parser normalizes to nil).
	Stdin  *Pattern `msgpack:"stdin,omitempty" json:"stdin,omitempty"`
	Stdout *Pattern `msgpack:"stdout,omitempty" json:"stdout,omitempty"`
	Stderr *Pattern `msgpack:"stderr,omitempty" json:"stderr,omitempty"`
}

// CachedProgram is a helper program role (checker, interactor, ...)
// registered by the converter: the archive package containing the compiled
// binary, its build prerequisites, and its argv (argv[0] is the binary name
// inside the package).
type CachedProgram struct {
	Package      string   `msgpack:"package" json:"package"`
	Prerequisites []string `msgpack:"prerequisites" json:"prerequisites"`
	Argv         []string `msgpack:"argv" json:"argv"`
}

// StrategyFactory is the full, parsed execution strategy for a problem
// revision: declared files/pipes, the ordered blocks, the helper programs
// they invoke, and an opaque scratch-directory root.
type StrategyFactory struct {
	Files    map[string]FileKind      `msgpack:"files" json:"files"`
	Blocks   []Block                  `msgpack:"blocks" json:"blocks"`
	Programs map[string]CachedProgram `msgpack:"programs" json:"programs"`
	// Root is an implementation-private scratch directory pattern, opaque
	// to this spec (§9 open question); never populated by the converter.
	Root string `msgpack:"root" json:"root"`
}
