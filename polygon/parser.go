// Package polygon converts a Polygon-format problem package into a
// types.ProblemRevision: it parses problem.xml (spec §4.1), derives the
// test-dependency graph from testset groups (spec §4.3), selects or parses
// the execution strategy (spec §4.2), and registers test files and helper
// programs into the archive (spec §4.4).
package polygon

import (
	"encoding/xml"

	"github.com/purplesyringa/sunwalker-conductor/types"
)

// Problem is the root of a Polygon problem.xml document. Field tags follow
// the structure of the reference Polygon package format; attribute/element
// names mirror Polygon's own field names directly (no case translation is
// applied anywhere in the reference format, so none is applied here
// either).
type Problem struct {
	XMLName xml.Name `xml:"problem"`
	Judging Judging  `xml:"judging"`
	Assets  Assets   `xml:"assets"`
	Tags    Tags     `xml:"tags"`
}

// Judging is the <judging> element: default I/O file names, an optional
// run-count override, and the list of testsets (pretests, tests, ...).
type Judging struct {
	InputFile  string     `xml:"input-file,attr"`
	OutputFile string     `xml:"output-file,attr"`
	RunCount   *uint64    `xml:"run-count,attr"`
	TestSets   []TestSet  `xml:"testset"`
}

// TestSet is one <testset> block: shared limits, path-pattern format
// strings, the flat list of tests, and the scoring groups they belong to.
type TestSet struct {
	Name               string        `xml:"name,attr"`
	TimeLimitMillis    uint64        `xml:"time-limit"`
	MemoryLimitBytes   uint64        `xml:"memory-limit"`
	TestCount          int           `xml:"test-count"`
	InputPathPattern   *string       `xml:"input-path-pattern"`
	AnswerPathPattern  *string       `xml:"answer-path-pattern"`
	PathPatterns       []PathPattern `xml:"path-pattern"`
	Tests              []Test        `xml:"tests>test"`
	Groups             []Group       `xml:"groups>group"`
}

// PathPattern is a named printf-style path pattern, e.g.
// <path-pattern name="input">tests/%02d</path-pattern>.
type PathPattern struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// Test is one <test> entry of a testset.
type Test struct {
	Method      string  `xml:"method,attr"`
	Group       string  `xml:"group,attr"`
	Cmd         string  `xml:"cmd,attr"`
	Description string  `xml:"description,attr"`
	Points      *float64 `xml:"points,attr"`
	Sample      bool    `xml:"sample,attr"`
}

// Group is one <group> scoring group within a testset.
type Group struct {
	FeedbackPolicy string        `xml:"feedback-policy,attr"`
	Name           string        `xml:"name,attr"`
	Points         *float64      `xml:"points,attr"`
	PointsPolicy   string        `xml:"points-policy,attr"`
	Dependencies   *Dependencies `xml:"dependencies"`
}

// Dependencies lists the groups a group depends on.
type Dependencies struct {
	Dependency []Dependency `xml:"dependency"`
}

// Dependency names one dependent group.
type Dependency struct {
	Group string `xml:"group,attr"`
}

// Assets is the <assets> element: the checker (required), an optional
// interactor, and an optional explicit strategy override.
type Assets struct {
	Checker    Checker     `xml:"checker"`
	Interactor *Interactor `xml:"interactor"`
	Strategy   *Strategy   `xml:"strategy"`
}

// Checker is the <checker> element.
type Checker struct {
	Name   string `xml:"name,attr"`
	Type   string `xml:"type,attr"`
	Source Source `xml:"source"`
	Binary Binary `xml:"binary"`
}

// Interactor is the <interactor> element, with an optional explicit list of
// which runs (1, or 1 and 2) are interactive.
type Interactor struct {
	Source Source `xml:"source"`
	Binary Binary `xml:"binary"`
	Runs   *Runs  `xml:"runs"`
}

// Runs lists which run numbers are interactive.
type Runs struct {
	Run []Run `xml:"run"`
}

// Run is a single interactive run number.
type Run struct {
	Value uint64 `xml:",chardata"`
}

// Strategy is an explicit strategy override, naming the source file and its
// format (only "sunwalker.strategy.v1" is supported, spec §4.2).
type Strategy struct {
	Source Source `xml:"source"`
}

// Source names a source file and its declared type.
type Source struct {
	Path string `xml:"path,attr"`
	Type string `xml:"type,attr"`
}

// Binary names a compiled binary file and its declared type.
type Binary struct {
	Path string `xml:"path,attr"`
	Type string `xml:"type,attr"`
}

// Tags is the <tags> element.
type Tags struct {
	Tag []Tag `xml:"tag"`
}

// Tag is a single problem tag, e.g. "run-twice".
type Tag struct {
	Value string `xml:"value,attr"`
}

// ParseProblemXML decodes a problem.xml document.
func ParseProblemXML(problemXML []byte) (*Problem, error) {
	var problem Problem
	if err := xml.Unmarshal(problemXML, &problem); err != nil {
		return nil, types.WrapConfigurationFailure(err, "polygon: failed to parse problem.xml")
	}
	return &problem, nil
}
