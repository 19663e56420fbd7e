package polygon

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/purplesyringa/sunwalker-conductor/archive"
	"github.com/purplesyringa/sunwalker-conductor/blob"
	"github.com/purplesyringa/sunwalker-conductor/types"
)

// FileReader reads one file out of a Polygon package by its path, relative
// to the package root.
type FileReader func(path string) ([]byte, error)

// filenamePattern is a parsed single-`%d`-style printf path pattern, e.g.
// "tests/%02d" or "tests/%d.a". Security-validated at parse time per spec
// §4.1: no parent-directory escape, no absolute path, no OS-specific
// separator or drive letter.
type filenamePattern struct {
	before  string
	after   string
	padding int
}

// parseFilenamePattern validates and parses pattern, per the reference
// implementation's FileNamePattern::from_printf_format.
func parseFilenamePattern(pattern string) (filenamePattern, error) {
	if strings.Contains(pattern, "/../") ||
		strings.HasPrefix(pattern, "../") ||
		strings.HasSuffix(pattern, "/..") ||
		strings.HasPrefix(pattern, "/") ||
		strings.Contains(pattern, "\\") ||
		strings.Contains(pattern, ":") {
		return filenamePattern{}, types.ConfigurationFailure("polygon: format string %q is invalid: it must be a relative path, and not contain /../, \\, or :", pattern)
	}

	patStart := strings.IndexByte(pattern, '%')
	if patStart < 0 {
		return filenamePattern{}, types.ConfigurationFailure("polygon: format string %q is invalid: it must contain exactly one %%d pattern", pattern)
	}
	before := pattern[:patStart]

	dOffset := strings.IndexByte(pattern[patStart:], 'd')
	if dOffset < 0 {
		return filenamePattern{}, types.ConfigurationFailure("polygon: format string %q is invalid: it must contain exactly one %%d pattern", pattern)
	}
	patEnd := patStart + dOffset + 1
	after := pattern[patEnd:]
	if strings.Contains(after, "%") {
		return filenamePattern{}, types.ConfigurationFailure("polygon: format string %q is invalid: it must contain exactly one %%d pattern", pattern)
	}

	pat := pattern[patStart:patEnd]
	padding := 0
	if len(pat) > 2 {
		if pat[1] != '0' {
			return filenamePattern{}, types.ConfigurationFailure("polygon: format string %q is invalid: the pattern must be either %%d or %%0<number>d", pattern)
		}
		n, err := strconv.Atoi(pat[2 : len(pat)-1])
		if err != nil {
			return filenamePattern{}, types.ConfigurationFailure("polygon: format string %q is invalid: the pattern must be either %%d or %%0<number>d", pattern)
		}
		padding = n
	}
	if padding >= 128 {
		return filenamePattern{}, types.ConfigurationFailure("polygon: format string %q is invalid: for security, the length of padding in the %%0<number>d pattern must not exceed 127", pattern)
	}

	return filenamePattern{before: before, after: after, padding: padding}, nil
}

// format renders the pattern for test number n (1-based), zero-padded to
// the configured width.
func (p filenamePattern) format(n int) string {
	digits := strconv.Itoa(n)
	if len(digits) < p.padding {
		digits = strings.Repeat("0", p.padding-len(digits)) + digits
	}
	return p.before + digits + p.after
}

// AddTestsToArchive reads every test's input/answer/extra files out of the
// Polygon package via reader, stores them content-addressed in store, and
// registers them into arc under path "tests/{i}.{name}" where i is the
// flattened 0-based test index (matching BuildDependencyGraph's id space)
// and name is "input", "answer", or a named path-pattern.
func AddTestsToArchive(ctx context.Context, reader FileReader, store blob.Store, judging Judging, arc *archive.Archive) error {
	i := 0
	for _, testset := range judging.TestSets {
		patterns := make(map[string]filenamePattern)

		if testset.InputPathPattern != nil {
			p, err := parseFilenamePattern(*testset.InputPathPattern)
			if err != nil {
				return err
			}
			patterns["input"] = p
		}
		if testset.AnswerPathPattern != nil {
			p, err := parseFilenamePattern(*testset.AnswerPathPattern)
			if err != nil {
				return err
			}
			patterns["answer"] = p
		}
		for _, pp := range testset.PathPatterns {
			if strings.ContainsAny(pp.Name, "/\\") {
				return types.ConfigurationFailure("polygon: the name of path pattern %q is invalid because it contains a slash", pp.Name)
			}
			if _, exists := patterns[pp.Name]; exists {
				return types.ConfigurationFailure("polygon: path pattern for %q is specified twice", pp.Name)
			}
			p, err := parseFilenamePattern(pp.Value)
			if err != nil {
				return err
			}
			patterns[pp.Name] = p
		}

		for testID := range testset.Tests {
			for name, pattern := range patterns {
				path := pattern.format(testID + 1)

				data, err := reader(path)
				if err != nil {
					return types.WrapConfigurationFailure(err, "polygon: failed to read %s of test #%d of testset %s from %q", name, testID+1, testset.Name, path)
				}

				handle, err := store.StoreBlob(ctx, data)
				if err != nil {
					return types.WrapError(types.ErrConductorFailure, err, "polygon: internal storage error")
				}

				archivePath := fmt.Sprintf("tests/%d.%s", i, name)
				if err := arc.AddFile(archivePath, handle, false); err != nil {
					return err
				}
			}
			i++
		}
	}
	return nil
}
