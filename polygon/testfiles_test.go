package polygon

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/purplesyringa/sunwalker-conductor/archive"
	"github.com/purplesyringa/sunwalker-conductor/blob"
)

func TestParseFilenamePatternZeroPadded(t *testing.T) {
	p, err := parseFilenamePattern("tests/%02d")
	require.NoError(t, err)
	require.Equal(t, "tests/01", p.format(1))
	require.Equal(t, "tests/12", p.format(12))
}

func TestParseFilenamePatternBareD(t *testing.T) {
	p, err := parseFilenamePattern("tests/%d.a")
	require.NoError(t, err)
	require.Equal(t, "tests/3.a", p.format(3))
}

func TestParseFilenamePatternRejectsParentEscape(t *testing.T) {
	_, err := parseFilenamePattern("../tests/%d")
	require.Error(t, err)
}

func TestParseFilenamePatternRejectsAbsolutePath(t *testing.T) {
	_, err := parseFilenamePattern("/tests/%d")
	require.Error(t, err)
}

func TestParseFilenamePatternRejectsBackslash(t *testing.T) {
	_, err := parseFilenamePattern(`tests\%d`)
	require.Error(t, err)
}

func TestParseFilenamePatternRejectsMissingD(t *testing.T) {
	_, err := parseFilenamePattern("tests/foo")
	require.Error(t, err)
}

func TestParseFilenamePatternRejectsExcessivePadding(t *testing.T) {
	_, err := parseFilenamePattern("tests/%0200d")
	require.Error(t, err)
}

func TestAddTestsToArchiveStoresInputAndAnswer(t *testing.T) {
	inputPattern := "tests/%d"
	answerPattern := "tests/%d.a"
	judging := Judging{
		TestSets: []TestSet{{
			Name:              "tests",
			TestCount:         2,
			InputPathPattern:  &inputPattern,
			AnswerPathPattern: &answerPattern,
			Tests:             []Test{{}, {}},
		}},
	}

	files := map[string][]byte{
		"tests/1":   []byte("in1"),
		"tests/1.a": []byte("ans1"),
		"tests/2":   []byte("in2"),
		"tests/2.a": []byte("ans2"),
	}
	reader := func(path string) ([]byte, error) {
		data, ok := files[path]
		if !ok {
			return nil, fmt.Errorf("no such file: %s", path)
		}
		return data, nil
	}

	store := blob.NewMemoryStore()
	arc := archive.New()
	require.NoError(t, AddTestsToArchive(context.Background(), reader, store, judging, arc))

	f, ok := arc.Lookup("tests/0.input")
	require.True(t, ok)
	data, err := store.Fetch(context.Background(), f.Handle)
	require.NoError(t, err)
	require.Equal(t, "in1", string(data))

	f, ok = arc.Lookup("tests/1.answer")
	require.True(t, ok)
	data, err = store.Fetch(context.Background(), f.Handle)
	require.NoError(t, err)
	require.Equal(t, "ans2", string(data))
}

func TestAddTestsToArchiveRejectsDuplicatePatternName(t *testing.T) {
	judging := Judging{
		TestSets: []TestSet{{
			Name:         "tests",
			TestCount:    1,
			Tests:        []Test{{}},
			PathPatterns: []PathPattern{{Name: "input", Value: "tests/%d.in"}, {Name: "input", Value: "tests/%d.in2"}},
		}},
	}
	reader := func(path string) ([]byte, error) { return []byte("x"), nil }
	err := AddTestsToArchive(context.Background(), reader, blob.NewMemoryStore(), judging, archive.New())
	require.Error(t, err)
}

func TestAddTestsToArchivePropagatesReaderError(t *testing.T) {
	inputPattern := "tests/%d"
	judging := Judging{
		TestSets: []TestSet{{
			Name:             "tests",
			TestCount:        1,
			InputPathPattern: &inputPattern,
			Tests:            []Test{{}},
		}},
	}
	reader := func(path string) ([]byte, error) { return nil, fmt.Errorf("missing") }
	err := AddTestsToArchive(context.Background(), reader, blob.NewMemoryStore(), judging, archive.New())
	require.Error(t, err)
}
