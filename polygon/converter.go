package polygon

import (
	"context"
	"strings"

	"github.com/purplesyringa/sunwalker-conductor/archive"
	"github.com/purplesyringa/sunwalker-conductor/blob"
	"github.com/purplesyringa/sunwalker-conductor/strategy"
	"github.com/purplesyringa/sunwalker-conductor/types"
)

// CreateArchiveFromPolygon converts a Polygon-format problem package into a
// types.ProblemRevision, reading package files through reader and storing
// blobs through store. This is the top-level entry point driving the whole
// ingestion pipeline described in spec §4.1–§4.4.
func CreateArchiveFromPolygon(ctx context.Context, reader FileReader, store blob.Store) (*types.ProblemRevision, error) {
	problemXMLBytes, err := reader("problem.xml")
	if err != nil {
		return nil, types.WrapConfigurationFailure(err, "polygon: failed to read problem.xml")
	}
	problem, err := ParseProblemXML(problemXMLBytes)
	if err != nil {
		return nil, err
	}

	if problem.Assets.Checker.Type != "testlib" {
		return nil, types.ConfigurationFailure("polygon: checker type %q is not supported, only 'testlib' is", problem.Assets.Checker.Type)
	}

	parsedStrategy, err := resolveStrategy(reader, problem)
	if err != nil {
		return nil, err
	}

	dependencyGraph, err := BuildDependencyGraph(problem.Judging)
	if err != nil {
		return nil, err
	}

	arc := archive.New()
	programs := make(map[string]types.CachedProgram)

	if err := addProgram(ctx, reader, store, arc, programs, "checker", problem.Assets.Checker.Source, problem.Assets.Checker.Binary); err != nil {
		return nil, err
	}
	if problem.Assets.Interactor != nil {
		if err := addProgram(ctx, reader, store, arc, programs, "interactor", problem.Assets.Interactor.Source, problem.Assets.Interactor.Binary); err != nil {
			return nil, err
		}
	}

	if err := AddTestsToArchive(ctx, reader, store, problem.Judging, arc); err != nil {
		return nil, err
	}

	revision := &types.ProblemRevision{
		DependencyGraph: dependencyGraph,
		StrategyFactory: types.StrategyFactory{
			Files:    parsedStrategy.Files,
			Blocks:   parsedStrategy.Blocks,
			Programs: programs,
			// Root is an implementation-private scratch directory, never
			// populated here (spec §9 open question).
		},
	}
	return revision, nil
}

// resolveStrategy returns either the problem's explicit strategy (parsed
// from its declared source file) or one of the five default strategies,
// selected per spec §4.2's run-count/interactor heuristics.
func resolveStrategy(reader FileReader, problem *Problem) (*strategy.ParsedStrategy, error) {
	if problem.Assets.Strategy != nil {
		src := problem.Assets.Strategy.Source
		if src.Type != "sunwalker.strategy.v1" {
			return nil, types.ConfigurationFailure("polygon: unknown strategy type %s specified in problem.xml", src.Type)
		}
		data, err := reader(src.Path)
		if err != nil {
			return nil, types.WrapConfigurationFailure(err, "polygon: failed to read strategy at %s", src.Path)
		}
		return strategy.Parse(string(data))
	}

	template, inputFile, outputFile, err := selectDefaultStrategy(problem)
	if err != nil {
		return nil, err
	}
	if inputFile == "" {
		inputFile = "input.txt"
	}
	if outputFile == "" {
		outputFile = "output.txt"
	}
	text := strings.ReplaceAll(template, "{input}", strategy.EncodeString(inputFile))
	text = strings.ReplaceAll(text, "{output}", strategy.EncodeString(outputFile))

	return strategy.Parse(text)
}

// selectDefaultStrategy implements the heuristic table of spec §4.2: the
// run-count (explicit <judging run-count="N"> or the "run-twice" tag) and
// the presence/shape of an interactor pick one of the five templates.
func selectDefaultStrategy(problem *Problem) (template, inputFile, outputFile string, err error) {
	inputFile = problem.Judging.InputFile
	outputFile = problem.Judging.OutputFile

	isRunTwice, err := resolveIsRunTwice(problem)
	if err != nil {
		return "", "", "", err
	}

	if isRunTwice {
		interactor := problem.Assets.Interactor
		switch {
		case interactor == nil:
			return defaultStrategyRunTwiceNonInteractive, inputFile, outputFile, nil
		case interactor.Runs == nil:
			return defaultStrategyRunTwiceOnlyFirstRunInteractive, inputFile, outputFile, nil
		default:
			runs := make([]uint64, len(interactor.Runs.Run))
			for i, r := range interactor.Runs.Run {
				runs[i] = r.Value
			}
			switch {
			case len(runs) == 1 && runs[0] == 1:
				return defaultStrategyRunTwiceOnlyFirstRunInteractive, inputFile, outputFile, nil
			case len(runs) == 2 && runs[0] == 1 && runs[1] == 2:
				return defaultStrategyRunTwiceAllRunsInteractive, inputFile, outputFile, nil
			default:
				return "", "", "", types.ConfigurationFailure("polygon: invalid <runs> contents: must be either [1] or [1, 2], not %v", runs)
			}
		}
	}

	if problem.Assets.Interactor == nil {
		return defaultStrategyInputOutput, inputFile, outputFile, nil
	}
	return defaultStrategyInteractive, inputFile, outputFile, nil
}

func resolveIsRunTwice(problem *Problem) (bool, error) {
	if problem.Judging.RunCount == nil {
		for _, tag := range problem.Tags.Tag {
			if tag.Value == "run-twice" {
				return true, nil
			}
		}
		return false, nil
	}
	switch *problem.Judging.RunCount {
	case 1:
		return false, nil
	case 2:
		return true, nil
	default:
		return false, types.ConfigurationFailure("polygon: %d runs are not supported", *problem.Judging.RunCount)
	}
}

// addProgram compiles-in a helper program (checker or interactor): its
// binary is stored as an archive blob under a package path, and a
// CachedProgram entry records the binary's argv[0] (its filename, the way
// the reference implementation extracts it via rsplit_once('/')).
func addProgram(ctx context.Context, reader FileReader, store blob.Store, arc *archive.Archive, programs map[string]types.CachedProgram, name string, source Source, binary Binary) error {
	data, err := reader(binary.Path)
	if err != nil {
		return types.WrapConfigurationFailure(err, "polygon: failed to read %s binary at %s", name, binary.Path)
	}
	handle, err := store.StoreBlob(ctx, data)
	if err != nil {
		return types.WrapError(types.ErrConductorFailure, err, "polygon: internal storage error")
	}

	binaryName := binary.Path
	if idx := strings.LastIndexByte(binary.Path, '/'); idx >= 0 {
		binaryName = binary.Path[idx+1:]
	}

	packagePath := "programs/" + name + "/" + binaryName
	if err := arc.AddFile(packagePath, handle, true); err != nil {
		return err
	}

	_ = source // the program's source is not archived; only its compiled binary is

	programs[name] = types.CachedProgram{
		Package:       "programs/" + name,
		Prerequisites: nil,
		Argv:          []string{binaryName},
	}
	return nil
}
