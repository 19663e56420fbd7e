package polygon

import (
	"github.com/purplesyringa/sunwalker-conductor/types"
)

// BuildDependencyGraph derives the test-dependency graph from a Judging
// block's testsets and groups, per spec §4.3: a "complete-group" group
// scored "none"/"points" feedback is encoded as a ring of dependencies
// (every test depends on every other test), "icpc" feedback as a chain
// (tests depend on their predecessor), "complete" feedback as no
// dependencies; an "each-test" group never adds dependencies regardless of
// feedback policy; explicit <dependencies> make every test of the group a
// dependent of every test of each group it lists.
// Testsets are concatenated into one flat id space (0-based, in testset
// order) before dependencies are computed, matching how pretests and system
// tests of the same problem share one invoker-visible test-id space.
func BuildDependencyGraph(judging Judging) (types.DependencyGraph, error) {
	var dependentsOf [][]uint64

	for _, testset := range judging.TestSets {
		if testset.TestCount != len(testset.Tests) {
			return types.DependencyGraph{}, types.ConfigurationFailure("polygon: number of tests (%d) does not agree with the reported count (%d) in testset %s", len(testset.Tests), testset.TestCount, testset.Name)
		}
		if len(testset.Tests) == 0 {
			continue
		}

		offset := len(dependentsOf)
		for range testset.Tests {
			dependentsOf = append(dependentsOf, nil)
		}

		testsByGroup := make(map[string][]int)
		for testID, test := range testset.Tests {
			testsByGroup[test.Group] = append(testsByGroup[test.Group], testID)
		}

		groups := make(map[string]Group)
		for _, g := range testset.Groups {
			if g.Name == "" {
				return types.DependencyGraph{}, types.ConfigurationFailure("polygon: a group cannot have an empty name")
			}
			groups[g.Name] = g
		}

		for groupName, testIDs := range testsByGroup {
			if len(testIDs) == 0 {
				return types.DependencyGraph{}, types.ConfigurationFailure("polygon: group %s has no tests", groupName)
			}
			if groupName != "" {
				if _, ok := groups[groupName]; !ok {
					return types.DependencyGraph{}, types.ConfigurationFailure("polygon: test #%d is attached to non-existent group %s", testIDs[0]+1, groupName)
				}
			}
		}

		for groupName, group := range groups {
			testIDs := testsByGroup[groupName]

			switch group.PointsPolicy {
			case "complete-group":
				switch group.FeedbackPolicy {
				case "none", "points":
					if len(testIDs) > 1 {
						for i := 1; i < len(testIDs); i++ {
							a := offset + testIDs[i-1]
							b := uint64(offset + testIDs[i])
							dependentsOf[a] = append(dependentsOf[a], b)
						}
						last := offset + testIDs[len(testIDs)-1]
						first := uint64(offset + testIDs[0])
						dependentsOf[last] = append(dependentsOf[last], first)
					}
				case "icpc":
					for i := 1; i < len(testIDs); i++ {
						a := offset + testIDs[i-1]
						b := uint64(offset + testIDs[i])
						dependentsOf[a] = append(dependentsOf[a], b)
					}
				case "complete":
					// No dependencies: every test is judged regardless of failures.
				default:
					return types.DependencyGraph{}, types.ConfigurationFailure("polygon: unknown feedback policy %s", group.FeedbackPolicy)
				}
			case "each-test":
				switch group.FeedbackPolicy {
				case "none", "points", "icpc", "complete":
					// No dependencies: every test is judged independently.
				default:
					return types.DependencyGraph{}, types.ConfigurationFailure("polygon: unknown feedback policy %s", group.FeedbackPolicy)
				}
			default:
				return types.DependencyGraph{}, types.ConfigurationFailure("polygon: unknown points policy %s", group.PointsPolicy)
			}

			if group.Dependencies != nil {
				for _, dep := range group.Dependencies.Dependency {
					depTestIDs, ok := testsByGroup[dep.Group]
					if !ok {
						return types.DependencyGraph{}, types.ConfigurationFailure("polygon: group %s depends on non-existent group %s", groupName, dep.Group)
					}
					for _, depTest := range depTestIDs {
						a := offset + depTest
						for _, dependentTest := range testIDs {
							dependentsOf[a] = append(dependentsOf[a], uint64(offset+dependentTest))
						}
					}
				}
			}
		}
		// Tests outside any group use each-test points policy implicitly: no
		// dependencies are added for them.
	}

	graph := types.DependencyGraph{DependentsOf: make(map[uint64][]uint64, len(dependentsOf))}
	for i, deps := range dependentsOf {
		graph.DependentsOf[uint64(i)] = deps
	}
	return graph, nil
}
