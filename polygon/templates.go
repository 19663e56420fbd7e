package polygon

// The five default strategies, selected by run-count/interactor heuristics
// (see selectDefaultStrategy) when a problem.xml does not declare an
// explicit <strategy>. Kept byte-for-byte identical to the reference
// implementation, including the `inteactor_output` misspelling in
// defaultStrategyInteractive's check block (spec §9: "implementers should
// preserve the templates verbatim to stay bug-compatible with existing
// problem packages").

const defaultStrategyInputOutput = `
file %output %stderr %checker_stderr
block invocation
    tactic user
    ro $input as {input}
    rw %output as {output}
    user <{input} >{output} 2>%stderr
block check
    tactic testlib
    checker $input %output $answer 2>%checker_stderr
`

const defaultStrategyInteractive = `
file %interactor_output %interactor_stderr
pipe %interactor_to_user %user_to_interactor
block invocation
    tactic user
    user <%interactor_to_user >%user_to_interactor
block interaction
    tactic testlib
    rw %interactor_output as output.txt
    interactor $input output.txt $answer <%user_to_interactor >%interactor_to_user 2>%interactor_stderr
block check
    tactic testlib
    checker $input %inteactor_output $answer 2>%checker_stderr
`

const defaultStrategyRunTwiceNonInteractive = `
file %run1_output %run1_stderr %run1_checker_stderr %run2_input %run2_output %run2_stderr %run2_checker_stderr
block firstrun
    tactic user
    ro $input as input.txt
    rw %run1_output as output.txt
    user <input.txt >output.txt 2>%run1_stderr
block firstcheck
    tactic testlib
    checker $input %run1_output $answer >%run2_input 2>%run1_checker_stderr
block secondrun
    tactic user
    ro %run2_input as input.txt
    rw %run2_output as output.txt
    user <input.txt >output.txt 2>%run2_stderr
block secondcheck
    tactic testlib
    checker %run2_input %run2_output $answer 2>%run2_checker_stderr
`

const defaultStrategyRunTwiceOnlyFirstRunInteractive = `
file %run1_stderr %run1_interactor_stderr %run2_input %run2_output %run2_stderr %run2_checker_stderr
pipe %run1_interactor_to_user %run1_user_to_interactor
block firstrun
    tactic user
    user <%run1_interactor_to_user >%run1_user_to_interactor 2>%run1_stderr
block firstinteraction
    tactic testlib
    rw %run2_input as output.txt
    interactor $input output.txt $answer <%run1_user_to_interactor >%run1_interactor_to_user 2>%run1_interactor_stderr
block secondrun
    tactic user
    ro %run2_input as input.txt
    rw %run2_output as output.txt
    user <input.txt >output.txt 2>%run2_stderr
block secondcheck
    tactic testlib
    checker %run2_input %run2_output $answer 2>%run2_checker_stderr
`

const defaultStrategyRunTwiceAllRunsInteractive = `
file %run1_stderr %run1_interactor_stderr %run2_input %run2_stderr %run2_interactor_output %checker_stderr
pipe %run1_interactor_to_user %run1_user_to_interactor %run2_interactor_to_user %run2_user_to_interactor
block firstrun
    tactic user
    user <%run1_interactor_to_user >%run1_user_to_interactor 2>%run1_stderr
block firstinteraction
    tactic testlib
    rw %run2_input as output.txt
    interactor $input output.txt $answer <%run1_user_to_interactor >%run1_interactor_to_user 2>%run1_interactor_stderr
block secondrun
    tactic user
    user <%run2_interactor_to_user >%run2_user_to_interactor 2>%run2_stderr
block secondinteraction
    tactic testlib
    rw %run2_interactor_output as output.txt
    interactor %run2_input output.txt $answer <%run2_user_to_interactor >%run2_interactor_to_user 2>%run2_interactor_stderr
block check
    tactic testlib
    checker $input %run2_interactor_output $answer 2>%checker_stderr
`
