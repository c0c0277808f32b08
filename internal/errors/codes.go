package errors

// Diagnostic codes for the bmb middle end.
//
// Code ranges:
// V0001-V0099: verification results
// V0100-V0199: contract extraction
// M0001-M0099: MIR consistency (compiler bugs surfaced by self-check)
// C0001-C0099: code emission
const (
	// V0001: an obligation has a counterexample
	CodeContractViolated = "V0001"

	// V0002: the solver answered unknown or timed out
	CodeObligationUnknown = "V0002"

	// V0003: the solver binary is missing
	CodeSolverUnavailable = "V0003"

	// V0004: compilation aborted under --deny-unverified
	CodeUnverified = "V0004"

	// V0100: a contract uses a construct outside the first-order
	// fragment
	CodeContractUntranslatable = "V0100"

	// M0001: an optimizer pass broke a MIR invariant
	CodeMirInvariantViolated = "M0001"

	// C0001: the code emitter rejected the program
	CodeEmitFailed = "C0001"

	// C0002: no code generation backend is linked
	CodeBackendUnavailable = "C0002"
)
