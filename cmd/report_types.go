package cmd

// reportFlags collects the `logjuicer report` command's flags into one
// struct; cobra binds each flag directly to a field of the package-level
// reportFlagVars value.
type reportFlags struct {
	baselines    []string
	output       string
	markdownOut  string
	threshold    float32
	before       int
	after        int
	gap          int
	indexDim     uint32
	keepDup      bool
	notify       bool
}
