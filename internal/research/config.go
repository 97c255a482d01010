package research

// Config bounds the pipeline and tunes synthesis sampling. Zero values are
// replaced with defaults by NewEngine; instruction blocks default to the
// built-in prompts.
type Config struct {
	// MaxSubQuestions caps how many sub-questions decomposition keeps.
	MaxSubQuestions int

	// ChunksPerSubQuestion is the per-query result cap for initial retrieval.
	// Follow-up retrieval uses max(3, ChunksPerSubQuestion-2).
	ChunksPerSubQuestion int

	// MaxTotalChunks caps the ranked context fed to synthesis and the
	// sources list on the result.
	MaxTotalChunks int

	// MaxFollowUpQueries caps how many follow-up queries gap analysis keeps.
	MaxFollowUpQueries int

	// MaxConcurrentSearches bounds the retrieval fan-out width.
	MaxConcurrentSearches int

	// SynthesisTemperature and SynthesisMaxTokens tune the final generation
	// call. Decomposition and gap analysis pin a low temperature because
	// their output is parsed.
	SynthesisTemperature float64
	SynthesisMaxTokens   int

	// Instruction blocks. Empty strings select the built-in defaults.
	DecompositionInstructions string
	GapAnalysisInstructions   string
	SynthesisInstructions     string
}

// DefaultConfig returns the default pipeline bounds.
func DefaultConfig() Config {
	return Config{
		MaxSubQuestions:       4,
		ChunksPerSubQuestion:  5,
		MaxTotalChunks:        30,
		MaxFollowUpQueries:    3,
		MaxConcurrentSearches: 8,
		SynthesisTemperature:  0.5,
		SynthesisMaxTokens:    4096,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxSubQuestions <= 0 {
		c.MaxSubQuestions = def.MaxSubQuestions
	}
	if c.ChunksPerSubQuestion <= 0 {
		c.ChunksPerSubQuestion = def.ChunksPerSubQuestion
	}
	if c.MaxTotalChunks <= 0 {
		c.MaxTotalChunks = def.MaxTotalChunks
	}
	if c.MaxFollowUpQueries < 0 {
		c.MaxFollowUpQueries = def.MaxFollowUpQueries
	}
	if c.MaxConcurrentSearches <= 0 {
		c.MaxConcurrentSearches = def.MaxConcurrentSearches
	}
	if c.SynthesisTemperature <= 0 {
		c.SynthesisTemperature = def.SynthesisTemperature
	}
	if c.SynthesisMaxTokens <= 0 {
		c.SynthesisMaxTokens = def.SynthesisMaxTokens
	}
	if c.DecompositionInstructions == "" {
		c.DecompositionInstructions = defaultDecompositionInstructions
	}
	if c.GapAnalysisInstructions == "" {
		c.GapAnalysisInstructions = defaultGapAnalysisInstructions
	}
	if c.SynthesisInstructions == "" {
		c.SynthesisInstructions = defaultSynthesisInstructions
	}
	return c
}

// followUpChunkLimit is the per-query cap for follow-up retrieval.
func (c Config) followUpChunkLimit() int {
	limit := c.ChunksPerSubQuestion - 2
	if limit < 3 {
		limit = 3
	}
	return limit
}
