// Package index implements the semantic code-search index consumed by the
// research pipeline. Chunks are produced by an external AST chunker and
// ingested pre-cut; this package only stores, embeds and searches them.
package index

// ChunkType tags the kind of code unit a chunk represents.
type ChunkType string

const (
	ChunkFunction ChunkType = "function"
	ChunkMethod   ChunkType = "method"
	ChunkTypeDecl ChunkType = "type"
	ChunkModule   ChunkType = "module"
	ChunkBlock    ChunkType = "block"
)

// CodeChunk is an addressable unit of source content.
type CodeChunk struct {
	ID        string    `json:"id"`
	FilePath  string    `json:"file_path"`
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Type      ChunkType `json:"type"`
	Name      string    `json:"name,omitempty"`
	Content   string    `json:"content"`
}

// SearchResult is one ranked hit from the index.
type SearchResult struct {
	Chunk      CodeChunk
	Score      float64
	Highlights []string
}
