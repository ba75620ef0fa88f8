package api

type EmbedDocumentRequest struct {
	Title  string
	Chunks []string

	// Meta is attached to every chunk of the document when it
	// is written to the vector store.
	Meta map[string]string
}

type DocumentEmbedding struct {
	Title  string
	Chunks []string
	Values [][]float32
	Meta   map[string]string
}
