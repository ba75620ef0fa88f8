package api

type ScoredDocument struct {
	// Required
	Content string
	Score   float64

	// Optional
	Title  string
	Source string
}

func (d ScoredDocument) Copy() *ScoredDocument {
	return &ScoredDocument{
		Content: d.Content,
		Score:   d.Score,
		Title:   d.Title,
		Source:  d.Source,
	}
}
