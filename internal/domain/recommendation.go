package domain

// Recommendation — одна запись кэша рекомендаций для базового документа.
// Rank нумеруется с единицы в порядке убывания similarity.
type Recommendation struct {
	DocumentID            string
	RecommendedDocumentID string
	Filename              string
	SimilarityScore       float64
	Rank                  int
}
