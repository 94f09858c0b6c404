package ml

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// TopicSummary — итоговое описание одной темы после извлечения.
type TopicSummary struct {
	TopicID       int
	Label         string
	Keywords      []string
	DocumentCount int
}

// TopicModel извлекает темы из групп документов по схеме class-based TF-IDF:
// документы каждого класса склеиваются в один псевдодокумент, после чего
// терминам назначается вес tf * ln(1 + A/f), где A — средний размер класса
// в токенах, f — частота термина по всему корпусу.
type TopicModel struct {
	topNWords int
	stopwords map[string]struct{}
}

var tokenPattern = regexp.MustCompile(`[a-záéíóúñü]+`)

func NewTopicModel(topNWords int, language string) *TopicModel {
	if topNWords <= 0 {
		topNWords = 10
	}
	return &TopicModel{
		topNWords: topNWords,
		stopwords: stopwordsFor(language),
	}
}

// Extract строит тему для каждого класса. Ключ docsByClass — идентификатор
// кластера, значение — тексты (или имена файлов) его документов. Класс -1
// трактуется как шум и пропускается.
func (t *TopicModel) Extract(docsByClass map[int][]string) []TopicSummary {
	classIDs := make([]int, 0, len(docsByClass))
	for classID := range docsByClass {
		if classID == OutlierLabel {
			continue
		}
		classIDs = append(classIDs, classID)
	}
	sort.Ints(classIDs)

	// Частоты терминов по классам и по корпусу.
	classTF := make(map[int]map[string]int, len(classIDs))
	corpusFreq := make(map[string]int)
	totalTokens := 0

	for _, classID := range classIDs {
		tf := make(map[string]int)
		for _, doc := range docsByClass[classID] {
			for _, token := range t.tokenize(doc) {
				tf[token]++
				corpusFreq[token]++
				totalTokens++
			}
		}
		classTF[classID] = tf
	}

	avgClassSize := 1.0
	if len(classIDs) > 0 {
		avgClassSize = float64(totalTokens) / float64(len(classIDs))
	}

	topics := make([]TopicSummary, 0, len(classIDs))
	for _, classID := range classIDs {
		keywords := t.topTerms(classTF[classID], corpusFreq, avgClassSize)
		topics = append(topics, TopicSummary{
			TopicID:       classID,
			Label:         topicLabel(classID, keywords),
			Keywords:      keywords,
			DocumentCount: len(docsByClass[classID]),
		})
	}
	return topics
}

func (t *TopicModel) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		if len([]rune(token)) < keywordMinWordLength {
			continue
		}
		if _, stop := t.stopwords[token]; stop {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// topTerms возвращает topNWords терминов класса по убыванию c-TF-IDF-веса,
// при равенстве — в алфавитном порядке.
func (t *TopicModel) topTerms(tf map[string]int, corpusFreq map[string]int, avgClassSize float64) []string {
	type weighted struct {
		term   string
		weight float64
	}

	terms := make([]weighted, 0, len(tf))
	for term, count := range tf {
		idf := math.Log(1 + avgClassSize/float64(corpusFreq[term]))
		terms = append(terms, weighted{term: term, weight: float64(count) * idf})
	}
	sort.Slice(terms, func(a, b int) bool {
		if terms[a].weight != terms[b].weight {
			return terms[a].weight > terms[b].weight
		}
		return terms[a].term < terms[b].term
	})

	n := minInt(t.topNWords, len(terms))
	keywords := make([]string, n)
	for i := 0; i < n; i++ {
		keywords[i] = terms[i].term
	}
	return keywords
}

// topicLabel строит метку темы из трёх главных ключевых слов.
func topicLabel(topicID int, keywords []string) string {
	if len(keywords) == 0 {
		return fmt.Sprintf("Tema %d", topicID)
	}

	n := minInt(3, len(keywords))
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = titleWord(keywords[i])
	}
	return strings.Join(parts, " - ")
}

func stopwordsFor(language string) map[string]struct{} {
	var words []string
	switch language {
	case "english":
		words = englishStopwords
	default:
		words = spanishStopwords
	}

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

var spanishStopwords = []string{
	"algo", "ante", "antes", "aquel", "aquella", "aquellas", "aquellos",
	"aqui", "cada", "como", "con", "contra", "cual", "cuales", "cuando",
	"del", "desde", "donde", "durante", "ella", "ellas", "ellos", "entre",
	"era", "eran", "esa", "esas", "ese", "eso", "esos", "esta", "estas",
	"este", "esto", "estos", "fue", "fueron", "hacia", "hasta", "las",
	"les", "los", "mas", "menos", "mientras", "misma", "mismo", "mucho",
	"muy", "nada", "nos", "nosotros", "otra", "otras", "otro", "otros",
	"para", "pero", "poco", "por", "porque", "que", "quien", "ser",
	"sin", "sobre", "son", "sus", "también", "tiene", "tienen", "toda",
	"todas", "todo", "todos", "tras", "una", "unas", "uno", "unos",
	"usted", "ustedes",
}

var englishStopwords = []string{
	"about", "after", "all", "also", "and", "any", "are", "because",
	"been", "before", "being", "between", "both", "but", "can", "could",
	"did", "does", "doing", "down", "during", "each", "few", "for",
	"from", "further", "had", "has", "have", "having", "her", "here",
	"him", "his", "how", "into", "its", "just", "more", "most", "not",
	"now", "off", "once", "only", "other", "our", "out", "over", "own",
	"same", "she", "should", "some", "such", "than", "that", "the",
	"their", "them", "then", "there", "these", "they", "this", "those",
	"through", "too", "under", "until", "very", "was", "were", "what",
	"when", "where", "which", "while", "who", "whom", "why", "will",
	"with", "would", "you", "your",
}
