package ml

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	labelMinWordLength   = 4
	keywordMinWordLength = 3
	maxCommonWords       = 3
	maxKeywords          = 10
)

var wordSeparators = regexp.MustCompile(`[-_\s]+`)

// Labeler генерирует описательные метки и ключевые слова кластеров из имён
// файлов документов. Работает независимо от ML-компонентов.
type Labeler struct{}

func NewLabeler() *Labeler {
	return &Labeler{}
}

// ClusterLabel возвращает человекочитаемую метку кластера по именам файлов
// его участников.
func (l *Labeler) ClusterLabel(clusterID int, filenames []string) string {
	if len(filenames) == 0 {
		return fmt.Sprintf("Cluster %d", clusterID)
	}

	common := l.CommonWords(filenames, labelMinWordLength, maxCommonWords)
	if len(common) == 0 {
		return fmt.Sprintf("Documentos - Grupo %d", clusterID)
	}

	return titleWord(common[0])
}

// Keywords возвращает до 10 ключевых слов кластера по частоте в именах файлов.
func (l *Labeler) Keywords(filenames []string) []string {
	return l.CommonWords(filenames, keywordMinWordLength, maxKeywords)
}

// CommonWords находит до limit самых частых слов в именах файлов.
// Слова короче minLength и чисто числовые отбрасываются; расширение файла
// не учитывается. Порядок стабилен: по убыванию частоты, при равенстве — по
// первому вхождению.
func (l *Labeler) CommonWords(filenames []string, minLength, limit int) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0

	for _, filename := range filenames {
		name := filename
		if idx := strings.LastIndex(name, "."); idx > 0 {
			name = name[:idx]
		}

		for _, word := range wordSeparators.Split(strings.ToLower(name), -1) {
			if len([]rune(word)) < minLength || isNumeric(word) {
				continue
			}
			if _, ok := counts[word]; !ok {
				firstSeen[word] = order
				order++
			}
			counts[word]++
		}
	}

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(a, b int) bool {
		if counts[words[a]] != counts[words[b]] {
			return counts[words[a]] > counts[words[b]]
		}
		return firstSeen[words[a]] < firstSeen[words[b]]
	})

	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

func isNumeric(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// titleWord переводит слово в Title-регистр: первая руна в верхнем, остальные
// в нижнем.
func titleWord(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
