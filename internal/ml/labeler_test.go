package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelerCommonWords(t *testing.T) {
	l := NewLabeler()

	filenames := []string{
		"factura-enero-2024.pdf",
		"factura_febrero_2024.pdf",
		"factura marzo.pdf",
	}

	words := l.CommonWords(filenames, 4, 3)
	assert.Equal(t, []string{"factura", "enero", "febrero"}, words)
}

func TestLabelerCommonWordsSkipsShortAndNumeric(t *testing.T) {
	l := NewLabeler()

	words := l.CommonWords([]string{"a-12-2024-ok.txt", "b-12-2024-ok.txt"}, 4, 3)
	assert.Empty(t, words, "короткие и чисто числовые токены отбрасываются")
}

func TestLabelerClusterLabel(t *testing.T) {
	l := NewLabeler()

	t.Run("common word becomes title-cased label", func(t *testing.T) {
		label := l.ClusterLabel(0, []string{"informe-anual.pdf", "informe-trimestral.pdf"})
		assert.Equal(t, "Informe", label)
	})

	t.Run("no filenames falls back to Cluster N", func(t *testing.T) {
		assert.Equal(t, "Cluster 2", l.ClusterLabel(2, nil))
	})

	t.Run("no common words falls back to Documentos - Grupo N", func(t *testing.T) {
		label := l.ClusterLabel(1, []string{"a.pdf", "b.txt"})
		assert.Equal(t, "Documentos - Grupo 1", label)
	})
}

func TestLabelerKeywordsLimit(t *testing.T) {
	l := NewLabeler()

	filenames := []string{
		"alpha-beta-gamma-delta-epsilon-zeta.txt",
		"eta-theta-iota-kappa-lambda-sigma.txt",
	}
	keywords := l.Keywords(filenames)
	assert.Len(t, keywords, 10)
	assert.Equal(t, "alpha", keywords[0])
}

func TestTitleWord(t *testing.T) {
	assert.Equal(t, "Factura", titleWord("FACTURA"))
	assert.Equal(t, "Año", titleWord("año"))
	assert.Equal(t, "", titleWord(""))
}
