package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicModelExtract(t *testing.T) {
	tm := NewTopicModel(10, "spanish")

	topics := tm.Extract(map[int][]string{
		0: {
			"factura electricidad enero",
			"factura agua enero",
			"factura telefono febrero",
		},
		1: {
			"contrato alquiler vivienda",
			"contrato trabajo indefinido",
		},
	})

	require.Len(t, topics, 2)

	assert.Equal(t, 0, topics[0].TopicID)
	assert.Equal(t, 3, topics[0].DocumentCount)
	assert.Equal(t, "factura", topics[0].Keywords[0])
	assert.Contains(t, topics[0].Label, "Factura")

	assert.Equal(t, 1, topics[1].TopicID)
	assert.Equal(t, 2, topics[1].DocumentCount)
	assert.Equal(t, "contrato", topics[1].Keywords[0])
}

func TestTopicModelSkipsNoiseClass(t *testing.T) {
	tm := NewTopicModel(10, "spanish")

	topics := tm.Extract(map[int][]string{
		OutlierLabel: {"documento suelto"},
		0:            {"informe ventas", "informe gastos"},
	})

	require.Len(t, topics, 1)
	assert.Equal(t, 0, topics[0].TopicID)
}

func TestTopicModelStopwordsFiltered(t *testing.T) {
	tm := NewTopicModel(10, "spanish")

	topics := tm.Extract(map[int][]string{
		0: {"para los documentos del proyecto", "sobre este proyecto"},
	})

	require.Len(t, topics, 1)
	assert.NotContains(t, topics[0].Keywords, "para")
	assert.NotContains(t, topics[0].Keywords, "los")
	assert.Contains(t, topics[0].Keywords, "proyecto")
}

func TestTopicModelEmptyClassLabelFallback(t *testing.T) {
	tm := NewTopicModel(10, "spanish")

	topics := tm.Extract(map[int][]string{
		4: {"la de un"},
	})

	require.Len(t, topics, 1)
	assert.Empty(t, topics[0].Keywords)
	assert.Equal(t, "Tema 4", topics[0].Label)
}

func TestTopicModelLabelJoinsTopKeywords(t *testing.T) {
	label := topicLabel(0, []string{"factura", "enero", "electricidad", "agua"})
	assert.Equal(t, "Factura - Enero - Electricidad", label)
}

func TestTopicModelEnglishStopwords(t *testing.T) {
	tm := NewTopicModel(5, "english")

	topics := tm.Extract(map[int][]string{
		0: {"the annual report about sales", "the quarterly report"},
	})

	require.Len(t, topics, 1)
	assert.Equal(t, "report", topics[0].Keywords[0])
	assert.NotContains(t, topics[0].Keywords, "the")
	assert.NotContains(t, topics[0].Keywords, "about")
}
