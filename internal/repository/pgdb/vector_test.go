package pgdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVector(t *testing.T) {
	vector, err := parseVector("[0.1,-0.25,3]")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, -0.25, 3}, vector)
}

func TestParseVectorWithSpaces(t *testing.T) {
	vector, err := parseVector(" [ 0.5 , 1.5 ] ")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, vector)
}

func TestParseVectorEmpty(t *testing.T) {
	vector, err := parseVector("[]")
	require.NoError(t, err)
	assert.Empty(t, vector)
}

func TestParseVectorInvalid(t *testing.T) {
	_, err := parseVector("0.1,0.2")
	assert.Error(t, err)

	_, err = parseVector("[0.1,abc]")
	assert.Error(t, err)

	_, err = parseVector("")
	assert.Error(t, err)
}
