package pgdb

import (
	"fmt"
	"strconv"
	"strings"
)

// parseVector разбирает текстовое представление pgvector-колонки: "[0.1,0.2,...]".
func parseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("invalid vector literal: %q", s)
	}

	body := s[1 : len(s)-1]
	if strings.TrimSpace(body) == "" {
		return []float64{}, nil
	}

	parts := strings.Split(body, ",")
	vector := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %d: %w", i, err)
		}
		vector[i] = v
	}

	return vector, nil
}
