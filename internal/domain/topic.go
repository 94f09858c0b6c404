package domain

import "time"

// Topic представляет извлечённую тему документов пользователя.
type Topic struct {
	ID            int64
	OwnerID       string
	TopicID       int
	Label         string
	Keywords      []string
	DocumentCount int
	CreatedAt     *time.Time
	UpdatedAt     *time.Time
}

func NewTopic(ownerID string, topicID int, label string, keywords []string, documentCount int) *Topic {
	return &Topic{
		OwnerID:       ownerID,
		TopicID:       topicID,
		Label:         label,
		Keywords:      keywords,
		DocumentCount: documentCount,
	}
}

// TopicAssignment — основная (primary) привязка документа к теме.
type TopicAssignment struct {
	DocumentID  string
	TopicID     int
	Probability *float64
}
