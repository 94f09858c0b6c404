package usecase

import "context"

// EventProducer публикует события о завершённых анализах (Kafka).
// Публикация best-effort: ошибки логируются и не прерывают запрос.
type EventProducer interface {
	PublishAnalysisCompleted(ctx context.Context, event *AnalysisCompletedEvent) error
}
