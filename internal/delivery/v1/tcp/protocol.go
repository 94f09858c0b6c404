// Package tcp реализует кадрированный JSON-протокол обмена с сервисом
// анализа: [длина: 4 байта big-endian][JSON UTF-8], один запрос и один ответ
// на соединение.
package tcp

import (
	"encoding/binary"
	"encoding/json"

	"github.com/DRSN-tech/ml-service/pkg/e"
)

// Действия протокола.
const (
	ActionClusterDocuments    = "cluster_documents"
	ActionGetClusters         = "get_clusters"
	ActionExtractTopics       = "extract_topics"
	ActionRecommendSimilar    = "recommend_similar"
	ActionUpdateVisualization = "update_visualization"
	ActionGetVisualization    = "get_visualization"
	ActionAnalyzeTrends       = "analyze_trends"
	ActionPing                = "ping"
	ActionStatus              = "status"
)

// Статусы транспортного уровня.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request — запрос протокола. Сообщение считается запросом только при
// наличии ключа action.
type Request struct {
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID *string         `json:"request_id"`
}

// Response — ответ протокола. Поля result и error сериализуются явными
// null, как у эталонного клиента.
type Response struct {
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result"`
	Error     *string         `json:"error"`
	RequestID *string         `json:"request_id"`
}

func NewSuccessResponse(result json.RawMessage, requestID *string) *Response {
	return &Response{
		Status:    StatusSuccess,
		Result:    result,
		RequestID: requestID,
	}
}

func NewErrorResponse(message string, requestID *string) *Response {
	return &Response{
		Status:    StatusError,
		Error:     &message,
		RequestID: requestID,
	}
}

// EncodeMessage кадрирует сообщение: 4 байта длины big-endian и JSON.
func EncodeMessage(message any) ([]byte, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	return frame, nil
}

// DecodeRequest разбирает кадр с запросом. Сообщение без ключа action
// запросом не является.
func DecodeRequest(frame []byte) (*Request, error) {
	payload, err := framePayload(frame)
	if err != nil {
		return nil, err
	}
	return ParseRequest(payload)
}

// ParseRequest разбирает JSON-тело запроса без заголовка кадра.
func ParseRequest(payload []byte) (*Request, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, err
	}
	if _, ok := probe["action"]; !ok {
		return nil, e.ErrNotARequest
	}

	var request Request
	if err := json.Unmarshal(payload, &request); err != nil {
		return nil, err
	}

	return &request, nil
}

// DecodeResponse разбирает кадр с ответом.
func DecodeResponse(frame []byte) (*Response, error) {
	payload, err := framePayload(frame)
	if err != nil {
		return nil, err
	}

	var response Response
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// framePayload проверяет заголовок кадра и возвращает JSON-тело.
func framePayload(frame []byte) ([]byte, error) {
	if len(frame) < 4 {
		return nil, e.ErrIncompleteMessage
	}

	length := int(binary.BigEndian.Uint32(frame[:4]))
	if len(frame)-4 < length {
		return nil, e.ErrIncompleteMessage
	}

	return frame[4 : 4+length], nil
}
