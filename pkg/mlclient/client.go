// Package mlclient — клиент кадрированного TCP-протокола сервиса анализа.
// Каждый вызов открывает отдельное соединение: один запрос, один ответ.
package mlclient

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/DRSN-tech/ml-service/pkg/e"
)

const defaultTimeout = 30 * time.Second

type request struct {
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID *string         `json:"request_id"`
}

type response struct {
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result"`
	Error     *string         `json:"error"`
	RequestID *string         `json:"request_id"`
}

type Client struct {
	addr    string
	timeout time.Duration
}

// New создаёт клиент сервиса анализа. Нулевой timeout заменяется
// значением по умолчанию.
func New(host, port string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		addr:    net.JoinHostPort(host, port),
		timeout: timeout,
	}
}

func (c *Client) ClusterDocuments(ctx context.Context, req *ClusterDocumentsRequest) (*ClusterResult, error) {
	return call[ClusterResult](ctx, c, "cluster_documents", req)
}

func (c *Client) GetClusters(ctx context.Context, userID string) (*ClusterResult, error) {
	return call[ClusterResult](ctx, c, "get_clusters", map[string]string{"user_id": userID})
}

func (c *Client) ExtractTopics(ctx context.Context, req *ExtractTopicsRequest) (*TopicsResult, error) {
	return call[TopicsResult](ctx, c, "extract_topics", req)
}

func (c *Client) RecommendSimilar(ctx context.Context, req *RecommendSimilarRequest) (*RecommendationsResult, error) {
	return call[RecommendationsResult](ctx, c, "recommend_similar", req)
}

func (c *Client) UpdateVisualization(ctx context.Context, req *UpdateVisualizationRequest) (*VisualizationResult, error) {
	return call[VisualizationResult](ctx, c, "update_visualization", req)
}

func (c *Client) GetVisualization(ctx context.Context, userID string) (*VisualizationResult, error) {
	return call[VisualizationResult](ctx, c, "get_visualization", map[string]string{"user_id": userID})
}

// Ping проверяет доступность сервиса.
func (c *Client) Ping(ctx context.Context) error {
	const op = "mlclient.Client.Ping"

	result, err := c.roundTrip(ctx, "ping", nil)
	if err != nil {
		return e.Wrap(op, err)
	}

	var pong struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(result, &pong); err != nil {
		return e.Wrap(op, err)
	}
	if pong.Status != "healthy" {
		return e.Wrap(op, fmt.Errorf("unexpected ping status %q", pong.Status))
	}

	return nil
}

func (c *Client) Status(ctx context.Context) (*ServiceStatus, error) {
	const op = "mlclient.Client.Status"

	result, err := c.roundTrip(ctx, "status", nil)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var status ServiceStatus
	if err := json.Unmarshal(result, &status); err != nil {
		return nil, e.Wrap(op, err)
	}

	return &status, nil
}

// call выполняет действие и разбирает типизированный результат. Отказ
// предметной области ({"success": false}) возвращается как *e.DomainError.
func call[Res any](ctx context.Context, c *Client, action string, data any) (*Res, error) {
	op := "mlclient." + action

	var raw json.RawMessage
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		raw = payload
	}

	result, err := c.roundTrip(ctx, action, raw)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var probe struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(result, &probe); err != nil {
		return nil, e.Wrap(op, err)
	}
	if probe.Success != nil && !*probe.Success {
		return nil, &e.DomainError{Message: probe.Error}
	}

	var res Res
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, e.Wrap(op, err)
	}

	return &res, nil
}

// roundTrip открывает соединение, отправляет кадр запроса и читает кадр
// ответа. Ошибка транспортного уровня сервера возвращается как есть.
func (c *Client) roundTrip(ctx context.Context, action string, data json.RawMessage) (json.RawMessage, error) {
	requestID := uuid.NewString()

	frame, err := encodeFrame(&request{Action: action, Data: data, RequestID: &requestID})
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, classifyDialErr(err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write(frame); err != nil {
		return nil, classifyIOErr(err)
	}

	resp, err := readFrame(conn)
	if err != nil {
		return nil, classifyIOErr(err)
	}

	if resp.Status != "success" {
		message := "unknown server error"
		if resp.Error != nil {
			message = *resp.Error
		}
		return nil, errors.New(message)
	}

	return resp.Result, nil
}

func encodeFrame(req *request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)
	return frame, nil
}

func readFrame(conn net.Conn) (*response, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}

	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// classifyDialErr сводит ошибки установки соединения к сигнальным значениям
// клиента: недоступность либо таймаут.
func classifyDialErr(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", e.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", e.ErrServiceUnavailable, err)
}

// classifyIOErr классифицирует сбой уже установленного обмена. Соединение
// состоялось, поэтому недоступностью сервиса такой сбой не считается.
func classifyIOErr(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", e.ErrTimeout, err)
	}
	return err
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
