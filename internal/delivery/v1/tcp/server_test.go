package tcp

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/ml-service/internal/cfg"
	"github.com/DRSN-tech/ml-service/internal/usecase"
	"github.com/DRSN-tech/ml-service/pkg/e"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)        {}
func (nopLogger) Infof(string, ...any)         {}
func (nopLogger) Warnf(string, ...any)         {}
func (nopLogger) Errorf(error, string, ...any) {}

// fakeAnalysisUC возвращает заранее заданные результаты сценариев.
type fakeAnalysisUC struct {
	clusterRes *usecase.ClusterDocumentsRes
	clusterErr error
	lastReq    *usecase.ClusterDocumentsReq
}

func (f *fakeAnalysisUC) ClusterDocuments(_ context.Context, req *usecase.ClusterDocumentsReq) (*usecase.ClusterDocumentsRes, error) {
	f.lastReq = req
	return f.clusterRes, f.clusterErr
}

func (f *fakeAnalysisUC) GetClusters(context.Context, *usecase.GetClustersReq) (*usecase.GetClustersRes, error) {
	return &usecase.GetClustersRes{Success: true}, nil
}

func (f *fakeAnalysisUC) ExtractTopics(context.Context, *usecase.ExtractTopicsReq) (*usecase.ExtractTopicsRes, error) {
	return &usecase.ExtractTopicsRes{Success: true}, nil
}

func (f *fakeAnalysisUC) RecommendSimilar(context.Context, *usecase.RecommendSimilarReq) (*usecase.RecommendSimilarRes, error) {
	return &usecase.RecommendSimilarRes{Success: true}, nil
}

func (f *fakeAnalysisUC) UpdateVisualization(context.Context, *usecase.UpdateVisualizationReq) (*usecase.VisualizationRes, error) {
	return &usecase.VisualizationRes{Success: true}, nil
}

func (f *fakeAnalysisUC) GetVisualization(context.Context, *usecase.GetVisualizationReq) (*usecase.VisualizationRes, error) {
	panic("нет соединения с базой")
}

// startServer поднимает сервер на свободном порту и останавливает его по
// завершении теста.
func startServer(t *testing.T, uc usecase.AnalysisUC) string {
	t.Helper()

	server := NewServer(&cfg.TCPConfig{
		Host:        "127.0.0.1",
		Port:        "0",
		NetworkMode: "tcp",
		ReadTimeout: 5 * time.Second,
	}, nopLogger{})
	RegisterHandlers(server, uc)

	go func() {
		_ = server.Start()
	}()
	require.Eventually(t, func() bool { return server.Addr() != nil }, time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})

	return server.Addr().String()
}

// exchange отправляет кадр и читает ответ с сокета.
func exchange(t *testing.T, addr string, frame []byte) *Response {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, err = conn.Write(frame)
	require.NoError(t, err)

	response, err := readResponse(conn)
	require.NoError(t, err)
	return response
}

func readResponse(conn net.Conn) (*Response, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}
	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}
	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func encodeRequest(t *testing.T, action string, data any, requestID *string) []byte {
	t.Helper()

	var raw json.RawMessage
	if data != nil {
		payload, err := json.Marshal(data)
		require.NoError(t, err)
		raw = payload
	}
	frame, err := EncodeMessage(&Request{Action: action, Data: raw, RequestID: requestID})
	require.NoError(t, err)
	return frame
}

func TestServerPing(t *testing.T) {
	addr := startServer(t, &fakeAnalysisUC{})

	response := exchange(t, addr, encodeRequest(t, ActionPing, nil, nil))
	require.Equal(t, StatusSuccess, response.Status)
	assert.JSONEq(t, `{"message":"pong","status":"healthy"}`, string(response.Result))
}

func TestServerStatus(t *testing.T) {
	addr := startServer(t, &fakeAnalysisUC{})

	response := exchange(t, addr, encodeRequest(t, ActionStatus, nil, nil))
	require.Equal(t, StatusSuccess, response.Status)

	var result statusResult
	require.NoError(t, json.Unmarshal(response.Result, &result))
	assert.Equal(t, "services_ML", result.Service)
	assert.Equal(t, "running", result.Status)
	assert.Contains(t, result.Features, "clustering")
	assert.Contains(t, result.Features, "temporal_analysis")
}

func TestServerDispatchesRequestData(t *testing.T) {
	uc := &fakeAnalysisUC{clusterRes: &usecase.ClusterDocumentsRes{
		Success:     true,
		UserID:      "user-1",
		NumClusters: 2,
	}}
	addr := startServer(t, uc)

	requestID := "req-1"
	data := map[string]any{"user_id": "user-1", "force_recluster": true}
	response := exchange(t, addr, encodeRequest(t, ActionClusterDocuments, data, &requestID))

	require.Equal(t, StatusSuccess, response.Status)
	require.NotNil(t, response.RequestID)
	assert.Equal(t, "req-1", *response.RequestID, "request_id возвращается в ответе")

	require.NotNil(t, uc.lastReq)
	assert.Equal(t, "user-1", uc.lastReq.UserID)
	assert.True(t, uc.lastReq.ForceRecluster)

	var result usecase.ClusterDocumentsRes
	require.NoError(t, json.Unmarshal(response.Result, &result))
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.NumClusters)
}

func TestServerDomainErrorStaysInResult(t *testing.T) {
	uc := &fakeAnalysisUC{clusterErr: &e.DomainError{Message: "user_id es requerido"}}
	addr := startServer(t, uc)

	response := exchange(t, addr, encodeRequest(t, ActionClusterDocuments, map[string]any{}, nil))

	// Отказ сценария не является ошибкой транспорта.
	require.Equal(t, StatusSuccess, response.Status)
	assert.JSONEq(t, `{"success":false,"error":"user_id es requerido"}`, string(response.Result))
}

func TestServerUnknownAction(t *testing.T) {
	addr := startServer(t, &fakeAnalysisUC{})

	response := exchange(t, addr, encodeRequest(t, "get_topic_trends", nil, nil))
	require.Equal(t, StatusError, response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, "Acción no soportada: get_topic_trends", *response.Error)
}

func TestServerHandlerPanicBecomesServerError(t *testing.T) {
	addr := startServer(t, &fakeAnalysisUC{})

	response := exchange(t, addr, encodeRequest(t, ActionGetVisualization, map[string]any{"user_id": "user-1"}, nil))
	require.Equal(t, StatusError, response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, "Error del servidor: нет соединения с базой", *response.Error)
}

func TestServerNonRequestMessage(t *testing.T) {
	addr := startServer(t, &fakeAnalysisUC{})

	frame, err := EncodeMessage(map[string]any{"status": "success"})
	require.NoError(t, err)

	response := exchange(t, addr, frame)
	require.Equal(t, StatusError, response.Status)
	require.NotNil(t, response.Error)
	assert.Contains(t, *response.Error, "Error del servidor")
}

func TestServerTruncatedFrame(t *testing.T) {
	addr := startServer(t, &fakeAnalysisUC{})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	// Заголовок обещает 100 байт, соединение закрывается на записи раньше.
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, 100)
	_, err = conn.Write(header)
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	response, err := readResponse(conn)
	require.NoError(t, err)
	require.Equal(t, StatusError, response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, "Conexión cerrada inesperadamente", *response.Error)
}

func TestServerAnalyzeTrendsStub(t *testing.T) {
	addr := startServer(t, &fakeAnalysisUC{})

	response := exchange(t, addr, encodeRequest(t, ActionAnalyzeTrends, map[string]any{"user_id": "user-1"}, nil))
	require.Equal(t, StatusSuccess, response.Status)
	assert.JSONEq(t, `{"success":false,"error":"Análisis temporal no implementado aún"}`, string(response.Result))
}
