package mlclient

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/ml-service/internal/cfg"
	"github.com/DRSN-tech/ml-service/internal/delivery/v1/tcp"
	"github.com/DRSN-tech/ml-service/pkg/e"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)        {}
func (nopLogger) Infof(string, ...any)         {}
func (nopLogger) Warnf(string, ...any)         {}
func (nopLogger) Errorf(error, string, ...any) {}

// startServer поднимает сервер протокола с переданными обработчиками.
func startServer(t *testing.T, handlers map[string]tcp.HandlerFunc) *Client {
	t.Helper()

	server := tcp.NewServer(&cfg.TCPConfig{
		Host:        "127.0.0.1",
		Port:        "0",
		NetworkMode: "tcp",
		ReadTimeout: 5 * time.Second,
	}, nopLogger{})
	for action, handler := range handlers {
		server.RegisterHandler(action, handler)
	}

	go func() {
		_ = server.Start()
	}()
	require.Eventually(t, func() bool { return server.Addr() != nil }, time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})

	host, port, err := net.SplitHostPort(server.Addr().String())
	require.NoError(t, err)
	return New(host, port, 2*time.Second)
}

func TestClientPing(t *testing.T) {
	client := startServer(t, map[string]tcp.HandlerFunc{
		"ping": func(context.Context, json.RawMessage) (any, error) {
			return map[string]string{"message": "pong", "status": "healthy"}, nil
		},
	})

	assert.NoError(t, client.Ping(context.Background()))
}

func TestClientStatus(t *testing.T) {
	client := startServer(t, map[string]tcp.HandlerFunc{
		"status": func(context.Context, json.RawMessage) (any, error) {
			return map[string]any{
				"service":  "services_ML",
				"version":  "1.0.0",
				"status":   "running",
				"features": []string{"clustering"},
			}, nil
		},
	})

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "services_ML", status.Service)
	assert.Equal(t, []string{"clustering"}, status.Features)
}

func TestClientClusterDocuments(t *testing.T) {
	var gotData json.RawMessage
	client := startServer(t, map[string]tcp.HandlerFunc{
		"cluster_documents": func(_ context.Context, data json.RawMessage) (any, error) {
			gotData = data
			return map[string]any{
				"success":         true,
				"user_id":         "user-1",
				"total_documents": 9,
				"num_clusters":    3,
				"clusters": []map[string]any{
					{"cluster_id": 0, "label": "Factura", "size": 3, "keywords": []string{"factura"}},
				},
			}, nil
		},
	})

	result, err := client.ClusterDocuments(context.Background(), &ClusterDocumentsRequest{
		UserID:         "user-1",
		ForceRecluster: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.NumClusters)
	require.Len(t, result.Clusters, 1)
	assert.Equal(t, "Factura", result.Clusters[0].Label)

	assert.JSONEq(t, `{"user_id":"user-1","force_recluster":true}`, string(gotData))
}

func TestClientDomainFailure(t *testing.T) {
	client := startServer(t, map[string]tcp.HandlerFunc{
		"recommend_similar": func(context.Context, json.RawMessage) (any, error) {
			return map[string]any{"success": false, "error": "No se encontraron documentos similares"}, nil
		},
	})

	_, err := client.RecommendSimilar(context.Background(), &RecommendSimilarRequest{DocumentID: "doc-1"})
	var domainErr *e.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "No se encontraron documentos similares", domainErr.Message)
}

func TestClientTransportError(t *testing.T) {
	// Действие не зарегистрировано: сервер отвечает транспортной ошибкой.
	client := startServer(t, map[string]tcp.HandlerFunc{})

	_, err := client.GetClusters(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Acción no soportada: get_clusters")
}

func TestClientServiceUnavailable(t *testing.T) {
	// Никто не слушает на этом адресе.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	require.NoError(t, listener.Close())

	client := New(host, port, 500*time.Millisecond)
	err = client.Ping(context.Background())
	assert.ErrorIs(t, err, e.ErrServiceUnavailable)
}

func TestClientTimeout(t *testing.T) {
	// Сервер принимает соединение и молчит.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })
	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			time.Sleep(2 * time.Second)
			_ = conn.Close()
		}
	}()

	host, port, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)

	client := New(host, port, 200*time.Millisecond)
	err = client.Ping(context.Background())
	assert.ErrorIs(t, err, e.ErrTimeout)
}

func TestClientMalformedResponseIsGenericError(t *testing.T) {
	// Соединение состоялось, но сервер прислал нечитаемый кадр: это не
	// недоступность и не таймаут.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })
	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		payload := []byte("{no es json")
		frame := make([]byte, 4+len(payload))
		binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
		copy(frame[4:], payload)
		_, _ = conn.Write(frame)
	}()

	host, port, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)

	client := New(host, port, time.Second)
	err = client.Ping(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, e.ErrServiceUnavailable)
	assert.NotErrorIs(t, err, e.ErrTimeout)
}
