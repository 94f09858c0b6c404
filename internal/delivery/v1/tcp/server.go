package tcp

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/DRSN-tech/ml-service/internal/cfg"
	"github.com/DRSN-tech/ml-service/pkg/e"
	"github.com/DRSN-tech/ml-service/pkg/logger"
)

// maxMessageSize ограничивает размер тела запроса.
const maxMessageSize = 16 << 20

// HandlerFunc обрабатывает запрос одного действия. Возвращённое значение
// сериализуется в result успешного ответа; ошибка превращается в ответ
// транспортного уровня со status="error".
type HandlerFunc func(ctx context.Context, data json.RawMessage) (any, error)

// Server — TCP-сервер протокола анализа: одно соединение, один запрос,
// один ответ.
type Server struct {
	cfg      *cfg.TCPConfig
	logger   logger.Logger
	handlers map[string]HandlerFunc

	listener net.Listener
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
}

func NewServer(config *cfg.TCPConfig, log logger.Logger) *Server {
	return &Server{
		cfg:      config,
		logger:   log,
		handlers: make(map[string]HandlerFunc),
		done:     make(chan struct{}),
	}
}

// RegisterHandler регистрирует обработчик действия. Вызывается до Start.
func (s *Server) RegisterHandler(action string, handler HandlerFunc) {
	s.handlers[action] = handler
}

// Start открывает слушающий сокет и принимает соединения до вызова Stop.
func (s *Server) Start() error {
	const op = "tcp.Server.Start"

	listener, err := net.Listen(s.cfg.NetworkMode, net.JoinHostPort(s.cfg.Host, s.cfg.Port))
	if err != nil {
		return e.Wrap(op, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Infof("TCP сервер анализа запущен на %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			return e.Wrap(op, err)
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Addr возвращает фактический адрес слушающего сокета.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop закрывает слушающий сокет и ждёт завершения активных соединений
// либо истечения ctx.
func (s *Server) Stop(ctx context.Context) error {
	close(s.done)

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.logger.Infof("TCP сервер анализа остановлен")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}

	payload, err := readFrame(conn)
	if err != nil {
		// Клиент оборвал соединение посреди кадра: отвечаем по мере
		// возможности и закрываемся.
		if !errors.Is(err, io.EOF) {
			s.logger.Warnf("чтение запроса: %v", err)
		}
		s.writeResponse(conn, NewErrorResponse("Conexión cerrada inesperadamente", nil))
		return
	}

	request, err := ParseRequest(payload)
	if err != nil {
		s.logger.Warnf("разбор запроса: %v", err)
		s.writeResponse(conn, NewErrorResponse(fmt.Sprintf("Error del servidor: %v", err), nil))
		return
	}

	response := s.processRequest(context.Background(), request)
	s.writeResponse(conn, response)
}

// processRequest диспетчеризует запрос в обработчик действия. Паника и
// ошибка обработчика превращаются в ответ со status="error".
func (s *Server) processRequest(ctx context.Context, request *Request) (response *Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf(fmt.Errorf("%v", r), "паника в обработчике действия %s", request.Action)
			response = NewErrorResponse(fmt.Sprintf("Error del servidor: %v", r), request.RequestID)
		}
	}()

	handler, ok := s.handlers[request.Action]
	if !ok {
		return NewErrorResponse(fmt.Sprintf("Acción no soportada: %s", request.Action), request.RequestID)
	}

	result, err := handler(ctx, request.Data)
	if err != nil {
		return NewErrorResponse(err.Error(), request.RequestID)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Error del servidor: %v", err), request.RequestID)
	}

	return NewSuccessResponse(raw, request.RequestID)
}

// readFrame читает заголовок длины и тело запроса целиком.
func readFrame(conn net.Conn) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header)
	if length > maxMessageSize {
		return nil, fmt.Errorf("%w: длина %d превышает предел %d", e.ErrIncompleteMessage, length, maxMessageSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}

	return payload, nil
}

func (s *Server) writeResponse(conn net.Conn, response *Response) {
	frame, err := EncodeMessage(response)
	if err != nil {
		s.logger.Errorf(err, "сериализация ответа")
		return
	}

	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
	if _, err := conn.Write(frame); err != nil {
		s.logger.Warnf("запись ответа: %v", err)
	}
}
