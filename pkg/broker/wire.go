package broker

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/ringdb/ringdb/pkg/ringdb"
)

// wireResponse is the response envelope: Error is set on failure; otherwise
// Result carries the command's value and is omitted when that value is nil.
type wireResponse struct {
	Result any         `json:"result,omitempty"`
	Error  *wireError  `json:"error,omitempty"`
}

type wireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// authFrame is the first frame a client must send on a new connection.
type authFrame struct {
	Key string `json:"key"`
}

// Server serves the broker's wire protocol over a net.Listener.
type Server struct {
	broker  *Broker
	authKey string
	logger  Logger
}

// NewServer wraps b to serve connections requiring authKey (if non-empty).
func NewServer(b *Broker, authKey string, logger Logger) *Server {
	if logger == nil {
		logger = NopLogger{}
	}

	return &Server{broker: b, authKey: authKey, logger: logger}
}

// Serve accepts connections on ln until it returns an error (typically
// because ln was closed during shutdown).
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}

		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	encoder := json.NewEncoder(conn)

	authLine, authErr := reader.ReadBytes('\n')

	var auth authFrame
	if authErr == nil {
		authErr = json.Unmarshal(authLine, &auth)
	}

	if authErr != nil || (s.authKey != "" && auth.Key != s.authKey) {
		encoder.Encode(wireResponse{Error: toWireError(ErrAuth)})
		return
	}

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return
		}

		var frame Frame
		if unmarshalErr := json.Unmarshal(line, &frame); unmarshalErr != nil {
			encoder.Encode(wireResponse{Error: toWireError(fmt.Errorf("%w: %w", ErrClientError, unmarshalErr))})
			if err != nil {
				return
			}

			continue
		}

		result, execErr := s.handle(frame)
		if execErr != nil {
			encoder.Encode(wireResponse{Error: toWireError(execErr)})
		} else {
			encoder.Encode(wireResponse{Result: result})
		}

		if err != nil {
			return
		}
	}
}

func (s *Server) handle(frame Frame) (any, error) {
	action, err := ParseAction(frame)
	if err != nil {
		return nil, err
	}

	result, err := s.broker.Execute(action)
	if err != nil && !isDomainError(err) {
		s.logger.Errorf("broker: unexpected error handling %q: %v", frame.Command, err)
		return nil, fmt.Errorf("%w: %w", ringdb.ErrInternal, err)
	}

	return result, err
}

func isDomainError(err error) bool {
	for _, sentinel := range []error{
		ringdb.ErrSeriesNotFound,
		ringdb.ErrSeriesAlreadyExists,
		ringdb.ErrInvalidSlug,
		ringdb.ErrNoSuitableArchive,
		ringdb.ErrInvalidConfig,
		ringdb.ErrNegativeValueForAverage,
		ringdb.ErrSeriesLocked,
		ErrNoSuchCommand,
		ErrClientError,
		ErrAuth,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}

func toWireError(err error) *wireError {
	kind := "Internal"

	switch {
	case errors.Is(err, ringdb.ErrSeriesNotFound):
		kind = "SeriesNotFound"
	case errors.Is(err, ringdb.ErrSeriesAlreadyExists):
		kind = "SeriesAlreadyExists"
	case errors.Is(err, ringdb.ErrInvalidSlug):
		kind = "InvalidSlug"
	case errors.Is(err, ErrNoSuchCommand):
		kind = "NoSuchCommand"
	case errors.Is(err, ringdb.ErrNoSuitableArchive):
		kind = "NoSuitableArchive"
	case errors.Is(err, ringdb.ErrInvalidConfig):
		kind = "InvalidConfig"
	case errors.Is(err, ringdb.ErrNegativeValueForAverage):
		kind = "NegativeValueForAverage"
	case errors.Is(err, ringdb.ErrSeriesLocked):
		kind = "SeriesLocked"
	case errors.Is(err, ErrClientError):
		kind = "ClientError"
	case errors.Is(err, ErrAuth):
		kind = "AuthFailed"
	}

	return &wireError{Kind: kind, Message: err.Error()}
}
