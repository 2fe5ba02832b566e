package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-framebridge/pkg/bridge"
	"github.com/teslashibe/go-framebridge/pkg/dlm"
	"github.com/teslashibe/go-framebridge/pkg/handle"
)

var errRoutinePanic = errors.New("web: routine panicked")

// CallRequest is the body of POST /api/call/:routine.
type CallRequest struct {
	Args []any `json:"args"`
}

// CallResponse carries a routine result. Args echoes the arguments after
// the call so procedures that write back through their parameters (such
// as releasing a capture) are visible to the caller.
type CallResponse struct {
	ID     string `json:"id,omitempty"`
	Result any    `json:"result,omitempty"`
	Args   []any  `json:"args,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WSCall is one websocket request message.
type WSCall struct {
	ID      string `json:"id"`
	Routine string `json:"routine"`
	Args    []any  `json:"args"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleListRoutines(c *fiber.Ctx) error {
	return c.JSON(s.table.Routines())
}

func (s *Server) handleCall(c *fiber.Ctx) error {
	routine := c.Params("routine")

	var req CallRequest
	if len(c.Body()) > 0 {
		if err := decode(c.Body(), &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(CallResponse{Error: "invalid request body: " + err.Error()})
		}
	}

	result, err := s.call(c.UserContext(), routine, req.Args)
	if err != nil {
		s.logger.Debug("routine failed", "routine", routine, "error", err)
		return c.Status(statusFor(err)).JSON(CallResponse{Args: req.Args, Error: err.Error()})
	}
	return c.JSON(CallResponse{Result: result, Args: req.Args})
}

// handleCallWS serves routine calls over one websocket, answering each
// message before dispatching the next. Calls run with a context that is
// cancelled once the connection goes away.
func (s *Server) handleCallWS(c *websocket.Conn) {
	conn := uuid.NewString()
	log := s.logger.With("conn", conn)
	log.Debug("websocket connected")
	defer log.Debug("websocket disconnected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := make(chan []byte)
	go func() {
		defer cancel()
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var msg []byte
		select {
		case msg = <-msgs:
		case <-ctx.Done():
			return
		}

		var call WSCall
		if err := decode(msg, &call); err != nil {
			c.WriteJSON(CallResponse{Error: "invalid message: " + err.Error()})
			continue
		}
		if call.ID == "" {
			call.ID = uuid.NewString()
		}

		resp := CallResponse{ID: call.ID, Args: call.Args}
		result, err := s.call(ctx, call.Routine, call.Args)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Result = result
		}
		if err := c.WriteJSON(resp); err != nil {
			log.Warn("websocket write failed", "error", err)
			return
		}
	}
}

// call dispatches to the routine table, turning a panic into an error so
// one bad call cannot take down the transport.
func (s *Server) call(ctx context.Context, routine string, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("routine panicked", "routine", routine, "panic", r)
			result, err = nil, fmt.Errorf("%w: %s: %v", errRoutinePanic, routine, r)
		}
	}()
	return s.table.Call(ctx, routine, args)
}

// decode keeps numbers as json.Number so 64-bit capture tokens survive.
func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dlm.ErrUnknownRoutine):
		return fiber.StatusNotFound
	case errors.Is(err, dlm.ErrArity),
		errors.Is(err, dlm.ErrBadArgument),
		errors.Is(err, handle.ErrInvalidHandle),
		errors.Is(err, handle.ErrInaccessibleHandle):
		return fiber.StatusBadRequest
	case errors.Is(err, bridge.ErrOpenFailed),
		errors.Is(err, bridge.ErrNoFrame):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
