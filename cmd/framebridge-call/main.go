// framebridge-call - calls framebridge routines over the websocket or HTTP transport
//
// Usage:
//
//	framebridge-call FRAMEBRIDGE_CAPTUREFROMCAM 0
//	framebridge-call -i        # one call per stdin line: ROUTINE [ARG...]
//	framebridge-call -http http://localhost:8090 FRAMEBRIDGE_READ '{"name":...}'
//
// Arguments are JSON values; anything that is not valid JSON is sent as a string.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-framebridge/internal/httpc"
	"github.com/teslashibe/go-framebridge/pkg/web"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8090/ws/call", "framebridge websocket endpoint")
	httpBase := flag.String("http", "", "Call over HTTP at this base URL instead of the websocket")
	interactive := flag.Bool("i", false, "Read calls from stdin, one per line")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-call timeout")
	flag.Parse()

	if !*interactive && flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: framebridge-call [-addr URL | -http URL] ROUTINE [ARG...] | -i")
		os.Exit(2)
	}

	var c caller
	if *httpBase != "" {
		c = &httpCaller{client: httpc.NewRoutineClient(*httpBase, httpc.NewClient(*timeout))}
	} else {
		dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
		conn, _, err := dialer.Dial(*addr, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to connect to %s: %v\n", *addr, err)
			os.Exit(1)
		}
		defer conn.Close()
		c = &wsCaller{conn: conn, timeout: *timeout}
	}

	if !*interactive {
		if err := run(c, flag.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		routine, args := parseLine(scanner.Text())
		if routine == "" || strings.HasPrefix(routine, "#") {
			continue
		}
		if err := report(c, routine, args); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		}
	}
}

// caller sends one routine call and returns the raw JSON reply.
type caller interface {
	call(routine string, args []any) ([]byte, error)
}

func run(c caller, fields []string) error {
	return report(c, fields[0], parseArgs(fields[1:]))
}

func report(c caller, routine string, args []any) error {
	data, err := c.call(routine, args)
	if data != nil {
		var out bytes.Buffer
		if json.Indent(&out, data, "", "  ") != nil {
			out.Reset()
			out.Write(data)
		}
		fmt.Println(out.String())
	}
	return err
}

type wsCaller struct {
	conn    *websocket.Conn
	timeout time.Duration
	seq     int
}

func (c *wsCaller) call(routine string, args []any) ([]byte, error) {
	c.seq++
	msg := web.WSCall{
		ID:      strconv.Itoa(c.seq),
		Routine: routine,
		Args:    args,
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	return data, nil
}

type httpCaller struct {
	client *httpc.RoutineClient
}

func (c *httpCaller) call(routine string, args []any) ([]byte, error) {
	data, err := c.client.Call(context.Background(), routine, args)
	var se *httpc.StatusError
	if errors.As(err, &se) {
		// The body already carries the error; print it rather than fail twice.
		return data, nil
	}
	return data, err
}

func parseArgs(raw []string) []any {
	args := make([]any, 0, len(raw))
	for _, s := range raw {
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil || dec.More() {
			args = append(args, s)
			continue
		}
		args = append(args, v)
	}
	return args
}

// parseLine splits an interactive line into the routine name and its
// arguments. Arguments are whole JSON values, so records and strings may
// contain spaces; text that does not decode is sent as a bare word.
func parseLine(line string) (string, []any) {
	routine, rest := nextWord(line)
	args := []any{}
	for rest = strings.TrimLeftFunc(rest, unicode.IsSpace); rest != ""; rest = strings.TrimLeftFunc(rest, unicode.IsSpace) {
		dec := json.NewDecoder(strings.NewReader(rest))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			args = append(args, v)
			rest = rest[dec.InputOffset():]
			continue
		}
		var word string
		word, rest = nextWord(rest)
		args = append(args, word)
	}
	return routine, args
}

func nextWord(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}
