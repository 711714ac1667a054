package broker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client is a thin synchronous wire-protocol client.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to addr and authenticates with authKey (sent even if empty;
// the server only checks it when it has a non-empty key configured).
func Dial(addr string, authKey string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("broker client: dial %q: %w", addr, err)
	}

	if err := json.NewEncoder(conn).Encode(authFrame{Key: authKey}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker client: authenticating: %w", err)
	}

	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one request frame and returns its decoded result, or the
// server's reported error.
func (c *Client) Call(frame Frame) (any, error) {
	buf, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("broker client: encoding request: %w", err)
	}

	buf = append(buf, '\n')

	if _, err := c.conn.Write(buf); err != nil {
		return nil, fmt.Errorf("broker client: sending request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("broker client: reading response: %w", err)
	}

	var resp wireResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("broker client: decoding response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("broker client: %s: %s", resp.Error.Kind, resp.Error.Message)
	}

	return resp.Result, nil
}
