package broker

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()

	buf, err := json.Marshal(v)
	require.NoError(t, err)

	return buf
}

func startTestServer(t *testing.T, authKey string) (addr string, b *Broker) {
	t.Helper()

	b = newTestBroker(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewServer(b, authKey, NopLogger{})

	go server.Serve(ln)
	t.Cleanup(func() { ln.Close() })

	return ln.Addr().String(), b
}

func Test_Wire_Create_And_List_Round_Trip(t *testing.T) {
	addr, _ := startTestServer(t, "")

	client, err := Dial(addr, "", time.Second)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Call(Frame{
		Command: CmdCreate,
		Series:  "remote-series",
		Args: rawJSON(t, map[string]any{
			"series_type":   "period",
			"start":         "2011-01-01T00:00:00Z",
			"interval":      1800,
			"timezone_name": "UTC",
			"archives": []map[string]any{
				{"aggregation_type": "average", "aggregation": 1, "count": 10, "threshold": 0.5},
			},
		}),
	})
	require.NoError(t, err)

	result, err := client.Call(Frame{Command: CmdList})
	require.NoError(t, err)

	slugs, ok := result.([]any)
	require.True(t, ok)
	require.Contains(t, slugs, "remote-series")
}

func Test_Wire_Rejects_Wrong_Auth_Key(t *testing.T) {
	addr, _ := startTestServer(t, "correct-key")

	client, err := Dial(addr, "wrong-key", time.Second)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Call(Frame{Command: CmdList})
	require.Error(t, err)
}

func Test_Wire_Accepts_Correct_Auth_Key(t *testing.T) {
	addr, _ := startTestServer(t, "correct-key")

	client, err := Dial(addr, "correct-key", time.Second)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Call(Frame{Command: CmdList})
	require.NoError(t, err)
}

func Test_Wire_Unknown_Command_Returns_Error_Without_Killing_Connection(t *testing.T) {
	addr, _ := startTestServer(t, "")

	client, err := Dial(addr, "", time.Second)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Call(Frame{Command: "bogus"})
	require.Error(t, err)

	_, err = client.Call(Frame{Command: CmdList})
	require.NoError(t, err)
}
