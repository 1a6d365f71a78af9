package tcp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"flichub/internal/hub"
	"flichub/internal/relay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// TCPLoadTestSuite covers many clients and hostile input against one server.
type TCPLoadTestSuite struct {
	suite.Suite
	hub    *hub.MemoryHub
	server *TCPServer
	addr   string
}

func (s *TCPLoadTestSuite) SetupTest() {
	s.hub = hub.NewMemoryHub()
	s.hub.UpsertButton(hub.Button{BdAddr: "AA:BB:CC:DD:EE:FF", BatteryStatus: 50})

	opts := relay.DefaultOptions()
	opts.IdlePulse = false
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	s.server = NewServer("127.0.0.1:0", s.hub, nil, opts)
	go s.server.Start()
	select {
	case <-s.server.Ready():
	case <-time.After(2 * time.Second):
		s.T().Fatal("server did not start")
	}
	s.addr = s.server.ListenAddr().String()
}

func (s *TCPLoadTestSuite) TearDownTest() {
	s.server.Stop()
}

// every connected client gets the event exactly once
func (s *TCPLoadTestSuite) TestConcurrentClients_EventFanout() {
	t := s.T()
	const numClients = 50

	conns := make([]net.Conn, 0, numClients)
	for i := 0; i < numClients; i++ {
		conn, err := net.DialTimeout("tcp", s.addr, 5*time.Second)
		require.NoError(t, err, "client %d should connect", i)
		conns = append(conns, conn)
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	require.Eventually(t, func() bool {
		return s.hub.TotalSubscribers() == numClients*len(hub.RelayedEvents)
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.hub.Emit(context.Background(), hub.EventButtonUp, "AA:BB:CC:DD:EE:FF", hub.ClickFlags{}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	received := 0
	for i, conn := range conns {
		wg.Add(1)
		go func(id int, conn net.Conn) {
			defer wg.Done()
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			line, err := bufio.NewReader(conn).ReadString('\n')
			if err != nil {
				t.Logf("client %d: %v", id, err)
				return
			}
			if strings.Contains(line, `"action":"up"`) {
				mu.Lock()
				received++
				mu.Unlock()
			}
		}(i, conn)
	}
	wg.Wait()

	assert.Equal(t, numClients, received, "all clients should receive the event")
}

// no subscription may outlive its socket
func (s *TCPLoadTestSuite) TestRapidConnectDisconnect() {
	t := s.T()
	const iterations = 100

	for i := 0; i < iterations; i++ {
		conn, err := net.DialTimeout("tcp", s.addr, 2*time.Second)
		require.NoError(t, err, "connection %d should succeed", i)
		assert.NoError(t, conn.Close())
	}

	require.Eventually(t, func() bool {
		return s.server.Manager.Count() == 0 && s.hub.TotalSubscribers() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func (s *TCPLoadTestSuite) TestPingLatency_P95() {
	t := s.T()
	conn, err := net.DialTimeout("tcp", s.addr, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	reader := bufio.NewReader(conn)

	const iterations = 100
	latencies := make([]time.Duration, 0, iterations)
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, err := conn.Write([]byte("ping\n"))
		require.NoError(t, err)

		conn.SetReadDeadline(time.Now().Add(time.Second))
		line, err := reader.ReadString('\n')
		require.NoError(t, err, "should receive pong %d", i)
		require.Equal(t, "pong\n", line)
		latencies = append(latencies, time.Since(start))
	}

	p95 := percentile(latencies, 95)
	assert.Less(t, p95, 100*time.Millisecond, "P95 ping latency should be under 100ms")
	t.Logf("ping latency P50: %v, P95: %v", percentile(latencies, 50), p95)
}

// garbage and oversized lines are dropped; the connection keeps working
func (s *TCPLoadTestSuite) TestMalformedInput() {
	t := s.T()
	conn, err := net.DialTimeout("tcp", s.addr, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	junk := []string{
		"{not json}\n",
		"\x00\x01\x02\xff\n",
		"battery\n",
		"BUTTONS\n",
		strings.Repeat("x", relay.MaxMessageSize+10) + "\n",
		"   \n\n",
	}
	for _, j := range junk {
		_, err := conn.Write([]byte(j))
		require.NoError(t, err)
	}
	_, err = conn.Write([]byte("ping\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "pong\n", line, "the first reply is the pong")
}

func (s *TCPLoadTestSuite) TestClientDisconnectsMidCommand() {
	t := s.T()
	conn, err := net.DialTimeout("tcp", s.addr, 5*time.Second)
	require.NoError(t, err)

	_, err = conn.Write([]byte("batt"))
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		return s.server.Manager.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)

	// server still serves new clients
	other, err := net.DialTimeout("tcp", s.addr, 5*time.Second)
	require.NoError(t, err)
	defer other.Close()
	other.Write([]byte("ping\n"))
	other.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(other).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "pong\n", line)
}

func TestTCPLoadTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load tests in short mode")
	}
	suite.Run(t, new(TCPLoadTestSuite))
}

func TestConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err, "should fail to connect to a closed port")
	assert.Nil(t, conn)
}

func BenchmarkCommandThroughput(b *testing.B) {
	h := hub.NewMemoryHub()
	for i := 0; i < 20; i++ {
		h.UpsertButton(hub.Button{BdAddr: fmt.Sprintf("AA:BB:CC:DD:EE:%02X", i)})
	}
	opts := relay.DefaultOptions()
	opts.SendQueueSize = 1024
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	server := NewServer("127.0.0.1:0", h, nil, opts)
	go server.Start()
	<-server.Ready()
	defer server.Stop()

	conn, err := net.Dial("tcp", server.ListenAddr().String())
	if err != nil {
		b.Fatal(err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := conn.Write([]byte("buttons\n")); err != nil {
			b.Fatal(err)
		}
		if _, err := reader.ReadString('\n'); err != nil {
			b.Fatal(err)
		}
	}
}

func percentile(durations []time.Duration, p int) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := (p * len(sorted)) / 100
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
