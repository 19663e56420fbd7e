package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/purplesyringa/sunwalker-conductor/blob"
	"github.com/purplesyringa/sunwalker-conductor/log"
	"github.com/purplesyringa/sunwalker-conductor/metrics"
	"github.com/purplesyringa/sunwalker-conductor/relay"
	"github.com/purplesyringa/sunwalker-conductor/session"
	"github.com/purplesyringa/sunwalker-conductor/types"
	"github.com/purplesyringa/sunwalker-conductor/wire"
)

const testProblemXML = `<?xml version="1.0"?>
<problem>
  <judging input-file="input.txt" output-file="output.txt">
    <testset name="tests">
      <time-limit>1000</time-limit>
      <memory-limit>268435456</memory-limit>
      <test-count>1</test-count>
      <input-path-pattern>tests/%d</input-path-pattern>
      <answer-path-pattern>tests/%d.a</answer-path-pattern>
      <tests><test method="manual"/></tests>
    </testset>
  </judging>
  <assets>
    <checker name="c" type="testlib">
      <source path="files/check.cpp" type="cpp"/>
      <binary path="bin/check" type="executable"/>
    </checker>
  </assets>
</problem>`

// writeTestPackage lays out a minimal Polygon package on disk under
// root/dir, for exercising the ingest admin route end-to-end.
func writeTestPackage(t *testing.T, root, dir string) {
	t.Helper()
	base := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "bin"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "tests"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "problem.xml"), []byte(testProblemXML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "bin", "check"), []byte("checker-binary"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "tests", "1"), []byte("in"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "tests", "1.a"), []byte("ans"), 0o644))
}

func newTestServer(t *testing.T) (*httptest.Server, *session.Conductor) {
	t.Helper()
	conductor := session.NewConductor(blob.NewMemoryStore(), relay.NewNoopSink(), metrics.NewCollector())
	var buf strings.Builder
	server := NewServer(conductor, log.NewLogger().WithOutput(&buf), t.TempDir())
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	return httpServer, conductor
}

func dialWebsocket(t *testing.T, httpServer *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/invokers"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendI2C(t *testing.T, conn *websocket.Conn, msg *wire.I2C) {
	t.Helper()
	payload, err := msgpack.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, payload))
}

func TestHandshakeRegistersInvoker(t *testing.T) {
	httpServer, conductor := newTestServer(t)
	conn := dialWebsocket(t, httpServer)

	sendI2C(t, conn, &wire.I2C{Kind: wire.I2CHandshake, Handshake: &wire.Handshake{InvokerName: "invoker-a"}})

	require.Eventually(t, func() bool {
		_, ok := conductor.Invoker("invoker-a")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestNonHandshakeFirstMessageClosesConnection(t *testing.T) {
	httpServer, _ := newTestServer(t)
	conn := dialWebsocket(t, httpServer)

	sendI2C(t, conn, &wire.I2C{Kind: wire.I2CUpdateMode, UpdateMode: &wire.UpdateMode{}})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestSubmissionAdminEndpoints(t *testing.T) {
	httpServer, conductor := newTestServer(t)
	conn := dialWebsocket(t, httpServer)

	sendI2C(t, conn, &wire.I2C{Kind: wire.I2CHandshake, Handshake: &wire.Handshake{InvokerName: "invoker-a"}})
	require.Eventually(t, func() bool {
		_, ok := conductor.Invoker("invoker-a")
		return ok
	}, time.Second, 10*time.Millisecond)

	conductor.PublishRevision("prob-1", "rev-1", &types.ProblemRevision{
		DependencyGraph: types.DependencyGraph{DependentsOf: map[uint64][]uint64{1: {}}},
	})
	require.NoError(t, conductor.AddSubmission("invoker-a", 0, "sub-1", "prob-1", "rev-1", "cpp", nil, nil))

	resp, err := http.Get(httpServer.URL + "/submissions/sub-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view submissionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.Equal(t, "sub-1", view.SubmissionID)
	require.Equal(t, 1, view.TotalTests)

	resp2, err := http.Get(httpServer.URL + "/submissions/ghost")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)

	resp3, err := http.Post(httpServer.URL+"/submissions/sub-1/finalize", "application/json", nil)
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.Equal(t, http.StatusNoContent, resp3.StatusCode)

	_, ok := conductor.Submission("sub-1")
	require.False(t, ok)
}

func TestMetricsEndpointReportsCounters(t *testing.T) {
	httpServer, conductor := newTestServer(t)
	conn := dialWebsocket(t, httpServer)
	sendI2C(t, conn, &wire.I2C{Kind: wire.I2CHandshake, Handshake: &wire.Handshake{InvokerName: "invoker-a"}})
	require.Eventually(t, func() bool {
		_, ok := conductor.Invoker("invoker-a")
		return ok
	}, time.Second, 10*time.Millisecond)

	resp, err := http.Get(httpServer.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap metrics.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Equal(t, int64(1), snap.InvokersConnected)
}

func TestIsCleanClose(t *testing.T) {
	require.False(t, isCleanClose(context.Canceled))
}

func TestIngestAndDispatchEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeTestPackage(t, root, "probs/1")

	conductor := session.NewConductor(blob.NewMemoryStore(), relay.NewNoopSink(), metrics.NewCollector())
	var buf strings.Builder
	server := NewServer(conductor, log.NewLogger().WithOutput(&buf), root)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	conn := dialWebsocket(t, httpServer)
	sendI2C(t, conn, &wire.I2C{Kind: wire.I2CHandshake, Handshake: &wire.Handshake{InvokerName: "invoker-a"}})
	require.Eventually(t, func() bool {
		_, ok := conductor.Invoker("invoker-a")
		return ok
	}, time.Second, 10*time.Millisecond)

	ingestURL := httpServer.URL + "/problems/prob-1/revisions/rev-1?dir=probs/1"
	resp, err := http.Post(ingestURL, "application/octet-stream", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := json.Marshal(dispatchRequest{
		InvokerName:  "invoker-a",
		SubmissionID: "sub-ingest",
		ProblemID:    "prob-1",
		RevisionID:   "rev-1",
		Language:     "cpp",
	})
	require.NoError(t, err)
	resp2, err := http.Post(httpServer.URL+"/submissions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusAccepted, resp2.StatusCode)

	_, ok := conductor.Submission("sub-ingest")
	require.True(t, ok)
}

func TestIngestRejectsBadPackageAsBadRequest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "probs/bad"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "probs/bad/problem.xml"), []byte(`<problem><judging/><assets><checker type="other"><source path="x" type="cpp"/><binary path="bin/check" type="executable"/></checker></assets></problem>`), 0o644))

	conductor := session.NewConductor(blob.NewMemoryStore(), relay.NewNoopSink(), metrics.NewCollector())
	var buf strings.Builder
	server := NewServer(conductor, log.NewLogger().WithOutput(&buf), root)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	resp, err := http.Post(httpServer.URL+"/problems/prob-1/revisions/rev-1?dir=probs/bad", "application/octet-stream", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDispatchUnknownInvokerIsServerError(t *testing.T) {
	httpServer, _ := newTestServer(t)
	body, err := json.Marshal(dispatchRequest{InvokerName: "ghost", SubmissionID: "s", ProblemID: "p", RevisionID: "r"})
	require.NoError(t, err)
	resp, err := http.Post(httpServer.URL+"/submissions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
