package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/budget"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/event"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/provider"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/ratelimit"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/snapshot"
)

type testServer struct {
	engine *engine.Engine
	url    string
}

func newTestServer(t *testing.T, cfg Config, gen engine.Generator) *testServer {
	t.Helper()
	c, err := snapshot.NewCipher("server-test-secret")
	require.NoError(t, err)

	router := provider.NewRouter()
	router.Register("simulated", gen)

	ecfg := engine.DefaultConfig()
	ecfg.HeartbeatInterval = 0
	eng, err := engine.New(ecfg, engine.Dependencies{
		Store:     snapshot.NewStore(snapshot.NewMemoryBackend(time.Hour), c),
		Bus:       event.NewBus(500, nil),
		Budget:    budget.NewTracker(budget.DefaultConfig()),
		Limiter:   ratelimit.NewLocal(ratelimit.DefaultLimits(), ratelimit.DefaultFallback()),
		Generator: router,
	})
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	srv := httptest.NewServer(New(eng, cfg, nil))
	t.Cleanup(srv.Close)
	return &testServer{engine: eng, url: srv.URL}
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.url+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (ts *testServer) create(t *testing.T, topic string) engine.EngineState {
	t.Helper()
	code, env := ts.do(t, http.MethodPost, "/sessions", map[string]any{"topic": topic, "turnCount": 4})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var st engine.EngineState
	require.NoError(t, json.Unmarshal(env.Data, &st))
	return st
}

type sseMessage struct {
	id   uint64
	kind string
	data string
}

// readStream collects SSE messages until the server closes the stream.
func readStream(t *testing.T, resp *http.Response) (msgs []sseMessage, comments int) {
	t.Helper()
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	var cur sseMessage
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if cur.kind != "" {
				msgs = append(msgs, cur)
			}
			cur = sseMessage{}
		case strings.HasPrefix(line, ":"):
			comments++
		case strings.HasPrefix(line, "id: "):
			n, err := strconv.ParseUint(strings.TrimPrefix(line, "id: "), 10, 64)
			require.NoError(t, err)
			cur.id = n
		case strings.HasPrefix(line, "event: "):
			cur.kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		}
	}
	return msgs, comments
}

func openStream(t *testing.T, ctx context.Context, url, lastID string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return resp
}

func waitStatus(t *testing.T, ts *testServer, id string, want engine.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, err := ts.engine.GetState(context.Background(), id)
		return err == nil && st.Status == want
	}, 5*time.Second, 5*time.Millisecond)
}

func TestCreateAndGet(t *testing.T) {
	ts := newTestServer(t, DefaultConfig(), &provider.Simulated{})

	st := ts.create(t, "Remote work beats the office")
	assert.Equal(t, engine.StatusPending, st.Status)
	assert.Len(t, st.Plan, st.TotalTurns)

	code, env := ts.do(t, http.MethodGet, "/sessions/"+st.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", env.Status)

	code, env = ts.do(t, http.MethodGet, "/sessions/"+st.ID+"/turn", nil)
	require.Equal(t, http.StatusOK, code)
	var info engine.TurnInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.NotNil(t, info.CurrentTurn)
	assert.Equal(t, 0, info.CurrentTurn.Index)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, DefaultConfig(), &provider.Simulated{})

	code, env := ts.do(t, http.MethodPost, "/sessions", map[string]any{"topic": "x", "turnCount": 12})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, errors.CodeInvalidInput, env.Code)

	code, env = ts.do(t, http.MethodPost, "/sessions", map[string]any{"topic": "x", "bogus": true})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, errors.CodeInvalidInput, env.Code)

	code, env = ts.do(t, http.MethodGet, "/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, errors.CodeSessionNotFound, env.Code)

	st := ts.create(t, "Pausing a pending session")
	code, env = ts.do(t, http.MethodPost, "/sessions/"+st.ID+"/pause", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, errors.CodeInvalidTransition, env.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, statusFor(errors.CodeRateLimitTimeout))
	assert.Equal(t, http.StatusConflict, statusFor(errors.CodeBudgetExhausted))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.CodeGenerationFailed))
}

func TestEndEarly(t *testing.T) {
	ts := newTestServer(t, DefaultConfig(), &provider.Simulated{})
	st := ts.create(t, "Ending before it starts")

	code, env := ts.do(t, http.MethodPost, "/sessions/"+st.ID+"/end", map[string]string{"reason": "host left"})
	require.Equal(t, http.StatusAccepted, code, env.Message)

	var got engine.EngineState
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, engine.StatusCancelled, got.Status)
	assert.Equal(t, "host left", got.EndReason)
}

func TestStartStreamsToCompletion(t *testing.T) {
	ts := newTestServer(t, DefaultConfig(), &provider.Simulated{Latency: 5 * time.Millisecond})
	st := ts.create(t, "Space exploration is worth the cost")

	resp := openStream(t, context.Background(), ts.url+"/sessions/"+st.ID+"/events", "")

	code, env := ts.do(t, http.MethodPost, "/sessions/"+st.ID+"/start", nil)
	require.Equal(t, http.StatusAccepted, code, env.Message)

	msgs, _ := readStream(t, resp)
	require.NotEmpty(t, msgs)
	assert.Equal(t, string(event.KindDebateStarted), msgs[0].kind)
	assert.Equal(t, string(event.KindDebateCompleted), msgs[len(msgs)-1].kind)

	completed := 0
	for i, m := range msgs {
		if i > 0 {
			assert.Greater(t, m.id, msgs[i-1].id, "ids increase")
		}
		if m.kind == string(event.KindTurnCompleted) {
			completed++
		}
		var e event.Event
		require.NoError(t, json.Unmarshal([]byte(m.data), &e))
		assert.Equal(t, st.ID, e.SessionID)
	}
	assert.Equal(t, st.TotalTurns, completed)
}

func TestStreamReplayHonorsLastEventID(t *testing.T) {
	ts := newTestServer(t, DefaultConfig(), &provider.Simulated{})
	st := ts.create(t, "Replay")

	code, _ := ts.do(t, http.MethodPost, "/sessions/"+st.ID+"/start", nil)
	require.Equal(t, http.StatusAccepted, code)
	waitStatus(t, ts, st.ID, engine.StatusCompleted)

	all, _ := readStream(t, openStream(t, context.Background(), ts.url+"/sessions/"+st.ID+"/events", ""))
	require.Greater(t, len(all), 3)
	assert.Equal(t, string(event.KindDebateCompleted), all[len(all)-1].kind)

	cut := all[len(all)-3].id
	tail, _ := readStream(t, openStream(t, context.Background(), ts.url+"/sessions/"+st.ID+"/events", strconv.FormatUint(cut, 10)))
	require.Len(t, tail, 2)
	assert.Equal(t, all[len(all)-2:], tail)
}

func TestStreamKeepAlive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeepAlive = 10 * time.Millisecond
	ts := newTestServer(t, cfg, &provider.Simulated{})
	st := ts.create(t, "Idle stream")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	resp := openStream(t, ctx, ts.url+"/sessions/"+st.ID+"/events", "")

	msgs, comments := readStream(t, resp)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, comments, 2)
}

func TestStreamUnknownSession(t *testing.T) {
	ts := newTestServer(t, DefaultConfig(), &provider.Simulated{})
	resp, err := http.Get(ts.url + "/sessions/missing/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListWithGlob(t *testing.T) {
	ts := newTestServer(t, DefaultConfig(), &provider.Simulated{})
	a := ts.create(t, "a")
	b := ts.create(t, "b")

	code, env := ts.do(t, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, code)
	var list listResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.ElementsMatch(t, []string{a.ID, b.ID}, list.Sessions)
	assert.True(t, list.Complete)

	code, env = ts.do(t, http.MethodGet, "/sessions?match="+a.ID[:8]+"*", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Contains(t, list.Sessions, a.ID)

	code, env = ts.do(t, http.MethodGet, "/sessions?match=%5B", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, errors.CodeInvalidInput, env.Code)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t, DefaultConfig(), &provider.Simulated{})
	st := ts.create(t, "Stats")
	code, _ := ts.do(t, http.MethodPost, "/sessions/"+st.ID+"/start", nil)
	require.Equal(t, http.StatusAccepted, code)
	waitStatus(t, ts, st.ID, engine.StatusCompleted)

	code, env := ts.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, code)
	var stats engine.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.LoadedSessions)
	assert.Equal(t, 1, stats.ByStatus[engine.StatusCompleted])
	assert.Positive(t, stats.Usage.TotalTokens)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t, DefaultConfig(), &provider.Simulated{})
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := New(ts.engine, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestFailClassifiesErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		level   string
		message string
	}{
		{
			name:    "rejection",
			err:     errors.NewTransitionError("pause", "s1", "completed"),
			status:  http.StatusConflict,
			level:   "DEBUG",
			message: "cannot pause session s1",
		},
		{
			name:    "refusal",
			err:     fmt.Errorf("%w: 10 of 10 tokens used", errors.ErrBudgetExhausted),
			status:  http.StatusConflict,
			level:   "INFO",
			message: "token budget exhausted",
		},
		{
			name:    "internal fault hides detail",
			err:     stderrors.New("disk full at /var/lib/arena"),
			status:  http.StatusInternalServerError,
			level:   "ERROR",
			message: internalMessage,
		},
		{
			name:    "user facing fault keeps detail",
			err:     errors.NewSessionError("openai completion", errors.ErrGenerationFailed),
			status:  http.StatusInternalServerError,
			level:   "ERROR",
			message: "openai completion",
		},
		{
			name:    "low severity fault",
			err:     errors.NewSessionError("openai completion", errors.ErrGenerationFailed).WithSeverity(errors.SeverityWarning),
			status:  http.StatusInternalServerError,
			level:   "WARN",
			message: "openai completion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := logging.New(logging.Options{Level: logging.LevelDebug, Writer: &buf})
			require.NoError(t, err)
			s := New(nil, DefaultConfig(), logger)

			rec := httptest.NewRecorder()
			s.fail(rec, httptest.NewRequest(http.MethodPost, "/sessions/s1/pause", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Contains(t, env.Message, tt.message)
			if tt.message == internalMessage {
				assert.NotContains(t, env.Message, "/var/lib")
			}

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, errors.Code(tt.err), entry["code"])
		})
	}
}
