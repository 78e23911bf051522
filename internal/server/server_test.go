package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"jurybox/internal/config"
	"jurybox/internal/db"
	"jurybox/internal/engine"
	"jurybox/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
			EnableDevLogin:         true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func (s *testServer) seedTrophies(t *testing.T, workerID string, trophies int) {
	t.Helper()
	ctx := context.Background()
	w, err := s.Engine.Repo.GetWorker(ctx, workerID)
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	w.Trophies = trophies
	ok, err := s.Engine.Repo.UpdateWorkerCAS(ctx, nil, w)
	if err != nil || !ok {
		t.Fatalf("seed trophies: ok=%v err=%v", ok, err)
	}
}

func TestHealthWithoutCredentials(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
}

func TestUnauthorizedWithoutCredentials(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("error envelope: %v (%s)", err, string(data))
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestFullLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	// Agent registration hands back the API key once.
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/agents", map[string]any{
		"name": "acme",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register agent: %d %s", res.StatusCode, string(data))
	}
	var reg RegisterAgentResponse
	if err := json.Unmarshal(data, &reg); err != nil {
		t.Fatalf("unmarshal agent: %v", err)
	}
	if reg.APIKey == "" {
		t.Fatal("no api key returned")
	}
	agentHeaders := map[string]string{"X-Api-Key": reg.APIKey}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/agents/"+reg.Agent.ID+"/deposit", map[string]any{
		"amount": 100,
	}, agentHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("deposit: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"payload":    map[string]any{"type": "label", "question": "cat or dog?"},
		"importance": 10,
		"max_budget": 10,
	}, agentHeaders)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var task TaskResponse
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.Status != "open" || task.RequiredWorkers != 1 {
		t.Fatalf("task = %+v", task)
	}

	// Worker registration hands back a JWT.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workers", map[string]any{
		"username": "alice",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register worker: %d %s", res.StatusCode, string(data))
	}
	var wreg RegisterWorkerResponse
	if err := json.Unmarshal(data, &wreg); err != nil {
		t.Fatalf("unmarshal worker: %v", err)
	}
	if wreg.Token == "" {
		t.Fatal("no token returned")
	}
	workerHeaders := map[string]string{"Authorization": "Bearer " + wreg.Token}
	srv.seedTrophies(t, wreg.Worker.ID, 100)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/available", nil, workerHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("available: %d %s", res.StatusCode, string(data))
	}
	var available []TaskResponse
	if err := json.Unmarshal(data, &available); err != nil {
		t.Fatalf("unmarshal available: %v", err)
	}
	if len(available) != 1 || available[0].ID != task.ID {
		t.Fatalf("available = %+v", available)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/claim", nil, workerHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("claim: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/submit", map[string]any{
		"response": map[string]any{"answer": "cat"},
	}, workerHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/"+task.ID, nil, agentHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get task: %d %s", res.StatusCode, string(data))
	}
	var done TaskResponse
	if err := json.Unmarshal(data, &done); err != nil {
		t.Fatalf("unmarshal done: %v", err)
	}
	if done.Status != "completed" {
		t.Fatalf("status = %s, want completed", done.Status)
	}
	if string(done.Result) != `{"answer":"cat"}` {
		t.Fatalf("result = %s", string(done.Result))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workers/"+wreg.Worker.ID+"/cashout", nil, workerHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("cashout: %d %s", res.StatusCode, string(data))
	}
	var cash CashOutResponse
	if err := json.Unmarshal(data, &cash); err != nil {
		t.Fatalf("unmarshal cashout: %v", err)
	}
	if cash.Amount != 10 {
		t.Fatalf("cashout amount = %v, want 10", cash.Amount)
	}
}

func TestClaimConflictWhenSlotsFull(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/agents", map[string]any{"name": "acme"}, nil)
	var reg RegisterAgentResponse
	_ = json.Unmarshal(data, &reg)
	agentHeaders := map[string]string{"X-Api-Key": reg.APIKey}
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/agents/"+reg.Agent.ID+"/deposit", map[string]any{"amount": 50}, agentHeaders)

	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"payload":    map[string]any{"type": "label"},
		"importance": 10,
		"max_budget": 10,
	}, agentHeaders)
	var task TaskResponse
	_ = json.Unmarshal(data, &task)

	var headers [2]map[string]string
	for i, name := range []string{"w1", "w2"} {
		_, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/workers", map[string]any{"username": name}, nil)
		var wreg RegisterWorkerResponse
		_ = json.Unmarshal(body, &wreg)
		srv.seedTrophies(t, wreg.Worker.ID, 100)
		headers[i] = map[string]string{"Authorization": "Bearer " + wreg.Token}
	}

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/claim", nil, headers[0])
	if res.StatusCode != http.StatusOK {
		t.Fatalf("first claim: %d %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/claim", nil, headers[1])
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("second claim: %d %s, want 409", res.StatusCode, string(body))
	}
}

func TestDepositRequiresMatchingKey(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	_, dataA := doJSON(t, client, http.MethodPost, srv.URL+"/v0/agents", map[string]any{"name": "a"}, nil)
	_, dataB := doJSON(t, client, http.MethodPost, srv.URL+"/v0/agents", map[string]any{"name": "b"}, nil)
	var regA, regB RegisterAgentResponse
	_ = json.Unmarshal(dataA, &regA)
	_ = json.Unmarshal(dataB, &regB)

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/agents/"+regB.Agent.ID+"/deposit", map[string]any{
		"amount": 10,
	}, map[string]string{"X-Api-Key": regA.APIKey})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-agent deposit: %d %s, want 403", res.StatusCode, string(body))
	}
}

func TestInsufficientBalanceOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/agents", map[string]any{"name": "acme"}, nil)
	var reg RegisterAgentResponse
	_ = json.Unmarshal(data, &reg)

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"payload":    map[string]any{"type": "label"},
		"importance": 10,
		"max_budget": 10,
	}, map[string]string{"X-Api-Key": reg.APIKey})
	if res.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("create with empty balance: %d %s, want 402", res.StatusCode, string(body))
	}
}

func TestDevLoginMintsUsableToken(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/workers", map[string]any{"username": "alice"}, nil)
	var wreg RegisterWorkerResponse
	_ = json.Unmarshal(data, &wreg)

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"worker_id": wreg.Worker.ID,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(body))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		t.Fatal(err)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workers/"+wreg.Worker.ID, nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get worker with minted token: %d %s", res.StatusCode, string(body))
	}
}
