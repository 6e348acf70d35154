package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	return Config{
		JWTSecret:         "test-secret",
		TokenTTL:          time.Hour,
		BcryptCost:        bcrypt.MinCost,
		AuthRatePerMinute: 1,
		AuthBurst:         100,
	}
}

func newTestAPI(cfg Config, store *Store) *api {
	return newAPI(store, slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out.Message
}

func issue(t *testing.T, a *api) string {
	t.Helper()
	tok, err := a.tokens.Issue(uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestRequireAuth(t *testing.T) {
	a := newTestAPI(testConfig(), nil)
	h := a.handler()

	rec := do(t, h, "GET", "/api/boards", "", nil)
	if rec.Code != http.StatusUnauthorized || message(t, rec) != "no token provided" {
		t.Fatalf("no token: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, "GET", "/api/boards", "garbage", nil)
	if rec.Code != http.StatusUnauthorized || message(t, rec) != "invalid token" {
		t.Fatalf("bad token: %d %s", rec.Code, rec.Body)
	}
	expired := newTestAPI(testConfig(), nil)
	expired.tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	rec = do(t, h, "GET", "/api/boards", issue(t, expired), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: %d %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"bearer abc":   "abc",
		"Bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	} {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := bearerToken(r); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newTestAPI(testConfig(), nil).handler()
	cases := []struct {
		name string
		body any
		want string
	}{
		{"empty body", nil, "request body is required"},
		{"missing name", map[string]string{"email": "a@example.com", "password": "secret1"}, "name is required"},
		{"missing email", map[string]string{"name": "A", "password": "secret1"}, "email is required"},
		{"bad email", map[string]string{"name": "A", "email": "nope", "password": "secret1"}, "email must be a valid email address"},
		{"short password", map[string]string{"name": "A", "email": "a@example.com", "password": "12345"}, "password must be at least 6 characters"},
		{"blank name", map[string]string{"name": "   ", "email": "a@example.com", "password": "secret1"}, "name is required"},
		{"password over 72 bytes", map[string]string{"name": "A", "email": "a@example.com", "password": strings.Repeat("é", 40)}, "password must be at most 72 bytes"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := do(t, h, "POST", "/api/auth/register", "", c.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			if got := message(t, rec); got != c.want {
				t.Fatalf("message = %q, want %q", got, c.want)
			}
		})
	}
}

func TestRegisterRejectsUnknownFields(t *testing.T) {
	h := newTestAPI(testConfig(), nil).handler()
	rec := do(t, h, "POST", "/api/auth/register", "", `{"name":"A","email":"a@example.com","password":"secret1","admin":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	h := newTestAPI(testConfig(), nil).handler()
	rec := do(t, h, "POST", "/api/auth/login", "", map[string]string{"email": "a@example.com"})
	if rec.Code != http.StatusBadRequest || message(t, rec) != "password is required" {
		t.Fatalf("got %d %s", rec.Code, rec.Body)
	}
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.AuthBurst = 2
	h := newTestAPI(cfg, nil).handler()
	body := map[string]string{"email": "a@example.com"}
	for i := 0; i < 2; i++ {
		if rec := do(t, h, "POST", "/api/auth/login", "", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	rec := do(t, h, "POST", "/api/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestIPLimiterIsBounded(t *testing.T) {
	l := newIPLimiterSized(1, 1, 2, time.Hour)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if !l.allow(ip) {
			t.Fatalf("first request from %s rejected", ip)
		}
	}
	if n := l.cache.Len(); n != 2 {
		t.Fatalf("tracked clients = %d, want 2", n)
	}
	if l.allow("10.0.0.3") {
		t.Fatal("recent client must keep its bucket")
	}
	// the oldest client was evicted and starts with a fresh bucket
	if !l.allow("10.0.0.1") {
		t.Fatal("evicted client should get a fresh bucket")
	}
}

func TestIPLimiterForgetsIdleClients(t *testing.T) {
	l := newIPLimiterSized(1, 1, 10, 20*time.Millisecond)
	if !l.allow("10.0.0.1") || l.allow("10.0.0.1") {
		t.Fatal("burst of one expected")
	}
	time.Sleep(100 * time.Millisecond)
	if !l.allow("10.0.0.1") {
		t.Fatal("idle client should get a fresh bucket")
	}
}

func TestListReorderEmptyIsNoop(t *testing.T) {
	a := newTestAPI(testConfig(), nil)
	rec := do(t, a.handler(), "PUT", "/api/list-reorder", issue(t, a), map[string]any{"listIds": []string{}})
	if rec.Code != http.StatusOK || message(t, rec) != "lists reordered" {
		t.Fatalf("got %d %s", rec.Code, rec.Body)
	}
}

func TestReorderValidation(t *testing.T) {
	a := newTestAPI(testConfig(), nil)
	h, tok := a.handler(), issue(t, a)

	rec := do(t, h, "PUT", "/api/card-reorder", tok, map[string]any{"sourceListId": uuid.NewString()})
	if rec.Code != http.StatusBadRequest || message(t, rec) != "destListId is required" {
		t.Fatalf("missing dest: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, "PUT", "/api/list-reorder", tok, `{"listIds":["not-a-uuid"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d %s", rec.Code, rec.Body)
	}
}

func TestMalformedPathIDs(t *testing.T) {
	a := newTestAPI(testConfig(), nil)
	h, tok := a.handler(), issue(t, a)
	cases := []struct{ method, path, want string }{
		{"GET", "/api/cards/42", "invalid card id"},
		{"DELETE", "/api/cards/42", "invalid card id"},
		{"DELETE", "/api/lists/abc", "invalid list id"},
		{"GET", "/api/cards/xyz/comments", "invalid card id"},
	}
	for _, c := range cases {
		rec := do(t, h, c.method, c.path, tok, nil)
		if rec.Code != http.StatusBadRequest || message(t, rec) != c.want {
			t.Errorf("%s %s: %d %s", c.method, c.path, rec.Code, rec.Body)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestAPI(testConfig(), nil).handler()
	do(t, h, "GET", "/api/boards", "", nil)
	rec := do(t, h, "GET", "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "taskboard_http_requests_total") {
		t.Fatal("request counter not exported")
	}
}

func TestCleanTitle(t *testing.T) {
	if got, err := cleanTitle("  Todo  ", maxListTitle); err != nil || got != "Todo" {
		t.Fatalf("cleanTitle = %q, %v", got, err)
	}
	_, err := cleanTitle("   ", maxListTitle)
	wantStatus(t, err, http.StatusBadRequest)
	_, err = cleanTitle(strings.Repeat("é", maxBoardTitle+1), maxBoardTitle)
	wantStatus(t, err, http.StatusBadRequest)
	if _, err := cleanTitle(strings.Repeat("é", maxBoardTitle), maxBoardTitle); err != nil {
		t.Fatalf("limit counts characters, not bytes: %v", err)
	}
}

func TestParseMemberRole(t *testing.T) {
	for in, want := range map[string]Role{"": RoleMember, "member": RoleMember, " Admin ": RoleAdmin} {
		got, err := parseMemberRole(in)
		if err != nil || got != want {
			t.Errorf("parseMemberRole(%q) = %q, %v", in, got, err)
		}
	}
	for _, in := range []string{"owner", "root"} {
		_, err := parseMemberRole(in)
		wantStatus(t, err, http.StatusBadRequest)
	}
}

func TestCardPatchDecoding(t *testing.T) {
	decode := func(s string) CardPatch {
		t.Helper()
		var p CardPatch
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			t.Fatalf("decode %s: %v", s, err)
		}
		return p
	}
	if p := decode(`{}`); !p.empty() {
		t.Fatal("empty object must be an empty patch")
	}
	if p := decode(`{"dueDate":null}`); !p.DueDate.Set || p.DueDate.Value != nil || p.empty() {
		t.Fatalf("explicit null must clear: %+v", p.DueDate)
	}
	p := decode(`{"dueDate":"2024-05-01T10:00:00Z","title":"x"}`)
	if !p.DueDate.Set || p.DueDate.Value == nil || !p.DueDate.Value.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp: %+v", p.DueDate)
	}
	p = decode(`{"dueDate":"2024-05-01"}`)
	if p.DueDate.Value == nil || p.DueDate.Value.Day() != 1 {
		t.Fatalf("date only: %+v", p.DueDate)
	}
	var bad CardPatch
	if err := json.Unmarshal([]byte(`{"dueDate":"tomorrow"}`), &bad); err == nil {
		t.Fatal("expected error for unparseable date")
	}
	if p := decode(`{"labels":[]}`); p.Labels == nil || len(*p.Labels) != 0 {
		t.Fatal("empty labels array must replace, not be ignored")
	}
}

func TestNormalizePatch(t *testing.T) {
	a := newTestAPI(testConfig(), nil)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	keep := uuid.New()
	title := "  Task 1 "
	labels := []string{"red", " red", "", "blue"}
	checklist := []ChecklistItem{{ID: keep, Text: "write tests"}, {Text: " ship ", Completed: true}}
	comments := []Comment{{Text: "looks good"}}
	p := CardPatch{Title: &title, Labels: &labels, Checklist: &checklist, Comments: &comments}

	if err := a.normalizePatch(&p, now); err != nil {
		t.Fatal(err)
	}
	if *p.Title != "Task 1" {
		t.Errorf("title = %q", *p.Title)
	}
	if got := *p.Labels; len(got) != 2 || got[0] != "red" || got[1] != "blue" {
		t.Errorf("labels = %v", got)
	}
	cl := *p.Checklist
	if cl[0].ID != keep || cl[1].ID == uuid.Nil || cl[1].Text != "ship" || !cl[1].Completed {
		t.Errorf("checklist = %+v", cl)
	}
	cm := *p.Comments
	if cm[0].ID == uuid.Nil || !cm[0].CreatedAt.Equal(now) {
		t.Errorf("comments = %+v", cm)
	}
}

func TestNormalizePatchRejects(t *testing.T) {
	a := newTestAPI(testConfig(), nil)
	blank := "  "
	long := strings.Repeat("x", maxDescription+1)
	emptyItem := []ChecklistItem{{Text: " "}}
	longComment := []Comment{{Text: strings.Repeat("y", 2001)}}
	for name, p := range map[string]CardPatch{
		"blank title":      {Title: &blank},
		"long description": {Description: &long},
		"empty checklist":  {Checklist: &emptyItem},
		"long comment":     {Comments: &longComment},
	} {
		err := a.normalizePatch(&p, time.Now())
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		if got := asAppError(err).Status; got != http.StatusBadRequest {
			t.Errorf("%s: status %d", name, got)
		}
	}
}

func TestGroupCards(t *testing.T) {
	l1, l2 := List{ID: uuid.New(), Position: 0}, List{ID: uuid.New(), Position: 1}
	cards := []Card{
		{ID: uuid.New(), ListID: l2.ID, Position: 0},
		{ID: uuid.New(), ListID: l1.ID, Position: 0},
		{ID: uuid.New(), ListID: l2.ID, Position: 1},
		{ID: uuid.New(), ListID: uuid.New()},
	}
	got := groupCards([]List{l1, l2}, cards)
	if len(got) != 2 || got[0].ID != l1.ID || got[1].ID != l2.ID {
		t.Fatalf("lists out of order: %+v", got)
	}
	if len(got[0].Cards) != 1 || len(got[1].Cards) != 2 {
		t.Fatalf("cards per list = %d, %d", len(got[0].Cards), len(got[1].Cards))
	}
	if got[1].Cards[0].ID != cards[0].ID || got[1].Cards[1].ID != cards[2].ID {
		t.Fatal("card order not preserved")
	}
	empty := groupCards([]List{l1}, nil)
	raw, _ := json.Marshal(empty)
	if !strings.Contains(string(raw), `"cards":[]`) {
		t.Fatalf("empty list must serialize cards as []: %s", raw)
	}
}
