package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/service"
	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const adminKey = "test-admin-key"

type apiClient struct {
	t      *testing.T
	srv    *httptest.Server
	header http.Header
}

func newTestAPI(t *testing.T, tenants *TenantResolver) *httptest.Server {
	t.Helper()
	store := repository.NewMemoryStore()
	opts := service.Options{Now: func() time.Time { return t0 }, CheckInLead: 30 * time.Minute}
	h := New(
		service.NewEntityStore(store, opts),
		service.NewInteractionLedger(store, opts),
		service.NewReportingEngine(store, opts),
		store,
	)
	srv := httptest.NewServer(NewRouter(h, RouterConfig{
		Shaping:     ShapingConfig{CORSOrigins: []string{"*"}, RateLimitDisabled: true},
		Tenants:     tenants,
		AdminAPIKey: adminKey,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *apiClient) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rdr)
	if err != nil {
		c.t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.header {
		req.Header[k] = v
	}
	resp, err := c.srv.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, buf.Bytes()
}

func (c *apiClient) expect(method, path string, body any, want int) []byte {
	c.t.Helper()
	status, out := c.do(method, path, body)
	if status != want {
		c.t.Fatalf("%s %s = %d (%s), want %d", method, path, status, out, want)
	}
	return out
}

func admin(t *testing.T, srv *httptest.Server) *apiClient {
	return &apiClient{t: t, srv: srv, header: http.Header{HeaderAdminKey: {adminKey}}}
}

func college(t *testing.T, srv *httptest.Server, id string) *apiClient {
	return &apiClient{t: t, srv: srv, header: http.Header{HeaderCollegeID: {id}}}
}

func TestHealthCheck(t *testing.T) {
	srv := newTestAPI(t, nil)
	c := &apiClient{t: t, srv: srv}
	out := c.expect(http.MethodGet, "/health", nil, http.StatusOK)
	if !strings.Contains(string(out), `"ok"`) {
		t.Errorf("body = %s", out)
	}
}

func TestAdminKeyRequired(t *testing.T) {
	srv := newTestAPI(t, nil)
	anon := &apiClient{t: t, srv: srv}
	anon.expect(http.MethodGet, "/api/v1/colleges", nil, http.StatusUnauthorized)
	admin(t, srv).expect(http.MethodGet, "/api/v1/colleges", nil, http.StatusOK)
}

func TestTenantHeaderRequired(t *testing.T) {
	srv := newTestAPI(t, nil)
	anon := &apiClient{t: t, srv: srv}
	anon.expect(http.MethodGet, "/api/v1/students", nil, http.StatusBadRequest)
	college(t, srv, "bad id!").expect(http.MethodGet, "/api/v1/students", nil, http.StatusBadRequest)
}

func TestRegistrationFlow(t *testing.T) {
	srv := newTestAPI(t, nil)
	admin(t, srv).expect(http.MethodPost, "/api/v1/colleges", model.CreateCollegeRequest{ID: "alpha", Name: "Alpha College"}, http.StatusCreated)
	admin(t, srv).expect(http.MethodPost, "/api/v1/colleges", model.CreateCollegeRequest{ID: "beta", Name: "Beta College"}, http.StatusCreated)

	alpha := college(t, srv, "alpha")
	for _, id := range []string{"s1", "s2", "s3"} {
		alpha.expect(http.MethodPost, "/api/v1/students", model.CreateStudentRequest{ID: id, Name: "Student " + id, Email: id + "@alpha.edu"}, http.StatusCreated)
	}
	out := alpha.expect(http.MethodPost, "/api/v1/events", model.CreateEventRequest{
		ID: "e1", Title: "Go Workshop", Type: model.EventTypeWorkshop,
		StartTime: t0.Add(time.Hour), EndTime: t0.Add(3 * time.Hour), Capacity: ptr(2),
	}, http.StatusCreated)
	var ev model.Event
	if err := json.Unmarshal(out, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Status != model.StatusUpcoming {
		t.Errorf("status = %q, want upcoming", ev.Status)
	}

	alpha.expect(http.MethodPost, "/api/v1/registrations", model.RegisterRequest{EventID: "e1", StudentID: "s1"}, http.StatusCreated)
	alpha.expect(http.MethodPost, "/api/v1/registrations", model.RegisterRequest{EventID: "e1", StudentID: "s1"}, http.StatusConflict)
	alpha.expect(http.MethodPost, "/api/v1/registrations", model.RegisterRequest{EventID: "e1", StudentID: "s2"}, http.StatusCreated)
	out = alpha.expect(http.MethodPost, "/api/v1/registrations", model.RegisterRequest{EventID: "e1", StudentID: "s3"}, http.StatusConflict)
	if !strings.Contains(string(out), repository.ErrCapacityExceeded.Error()) {
		t.Errorf("capacity body = %s", out)
	}
	alpha.expect(http.MethodPost, "/api/v1/registrations", model.RegisterRequest{EventID: "nope", StudentID: "s1"}, http.StatusNotFound)
	alpha.expect(http.MethodPost, "/api/v1/registrations", `{"event_id": "e1", "student_id": "s3", "extra": 1}`, http.StatusBadRequest)
	alpha.expect(http.MethodPost, "/api/v1/registrations", `{not json`, http.StatusBadRequest)

	out = alpha.expect(http.MethodGet, "/api/v1/events/e1/registrations", nil, http.StatusOK)
	var regs []model.Registration
	if err := json.Unmarshal(out, &regs); err != nil {
		t.Fatalf("decode registrations: %v", err)
	}
	if len(regs) != 2 {
		t.Errorf("registrations = %d, want 2", len(regs))
	}

	beta := college(t, srv, "beta")
	beta.expect(http.MethodGet, "/api/v1/students/s1", nil, http.StatusNotFound)
	beta.expect(http.MethodGet, "/api/v1/events/e1/registrations", nil, http.StatusNotFound)
	out = beta.expect(http.MethodGet, "/api/v1/students", nil, http.StatusOK)
	if strings.TrimSpace(string(out)) != "[]" {
		t.Errorf("beta students = %s, want []", out)
	}

	out = alpha.expect(http.MethodGet, "/api/v1/reports/dashboard", nil, http.StatusOK)
	var stats model.DashboardStats
	if err := json.Unmarshal(out, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalStudents != 3 || stats.TotalEvents != 1 || stats.UpcomingEvents != 1 || stats.AttendanceRate != 0 {
		t.Errorf("stats = %+v", stats)
	}

	alpha.expect(http.MethodDelete, "/api/v1/students/s1", nil, http.StatusConflict)
	alpha.expect(http.MethodDelete, "/api/v1/students/s1?cascade=true", nil, http.StatusNoContent)
	alpha.expect(http.MethodGet, "/api/v1/students?limit=-1", nil, http.StatusBadRequest)

	out = alpha.expect(http.MethodGet, "/api/v1/reports/trends", nil, http.StatusOK)
	var trends []model.RegistrationTrend
	if err := json.Unmarshal(out, &trends); err != nil {
		t.Fatalf("decode trends: %v", err)
	}
	if len(trends) != 1 || trends[0].Events != 1 || trends[0].Registrations != 1 || trends[0].UniqueStudents != 1 {
		t.Errorf("trends = %+v, want one day with one registration", trends)
	}
	alpha.expect(http.MethodGet, "/api/v1/reports/trends?days=400", nil, http.StatusBadRequest)

	alpha.expect(http.MethodGet, "/api/v1/reports/participation?from=2026-03-01", nil, http.StatusOK)
	alpha.expect(http.MethodGet, "/api/v1/reports/participation?from=2026-03-01T00:00:00Z&to=2026-03-31", nil, http.StatusOK)
	alpha.expect(http.MethodGet, "/api/v1/reports/participation?from=yesterday", nil, http.StatusBadRequest)
	alpha.expect(http.MethodGet, "/api/v1/reports/participation?from=2026-03-02&to=2026-03-01", nil, http.StatusBadRequest)
}

func TestTenantFromToken(t *testing.T) {
	resolver := NewTenantResolver("0123456789abcdef0123456789abcdef")
	srv := newTestAPI(t, resolver)
	admin(t, srv).expect(http.MethodPost, "/api/v1/colleges", model.CreateCollegeRequest{ID: "alpha", Name: "Alpha College"}, http.StatusCreated)

	token, err := resolver.SignToken("alpha", time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	other, err := NewTenantResolver("ffffffffffffffffffffffffffffffff").SignToken("alpha", time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	tests := []struct {
		name   string
		header http.Header
		want   int
	}{
		{"no token", http.Header{HeaderCollegeID: {"alpha"}}, http.StatusUnauthorized},
		{"valid token", http.Header{"Authorization": {"Bearer " + token}}, http.StatusOK},
		{"wrong key", http.Header{"Authorization": {"Bearer " + other}}, http.StatusUnauthorized},
		{"header mismatch", http.Header{"Authorization": {"Bearer " + token}, HeaderCollegeID: {"beta"}}, http.StatusUnauthorized},
		{"header match", http.Header{"Authorization": {"Bearer " + token}, HeaderCollegeID: {"alpha"}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &apiClient{t: t, srv: srv, header: tt.header}
			c.expect(http.MethodGet, "/api/v1/reports/dashboard", nil, tt.want)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: student s1", repository.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad rating", repository.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: empty", tenant.ErrInvalid), http.StatusBadRequest},
		{fmt.Errorf("%w: duplicate", repository.ErrConflict), http.StatusConflict},
		{repository.ErrCapacityExceeded, http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRespondErrHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/students", nil)
	respondErr(rec, req, errors.New("pq: password authentication failed"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("body leaks detail: %s", rec.Body.String())
	}
}

func ptr[T any](v T) *T { return &v }
