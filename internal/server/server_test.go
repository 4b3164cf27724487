package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/notify"
	"github.com/solardesk/solardesk/internal/repository"
	"github.com/solardesk/solardesk/internal/service"
	"github.com/solardesk/solardesk/internal/testutil"
	"github.com/solardesk/solardesk/internal/timeline"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testutil.NewTestDB(t)

	leadRepo := repository.NewSQLiteLeadRepo(db)
	templateRepo := repository.NewSQLiteStepTemplateRepo(db)
	instanceRepo := repository.NewSQLiteStepInstanceRepo(db)
	activityRepo := repository.NewSQLiteActivityLogRepo(db)
	documentRepo := repository.NewSQLiteDocumentRepo(db)
	uow := testutil.NewTestUoW(db)

	catalog := service.NewCatalogService(templateRepo, uow)
	_, err := catalog.Seed(context.Background())
	require.NoError(t, err)

	engine := timeline.NewEngine(uow, timeline.NewValidationPolicy(documentRepo), notify.Noop{}, zerolog.Nop())
	srv := New(
		service.NewLeadService(leadRepo, instanceRepo, templateRepo, activityRepo, uow),
		catalog,
		service.NewDocumentService(documentRepo),
		engine,
		timeline.NewOverrideAuthority(engine),
		testSecret,
		zerolog.Nop(),
	)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func token(t *testing.T, subject string, role domain.Role) string {
	t.Helper()
	claims := authClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, bearer string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createLead(t *testing.T, ts *httptest.Server, bearer string) leadDetailResponse {
	t.Helper()
	resp := doJSON(t, ts, http.MethodPost, "/api/v1/leads", bearer, map[string]string{
		"customer_name": "Asha Patil",
		"phone":         "9900000000",
		"city":          "Pune",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[leadResponse](t, resp)

	get := doJSON(t, ts, http.MethodGet, "/api/v1/leads/"+created.ID, bearer, nil)
	require.Equal(t, http.StatusOK, get.StatusCode)
	return decode[leadDetailResponse](t, get)
}

func TestServer_HealthzNeedsNoAuth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_RejectsMissingOrBadToken(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, ts, http.MethodGet, "/api/v1/leads", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodGet, "/api/v1/leads", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_CreateLeadMaterializesCatalog(t *testing.T) {
	ts := newTestServer(t)
	agent := token(t, "agent-1", domain.RoleAgent)

	detail := createLead(t, ts, agent)
	assert.Equal(t, "lead", detail.Lead.Status)
	require.Len(t, detail.Steps, 7)
	assert.Equal(t, "Site Survey", detail.Steps[0].Name)
	assert.Equal(t, "pending", detail.Steps[0].Status)
	assert.Equal(t, "upcoming", detail.Steps[1].Status)
}

func TestServer_TransitionValidationFailure(t *testing.T) {
	ts := newTestServer(t)
	officeTok := token(t, "office-1", domain.RoleOffice)

	detail := createLead(t, ts, officeTok)
	stepID := detail.Steps[0].ID

	resp := doJSON(t, ts, http.MethodPost,
		"/api/v1/leads/"+detail.Lead.ID+"/steps/"+stepID+"/transition", officeTok,
		map[string]any{"action": "complete"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decode[errorBody](t, resp)
	assert.Equal(t, "validation_failed", body.Code)
	assert.Contains(t, body.Details, "remarks")
}

func TestServer_TransitionComplete(t *testing.T) {
	ts := newTestServer(t)
	officeTok := token(t, "office-1", domain.RoleOffice)

	detail := createLead(t, ts, officeTok)
	stepID := detail.Steps[0].ID

	resp := doJSON(t, ts, http.MethodPost,
		"/api/v1/leads/"+detail.Lead.ID+"/steps/"+stepID+"/transition", officeTok,
		map[string]any{
			"action":  "complete",
			"remarks": map[string]any{"kind": "note", "note": "roof suitable"},
		})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[transitionResponse](t, resp)
	assert.Equal(t, "completed", result.StepStatus)
	assert.Equal(t, "lead_interested", result.LeadStatus)
	assert.False(t, result.Duplicate)

	activity := doJSON(t, ts, http.MethodGet, "/api/v1/leads/"+detail.Lead.ID+"/activity", officeTok, nil)
	require.Equal(t, http.StatusOK, activity.StatusCode)
	entries := decode[[]activityResponse](t, activity)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, "step_completed")
}

func TestServer_OverrideRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)
	officeTok := token(t, "office-1", domain.RoleOffice)

	detail := createLead(t, ts, officeTok)

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/leads/"+detail.Lead.ID+"/override", officeTok,
		map[string]any{"action": "close_project", "justification": "customer gone"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_CloseAndReopenProject(t *testing.T) {
	ts := newTestServer(t)
	officeTok := token(t, "office-1", domain.RoleOffice)
	adminTok := token(t, "admin-1", domain.RoleAdmin)

	detail := createLead(t, ts, officeTok)
	leadPath := "/api/v1/leads/" + detail.Lead.ID

	resp := doJSON(t, ts, http.MethodPost, leadPath+"/override", adminTok,
		map[string]any{"action": "close_project", "justification": "customer cancelled the contract"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	closed := decode[transitionResponse](t, resp)
	assert.True(t, closed.LeadClosed)

	// Normal actions now conflict with the closed flag.
	resp = doJSON(t, ts, http.MethodPost,
		leadPath+"/steps/"+detail.Steps[0].ID+"/transition", officeTok,
		map[string]any{
			"action":  "complete",
			"remarks": map[string]any{"kind": "note", "note": "done"},
		})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "project_closed", body.Code)

	resp = doJSON(t, ts, http.MethodPost, leadPath+"/override", adminTok,
		map[string]any{"action": "reopen_project", "justification": "customer returned"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reopened := decode[transitionResponse](t, resp)
	assert.False(t, reopened.LeadClosed)
	assert.Equal(t, "lead_processing", reopened.LeadStatus)
}

func TestServer_CatalogAdministration(t *testing.T) {
	ts := newTestServer(t)
	officeTok := token(t, "office-1", domain.RoleOffice)
	adminTok := token(t, "admin-1", domain.RoleAdmin)

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/catalog", officeTok,
		map[string]any{"name": "Bank Loan Sanction", "category": "loan"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodPost, "/api/v1/catalog", adminTok,
		map[string]any{"name": "Bank Loan Sanction", "category": "loan", "order_index": 4})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[templateResponse](t, resp)
	assert.Equal(t, 4, created.OrderIndex)
	assert.Equal(t, "loan", created.Category)

	list := doJSON(t, ts, http.MethodGet, "/api/v1/catalog", officeTok, nil)
	require.Equal(t, http.StatusOK, list.StatusCode)
	templates := decode[[]templateResponse](t, list)
	assert.Len(t, templates, 8)
}

func TestServer_DocumentFlow(t *testing.T) {
	ts := newTestServer(t)
	officeTok := token(t, "office-1", domain.RoleOffice)

	detail := createLead(t, ts, officeTok)
	leadPath := "/api/v1/leads/" + detail.Lead.ID

	resp := doJSON(t, ts, http.MethodPost, leadPath+"/documents", officeTok,
		map[string]string{"category": "identity_proof", "path": "blobs/id.pdf"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc := decode[documentResponse](t, resp)
	assert.Equal(t, "pending_review", doc.Status)

	resp = doJSON(t, ts, http.MethodPost, "/api/v1/documents/"+doc.ID+"/review", officeTok,
		map[string]string{"status": "valid"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	list := doJSON(t, ts, http.MethodGet, leadPath+"/documents", officeTok, nil)
	require.Equal(t, http.StatusOK, list.StatusCode)
	docs := decode[[]documentResponse](t, list)
	require.Len(t, docs, 1)
	assert.Equal(t, "valid", docs[0].Status)
}
