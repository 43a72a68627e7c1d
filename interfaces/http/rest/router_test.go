package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowcanvas-backend/application/queries"
	"flowcanvas-backend/application/sharing"
	infraauth "flowcanvas-backend/infrastructure/auth"
	"flowcanvas-backend/infrastructure/config"
	"flowcanvas-backend/infrastructure/messaging"
	"flowcanvas-backend/infrastructure/persistence/memory"
	"flowcanvas-backend/interfaces/http/rest/handlers"
	"flowcanvas-backend/pkg/auth"
	"flowcanvas-backend/pkg/observability"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()

	diagrams := memory.NewDiagramStore()
	users := memory.NewUserStore()
	bus := messaging.NewNoopBus()

	generator, err := auth.NewJWTGenerator(auth.JWTGeneratorConfig{
		SecretKey:  "test-secret",
		Issuer:     "flowcanvas-backend",
		Audience:   []string{"flowcanvas-api"},
		ExpiryTime: time.Hour,
	})
	require.NoError(t, err)
	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: "test-secret",
		Issuer:    "flowcanvas-backend",
		Audience:  []string{"flowcanvas-api"},
	})
	require.NoError(t, err)

	gateway := infraauth.NewLocalGateway(users, generator, auth.NewIdentityBroadcaster(), logger)
	verifier := infraauth.NewJWTVerifier(validator)
	metrics := observability.NewCollector("flowcanvas")
	resolver := sharing.NewResolver(diagrams, users, bus, logger)

	authHandler := handlers.NewAuthHandler(gateway, users, metrics, logger)
	diagramHandler := handlers.NewDiagramHandler(
		diagrams,
		bus,
		resolver,
		queries.NewGetDiagramHandler(diagrams, logger),
		queries.NewListDiagramsHandler(diagrams, logger),
		metrics,
		logger,
	)

	cfg := &config.Config{Environment: "test"}
	router := NewRouter(cfg, authHandler, diagramHandler, verifier, metrics, logger)
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var envelope map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func signUp(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/signup", "", map[string]string{
		"email":    email,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := envelope["data"].(map[string]interface{})
	return data["token"].(string)
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	srv := newTestServer(t)

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/api/v1/diagrams", "", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, envelope["success"])
}

func TestRouter_DiagramLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "owner@example.com")

	// Create
	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/diagrams", token, map[string]interface{}{
		"title": "My Flow",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := envelope["data"].(map[string]interface{})["id"].(string)
	require.NotEmpty(t, id)

	// Get: owner role, starter graph
	resp, envelope = doJSON(t, http.MethodGet, srv.URL+"/api/v1/diagrams/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "My Flow", data["title"])
	assert.Equal(t, "owner", data["role"])
	assert.Len(t, data["nodes"], 3)
	assert.Len(t, data["edges"], 2)

	// Add a node
	resp, envelope = doJSON(t, http.MethodPost, srv.URL+"/api/v1/diagrams/"+id+"/nodes", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	node := envelope["data"].(map[string]interface{})
	assert.Equal(t, "New Node", node["label"])
	nodeID := node["id"].(string)

	// Delete it again
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/diagrams/"+id+"/nodes/"+nodeID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// List shows one diagram
	resp, envelope = doJSON(t, http.MethodGet, srv.URL+"/api/v1/diagrams", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, envelope["data"], 1)

	// Delete the diagram
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/diagrams/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/diagrams/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_SharePartialResolution(t *testing.T) {
	srv := newTestServer(t)
	ownerToken := signUp(t, srv, "owner@example.com")
	signUp(t, srv, "a@x.com")

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/diagrams", ownerToken, map[string]interface{}{
		"title": "Shared Flow",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := envelope["data"].(map[string]interface{})["id"].(string)

	// Act: one known, one unknown invitee
	resp, envelope = doJSON(t, http.MethodPost, srv.URL+"/api/v1/diagrams/"+id+"/share", ownerToken, map[string]interface{}{
		"invitees": []map[string]string{
			{"email": "a@x.com", "permission": "edit"},
			{"email": "b@x.com", "permission": "view"},
		},
	})

	// Assert: partial success, unresolved address reported
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, false, data["allResolved"])
	assert.Len(t, data["sharedWith"], 1)
	assert.Equal(t, []interface{}{"b@x.com"}, data["notFoundEmails"])
}

func TestRouter_ViewerCannotMutate(t *testing.T) {
	srv := newTestServer(t)
	ownerToken := signUp(t, srv, "owner@example.com")
	viewerToken := signUp(t, srv, "viewer@example.com")

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/diagrams", ownerToken, map[string]interface{}{
		"title": "Protected Flow",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := envelope["data"].(map[string]interface{})["id"].(string)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/diagrams/"+id+"/share", ownerToken, map[string]interface{}{
		"invitees": []map[string]string{{"email": "viewer@example.com", "permission": "view"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Viewer can read
	resp, envelope = doJSON(t, http.MethodGet, srv.URL+"/api/v1/diagrams/"+id, viewerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "view", envelope["data"].(map[string]interface{})["role"])

	// But not add nodes, delete the diagram, or share it
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/diagrams/"+id+"/nodes", viewerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/diagrams/"+id, viewerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/diagrams/"+id+"/share", viewerToken, map[string]interface{}{
		"invitees": []map[string]string{{"email": "owner@example.com", "permission": "edit"}},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouter_RateLimitBudgetSharedAcrossGroups(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "busy@example.com")

	// Burn the per-IP budget through the auth group.
	for i := 0; i < 100; i++ {
		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/me", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	// The diagrams group draws from the same budget.
	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/api/v1/diagrams", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, false, envelope["success"])
}
