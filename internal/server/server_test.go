package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/memberclub/internal/config"
	"anoa.com/memberclub/internal/entity"
	"anoa.com/memberclub/internal/middleware"
	searchService "anoa.com/memberclub/internal/modules/search/service"
	"anoa.com/memberclub/internal/testutil"
	"anoa.com/memberclub/pkg/logger"
	"anoa.com/memberclub/pkg/payment"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "server-test-secret"

type app struct {
	t       *testing.T
	db      *gorm.DB
	handler http.Handler
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	testutil.SeedQuests(t, db)

	cfg := &config.Config{
		AppEnv:              "test",
		Port:                "0",
		JWTSecret:           secret,
		InviteFailureLimit:  10,
		InviteFailureWindow: time.Minute,
		Rewards:             config.DefaultRewards(),
	}
	srv, err := NewServer(cfg, db, nil, logger.Discard(), Dependencies{
		Payments:    payment.Disabled{},
		MemberIndex: searchService.Disabled{},
	})
	require.NoError(t, err)

	return &app{t: t, db: db, handler: srv.Handler()}
}

func (a *app) token(id uuid.UUID, email string) string {
	a.t.Helper()
	token, err := middleware.SignIdentityToken(secret, id, email, time.Hour)
	require.NoError(a.t, err)
	return token
}

func (a *app) call(method, path, token string, body interface{}, out interface{}) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func TestInviteToFirstSignIn(t *testing.T) {
	a := newApp(t)
	admin := testutil.CreateMember(t, a.db, func(m *entity.Member) { m.Role = entity.RoleAdmin })
	adminToken := a.token(admin.ID, admin.Email)

	var issued struct {
		Data struct {
			Code string `json:"code"`
		} `json:"data"`
	}
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/admin/invites", adminToken,
		gin.H{"tier": "free_community"}, &issued))
	require.NotEmpty(t, issued.Data.Code)

	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/invites/"+issued.Data.Code, "", nil, nil))

	newcomer := uuid.New()
	newcomerToken := a.token(newcomer, "Rina@Example.com")

	var verified struct {
		Data struct {
			Route   string `json:"route"`
			Created bool   `json:"created"`
		} `json:"data"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/membership/verify", newcomerToken,
		gin.H{"invite_code": issued.Data.Code}, &verified))
	assert.Equal(t, "proceed", verified.Data.Route)
	assert.True(t, verified.Data.Created)

	var balance struct {
		Data struct {
			Points int    `json:"points"`
			Rank   string `json:"rank"`
		} `json:"data"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/me/balance", newcomerToken, nil, &balance))
	assert.Equal(t, 110, balance.Data.Points)
	assert.Equal(t, "Member", balance.Data.Rank)

	var notifications struct {
		Data []entity.Notification `json:"data"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/notifications", newcomerToken, nil, &notifications))
	require.Len(t, notifications.Data, 1)
	assert.Equal(t, entity.NotificationRankUp, notifications.Data[0].Type)

	// Verifying again the same day grants nothing new.
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/membership/verify", newcomerToken, nil, &verified))
	assert.False(t, verified.Data.Created)
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/me/balance", newcomerToken, nil, &balance))
	assert.Equal(t, 110, balance.Data.Points)

	// Members cannot reach the admin console.
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodGet, "/api/admin/members", newcomerToken, nil, nil))
}

func TestSignInWithoutInvite(t *testing.T) {
	a := newApp(t)
	token := a.token(uuid.New(), "nobody@example.com")

	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPost, "/api/membership/verify", token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.call(http.MethodGet, "/api/me/balance", "", nil, nil))
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)

	var health map[string]string
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/healthz", "", nil, &health))
	assert.Equal(t, "ok", health["database"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvalidRankLadderFailsFast(t *testing.T) {
	cfg := &config.Config{Rewards: config.Rewards{}}
	_, err := NewServer(cfg, testutil.NewDB(t), nil, logger.Discard(), Dependencies{})
	require.Error(t, err)
}
