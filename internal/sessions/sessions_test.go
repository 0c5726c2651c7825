package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barbuddy/internal/shared/config"
	"barbuddy/internal/shared/middleware"
	"barbuddy/internal/shared/utils/response"
	"barbuddy/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{JWT: config.JWTConfig{Secret: "test-secret", SessionExpiresIn: time.Hour}}
}

func TestService_OpenIssuesSessionToken(t *testing.T) {
	cfg := testConfig()
	svc := NewService(cfg, logger.NewNop())

	session, err := svc.Open(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.HolderID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, 5*time.Second)

	claims := &SessionClaims{}
	_, err = jwt.ParseWithClaims(session.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWT.Secret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, session.HolderID, claims.Subject)
	assert.Equal(t, "cust-1", claims.CustomerID)
	assert.Equal(t, middleware.TokenTypeSession, claims.Type)
}

func TestService_OpenGivesEachSessionItsOwnHolder(t *testing.T) {
	svc := NewService(testConfig(), logger.NewNop())

	first, err := svc.Open(context.Background(), "cust-1")
	require.NoError(t, err)
	second, err := svc.Open(context.Background(), "cust-1")
	require.NoError(t, err)

	assert.NotEqual(t, first.HolderID, second.HolderID)
}

func TestController_OpenTokenPassesSessionAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	log := logger.NewNop()

	r := gin.New()
	api := r.Group("/api/v1")
	SetupSessionRoutes(api, NewController(NewService(cfg, log)))
	api.GET("/whoami", middleware.SessionAuth(cfg, log), func(c *gin.Context) {
		c.String(http.StatusOK, middleware.HolderID(c)+"|"+middleware.CustomerID(c))
	})

	body, _ := json.Marshal(OpenSessionRequest{CustomerID: "cust-7"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var env struct {
		response.StandardApiResponse
		Data SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotEmpty(t, env.Data.Token)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+env.Data.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, env.Data.HolderID+"|cust-7", w.Body.String())
}

func TestController_OpenRequiresCustomer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupSessionRoutes(r.Group("/api/v1"), NewController(NewService(testConfig(), logger.NewNop())))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
