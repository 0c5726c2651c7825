package tableholds

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barbuddy/internal/realtime"
	"barbuddy/internal/reservation"
	"barbuddy/internal/shared/middleware"
	"barbuddy/internal/shared/utils/response"
	"barbuddy/pkg/logger"
)

// fakeAuth trusts the X-Holder header in place of a session token
func fakeAuth(c *gin.Context) {
	c.Set(middleware.ContextHolderID, c.GetHeader("X-Holder"))
	c.Next()
}

func setupHoldRouter(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := logger.NewNop()
	svc := NewService(NewHoldStore(client, 10*time.Minute), Collaborators{
		Catalog:   &fakeCatalog{tables: map[string]bool{"t1": true, "t2": true}},
		Booked:    &fakeBooked{booked: map[string]bool{"t2": true}},
		Publisher: realtime.NewRedisPublisher(client),
		Transport: realtime.NewRedisTransport(client, log),
	}, log)

	r := gin.New()
	SetupHoldRoutes(r.Group("/api/v1"), NewController(svc, nil), fakeAuth)
	return r, mr
}

func doJSON(r http.Handler, method, path, holder string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Holder", holder)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestController_HoldStatusCodes(t *testing.T) {
	r, _ := setupHoldRouter(t)
	path := "/api/v1/bars/bar-1/holds"

	w := doJSON(r, http.MethodPost, path, "alice", HoldRequest{TableID: "t1", Date: "2026-10-23", Time: "22:00"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, path, "bob", HoldRequest{TableID: "t1", Date: "2026-10-23", Time: "22:00"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, path, "bob", HoldRequest{TableID: "t2", Date: "2026-10-23", Time: "22:00"})
	assert.Equal(t, http.StatusGone, w.Code)

	w = doJSON(r, http.MethodPost, path, "bob", HoldRequest{TableID: "t9", Date: "2026-10-23", Time: "22:00"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, path, "bob", HoldRequest{TableID: "t1", Date: "23/10/2026", Time: "22:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, path, "bob", map[string]string{"date": "2026-10-23"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestController_ReleaseAlwaysOK(t *testing.T) {
	r, _ := setupHoldRouter(t)
	req := HoldRequest{TableID: "t1", Date: "2026-10-23", Time: "22:00"}

	require.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/v1/bars/bar-1/holds", "alice", req).Code)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/v1/bars/bar-1/holds/release", "bob", req).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/v1/bars/bar-1/holds/release", "alice", req).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/v1/bars/bar-1/holds/release", "alice", req).Code)
}

func TestController_GetHeld(t *testing.T) {
	r, _ := setupHoldRouter(t)
	require.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/v1/bars/bar-1/holds", "alice",
		HoldRequest{TableID: "t1", Date: "2026-10-23", Time: "22:00"}).Code)

	w := doJSON(r, http.MethodGet, "/api/v1/bars/bar-1/holds?date=2026-10-23&time=22:00", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		response.StandardApiResponse
		Data []reservation.HeldTable `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []reservation.HeldTable{{TableID: "t1", HolderID: "alice"}}, body.Data)

	w = doJSON(r, http.MethodGet, "/api/v1/bars/bar-1/holds?date=2026-10-23", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestController_StreamRelaysEvents(t *testing.T) {
	r, _ := setupHoldRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/bars/bar-1/holds/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The subscription is confirmed before the handler starts streaming
	hold := doJSON(r, http.MethodPost, "/api/v1/bars/bar-1/holds", "alice",
		HoldRequest{TableID: "t1", Date: "2026-10-23", Time: "22:00"})
	require.Equal(t, http.StatusOK, hold.Code)

	buf := make([]byte, 4096)
	var got bytes.Buffer
	for !bytes.Contains(got.Bytes(), []byte(`"table_id":"t1"`)) {
		n, err := resp.Body.Read(buf)
		got.Write(buf[:n])
		require.NoError(t, err)
	}

	assert.Contains(t, got.String(), "event:held")
	assert.Contains(t, got.String(), `"holder_id":"alice"`)
}
