package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/session"
)

func newTestSessionStore(t *testing.T) *session.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return session.NewStore(client)
}

// TestAdminAuth_ValidToken проверяет, что допустимая сессия пропускает
// запрос и прикрепляет имя оператора к контексту.
func TestAdminAuth_ValidToken(t *testing.T) {
	store := newTestSessionStore(t)
	require.NoError(t, store.Create(context.Background(), &domain.Session{
		SessionToken: "tok-1",
		Username:     "operator1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))

	w := httptest.NewRecorder()
	c, engine := gin.CreateTestContext(w)
	var reachedHandler bool
	var observedUsername interface{}
	engine.Use(AdminAuth(store))
	engine.GET("/admin/test", func(c *gin.Context) {
		reachedHandler = true
		observedUsername, _ = c.Get(contextUsernameKey)
		c.Status(http.StatusOK)
	})

	c.Request = httptest.NewRequest(http.MethodGet, "/admin/test", nil)
	c.Request.Header.Set("Authorization", "Bearer tok-1")
	engine.ServeHTTP(w, c.Request)

	assert.True(t, reachedHandler)
	assert.Equal(t, "operator1", observedUsername)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestAdminAuth_MissingToken проверяет, что отсутствующий заголовок
// отклоняется 401-й без похода к сессионному хранилищу.
func TestAdminAuth_MissingToken(t *testing.T) {
	store := newTestSessionStore(t)

	w := httptest.NewRecorder()
	_, engine := gin.CreateTestContext(w)
	var reachedHandler bool
	engine.Use(AdminAuth(store))
	engine.GET("/admin/test", func(c *gin.Context) {
		reachedHandler = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/test", nil)
	engine.ServeHTTP(w, req)

	assert.False(t, reachedHandler)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestAdminAuth_InvalidToken проверяет, что неизвестный токен отклоняется
// 401-й.
func TestAdminAuth_InvalidToken(t *testing.T) {
	store := newTestSessionStore(t)

	w := httptest.NewRecorder()
	_, engine := gin.CreateTestContext(w)
	var reachedHandler bool
	engine.Use(AdminAuth(store))
	engine.GET("/admin/test", func(c *gin.Context) {
		reachedHandler = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/test", nil)
	req.Header.Set("Authorization", "Bearer nonexistent")
	engine.ServeHTTP(w, req)

	assert.False(t, reachedHandler)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
