package controllers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/voltwatch/backend/internal/api/controllers"
	"github.com/voltwatch/backend/internal/api/middleware"
	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/db/repository"
	"github.com/voltwatch/backend/internal/services"
	"github.com/voltwatch/backend/internal/testutil"
)

func TestAuthController_RegisterAndLogin(t *testing.T) {
	ts := testutil.NewTestSetup(t)
	defer ts.Cleanup()

	repos := repository.NewRepositoryFactory(ts.DB.DB)
	userService := services.NewUserService(repos.User(), repos.Alarm(), ts.Logger)
	authController := controllers.NewAuthController(userService, &ts.Config.JWT, ts.Logger)
	authController.RegisterRoutes(ts.Router.Group("/api"))

	userController := controllers.NewUserController(userService, ts.Logger)
	protected := ts.Router.Group("/api/v1")
	protected.Use(middleware.NewAuthMiddleware(&ts.Config.JWT).RequireAuth())
	userController.RegisterRoutes(protected)

	t.Run("Should register a new user successfully", func(t *testing.T) {
		resp := ts.ExecuteRequest("POST", "/api/auth/register", map[string]interface{}{
			"username": "operator",
			"password": "securePassword123",
		}, nil)
		assert.Equal(t, http.StatusCreated, resp.Code)

		var response controllers.TokenResponse
		ts.ParseResponse(resp, &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "operator", response.Username)
		assert.Equal(t, "user", response.Role)
	})

	t.Run("Should return error when registering a taken username", func(t *testing.T) {
		resp := ts.ExecuteRequest("POST", "/api/auth/register", map[string]interface{}{
			"username": "operator",
			"password": "anotherPassword456",
		}, nil)
		assert.Equal(t, http.StatusConflict, resp.Code)

		var response map[string]string
		ts.ParseResponse(resp, &response)
		assert.Equal(t, "already_exists", response["error"])
	})

	t.Run("Should reject a short password", func(t *testing.T) {
		resp := ts.ExecuteRequest("POST", "/api/auth/register", map[string]interface{}{
			"username": "shorty",
			"password": "short",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("Should login successfully with valid credentials", func(t *testing.T) {
		resp := ts.ExecuteRequest("POST", "/api/auth/login", map[string]interface{}{
			"username": "operator",
			"password": "securePassword123",
		}, nil)
		assert.Equal(t, http.StatusOK, resp.Code)

		var response controllers.TokenResponse
		ts.ParseResponse(resp, &response)
		assert.NotEmpty(t, response.Token)

		// the issued token opens the protected routes
		me := ts.ExecuteRequest("GET", "/api/v1/users/me", nil, map[string]string{
			"Authorization": "Bearer " + response.Token,
		})
		assert.Equal(t, http.StatusOK, me.Code)

		var user controllers.UserResponse
		ts.ParseResponse(me, &user)
		assert.Equal(t, "operator", user.Username)
	})

	t.Run("Should fail login with invalid credentials", func(t *testing.T) {
		resp := ts.ExecuteRequest("POST", "/api/auth/login", map[string]interface{}{
			"username": "operator",
			"password": "wrongPassword",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)

		var response map[string]string
		ts.ParseResponse(resp, &response)
		assert.Contains(t, response["message"], "invalid credentials")
	})

	t.Run("Should list and clear alarms", func(t *testing.T) {
		headers := map[string]string{"Authorization": "Bearer " + ts.CreateTestAuthToken(1, models.RoleUser)}

		resp := ts.ExecuteRequest("GET", "/api/v1/alarms", nil, headers)
		assert.Equal(t, http.StatusOK, resp.Code)

		resp = ts.ExecuteRequest("POST", "/api/v1/alarms/read", nil, headers)
		assert.Equal(t, http.StatusOK, resp.Code)

		var response map[string]int64
		ts.ParseResponse(resp, &response)
		assert.Equal(t, int64(0), response["updated"])
	})
}
