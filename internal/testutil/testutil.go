// Package testutil holds helpers shared by package tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/db"
	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestSetup contains utilities for testing
type TestSetup struct {
	Router   *gin.Engine
	DB       *db.Database
	Logger   *utils.Logger
	Config   *config.Config
	Cleanup  func()
	Requires *require.Assertions
}

// NewTestSetup creates a test setup backed by a private in-memory sqlite
// database with every table migrated
func NewTestSetup(t require.TestingT) *TestSetup {
	gin.SetMode(gin.TestMode)

	logger := utils.NewNopLogger()
	cfg := TestConfig()

	database, err := db.NewDatabase(&cfg.Database, logger)
	require.NoError(t, err, "Failed to create in-memory database")
	require.NoError(t, db.Migrate(database.DB), "Failed to migrate database")

	router := gin.New()
	router.Use(gin.Recovery())

	return &TestSetup{
		Router: router,
		DB:     database,
		Logger: logger,
		Config: cfg,
		Cleanup: func() {
			database.Close()
		},
		Requires: require.New(t),
	}
}

// TestConfig returns a configuration suitable for tests. Each call points at
// a fresh in-memory database.
func TestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Path:   "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		},
		JWT: config.JWTConfig{
			Secret:          "test-secret-key-for-testing-only",
			ExpirationHours: 1,
		},
		Log: config.LogConfig{Level: "debug", Format: "console"},
		TimeFrames: config.TimeFramesConfig{
			Frames: []string{"today", "todayPartly", "todayLive", "last7days", "last30days", "custom"},
		},
		Devices: config.DevicesConfig{CacheTTL: time.Minute},
		Command: config.CommandConfig{
			Transport:     "http",
			Timeout:       time.Second,
			RelayEndpoint: "/relay",
		},
		Jobs: config.JobsConfig{
			RollupSpec:     "0 0 4 * * *",
			ScheduleSpec:   "0 * * * * *",
			RetentionSpec:  "0 30 4 * * *",
			ScheduleTZ:     "UTC",
			MaxConcurrency: 4,
		},
	}
}

// ExecuteRequest executes a test request and returns the response
func (ts *TestSetup) ExecuteRequest(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	var err error

	if body != nil {
		reqBody, err = json.Marshal(body)
		ts.Requires.NoError(err, "Failed to marshal request body")
	}

	req, err := http.NewRequest(method, path, bytes.NewBuffer(reqBody))
	ts.Requires.NoError(err, "Failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp := httptest.NewRecorder()
	ts.Router.ServeHTTP(resp, req)

	return resp
}

// ParseResponse parses the JSON response into the provided struct
func (ts *TestSetup) ParseResponse(response *httptest.ResponseRecorder, target interface{}) {
	err := json.Unmarshal(response.Body.Bytes(), target)
	ts.Requires.NoError(err, "Failed to parse response body: %s", response.Body.String())
}

// CreateTestAuthToken creates a JWT token for testing authenticated endpoints
func (ts *TestSetup) CreateTestAuthToken(userID uint, role models.Role) string {
	claims := &models.Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "voltwatch-test",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(ts.Config.JWT.Secret))
	ts.Requires.NoError(err, "Failed to sign JWT token")

	return tokenString
}

// SeedUser creates a user and returns its ID
func (ts *TestSetup) SeedUser(username string, role models.Role) uint {
	user := &models.User{
		Username: username,
		Password: "password123",
		Role:     role,
	}
	ts.Requires.NoError(ts.DB.Create(user).Error, "Failed to create test user")
	return user.ID
}

// SeedDevice stores a device owned by userID whose ingestion key is key
func (ts *TestSetup) SeedDevice(userID uint, name, host, key string, alarm models.AlarmConfig, windows ...models.ScheduleWindow) *models.Device {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	ts.Requires.NoError(err, "Failed to hash device key")

	device := &models.Device{
		UserID:           userID,
		Name:             name,
		Host:             host,
		KeyHash:          string(hash),
		Alarm:            alarm,
		ScheduledWindows: windows,
	}
	ts.Requires.NoError(ts.DB.Create(device).Error, "Failed to create test device")
	return device
}
