package cloudinary

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/rewear-api/internal/config"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

func newService(cfg config.CloudinaryConfig) (*CloudinaryService, *utils.JWTService) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	jwtService := utils.NewJWTService("secret")
	svc := NewCloudinaryService(cfg, jwtService, logrus.NewEntry(l))
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return svc, jwtService
}

func TestGenerateSignatureMatchesCloudinaryScheme(t *testing.T) {
	svc, _ := newService(config.CloudinaryConfig{APISecret: "abcd"})

	signature, err := svc.GenerateSignature(url.Values{
		"timestamp": {"1315060510"},
		"public_id": {"sample_image"},
		"eager":     {"w_400,h_300,c_pad|w_260,h_200,c_crop"},
	})
	require.NoError(t, err)

	// Параметры сортируются по ключу, к строке добавляется секрет, результат хешируется SHA-1
	sum := sha1.Sum([]byte("eager=w_400,h_300,c_pad|w_260,h_200,c_crop&public_id=sample_image&timestamp=1315060510abcd"))
	assert.Equal(t, hex.EncodeToString(sum[:]), signature)
}

func TestGenerateUploadParams(t *testing.T) {
	svc, jwtService := newService(config.CloudinaryConfig{
		CloudName:    "demo",
		APIKey:       "key",
		APISecret:    "abcd",
		UploadPreset: "rewear_items",
	})
	app := fiber.New()
	svc.SetupRoutes(app)

	userID := uuid.New()
	token, err := jwtService.GenerateToken(userID, models.RoleUser)
	require.NoError(t, err)

	groupID := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/upload/params?upload_group_id="+groupID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "1700000000", out["timestamp"])
	assert.Equal(t, groupID, out["upload_group_id"])
	assert.True(t, strings.HasPrefix(out["folder"], "rewear/items/"+userID.String()))

	expected, err := svc.GenerateSignature(url.Values{
		"timestamp":     {out["timestamp"]},
		"folder":        {out["folder"]},
		"upload_preset": {"rewear_items"},
	})
	require.NoError(t, err)
	assert.Equal(t, expected, out["signature"])
}

func TestUploadParamsRequireConfiguration(t *testing.T) {
	svc, jwtService := newService(config.CloudinaryConfig{})
	app := fiber.New()
	svc.SetupRoutes(app)

	token, err := jwtService.GenerateToken(uuid.New(), models.RoleUser)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/upload/params", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
