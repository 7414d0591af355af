package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/dulcevicio/course-api/pkg/storage"
)

func TestDownloadHandlerRejectsInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer := storage.NewSignedURLSigner("test_secret", time.Minute)
	handler := NewDownloadHandler(nil, signer, nil, "/api/v1")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/downloads/garbage", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "garbage"}}

	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestDownloadHandlerRejectsForgedSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer := storage.NewSignedURLSigner("test_secret", time.Minute)
	forged := storage.NewSignedURLSigner("other_secret", time.Minute)
	token, _, err := forged.Generate("enr-1", "certificates/enr-1.pdf")
	require.NoError(t, err)

	handler := NewDownloadHandler(nil, signer, nil, "/api/v1")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/downloads/"+token, nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: token}}

	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestDownloadHandlerCertificateLinkRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDownloadHandler(nil, nil, nil, "/api/v1")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments/enr-1/certificate/link", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.CertificateLink(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
