package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/auth-api-nosql/internal/application/twofa"
	"github.com/auth-api-nosql/internal/domain"
	jwtinfra "github.com/auth-api-nosql/internal/infrastructure/jwt"
	"github.com/auth-api-nosql/internal/transport/http/middleware"
)

type mockTwoFAService struct{ mock.Mock }

func (m *mockTwoFAService) SetTwoFA(ctx context.Context, userID string, req twofa.SetRequest) (string, error) {
	args := m.Called(ctx, userID, req)
	return args.String(0), args.Error(1)
}

func (m *mockTwoFAService) SendOTPToMail(ctx context.Context, userID, password string) error {
	return m.Called(ctx, userID, password).Error(0)
}

func (m *mockTwoFAService) SendSMSCode(ctx context.Context, countryCode, phoneNumber string) error {
	return m.Called(ctx, countryCode, phoneNumber).Error(0)
}

func (m *mockTwoFAService) CreateQRCode(ctx context.Context, userID string) (*twofa.QRResult, error) {
	args := m.Called(ctx, userID)
	res, _ := args.Get(0).(*twofa.QRResult)
	return res, args.Error(1)
}

func (m *mockTwoFAService) IssueChallenge(ctx context.Context, u *domain.User, method domain.TwoFAMethod) error {
	return m.Called(ctx, u, method).Error(0)
}

func (m *mockTwoFAService) VerifyToken(ctx context.Context, req twofa.VerifyRequest) (*twofa.VerifyResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*twofa.VerifyResult)
	return res, args.Error(1)
}

func (m *mockTwoFAService) ValidateRecoveryCode(ctx context.Context, req twofa.VerifyRequest) (*twofa.VerifyResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*twofa.VerifyResult)
	return res, args.Error(1)
}

func withClaims(req *http.Request, userID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ClaimsKey,
		&jwtinfra.Claims{UserID: userID, Role: domain.RoleUser})
	return req.WithContext(ctx)
}

func TestSetTwoFA_MessageFromService(t *testing.T) {
	svc := new(mockTwoFAService)
	svc.On("SetTwoFA", mock.Anything, "u1", mock.MatchedBy(func(req twofa.SetRequest) bool {
		return req.Status && req.MethodType == domain.MethodEmail
	})).Return(domain.MsgTwoFAActivated, nil)

	rr := httptest.NewRecorder()
	req := withClaims(postJSON("/v1/twofa/set",
		`{"status":true,"methodType":"email","password":"password123"}`), "u1")
	NewTwoFAHandler(svc).Set(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.MsgTwoFAActivated, decodeEnvelope(t, rr).Message)
}

func TestSetTwoFA_NoClaims(t *testing.T) {
	svc := new(mockTwoFAService)

	rr := httptest.NewRecorder()
	NewTwoFAHandler(svc).Set(rr, postJSON("/v1/twofa/set",
		`{"status":true,"methodType":"email","password":"password123"}`))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "SetTwoFA")
}

func TestSendOTP_OK(t *testing.T) {
	svc := new(mockTwoFAService)
	svc.On("SendOTPToMail", mock.Anything, "u1", "password123").Return(nil)

	rr := httptest.NewRecorder()
	req := withClaims(postJSON("/v1/twofa/send-otp", `{"password":"password123"}`), "u1")
	NewTwoFAHandler(svc).SendOTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.MsgCodeToEmail, decodeEnvelope(t, rr).Message)
}

func TestSendSMSCode_Public(t *testing.T) {
	svc := new(mockTwoFAService)
	svc.On("SendSMSCode", mock.Anything, "+1", "5550100").Return(nil)

	rr := httptest.NewRecorder()
	NewTwoFAHandler(svc).SendSMSCode(rr, postJSON("/v1/twofa/send-sms-code",
		`{"countryCode":"+1","phoneNumber":"5550100"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.MsgCodeToPhone, decodeEnvelope(t, rr).Message)
}

func TestCreateQR_ReturnsEnrollmentData(t *testing.T) {
	svc := new(mockTwoFAService)
	svc.On("CreateQRCode", mock.Anything, "u1").Return(&twofa.QRResult{
		QRCodeURL:     "data:image/png;base64,abc",
		SetupKey:      "JBSWY3DP",
		RecoveryCodes: []string{"AAAA1111", "BBBB2222"},
	}, nil)

	rr := httptest.NewRecorder()
	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/twofa/create-qr", nil), "u1")
	NewTwoFAHandler(svc).CreateQR(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	res := decodeEnvelope(t, rr)
	assert.Equal(t, domain.MsgOTPSent, res.Message)
	data, ok := res.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "JBSWY3DP", data["setupKey"])
	assert.Len(t, data["recoveryCodes"], 2)
}

func TestVerifyToken_Success_SetsCookie(t *testing.T) {
	svc := new(mockTwoFAService)
	svc.On("VerifyToken", mock.Anything, twofa.VerifyRequest{
		Email: "alice@example.com", Code: "493021",
	}).Return(&twofa.VerifyResult{Token: "jwt-token", Role: domain.RoleUser}, nil)

	rr := httptest.NewRecorder()
	NewTwoFAHandler(svc).VerifyToken(rr, postJSON("/v1/twofa/verify-token",
		`{"email":"alice@example.com","code":"493021"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.MsgTwoFASuccess, decodeEnvelope(t, rr).Message)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Equal(t, "jwt-token", cookies[0].Value)
}

func TestVerifyToken_NotActive_NoCookie(t *testing.T) {
	svc := new(mockTwoFAService)
	svc.On("VerifyToken", mock.Anything, mock.Anything).
		Return(&twofa.VerifyResult{NotActive: true}, nil)

	rr := httptest.NewRecorder()
	NewTwoFAHandler(svc).VerifyToken(rr, postJSON("/v1/twofa/verify-token",
		`{"email":"alice@example.com","code":"493021"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.MsgTwoFANotActive, decodeEnvelope(t, rr).Message)
	assert.Empty(t, rr.Result().Cookies())
}

func TestVerifyToken_InvalidOTP(t *testing.T) {
	svc := new(mockTwoFAService)
	svc.On("VerifyToken", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%s: %w", domain.MsgInvalidOTP, domain.ErrUnauthorized))

	rr := httptest.NewRecorder()
	NewTwoFAHandler(svc).VerifyToken(rr, postJSON("/v1/twofa/verify-token",
		`{"email":"alice@example.com","code":"000000"}`))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, domain.MsgInvalidOTP, decodeEnvelope(t, rr).Message)
}

func TestValidateRecoveryCode_Success(t *testing.T) {
	svc := new(mockTwoFAService)
	svc.On("ValidateRecoveryCode", mock.Anything, twofa.VerifyRequest{
		Email: "alice@example.com", Code: "AAAA1111",
	}).Return(&twofa.VerifyResult{Token: "jwt-token", Role: domain.RoleUser}, nil)

	rr := httptest.NewRecorder()
	NewTwoFAHandler(svc).ValidateRecoveryCode(rr, postJSON("/v1/twofa/validate-recovery-code",
		`{"email":"alice@example.com","code":"AAAA1111"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.MsgValidRecovery, decodeEnvelope(t, rr).Message)
	require.Len(t, rr.Result().Cookies(), 1)
}
