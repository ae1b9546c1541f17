package twofa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/auth-api-nosql/internal/domain"
	"github.com/auth-api-nosql/internal/pkg/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	args := m.Called(ctx, phone)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}
func (m *mockUserStore) ClearTwoFAOTP(ctx context.Context, userID, otp string) error {
	return m.Called(ctx, userID, otp).Error(0)
}
func (m *mockUserStore) ConsumeRecoveryCode(ctx context.Context, userID string, index int, code string) error {
	return m.Called(ctx, userID, index, code).Error(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendBySlug(ctx context.Context, to, slug string, data map[string]string) error {
	return m.Called(ctx, to, slug, data).Error(0)
}

type mockPhoneVerifier struct{ mock.Mock }

func (m *mockPhoneVerifier) IssueChallenge(ctx context.Context, phone string) error {
	return m.Called(ctx, phone).Error(0)
}
func (m *mockPhoneVerifier) CheckChallenge(ctx context.Context, phone, code string) (bool, error) {
	args := m.Called(ctx, phone, code)
	return args.Bool(0), args.Error(1)
}

type mockSessionIssuer struct{ mock.Mock }

func (m *mockSessionIssuer) IssueFor(ctx context.Context, u *domain.User) (string, string, *domain.Session, error) {
	args := m.Called(ctx, u)
	if s, _ := args.Get(2).(*domain.Session); s != nil {
		return args.String(0), args.String(1), s, args.Error(3)
	}
	return args.String(0), args.String(1), nil, args.Error(3)
}

// --- helpers ---

const testPassword = "password123"

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func testUser(t *testing.T) *domain.User {
	cc, pn := "+1", "5550100"
	return &domain.User{
		UserID:       "u1",
		Name:         "Alice",
		Email:        "alice@example.com",
		CountryCode:  &cc,
		PhoneNumber:  &pn,
		PasswordHash: hashOf(t, testPassword),
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
	}
}

func newTestService(us *mockUserStore, ml *mockMailer, pv *mockPhoneVerifier, si *mockSessionIssuer) Service {
	return NewService(us, ml, pv, si, "MyApp", 6, 10*time.Minute, 5)
}

// --- SetTwoFA ---

func TestSetTwoFA_WrongPassword(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(testUser(t), nil)

	svc := newTestService(us, nil, nil, nil)
	_, err := svc.SetTwoFA(context.Background(), "u1", SetRequest{
		Status: true, MethodType: domain.MethodEmail, Password: "wrong",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestSetTwoFA_Disable(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(testUser(t), nil)
	us.On("Update", mock.Anything, "u1", map[string]interface{}{
		"two_fa_enabled": false,
	}).Return(nil)

	svc := newTestService(us, nil, nil, nil)
	msg, err := svc.SetTwoFA(context.Background(), "u1", SetRequest{
		Status: false, Password: testPassword,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.MsgTwoFADeactivated, msg)
	us.AssertExpectations(t)
}

func TestSetTwoFA_InvalidMethod(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(testUser(t), nil)

	svc := newTestService(us, nil, nil, nil)
	for _, m := range []domain.TwoFAMethod{"sms", "totp", domain.MethodNone, ""} {
		_, err := svc.SetTwoFA(context.Background(), "u1", SetRequest{
			Status: true, MethodType: m, Password: testPassword,
		})
		require.Error(t, err, "method %q", m)
		assert.True(t, errors.Is(err, domain.ErrBadRequest))
	}
}

func TestSetTwoFA_PhoneWithoutNumber(t *testing.T) {
	u := testUser(t)
	u.PhoneNumber = nil
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(u, nil)

	svc := newTestService(us, nil, nil, nil)
	_, err := svc.SetTwoFA(context.Background(), "u1", SetRequest{
		Status: true, MethodType: domain.MethodPhone, Password: testPassword,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	assert.Contains(t, err.Error(), "phone number")
}

func TestSetTwoFA_EnableReplacesMethodList(t *testing.T) {
	u := testUser(t)
	u.TwoFAEnabled = true
	u.PreferredTwoFAMethods = []domain.TwoFAMethodRef{{MethodType: domain.MethodEmail}}

	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(u, nil)
	us.On("Update", mock.Anything, "u1", map[string]interface{}{
		"two_fa_enabled":           true,
		"preferred_two_fa_methods": []domain.TwoFAMethodRef{{MethodType: domain.MethodApp}},
	}).Return(nil)

	svc := newTestService(us, nil, nil, nil)
	msg, err := svc.SetTwoFA(context.Background(), "u1", SetRequest{
		Status: true, MethodType: domain.MethodApp, Password: testPassword,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.MsgTwoFAActivated, msg)
	us.AssertExpectations(t)
}

// --- challenges ---

func TestSendOTPToMail_StoresAndMailsCode(t *testing.T) {
	us := &mockUserStore{}
	ml := &mockMailer{}
	us.On("Get", mock.Anything, "u1").Return(testUser(t), nil)

	var storedOTP string
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		otp, ok := m["two_fa_otp"].(string)
		storedOTP = otp
		return ok
	})).Return(nil)
	var mailedOTP string
	ml.On("SendBySlug", mock.Anything, "alice@example.com", domain.TemplateVerifyOTP,
		mock.MatchedBy(func(data map[string]string) bool {
			mailedOTP = data["otp"]
			return data["name"] == "Alice" && data["otpValidTime"] == "10"
		})).Return(nil)

	svc := newTestService(us, ml, nil, nil)
	require.NoError(t, svc.SendOTPToMail(context.Background(), "u1", testPassword))

	assert.Len(t, storedOTP, 6)
	assert.Equal(t, storedOTP, mailedOTP)
	us.AssertExpectations(t)
	ml.AssertExpectations(t)
}

func TestSendOTPToMail_WrongPassword(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(testUser(t), nil)

	svc := newTestService(us, &mockMailer{}, nil, nil)
	err := svc.SendOTPToMail(context.Background(), "u1", "wrong")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestSendSMSCode_UnknownPhone(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByPhone", mock.Anything, "5550100").Return(nil, domain.ErrNotFound)

	svc := newTestService(us, nil, &mockPhoneVerifier{}, nil)
	err := svc.SendSMSCode(context.Background(), "+1", "5550100")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSendSMSCode_HappyPath(t *testing.T) {
	us := &mockUserStore{}
	pv := &mockPhoneVerifier{}
	us.On("GetByPhone", mock.Anything, "5550100").Return(testUser(t), nil)
	pv.On("IssueChallenge", mock.Anything, "+15550100").Return(nil)

	svc := newTestService(us, nil, pv, nil)
	require.NoError(t, svc.SendSMSCode(context.Background(), "+1", "5550100"))
	pv.AssertExpectations(t)
}

func TestIssueChallenge_AppIsNoOp(t *testing.T) {
	us := &mockUserStore{}
	ml := &mockMailer{}
	pv := &mockPhoneVerifier{}

	svc := newTestService(us, ml, pv, nil)
	require.NoError(t, svc.IssueChallenge(context.Background(), testUser(t), domain.MethodApp))

	// Nothing was sent or stored.
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	ml.AssertNotCalled(t, "SendBySlug", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	pv.AssertNotCalled(t, "IssueChallenge", mock.Anything, mock.Anything)
}

func TestIssueChallenge_PhoneWithoutNumber(t *testing.T) {
	u := testUser(t)
	u.CountryCode = nil

	svc := newTestService(&mockUserStore{}, &mockMailer{}, &mockPhoneVerifier{}, nil)
	err := svc.IssueChallenge(context.Background(), u, domain.MethodPhone)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- CreateQRCode ---

func TestCreateQRCode(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(testUser(t), nil)

	var storedSecret *domain.AppSecret
	var storedCodes []domain.RecoveryCode
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		sec, okSec := m["app_token"].(*domain.AppSecret)
		codes, okCodes := m["recovery_codes"].([]domain.RecoveryCode)
		storedSecret, storedCodes = sec, codes
		return okSec && okCodes
	})).Return(nil)

	svc := newTestService(us, nil, nil, nil)
	res, err := svc.CreateQRCode(context.Background(), "u1")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.QRCodeURL, "data:image/png;base64,"))
	assert.Equal(t, storedSecret.Base32, res.SetupKey)
	require.Len(t, res.RecoveryCodes, 5)
	for i, code := range res.RecoveryCodes {
		assert.Equal(t, storedCodes[i].Code, code)
		assert.False(t, storedCodes[i].Used)
	}
	us.AssertExpectations(t)
}

// --- VerifyToken ---

func TestVerifyToken_NotActive(t *testing.T) {
	u := testUser(t)
	u.TwoFAEnabled = false
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	svc := newTestService(us, nil, nil, nil)
	res, err := svc.VerifyToken(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "123456"})

	require.NoError(t, err)
	assert.True(t, res.NotActive)
	assert.Empty(t, res.Token)
}

func emailUser(t *testing.T, otp string) *domain.User {
	u := testUser(t)
	u.TwoFAEnabled = true
	u.PreferredTwoFAMethods = []domain.TwoFAMethodRef{{MethodType: domain.MethodEmail}}
	u.TwoFAOTP = otp
	return u
}

func TestVerifyToken_EmailHappyPath(t *testing.T) {
	u := emailUser(t, "123456")
	us := &mockUserStore{}
	si := &mockSessionIssuer{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	us.On("ClearTwoFAOTP", mock.Anything, "u1", "123456").Return(nil)
	si.On("IssueFor", mock.Anything, u).Return("bearer", "refresh", &domain.Session{SessionID: "s1"}, nil)

	svc := newTestService(us, nil, nil, si)
	res, err := svc.VerifyToken(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "123456"})

	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Token)
	assert.Equal(t, "refresh", res.RefreshToken)
	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, domain.RoleUser, res.Role)
	us.AssertExpectations(t)
}

func TestVerifyToken_EmailStructuralReject(t *testing.T) {
	u := emailUser(t, "123456")
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	svc := newTestService(us, nil, nil, nil)
	// Wrong length and wrong alphabet are rejected before any comparison.
	for _, code := range []string{"12345", "1234567", "12345a", ""} {
		_, err := svc.VerifyToken(context.Background(), VerifyRequest{Email: "alice@example.com", Code: code})
		require.Error(t, err, "code %q", code)
		assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	}
	us.AssertNotCalled(t, "ClearTwoFAOTP", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyToken_EmailWrongCode(t *testing.T) {
	u := emailUser(t, "123456")
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	svc := newTestService(us, nil, nil, nil)
	_, err := svc.VerifyToken(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "654321"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	us.AssertNotCalled(t, "ClearTwoFAOTP", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyToken_EmailNoOutstandingOTP(t *testing.T) {
	u := emailUser(t, "")
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	svc := newTestService(us, nil, nil, nil)
	_, err := svc.VerifyToken(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "123456"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestVerifyToken_EmailLostConsumeRace(t *testing.T) {
	u := emailUser(t, "123456")
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	us.On("ClearTwoFAOTP", mock.Anything, "u1", "123456").
		Return(errors.New("otp already consumed: " + domain.ErrUnauthorized.Error()))

	svc := newTestService(us, nil, nil, &mockSessionIssuer{})
	_, err := svc.VerifyToken(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "123456"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestVerifyToken_Phone(t *testing.T) {
	u := testUser(t)
	u.TwoFAEnabled = true
	u.PreferredTwoFAMethods = []domain.TwoFAMethodRef{{MethodType: domain.MethodPhone}}

	us := &mockUserStore{}
	pv := &mockPhoneVerifier{}
	si := &mockSessionIssuer{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	pv.On("CheckChallenge", mock.Anything, "+15550100", "123456").Return(true, nil)
	si.On("IssueFor", mock.Anything, u).Return("bearer", "refresh", &domain.Session{SessionID: "s1"}, nil)

	svc := newTestService(us, nil, pv, si)
	res, err := svc.VerifyToken(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "123456"})

	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Token)
	pv.AssertExpectations(t)
}

func TestVerifyToken_App(t *testing.T) {
	sec, err := totp.GenerateSecret("MyApp", "alice@example.com")
	require.NoError(t, err)
	code, err := totp.GenerateCode(sec.Base32, time.Now())
	require.NoError(t, err)

	u := testUser(t)
	u.TwoFAEnabled = true
	u.PreferredTwoFAMethods = []domain.TwoFAMethodRef{{MethodType: domain.MethodApp}}
	u.AppToken = sec

	us := &mockUserStore{}
	si := &mockSessionIssuer{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	si.On("IssueFor", mock.Anything, u).Return("bearer", "refresh", &domain.Session{SessionID: "s1"}, nil)

	svc := newTestService(us, nil, nil, si)
	res, err := svc.VerifyToken(context.Background(), VerifyRequest{Email: "alice@example.com", Code: code})

	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Token)

	_, err = svc.VerifyToken(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "000000"})
	assert.Error(t, err)
}

func TestVerifyToken_EmailWinsPriority(t *testing.T) {
	// Both EMAIL and APP enrolled: the email OTP decides, app codes do not.
	u := emailUser(t, "123456")
	u.PreferredTwoFAMethods = []domain.TwoFAMethodRef{
		{MethodType: domain.MethodApp},
		{MethodType: domain.MethodEmail},
	}
	us := &mockUserStore{}
	si := &mockSessionIssuer{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	us.On("ClearTwoFAOTP", mock.Anything, "u1", "123456").Return(nil)
	si.On("IssueFor", mock.Anything, u).Return("bearer", "refresh", &domain.Session{SessionID: "s1"}, nil)

	svc := newTestService(us, nil, nil, si)
	res, err := svc.VerifyToken(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "123456"})

	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Token)
}

// --- ValidateRecoveryCode ---

func recoveryUser(t *testing.T) *domain.User {
	u := testUser(t)
	u.TwoFAEnabled = true
	u.PreferredTwoFAMethods = []domain.TwoFAMethodRef{{MethodType: domain.MethodApp}}
	u.RecoveryCodes = []domain.RecoveryCode{
		{Code: "AABBCCDD", Used: true},
		{Code: "11223344", Used: false},
		{Code: "55667788", Used: false},
	}
	return u
}

func TestValidateRecoveryCode_ConsumesFirstUnusedMatch(t *testing.T) {
	u := recoveryUser(t)
	us := &mockUserStore{}
	si := &mockSessionIssuer{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	us.On("ConsumeRecoveryCode", mock.Anything, "u1", 1, "11223344").Return(nil)
	si.On("IssueFor", mock.Anything, u).Return("bearer", "refresh", &domain.Session{SessionID: "s1"}, nil)

	svc := newTestService(us, nil, nil, si)
	res, err := svc.ValidateRecoveryCode(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "11223344"})

	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Token)
	us.AssertExpectations(t)
}

func TestValidateRecoveryCode_ExactMatchOnly(t *testing.T) {
	u := recoveryUser(t)
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	svc := newTestService(us, nil, nil, nil)
	// Substrings and fragments of issued codes must not authenticate.
	for _, code := range []string{"1122", "223344", "11223344 ", "aabbccdd"} {
		_, err := svc.ValidateRecoveryCode(context.Background(), VerifyRequest{Email: "alice@example.com", Code: code})
		require.Error(t, err, "code %q", code)
		assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	}
	us.AssertNotCalled(t, "ConsumeRecoveryCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestValidateRecoveryCode_UsedCodeRejected(t *testing.T) {
	u := recoveryUser(t)
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	svc := newTestService(us, nil, nil, nil)
	_, err := svc.ValidateRecoveryCode(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "AABBCCDD"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestValidateRecoveryCode_LostConsumeRace(t *testing.T) {
	u := recoveryUser(t)
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	us.On("ConsumeRecoveryCode", mock.Anything, "u1", 1, "11223344").
		Return(errors.New("recovery code already used: " + domain.ErrUnauthorized.Error()))

	svc := newTestService(us, nil, nil, &mockSessionIssuer{})
	_, err := svc.ValidateRecoveryCode(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "11223344"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestValidateRecoveryCode_NotActive(t *testing.T) {
	u := recoveryUser(t)
	u.TwoFAEnabled = false
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	svc := newTestService(us, nil, nil, nil)
	res, err := svc.ValidateRecoveryCode(context.Background(), VerifyRequest{Email: "alice@example.com", Code: "11223344"})

	require.NoError(t, err)
	assert.True(t, res.NotActive)
}
