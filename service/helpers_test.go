package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/wide/adapters/sessions"
	"github.com/layer-3/wide/adapters/store"
	"github.com/layer-3/wide/adapters/tokenizer"
	"github.com/layer-3/wide/core"
	"github.com/layer-3/wide/internal/eth"
	"github.com/layer-3/wide/ports"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type wallet struct {
	signer  *eth.KeySigner
	address core.Address
}

func newWallet(t *testing.T) *wallet {
	t.Helper()
	key, err := eth.GenerateKey()
	require.NoError(t, err)
	signer := eth.NewKeySigner(key)
	return &wallet{signer: signer, address: core.AddressFrom(signer.Address())}
}

func (w *wallet) sign(t *testing.T, text string) string {
	t.Helper()
	sig, err := w.signer.SignText([]byte(text))
	require.NoError(t, err)
	return hexutil.Encode(sig)
}

func (w *wallet) session() *core.Session {
	return &core.Session{ID: "session-" + w.address.String(), Address: w.address}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testAuthConfig = AuthConfig{
	Domain:          "wid3.app",
	URI:             "https://wid3.app",
	Version:         "1",
	ChainID:         1,
	SignInStatement: "Sign in to WIDE with your Ethereum account.",
	SignUpStatement: "I accept the WIDE Terms and Conditions.",
	ChallengeWindow: 5 * time.Minute,
	SessionTTL:      24 * time.Hour,
}

type authFixture struct {
	svc      *AuthService
	store    *store.MemoryStore
	sessions *sessions.MemoryStore
	clock    *testClock
}

func newAuthFixture(t *testing.T, cfg AuthConfig, pub ports.EventPublisher) *authFixture {
	t.Helper()
	clock := newTestClock()
	kv := store.NewMemoryStoreWithClock(clock.Now)
	sessionStore := sessions.NewMemoryStoreWithClock(clock.Now)

	key, err := tokenizer.GenerateKey()
	require.NoError(t, err)

	svc := NewAuthService(kv, sessionStore, tokenizer.NewJWTTokenizer(key), pub, cfg, discardLogger()).
		WithClock(clock.Now)

	return &authFixture{svc: svc, store: kv, sessions: sessionStore, clock: clock}
}

// signIn runs a full challenge round for w and returns the result.
func (f *authFixture) signIn(t *testing.T, w *wallet, purpose core.Purpose) *SignInResult {
	t.Helper()
	ctx := context.Background()

	msg, err := f.svc.IssueChallenge(ctx, w.address, purpose)
	require.NoError(t, err)

	text := msg.String()
	result, err := f.svc.VerifyChallenge(ctx, text, w.sign(t, text), purpose)
	require.NoError(t, err)
	return result
}

// refusingStore fails the test on any backend access.
type refusingStore struct {
	ports.Store
	t *testing.T
}

func (s refusingStore) fail() {
	s.t.Helper()
	s.t.Fatal("unexpected store access")
}

func (s refusingStore) Get(context.Context, string) (string, error) {
	s.fail()
	return "", nil
}

func (s refusingStore) HGetAll(context.Context, string) (map[string]string, error) {
	s.fail()
	return nil, nil
}

func (s refusingStore) HReplace(context.Context, string, map[string]string) error {
	s.fail()
	return nil
}

func (s refusingStore) HReplaceExisting(context.Context, string, map[string]string) (bool, error) {
	s.fail()
	return false, nil
}

func (s refusingStore) RPush(context.Context, string, ...string) error {
	s.fail()
	return nil
}

func (s refusingStore) LRange(context.Context, string, int64, int64) ([]string, error) {
	s.fail()
	return nil, nil
}

func (s refusingStore) LRem(context.Context, string, int64, string) (int64, error) {
	s.fail()
	return 0, nil
}

func (s refusingStore) Del(context.Context, ...string) error {
	s.fail()
	return nil
}

func (s refusingStore) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	s.fail()
	return false, nil
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) LogPayload(ctx context.Context, payloadKey, signature string) (*core.AnchorReceipt, error) {
	args := m.Called(ctx, payloadKey, signature)
	receipt, _ := args.Get(0).(*core.AnchorReceipt)
	return receipt, args.Error(1)
}

func (m *mockLedger) LogPresentation(ctx context.Context, historyKey, jsonString string) (*core.AnchorReceipt, error) {
	args := m.Called(ctx, historyKey, jsonString)
	receipt, _ := args.Get(0).(*core.AnchorReceipt)
	return receipt, args.Error(1)
}

func (m *mockLedger) GetPresentationHistory(ctx context.Context, historyKey string) ([]core.LedgerEntry, error) {
	args := m.Called(ctx, historyKey)
	entries, _ := args.Get(0).([]core.LedgerEntry)
	return entries, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishSignIn(ctx context.Context, address core.Address, sessionID string) error {
	return m.Called(ctx, address, sessionID).Error(0)
}

func (m *mockPublisher) PublishSignOut(ctx context.Context, address core.Address, sessionID string) error {
	return m.Called(ctx, address, sessionID).Error(0)
}

func (m *mockPublisher) PublishAnchorRequest(ctx context.Context, proof *core.IntegrityProof) error {
	return m.Called(ctx, proof).Error(0)
}
