package otp

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"garrison/internal/cooldown"
	"garrison/internal/otp/metrics"
	"garrison/internal/otp/mocks"
	dErrors "garrison/pkg/domain-errors"
	"garrison/pkg/requestcontext"
)

// Prometheus collectors register globally; one set per test binary.
var testMetrics = metrics.New()

type adapterFixture struct {
	adapter *Adapter
	sender  *mocks.MockSender
	store   *InMemoryCodeStore
	now     time.Time
}

func newAdapterFixture(t *testing.T, opts ...AdapterOption) *adapterFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	store := NewInMemoryCodeStore()
	cd := cooldown.New(cooldown.NewInMemoryStore())
	adapter := NewAdapter(ChannelEmail, store, sender, cd, testMetrics, slog.Default(), opts...)
	return &adapterFixture{
		adapter: adapter,
		sender:  sender,
		store:   store,
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *adapterFixture) ctx(at time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), at)
}

func TestAdapter_IssueDispatchesCode(t *testing.T) {
	f := newAdapterFixture(t)

	var sent string
	f.sender.EXPECT().
		Send(gomock.Any(), "vendor@example.com", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, code string) error {
			sent = code
			return nil
		})

	echo, err := f.adapter.Issue(f.ctx(f.now), "vendor@example.com")
	require.NoError(t, err)
	assert.Empty(t, echo, "plaintext must not return without debug echo")
	assert.Len(t, sent, CodeLength)

	// The dispatched code is the one that verifies.
	require.NoError(t, f.adapter.Verify(f.ctx(f.now.Add(time.Minute)), "vendor@example.com", sent))
}

func TestAdapter_DebugEchoReturnsPlaintext(t *testing.T) {
	f := newAdapterFixture(t, WithDebugEcho(true))

	f.sender.EXPECT().Send(gomock.Any(), "vendor@example.com", gomock.Any()).Return(nil)

	echo, err := f.adapter.Issue(f.ctx(f.now), "vendor@example.com")
	require.NoError(t, err)
	assert.Len(t, echo, CodeLength)
	require.NoError(t, f.adapter.Verify(f.ctx(f.now), "vendor@example.com", echo))
}

func TestAdapter_IssueCooldown(t *testing.T) {
	f := newAdapterFixture(t, WithDebugEcho(true))
	f.sender.EXPECT().Send(gomock.Any(), "vendor@example.com", gomock.Any()).Return(nil).Times(2)

	first, err := f.adapter.Issue(f.ctx(f.now), "vendor@example.com")
	require.NoError(t, err)

	// Inside the window the attempt is rejected and the old code survives.
	_, err = f.adapter.Issue(f.ctx(f.now.Add(30*time.Second)), "vendor@example.com")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeRateLimited))
	require.NoError(t, f.adapter.Verify(f.ctx(f.now.Add(31*time.Second)), "vendor@example.com", first))

	// At the boundary the resend goes through.
	second, err := f.adapter.Issue(f.ctx(f.now.Add(cooldown.Interval)), "vendor@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, second)
}

func TestAdapter_IssueSenderFailure(t *testing.T) {
	f := newAdapterFixture(t)
	f.sender.EXPECT().
		Send(gomock.Any(), "vendor@example.com", gomock.Any()).
		Return(errors.New("smtp connection refused"))

	_, err := f.adapter.Issue(f.ctx(f.now), "vendor@example.com")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestAdapter_VerifyFailsClosed(t *testing.T) {
	f := newAdapterFixture(t, WithDebugEcho(true))
	f.sender.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	code, err := f.adapter.Issue(f.ctx(f.now), "vendor@example.com")
	require.NoError(t, err)

	t.Run("wrong code and unknown address are indistinguishable", func(t *testing.T) {
		wrongCode := f.adapter.Verify(f.ctx(f.now), "vendor@example.com", "000000")
		unknownAddr := f.adapter.Verify(f.ctx(f.now), "stranger@example.com", code)

		require.Error(t, wrongCode)
		require.Error(t, unknownAddr)
		assert.True(t, dErrors.HasCode(wrongCode, dErrors.CodeUnauthorized))
		assert.True(t, dErrors.HasCode(unknownAddr, dErrors.CodeUnauthorized))
		assert.Equal(t, wrongCode.Error(), unknownAddr.Error())
	})

	t.Run("replay after success is rejected", func(t *testing.T) {
		require.NoError(t, f.adapter.Verify(f.ctx(f.now), "vendor@example.com", code))

		err := f.adapter.Verify(f.ctx(f.now), "vendor@example.com", code)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestAdapter_VerifyExpiredIsDistinct(t *testing.T) {
	f := newAdapterFixture(t, WithDebugEcho(true))
	f.sender.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	code, err := f.adapter.Issue(f.ctx(f.now), "vendor@example.com")
	require.NoError(t, err)

	err = f.adapter.Verify(f.ctx(f.now.Add(CodeTTL+time.Second)), "vendor@example.com", code)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExpired))
}
