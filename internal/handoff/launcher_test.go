package handoff_test

import (
	"context"
	"errors"
	"io"
	"testing"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/handoff"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hostApp = "com.example.app"
	scheme  = "com.example.app.payments"
)

type recordingSink struct {
	names []string
}

func (r *recordingSink) Emit(_ context.Context, name, _ string) {
	r.names = append(r.names, name)
}

type platformFunc struct {
	assert func(ctx context.Context, d handoff.Descriptor) error
	start  func(ctx context.Context, d handoff.Descriptor) (handoff.Handle, error)
}

func (p platformFunc) AssertAvailable(ctx context.Context, d handoff.Descriptor) error {
	if p.assert == nil {
		return nil
	}
	return p.assert(ctx, d)
}

func (p platformFunc) Start(ctx context.Context, d handoff.Descriptor) (handoff.Handle, error) {
	if p.start == nil {
		return handoff.Handle{URL: d.URL}, nil
	}
	return p.start(ctx, d)
}

func browserRequest() *paymentauth.AuthRequest {
	return &paymentauth.AuthRequest{
		RequestCode: 13591,
		Method:      paymentauth.MethodPayPal,
		Metadata: paymentauth.Metadata{
			ClientMetadataID: "cmid",
			PairingID:        "EC-1",
			ApprovalURL:      "https://www.sandbox.paypal.com/checkoutnow?token=EC-1",
			SuccessURL:       scheme + "://onetouch/v1/success",
			CancelURL:        scheme + "://onetouch/v1/cancel",
			PaymentType:      paymentauth.PaymentTypeSinglePayment,
			ReturnScheme:     scheme,
		},
		Handoff: paymentauth.Handoff{Kind: paymentauth.HandoffBrowser, URL: "https://www.sandbox.paypal.com/checkoutnow?token=EC-1"},
	}
}

func newLauncher(p handoff.Platform, sink *recordingSink) *handoff.Launcher {
	return handoff.NewLauncher(p, sink, nil, zerolog.New(io.Discard))
}

func TestLaunch_Success(t *testing.T) {
	sink := &recordingSink{}
	var got handoff.Descriptor
	launcher := newLauncher(platformFunc{start: func(_ context.Context, d handoff.Descriptor) (handoff.Handle, error) {
		got = d
		return handoff.Handle{URL: d.URL}, nil
	}}, sink)

	req := browserRequest()
	pending, err := launcher.Launch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req.RequestCode, pending.RequestCode)
	assert.Equal(t, req.Metadata, pending.Metadata)
	assert.Equal(t, []string{"paypal:handoff:started"}, sink.names)

	assert.Equal(t, handoff.Descriptor{
		Kind:         paymentauth.HandoffBrowser,
		URL:          req.Handoff.URL,
		ReturnScheme: scheme,
		RequestCode:  req.RequestCode,
	}, got)
}

func TestLaunch_RecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	launcher := handoff.NewLauncher(platformFunc{}, nil, metrics, zerolog.New(io.Discard))

	_, err := launcher.Launch(context.Background(), browserRequest())
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HandoffsTotal.WithLabelValues("paypal", "browser", "started")))
}

func TestLaunch_FailureKinds(t *testing.T) {
	tests := []struct {
		name     string
		platform platformFunc
		want     error
		notWant  error
	}{
		{
			name:     "manifest error passes through",
			platform: platformFunc{assert: func(context.Context, handoff.Descriptor) error { return domainErrors.ErrManifestMisconfigured }},
			want:     domainErrors.ErrManifestMisconfigured,
			notWant:  domainErrors.ErrLaunch,
		},
		{
			name:     "unknown assert error becomes manifest error",
			platform: platformFunc{assert: func(context.Context, handoff.Descriptor) error { return errors.New("scheme registry unreadable") }},
			want:     domainErrors.ErrManifestMisconfigured,
			notWant:  domainErrors.ErrLaunch,
		},
		{
			name:     "app switch not available passes through",
			platform: platformFunc{assert: func(context.Context, handoff.Descriptor) error { return domainErrors.ErrAppSwitchNotAvailable }},
			want:     domainErrors.ErrAppSwitchNotAvailable,
			notWant:  domainErrors.ErrConfiguration,
		},
		{
			name: "start failure becomes launch error",
			platform: platformFunc{start: func(context.Context, handoff.Descriptor) (handoff.Handle, error) {
				return handoff.Handle{}, errors.New("no activity found")
			}},
			want:    domainErrors.ErrLaunch,
			notWant: domainErrors.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			pending, err := newLauncher(tt.platform, sink).Launch(context.Background(), browserRequest())

			assert.Nil(t, pending)
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, tt.notWant)
			assert.Equal(t, []string{"paypal:handoff:failed"}, sink.names)
		})
	}
}

func TestLaunch_NilRequest(t *testing.T) {
	_, err := newLauncher(platformFunc{}, &recordingSink{}).Launch(context.Background(), nil)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidInput)
}
