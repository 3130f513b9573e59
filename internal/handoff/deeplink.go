package handoff

import (
	"context"
	"fmt"
	"strings"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
)

// App is an installed app that can be a hand-off target.
type App struct {
	ID              string
	SigningCertHash string
	AppSwitch       bool
}

// Opener performs the actual switch.
type Opener interface {
	Open(ctx context.Context, d Descriptor) (Handle, error)
}

// RedirectOpener hands the URL back to an HTTP host, which redirects the
// user's browser to it.
type RedirectOpener struct{}

func (RedirectOpener) Open(_ context.Context, d Descriptor) (Handle, error) {
	if d.URL == "" {
		return Handle{}, domainErrors.NewKindError(domainErrors.ErrLaunch, "launch_failed", "hand-off has no URL", nil)
	}
	return Handle{URL: d.URL}, nil
}

// DeepLinkPlatform checks return-scheme ownership and target app integrity
// before delegating to an Opener.
type DeepLinkPlatform struct {
	appID     string
	schemes   map[string][]string
	installed map[string]App
	trusted   map[string]string
	opener    Opener
}

type PlatformOption func(*DeepLinkPlatform)

// WithScheme declares that owners registered scheme as a deep link.
func WithScheme(scheme string, owners ...string) PlatformOption {
	return func(p *DeepLinkPlatform) {
		key := strings.ToLower(scheme)
		p.schemes[key] = append(p.schemes[key], owners...)
	}
}

func WithInstalledApp(app App) PlatformOption {
	return func(p *DeepLinkPlatform) { p.installed[app.ID] = app }
}

// WithTrustedApp pins the signing certificate hash expected for appID.
func WithTrustedApp(appID, certHash string) PlatformOption {
	return func(p *DeepLinkPlatform) { p.trusted[appID] = certHash }
}

func WithOpener(o Opener) PlatformOption {
	return func(p *DeepLinkPlatform) { p.opener = o }
}

func NewDeepLinkPlatform(appID string, opts ...PlatformOption) *DeepLinkPlatform {
	p := &DeepLinkPlatform{
		appID:     appID,
		schemes:   make(map[string][]string),
		installed: make(map[string]App),
		trusted:   make(map[string]string),
		opener:    RedirectOpener{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AssertAvailable verifies the return scheme is declared only by this app and,
// for app switches, that the target is installed, switch-capable and signed
// by the pinned certificate.
func (p *DeepLinkPlatform) AssertAvailable(_ context.Context, d Descriptor) error {
	if d.ReturnScheme == "" {
		return manifestError("no return scheme configured")
	}
	owners := p.schemes[strings.ToLower(d.ReturnScheme)]
	switch {
	case len(owners) == 0:
		return manifestError(fmt.Sprintf("return scheme %q is not declared", d.ReturnScheme))
	case len(owners) > 1:
		return manifestError(fmt.Sprintf("return scheme %q is claimed by %d apps", d.ReturnScheme, len(owners)))
	case owners[0] != p.appID:
		return manifestError(fmt.Sprintf("return scheme %q is claimed by %s", d.ReturnScheme, owners[0]))
	}

	if d.Kind != paymentauth.HandoffAppSwitch {
		return nil
	}
	app, ok := p.installed[d.TargetApp]
	if !ok {
		return appSwitchError(fmt.Sprintf("%s is not installed", d.TargetApp))
	}
	if !app.AppSwitch {
		return appSwitchError(fmt.Sprintf("%s does not support app switch", d.TargetApp))
	}
	if want, pinned := p.trusted[d.TargetApp]; pinned && !strings.EqualFold(want, app.SigningCertHash) {
		return appSwitchError(fmt.Sprintf("%s failed the signature check", d.TargetApp))
	}
	return nil
}

func (p *DeepLinkPlatform) Start(ctx context.Context, d Descriptor) (Handle, error) {
	return p.opener.Open(ctx, d)
}

func manifestError(message string) error {
	return domainErrors.NewKindError(domainErrors.ErrManifestMisconfigured, "manifest_misconfigured", message, nil)
}

func appSwitchError(message string) error {
	return domainErrors.NewKindError(domainErrors.ErrAppSwitchNotAvailable, "app_switch_not_available", message, nil)
}
