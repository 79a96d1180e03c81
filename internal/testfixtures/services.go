package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/able-marketplace/internal/application"
	"github.com/example/able-marketplace/internal/recurrence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

func (f *ServiceFactory) idGen(override func() string) func() string {
	if override != nil {
		return override
	}
	return f.IDGenerator.NextFunc()
}

func (f *ServiceFactory) nowFn(override func() time.Time) func() time.Time {
	if override != nil {
		return override
	}
	return f.Clock.NowFunc()
}

// AvailabilityServiceDeps captures dependencies for constructing an
// availability service.
type AvailabilityServiceDeps struct {
	Rules       application.RuleRepository
	Gigs        application.GigSource
	Users       application.UserDirectory
	Engine      *recurrence.Engine
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewAvailabilityService builds an availability service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewAvailabilityService(deps AvailabilityServiceDeps) *application.AvailabilityService {
	return application.NewAvailabilityService(
		deps.Rules,
		deps.Gigs,
		deps.Users,
		deps.Engine,
		deps.Logger,
		f.idGen(deps.IDGenerator),
		f.nowFn(deps.Now),
	)
}

// GigServiceDeps captures dependencies for constructing a gig service.
type GigServiceDeps struct {
	Gigs        application.GigCatalog
	Users       application.UserDirectory
	Payments    application.PaymentGateway
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewGigService builds a gig service using the supplied dependencies.
func (f *ServiceFactory) NewGigService(deps GigServiceDeps) *application.GigService {
	return application.NewGigService(
		deps.Gigs,
		deps.Users,
		deps.Payments,
		deps.Logger,
		f.idGen(deps.IDGenerator),
		f.nowFn(deps.Now),
	)
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users       application.AccountRepository
	Rules       application.RuleCleanup
	IDGenerator func() string
	Now         func() time.Time
}

// NewUserService builds a user service using the supplied dependencies.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	return application.NewUserService(
		deps.Users,
		deps.Rules,
		f.idGen(deps.IDGenerator),
		f.nowFn(deps.Now),
	)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionStore
	SigningKey     []byte
	PasswordVerify application.PasswordVerifier
	IDGenerator    func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service using the supplied dependencies.
// When SigningKey is empty a fixed test key is used so tokens stay
// verifiable across service instances built by the same factory.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	key := deps.SigningKey
	if len(key) == 0 {
		key = []byte("testfixtures-signing-key")
	}
	return application.NewAuthService(
		deps.Credentials,
		deps.Sessions,
		key,
		deps.PasswordVerify,
		f.idGen(deps.IDGenerator),
		f.nowFn(deps.Now),
		deps.SessionTTL,
		deps.Logger,
	)
}
