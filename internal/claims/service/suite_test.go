package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks Store,IdentityGateway,Signer,Encryptor,AuditPublisher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"attesto/internal/audit"
	"attesto/internal/claims/metrics"
	"attesto/internal/claims/models"
	"attesto/internal/claims/service/mocks"
	dErrors "attesto/pkg/domain-errors"
)

const (
	holderCred = "holder-token"
	issuerCred = "issuer-token"
	holderDID  = "did:ethr:mainnet:0xholder"
	issuerDID  = "did:ethr:mainnet:0xissuer"
	otherDID   = "did:ethr:mainnet:0xother"
)

var (
	holder   = models.Identity{DID: holderDID, Role: models.RoleEmployee}
	employer = models.Identity{DID: issuerDID, Role: models.RoleEmployer}
	outsider = models.Identity{DID: otherDID, Role: models.RoleOther}
)

type ServiceSuite struct {
	suite.Suite
	ctx           context.Context
	ctrl          *gomock.Controller
	mockStore     *mocks.MockStore
	mockIdentity  *mocks.MockIdentityGateway
	mockSigner    *mocks.MockSigner
	mockEncryptor *mocks.MockEncryptor
	mockAuditor   *mocks.MockAuditPublisher
	metrics       *metrics.Metrics
	holderKey     []byte
	service       *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockIdentity = mocks.NewMockIdentityGateway(s.ctrl)
	s.mockSigner = mocks.NewMockSigner(s.ctrl)
	s.mockEncryptor = mocks.NewMockEncryptor(s.ctrl)
	s.mockAuditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.holderKey = []byte("holder-public-key-32-bytes-long!")
	s.service = s.newService()
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditor(s.mockAuditor),
		WithMetrics(s.metrics),
		WithKeyExtractor(func(did string) ([]byte, error) {
			if did != holderDID {
				return nil, dErrors.New(dErrors.CodeEncryptionFailed, "unknown holder")
			}
			return s.holderKey, nil
		}),
	}
	svc, err := New(s.mockStore, s.mockIdentity, s.mockSigner, s.mockEncryptor, append(base, opts...)...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) expectSelf(cred string, identity models.Identity) {
	s.mockIdentity.EXPECT().ResolveSelf(gomock.Any(), cred).Return(identity, nil)
}

func (s *ServiceSuite) expectAudit(action string) {
	s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event audit.Event) error {
			s.Equal(action, event.Action)
			return nil
		})
}

func newPendingClaim(careerType models.CareerType) *models.Claim {
	return &models.Claim{
		ID:         models.NewClaimID(),
		Owner:      holderDID,
		Issuer:     issuerDID,
		Title:      "Backend engineer",
		Content:    models.Content{"employer": "Acme", "years": float64(3)},
		CareerType: careerType,
		Status:     models.StatusPending,
		CreatedAt:  time.Now(),
	}
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, code), "expected %s, got %v", code, err)
}
