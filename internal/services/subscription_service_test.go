package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"dinemart/internal/billing"
	"dinemart/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceTestSuite struct {
	suite.Suite
	subscriptionRepo *MockSubscriptionRepository
	auditRepo        *MockAuditLogsRepository
	service          SubscriptionService
	tenantID         uuid.UUID
	ctx              context.Context
}

func (suite *SubscriptionServiceTestSuite) SetupTest() {
	suite.subscriptionRepo = &MockSubscriptionRepository{}
	suite.auditRepo = &MockAuditLogsRepository{}
	suite.service = NewSubscriptionService(suite.subscriptionRepo, suite.auditRepo, 7)
	suite.tenantID = uuid.New()
	suite.ctx = context.Background()
}

func (suite *SubscriptionServiceTestSuite) trialSubscription() *models.Subscription {
	trialEnd := time.Now().AddDate(0, 0, 14)
	return &models.Subscription{
		ID:                uuid.New(),
		TenantID:          suite.tenantID,
		Status:            models.SubscriptionTrial,
		Tier:              models.TierBasic,
		PlanCadence:       models.CadenceMonthly,
		BillingModel:      models.BillingHybrid,
		BaseFee:           decimal.NewFromInt(50),
		CommissionPercent: decimal.NewFromFloat(0.03),
		TrialEndsAt:       &trialEnd,
	}
}

func (suite *SubscriptionServiceTestSuite) TestCreate_Trial() {
	suite.subscriptionRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Subscription")).Return(nil)

	trialEnd := time.Now().AddDate(0, 0, 14)
	subscription, err := suite.service.Create(suite.ctx, suite.tenantID, models.BillingFlat, decimal.NewFromInt(100), decimal.Zero, trialEnd)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionTrial, subscription.Status)
	assert.False(suite.T(), subscription.SetupFeeCharged)
	assert.Nil(suite.T(), subscription.ActivatedAt)
	suite.subscriptionRepo.AssertExpectations(suite.T())
}

func (suite *SubscriptionServiceTestSuite) TestCreate_RejectsUnknownBillingModel() {
	_, err := suite.service.Create(suite.ctx, suite.tenantID, "freemium", decimal.Zero, decimal.Zero, time.Now())

	assert.ErrorIs(suite.T(), err, billing.ErrInvalidBillingModel)
	suite.subscriptionRepo.AssertNotCalled(suite.T(), "Create")
}

func (suite *SubscriptionServiceTestSuite) TestActivate_FromTrialChargesSetupFeeOnce() {
	subscription := suite.trialSubscription()
	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)
	suite.subscriptionRepo.On("Update", suite.ctx, subscription).Return(nil)
	suite.auditRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	activated, err := suite.service.Activate(suite.ctx, suite.tenantID, models.TierPro, models.CadenceYearly, "sales upgrade")

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionActive, activated.Status)
	assert.Equal(suite.T(), models.TierPro, activated.Tier)
	assert.True(suite.T(), activated.SetupFeeCharged)
	assert.NotNil(suite.T(), activated.ActivatedAt)
	suite.subscriptionRepo.AssertExpectations(suite.T())
}

func (suite *SubscriptionServiceTestSuite) TestActivate_IdempotentOnActive() {
	activatedAt := time.Now().Add(-48 * time.Hour)
	subscription := suite.trialSubscription()
	subscription.Status = models.SubscriptionActive
	subscription.SetupFeeCharged = true
	subscription.ActivatedAt = &activatedAt

	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)
	suite.subscriptionRepo.On("Update", suite.ctx, subscription).Return(nil)
	suite.auditRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	result, err := suite.service.Activate(suite.ctx, suite.tenantID, models.TierPro, models.CadenceMonthly, "plan change")

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.TierPro, result.Tier)
	// The original activation stamp survives re-activation.
	assert.Equal(suite.T(), activatedAt, *result.ActivatedAt)
	assert.True(suite.T(), result.SetupFeeCharged)
}

func (suite *SubscriptionServiceTestSuite) TestActivate_RejectsCancelled() {
	subscription := suite.trialSubscription()
	subscription.Status = models.SubscriptionCancelled
	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)

	_, err := suite.service.Activate(suite.ctx, suite.tenantID, models.TierBasic, models.CadenceMonthly, "")

	assert.ErrorIs(suite.T(), err, billing.ErrInvalidTransition)
	suite.subscriptionRepo.AssertNotCalled(suite.T(), "Update")
}

func (suite *SubscriptionServiceTestSuite) TestSuspend_FromTrialRejected() {
	subscription := suite.trialSubscription()
	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)

	err := suite.service.Suspend(suite.ctx, suite.tenantID, "manual")

	assert.ErrorIs(suite.T(), err, billing.ErrInvalidTransition)
}

func (suite *SubscriptionServiceTestSuite) TestReactivate_RequiresSuspended() {
	subscription := suite.trialSubscription()
	subscription.Status = models.SubscriptionActive
	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)

	err := suite.service.Reactivate(suite.ctx, suite.tenantID, "")

	assert.ErrorIs(suite.T(), err, billing.ErrInvalidTransition)
}

func (suite *SubscriptionServiceTestSuite) TestReactivate_ClearsDelinquency() {
	since := time.Now().Add(-10 * 24 * time.Hour)
	subscription := suite.trialSubscription()
	subscription.Status = models.SubscriptionSuspended
	subscription.DelinquentSince = &since

	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)
	suite.subscriptionRepo.On("Update", suite.ctx, subscription).Return(nil)
	suite.auditRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	err := suite.service.Reactivate(suite.ctx, suite.tenantID, "payment plan agreed")

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionActive, subscription.Status)
	assert.Nil(suite.T(), subscription.DelinquentSince)
}

func (suite *SubscriptionServiceTestSuite) TestHandlePaymentSucceeded_ActivatesTrial() {
	subscription := suite.trialSubscription()
	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)
	suite.subscriptionRepo.On("Update", suite.ctx, subscription).Return(nil)
	suite.auditRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	err := suite.service.HandlePaymentSucceeded(suite.ctx, suite.tenantID)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionActive, subscription.Status)
	assert.True(suite.T(), subscription.SetupFeeCharged)
}

func (suite *SubscriptionServiceTestSuite) TestHandlePaymentSucceeded_TerminalRejected() {
	subscription := suite.trialSubscription()
	subscription.Status = models.SubscriptionExpired
	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)

	err := suite.service.HandlePaymentSucceeded(suite.ctx, suite.tenantID)

	assert.ErrorIs(suite.T(), err, billing.ErrInvalidTransition)
}

func (suite *SubscriptionServiceTestSuite) TestHandlePaymentFailed_StampsDelinquency() {
	subscription := suite.trialSubscription()
	subscription.Status = models.SubscriptionActive
	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)
	suite.subscriptionRepo.On("Update", suite.ctx, subscription).Return(nil)

	failedAt := time.Now()
	err := suite.service.HandlePaymentFailed(suite.ctx, suite.tenantID, failedAt)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionActive, subscription.Status)
	assert.Equal(suite.T(), failedAt, *subscription.DelinquentSince)
}

func (suite *SubscriptionServiceTestSuite) TestHandlePaymentFailed_WithinGraceKeepsActive() {
	since := time.Now().Add(-3 * 24 * time.Hour)
	subscription := suite.trialSubscription()
	subscription.Status = models.SubscriptionActive
	subscription.DelinquentSince = &since
	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)

	err := suite.service.HandlePaymentFailed(suite.ctx, suite.tenantID, time.Now())

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionActive, subscription.Status)
	suite.subscriptionRepo.AssertNotCalled(suite.T(), "Update")
}

func (suite *SubscriptionServiceTestSuite) TestHandlePaymentFailed_PastGraceSuspends() {
	since := time.Now().Add(-8 * 24 * time.Hour)
	subscription := suite.trialSubscription()
	subscription.Status = models.SubscriptionActive
	subscription.DelinquentSince = &since

	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)
	suite.subscriptionRepo.On("Update", suite.ctx, subscription).Return(nil)
	suite.auditRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	err := suite.service.HandlePaymentFailed(suite.ctx, suite.tenantID, time.Now())

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.SubscriptionSuspended, subscription.Status)
}

func (suite *SubscriptionServiceTestSuite) TestHandlePaymentFailed_IgnoresNonActive() {
	subscription := suite.trialSubscription()
	subscription.Status = models.SubscriptionCancelled
	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, suite.tenantID).Return(subscription, nil)

	err := suite.service.HandlePaymentFailed(suite.ctx, suite.tenantID, time.Now())

	assert.NoError(suite.T(), err)
	suite.subscriptionRepo.AssertNotCalled(suite.T(), "Update")
}

func (suite *SubscriptionServiceTestSuite) TestExpireTrials_SkipsFailures() {
	first := suite.trialSubscription()
	second := suite.trialSubscription()
	second.TenantID = uuid.New()

	suite.subscriptionRepo.On("ListExpiredTrials", suite.ctx, mock.AnythingOfType("int64")).Return([]*models.Subscription{first, second}, nil)
	suite.subscriptionRepo.On("Update", suite.ctx, first).Return(errors.New("row lock timeout"))
	suite.subscriptionRepo.On("Update", suite.ctx, second).Return(nil)
	suite.auditRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	count, err := suite.service.ExpireTrials(suite.ctx, time.Now())

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
	assert.Equal(suite.T(), models.SubscriptionExpired, second.Status)
}

func TestSubscriptionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceTestSuite))
}
