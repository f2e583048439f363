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

type BillingServiceTestSuite struct {
	suite.Suite
	subscriptionRepo *MockSubscriptionRepository
	invoiceRepo      *MockInvoiceRepository
	aggregator       *MockAggregationService
	service          BillingService
	month            billing.Month
	ctx              context.Context
}

func (suite *BillingServiceTestSuite) SetupTest() {
	suite.subscriptionRepo = &MockSubscriptionRepository{}
	suite.invoiceRepo = &MockInvoiceRepository{}
	suite.aggregator = &MockAggregationService{}
	suite.service = NewBillingService(suite.subscriptionRepo, suite.invoiceRepo, suite.aggregator, 4)
	suite.month = billing.Month{Year: 2026, Month: time.July}
	suite.ctx = context.Background()
}

func (suite *BillingServiceTestSuite) activeSubscription() *models.Subscription {
	return &models.Subscription{
		ID:                uuid.New(),
		TenantID:          uuid.New(),
		Status:            models.SubscriptionActive,
		BillingModel:      models.BillingHybrid,
		BaseFee:           decimal.NewFromInt(50),
		CommissionPercent: decimal.NewFromFloat(0.03),
	}
}

func (suite *BillingServiceTestSuite) expectPages(subscriptions ...*models.Subscription) {
	suite.subscriptionRepo.On("ListByStatus", suite.ctx, models.SubscriptionActive, subscriptionPageSize, 0).
		Return(subscriptions, nil).Once()
	suite.subscriptionRepo.On("ListByStatus", suite.ctx, models.SubscriptionActive, subscriptionPageSize, len(subscriptions)).
		Return([]*models.Subscription{}, nil).Once()
}

func (suite *BillingServiceTestSuite) TestGenerate_CreatesInvoices() {
	subscription := suite.activeSubscription()
	suite.expectPages(subscription)

	agg := models.PeriodAggregate{OrderCount: 40, OrderRevenue: decimal.NewFromInt(1000)}
	suite.invoiceRepo.On("GetByTenantAndMonth", suite.ctx, subscription.TenantID, "2026-07").Return(nil, nil)
	suite.aggregator.On("Aggregate", suite.ctx, subscription.TenantID, suite.month).Return(agg, nil)
	suite.invoiceRepo.On("Create", suite.ctx, mock.MatchedBy(func(inv *models.Invoice) bool {
		return inv.TenantID == subscription.TenantID &&
			inv.Month == "2026-07" &&
			inv.Status == models.InvoiceDraft &&
			inv.TotalDue.Equal(decimal.RequireFromString("80.00"))
	})).Return(nil)

	result, err := suite.service.Generate(suite.ctx, suite.month, false)

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), result.Created, 1)
	assert.Empty(suite.T(), result.Skipped)
	assert.Empty(suite.T(), result.Errors)
	suite.invoiceRepo.AssertExpectations(suite.T())
}

func (suite *BillingServiceTestSuite) TestGenerate_SkipsFinalizedInvoice() {
	subscription := suite.activeSubscription()
	suite.expectPages(subscription)

	existing := &models.Invoice{ID: uuid.New(), TenantID: subscription.TenantID, Month: "2026-07", Status: models.InvoicePending}
	suite.invoiceRepo.On("GetByTenantAndMonth", suite.ctx, subscription.TenantID, "2026-07").Return(existing, nil)

	// Overwrite flag never touches a finalized invoice.
	result, err := suite.service.Generate(suite.ctx, suite.month, true)

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), result.Skipped, 1)
	assert.Contains(suite.T(), result.Skipped[0].Reason, skipAlreadyFinalized)
	suite.aggregator.AssertNotCalled(suite.T(), "Aggregate")
	suite.invoiceRepo.AssertNotCalled(suite.T(), "UpdateDraft")
}

func (suite *BillingServiceTestSuite) TestGenerate_KeepsDraftWithoutOverwrite() {
	subscription := suite.activeSubscription()
	suite.expectPages(subscription)

	existing := &models.Invoice{ID: uuid.New(), TenantID: subscription.TenantID, Month: "2026-07", Status: models.InvoiceDraft}
	suite.invoiceRepo.On("GetByTenantAndMonth", suite.ctx, subscription.TenantID, "2026-07").Return(existing, nil)

	result, err := suite.service.Generate(suite.ctx, suite.month, false)

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), result.Skipped, 1)
	assert.Equal(suite.T(), skipDraftKept, result.Skipped[0].Reason)
}

func (suite *BillingServiceTestSuite) TestGenerate_OverwritesDraft() {
	subscription := suite.activeSubscription()
	suite.expectPages(subscription)

	existing := &models.Invoice{ID: uuid.New(), TenantID: subscription.TenantID, Month: "2026-07", Status: models.InvoiceDraft}
	agg := models.PeriodAggregate{OrderCount: 10, OrderRevenue: decimal.NewFromInt(500)}
	suite.invoiceRepo.On("GetByTenantAndMonth", suite.ctx, subscription.TenantID, "2026-07").Return(existing, nil)
	suite.aggregator.On("Aggregate", suite.ctx, subscription.TenantID, suite.month).Return(agg, nil)
	suite.invoiceRepo.On("UpdateDraft", suite.ctx, mock.MatchedBy(func(inv *models.Invoice) bool {
		return inv.ID == existing.ID && inv.OrderCount == 10
	})).Return(true, nil)

	result, err := suite.service.Generate(suite.ctx, suite.month, true)

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), result.Created, 1)
	assert.Equal(suite.T(), existing.ID, result.Created[0].InvoiceID)
	suite.invoiceRepo.AssertNotCalled(suite.T(), "Create")
}

func (suite *BillingServiceTestSuite) TestGenerate_IsolatesTenantFailures() {
	bad := suite.activeSubscription()
	good := suite.activeSubscription()
	suite.expectPages(bad, good)

	agg := models.PeriodAggregate{OrderCount: 5, OrderRevenue: decimal.NewFromInt(200)}
	suite.invoiceRepo.On("GetByTenantAndMonth", suite.ctx, bad.TenantID, "2026-07").Return(nil, nil)
	suite.invoiceRepo.On("GetByTenantAndMonth", suite.ctx, good.TenantID, "2026-07").Return(nil, nil)
	suite.aggregator.On("Aggregate", suite.ctx, bad.TenantID, suite.month).
		Return(models.ZeroAggregate(), errors.New("orders store timeout"))
	suite.aggregator.On("Aggregate", suite.ctx, good.TenantID, suite.month).Return(agg, nil)
	suite.invoiceRepo.On("Create", suite.ctx, mock.MatchedBy(func(inv *models.Invoice) bool {
		return inv.TenantID == good.TenantID
	})).Return(nil)

	result, err := suite.service.Generate(suite.ctx, suite.month, false)

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), result.Created, 1)
	assert.Len(suite.T(), result.Errors, 1)
	assert.Equal(suite.T(), bad.TenantID, result.Errors[0].TenantID)
}

func (suite *BillingServiceTestSuite) TestGenerate_RecoversDuplicateRace() {
	subscription := suite.activeSubscription()
	suite.expectPages(subscription)

	agg := models.PeriodAggregate{OrderCount: 1, OrderRevenue: decimal.NewFromInt(20)}
	suite.invoiceRepo.On("GetByTenantAndMonth", suite.ctx, subscription.TenantID, "2026-07").Return(nil, nil)
	suite.aggregator.On("Aggregate", suite.ctx, subscription.TenantID, suite.month).Return(agg, nil)
	suite.invoiceRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Invoice")).
		Return(billing.ErrDuplicateInvoice)

	result, err := suite.service.Generate(suite.ctx, suite.month, false)

	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), result.Errors)
	assert.Len(suite.T(), result.Skipped, 1)
	assert.Equal(suite.T(), skipConcurrentRace, result.Skipped[0].Reason)
}

func (suite *BillingServiceTestSuite) TestGenerate_ListFailureAbortsBatch() {
	suite.subscriptionRepo.On("ListByStatus", suite.ctx, models.SubscriptionActive, subscriptionPageSize, 0).
		Return(nil, errors.New("connection refused"))

	result, err := suite.service.Generate(suite.ctx, suite.month, false)

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), result)
}

func (suite *BillingServiceTestSuite) TestGenerateForTenant_RejectsNonBillable() {
	subscription := suite.activeSubscription()
	subscription.Status = models.SubscriptionSuspended
	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, subscription.TenantID).Return(subscription, nil)

	_, err := suite.service.GenerateForTenant(suite.ctx, subscription.TenantID, suite.month, false)

	assert.ErrorIs(suite.T(), err, billing.ErrInvalidTransition)
}

func (suite *BillingServiceTestSuite) TestGenerateForTenant_FrozenRates() {
	subscription := suite.activeSubscription()
	subscription.BillingModel = models.BillingPercentage
	subscription.CommissionPercent = decimal.NewFromFloat(0.05)

	existing := &models.Invoice{ID: uuid.New(), TenantID: subscription.TenantID, Month: "2026-07", Status: models.InvoiceDraft}
	agg := models.PeriodAggregate{OrderCount: 80, OrderRevenue: decimal.NewFromInt(2000)}
	suite.subscriptionRepo.On("GetByTenantID", suite.ctx, subscription.TenantID).Return(subscription, nil)
	suite.invoiceRepo.On("GetByTenantAndMonth", suite.ctx, subscription.TenantID, "2026-07").Return(existing, nil)
	suite.aggregator.On("Aggregate", suite.ctx, subscription.TenantID, suite.month).Return(agg, nil)

	var written *models.Invoice
	suite.invoiceRepo.On("UpdateDraft", suite.ctx, mock.AnythingOfType("*models.Invoice")).
		Run(func(args mock.Arguments) { written = args.Get(1).(*models.Invoice) }).
		Return(true, nil)
	suite.invoiceRepo.On("GetByID", suite.ctx, existing.ID).Return(existing, nil)

	_, err := suite.service.GenerateForTenant(suite.ctx, subscription.TenantID, suite.month, true)

	assert.NoError(suite.T(), err)
	// The draft rewrite carries a frozen copy of the subscription's model
	// and rate, priced against the fresh aggregate.
	assert.Equal(suite.T(), models.BillingPercentage, written.BillingModel)
	assert.True(suite.T(), written.CommissionPercent.Equal(decimal.NewFromFloat(0.05)))
	assert.True(suite.T(), written.TotalDue.Equal(decimal.RequireFromString("100.00")))
}

func TestBillingServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BillingServiceTestSuite))
}
