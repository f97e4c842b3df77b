package service

import (
	"context"
	"testing"

	"finbot/internal/database"
	"finbot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCompanyService_ActiveListIsCached(t *testing.T) {
	mockRepo := new(MockRepository)
	logger := zerolog.Nop()
	s := NewCompanyService(mockRepo, &logger)
	ctx := context.Background()

	companies := []*models.Company{{ID: 1, Name: "Alpha", IsActive: true}}
	mockRepo.On("GetActiveCompanies", ctx).Return(companies, nil).Once()

	first, err := s.GetActiveCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, companies, first)

	// Second call must be served from the cache; the mock would fail on a
	// second repository hit.
	second, err := s.GetActiveCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, companies, second)
	mockRepo.AssertExpectations(t)
}

func TestCompanyService_GetCompanyFallsBackToRepo(t *testing.T) {
	mockRepo := new(MockRepository)
	logger := zerolog.Nop()
	s := NewCompanyService(mockRepo, &logger)
	ctx := context.Background()

	company := &models.Company{ID: 9, Name: "Gamma"}
	mockRepo.On("GetCompany", ctx, int64(9)).Return(company, nil).Once()

	got, err := s.GetCompany(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, company, got)
}

func TestCompanyService_AddCompanyRefreshesCache(t *testing.T) {
	mockRepo := new(MockRepository)
	logger := zerolog.Nop()
	s := NewCompanyService(mockRepo, &logger)
	ctx := context.Background()

	company := &models.Company{Name: "Delta", IsActive: true}
	mockRepo.On("CreateCompany", ctx, company).Return(nil).Once()
	mockRepo.On("GetActiveCompanies", ctx).Return([]*models.Company{company}, nil).Once()

	require.NoError(t, s.AddCompany(ctx, company))
	mockRepo.AssertExpectations(t)
}

func TestCompanyService_SeedSkipsExisting(t *testing.T) {
	mockRepo := new(MockRepository)
	logger := zerolog.Nop()
	s := NewCompanyService(mockRepo, &logger)
	ctx := context.Background()

	existing := &models.Company{ID: 1, Name: "Alpha", IsActive: true}
	fresh := &models.Company{
		Name:     "Beta",
		IsActive: true,
		PaymentMethods: []*models.PaymentMethod{
			{Label: "Bank transfer", Details: "IBAN", IsActive: true},
		},
	}

	mockRepo.On("GetCompanyByName", ctx, "Alpha").Return(existing, nil).Once()
	mockRepo.On("GetCompanyByName", ctx, "Beta").Return(nil, database.ErrNotFound).Once()
	mockRepo.On("CreateCompany", ctx, fresh).Return(nil).Once()
	mockRepo.On("CreatePaymentMethod", ctx, mock.AnythingOfType("*models.PaymentMethod")).Return(nil).Once()
	mockRepo.On("GetActiveCompanies", ctx).Return([]*models.Company{existing, fresh}, nil).Once()

	err := s.Seed(ctx, []*models.Company{{Name: "Alpha"}, fresh})
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}
