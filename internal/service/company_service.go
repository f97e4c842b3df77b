package service

import (
	"context"
	"sync"

	"finbot/internal/domain"
	"finbot/internal/models"

	"github.com/rs/zerolog"
)

// CompanyService caches the active company list; the catalogue changes
// rarely and every intake conversation reads it.
type CompanyService struct {
	repo      domain.Repository
	logger    *zerolog.Logger
	companies []*models.Company
	byID      map[int64]*models.Company
	mu        sync.RWMutex
}

func NewCompanyService(repo domain.Repository, logger *zerolog.Logger) *CompanyService {
	return &CompanyService{
		repo:   repo,
		logger: logger,
		byID:   make(map[int64]*models.Company),
	}
}

func (s *CompanyService) GetActiveCompanies(ctx context.Context) ([]*models.Company, error) {
	s.mu.RLock()
	if s.companies != nil {
		companies := s.companies
		s.mu.RUnlock()
		return companies, nil
	}
	s.mu.RUnlock()

	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.companies, nil
}

func (s *CompanyService) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	s.mu.RLock()
	company, ok := s.byID[id]
	s.mu.RUnlock()
	if ok {
		return company, nil
	}
	return s.repo.GetCompany(ctx, id)
}

func (s *CompanyService) GetPaymentMethods(ctx context.Context, companyID int64) ([]*models.PaymentMethod, error) {
	return s.repo.GetPaymentMethodsByCompany(ctx, companyID)
}

func (s *CompanyService) GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	return s.repo.GetPaymentMethod(ctx, id)
}

func (s *CompanyService) AddCompany(ctx context.Context, company *models.Company) error {
	if err := s.repo.CreateCompany(ctx, company); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

func (s *CompanyService) AddPaymentMethod(ctx context.Context, pm *models.PaymentMethod) error {
	return s.repo.CreatePaymentMethod(ctx, pm)
}

func (s *CompanyService) SetCompanyActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetCompanyActive(ctx, id, active); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

func (s *CompanyService) SetPaymentMethodActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetPaymentMethodActive(ctx, id, active)
}

// Seed loads the company catalogue from config on first start. Existing
// companies are left untouched.
func (s *CompanyService) Seed(ctx context.Context, companies []*models.Company) error {
	for _, company := range companies {
		existing, err := s.repo.GetCompanyByName(ctx, company.Name)
		if err == nil {
			company.ID = existing.ID
			continue
		}

		if err := s.repo.CreateCompany(ctx, company); err != nil {
			return err
		}
		for _, pm := range company.PaymentMethods {
			pm.CompanyID = company.ID
			if err := s.repo.CreatePaymentMethod(ctx, pm); err != nil {
				return err
			}
		}
		s.logger.Info().Str("company", company.Name).Int("methods", len(company.PaymentMethods)).Msg("company seeded")
	}

	return s.Refresh(ctx)
}

func (s *CompanyService) Refresh(ctx context.Context) error {
	companies, err := s.repo.GetActiveCompanies(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies = companies
	s.byID = make(map[int64]*models.Company)
	for _, company := range companies {
		s.byID[company.ID] = company
	}
	return nil
}
