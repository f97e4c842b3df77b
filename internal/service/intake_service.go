package service

import (
	"context"
	"math"
	"strings"
	"time"

	"finbot/internal/database"
	"finbot/internal/domain"
	"finbot/internal/events"
	"finbot/internal/metrics"
	"finbot/internal/models"

	"github.com/rs/zerolog"
)

// IntakeService runs the request and complaint lifecycles. Moderation goes
// through conditional updates in the repository, so two admins acting on
// the same row at once resolve to one winner and one ErrAlreadyResolved.
type IntakeService struct {
	repo      domain.Repository
	eventBus  domain.EventPublisher
	maxAmount float64
	logger    *zerolog.Logger
}

func NewIntakeService(repo domain.Repository, eventBus domain.EventPublisher, maxAmount float64, logger *zerolog.Logger) *IntakeService {
	return &IntakeService{
		repo:      repo,
		eventBus:  eventBus,
		maxAmount: maxAmount,
		logger:    logger,
	}
}

func (s *IntakeService) ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return database.ErrInvalidAmount
	}
	if s.maxAmount > 0 && amount > s.maxAmount {
		return database.ErrAmountTooLarge
	}
	return nil
}

func (s *IntakeService) CreateRequest(ctx context.Context, req *models.Request) error {
	if err := s.ValidateAmount(req.Amount); err != nil {
		return err
	}

	req.Kind = strings.ToLower(req.Kind)
	if req.Kind != models.RequestKindDeposit && req.Kind != models.RequestKindWithdrawal {
		return database.ErrUnknownKind
	}

	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return err
	}

	metrics.IncRequest(req.Kind, models.StatusPending)
	s.publishRequestEvent(events.EventRequestCreated, req, 0, "")

	return nil
}

func (s *IntakeService) GetRequest(ctx context.Context, id int64) (*models.Request, error) {
	return s.repo.GetRequest(ctx, id)
}

func (s *IntakeService) ApproveRequest(ctx context.Context, requestID, adminID int64, note string) error {
	return s.resolveRequest(ctx, requestID, adminID, models.StatusApproved, note, events.EventRequestApproved)
}

func (s *IntakeService) RejectRequest(ctx context.Context, requestID, adminID int64, note string) error {
	return s.resolveRequest(ctx, requestID, adminID, models.StatusRejected, note, events.EventRequestRejected)
}

func (s *IntakeService) resolveRequest(ctx context.Context, requestID, adminID int64, status, note, eventType string) error {
	if err := s.repo.ResolveRequest(ctx, requestID, status, adminID, note); err != nil {
		return err
	}

	req, err := s.repo.GetRequest(ctx, requestID)
	if err == nil {
		metrics.IncRequest(req.Kind, status)
		s.publishRequestEvent(eventType, req, adminID, note)
	}

	return nil
}

func (s *IntakeService) GetPendingRequests(ctx context.Context, limit int) ([]*models.Request, error) {
	return s.repo.GetRequestsByStatus(ctx, models.StatusPending, limit)
}

func (s *IntakeService) GetUserRequests(ctx context.Context, userID int64, limit int) ([]*models.Request, error) {
	return s.repo.GetUserRequests(ctx, userID, limit)
}

func (s *IntakeService) GetRequestsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Request, error) {
	return s.repo.GetRequestsByDateRange(ctx, start, end)
}

func (s *IntakeService) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	if strings.TrimSpace(c.Text) == "" {
		return database.ErrEmptyComplaint
	}

	if err := s.repo.CreateComplaint(ctx, c); err != nil {
		return err
	}

	s.publishComplaintEvent(events.EventComplaintOpened, c, 0)
	return nil
}

func (s *IntakeService) CloseComplaint(ctx context.Context, complaintID, adminID int64) error {
	if err := s.repo.CloseComplaint(ctx, complaintID, adminID); err != nil {
		return err
	}

	c, err := s.repo.GetComplaint(ctx, complaintID)
	if err == nil {
		s.publishComplaintEvent(events.EventComplaintClosed, c, adminID)
	}

	return nil
}

func (s *IntakeService) GetOpenComplaints(ctx context.Context, limit int) ([]*models.Complaint, error) {
	return s.repo.GetComplaintsByStatus(ctx, models.ComplaintOpen, limit)
}

// CreateAd records a broadcast draft in pending state; the dispatcher
// picks it up once enqueued.
func (s *IntakeService) CreateAd(ctx context.Context, ad *models.Ad) error {
	if strings.TrimSpace(ad.Text) == "" {
		return database.ErrEmptyBroadcast
	}
	return s.repo.CreateAd(ctx, ad)
}

func (s *IntakeService) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{}

	var err error
	if stats.Users, err = s.repo.CountUsers(ctx); err != nil {
		return nil, err
	}
	if stats.PendingRequests, err = s.repo.CountRequestsByStatus(ctx, models.StatusPending); err != nil {
		return nil, err
	}
	if stats.ApprovedRequests, err = s.repo.CountRequestsByStatus(ctx, models.StatusApproved); err != nil {
		return nil, err
	}
	if stats.RejectedRequests, err = s.repo.CountRequestsByStatus(ctx, models.StatusRejected); err != nil {
		return nil, err
	}
	if stats.OpenComplaints, err = s.repo.CountComplaintsByStatus(ctx, models.ComplaintOpen); err != nil {
		return nil, err
	}
	if stats.ClosedComplaints, err = s.repo.CountComplaintsByStatus(ctx, models.ComplaintClosed); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *IntakeService) publishRequestEvent(eventType string, req *models.Request, adminID int64, note string) {
	if s.eventBus == nil {
		return
	}

	payload := events.RequestEventPayload{
		RequestID:  req.ID,
		UserID:     req.UserID,
		Kind:       req.Kind,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Status:     req.Status,
		ResolvedBy: adminID,
		Note:       note,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("request_id", req.ID).Msg("publish event error")
	}
}

func (s *IntakeService) publishComplaintEvent(eventType string, c *models.Complaint, adminID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.ComplaintEventPayload{
		ComplaintID: c.ID,
		UserID:      c.UserID,
		Status:      c.Status,
		ResolvedBy:  adminID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("complaint_id", c.ID).Msg("publish event error")
	}
}
