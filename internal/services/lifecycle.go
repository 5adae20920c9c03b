package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"image-transform-backend/internal/events"
	"image-transform-backend/internal/models"
	"image-transform-backend/internal/observability"
	"image-transform-backend/internal/payments"
	"image-transform-backend/internal/records"
)

// BlobStore is implemented by supabase.StorageClient, objectstore.S3Store and
// objectstore.MinioStore.
type BlobStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, bucket string, keys []string) error
}

type PaymentGateway interface {
	CreateSession(ctx context.Context, req payments.SessionRequest) (*payments.Session, error)
	VerifyAndParse(payload []byte, signatureHeader string) (*payments.Event, error)
}

type Generator interface {
	Invoke(ctx context.Context, model, prompt, sourceURL string) ([]byte, error)
}

// EventLedger remembers gateway event ids that were already applied.
type EventLedger interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

type Pricing struct {
	AmountCents int64
	Currency    string
	ProductName string
}

func (p Pricing) Amount() float64 {
	return float64(p.AmountCents) / 100
}

type Buckets struct {
	Input  string
	Output string
}

type Dependencies struct {
	Records   records.Provider
	Blobs     BlobStore
	Payments  PaymentGateway
	Generator Generator
	Events    events.Publisher
	// Ledger is optional. Without it redelivered notifications are simply re-applied.
	Ledger  EventLedger
	Logger  *zap.Logger
	Pricing Pricing
	Buckets Buckets
	Model   string
	Now     func() time.Time
	// GenerationTimeout bounds the work after a project is claimed. It runs
	// detached from the caller so a dropped connection cannot strand a paid project.
	GenerationTimeout time.Duration
}

const defaultGenerationTimeout = 10 * time.Minute

// Coordinator drives a project through upload, payment and generation.
type Coordinator struct {
	records   records.Provider
	blobs     BlobStore
	payments  PaymentGateway
	generator Generator
	events    events.Publisher
	ledger    EventLedger
	logger    *zap.Logger
	pricing   Pricing
	buckets   Buckets
	model     string
	now       func() time.Time

	generationTimeout time.Duration
}

func NewCoordinator(deps Dependencies) *Coordinator {
	c := &Coordinator{
		records:   deps.Records,
		blobs:     deps.Blobs,
		payments:  deps.Payments,
		generator: deps.Generator,
		events:    deps.Events,
		ledger:    deps.Ledger,
		logger:    deps.Logger,
		pricing:   deps.Pricing,
		buckets:   deps.Buckets,
		model:     deps.Model,
		now:       deps.Now,

		generationTimeout: deps.GenerationTimeout,
	}
	if c.events == nil {
		c.events = events.NopPublisher{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.generationTimeout <= 0 {
		c.generationTimeout = defaultGenerationTimeout
	}
	return c
}

type NewProject struct {
	Image       []byte
	Filename    string
	ContentType string
	Prompt      string
}

func (c *Coordinator) CreateProject(ctx context.Context, who models.Identity, in NewProject) (*models.Project, error) {
	ctx, span := observability.StartSpan(ctx, "Coordinator.CreateProject")
	defer span.End()

	if who.UserID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if len(in.Image) == 0 {
		return nil, fmt.Errorf("%w: image file is required", ErrInvalidInput)
	}

	now := c.now().UTC()
	key := inputKey(now, in.Filename)
	location, err := c.blobs.Upload(ctx, c.buckets.Input, key, in.Image, detectContentType(in.ContentType, in.Image))
	if err != nil {
		c.logger.Error("failed to upload input image",
			zap.String("user_id", who.UserID.String()),
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("%w: failed to upload image", ErrStorageFailed)
	}

	row := models.Project{
		ID:            uuid.New(),
		UserID:        who.UserID,
		InputImageURL: location,
		Prompt:        in.Prompt,
		Status:        models.ProjectStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentAmount: c.pricing.Amount(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	project, err := records.ForUser(c.records, who).Insert(ctx, row)
	if err != nil {
		c.logger.Error("failed to insert project",
			zap.String("user_id", who.UserID.String()),
			zap.Error(err))
		if rmErr := c.blobs.Remove(ctx, c.buckets.Input, []string{key}); rmErr != nil {
			c.logger.Warn("failed to remove orphaned input image", zap.String("key", key), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("%w: failed to create project", ErrStorageFailed)
	}

	observability.ProjectsCreatedTotal.Inc()
	c.logger.Info("project created",
		zap.String("project_id", project.ID.String()),
		zap.String("user_id", who.UserID.String()))
	c.publish(ctx, events.New(events.ProjectCreated, project.ID, who.UserID,
		events.StatusPayload(string(project.Status))))

	return project, nil
}

func (c *Coordinator) ListProjects(ctx context.Context, who models.Identity) ([]models.Project, error) {
	ctx, span := observability.StartSpan(ctx, "Coordinator.ListProjects")
	defer span.End()

	if who.UserID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	projects, err := records.ForUser(c.records, who).List(ctx)
	if err != nil {
		c.logger.Error("failed to list projects", zap.String("user_id", who.UserID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to list projects", ErrStorageFailed)
	}
	return projects, nil
}

func (c *Coordinator) GetProject(ctx context.Context, who models.Identity, projectID uuid.UUID) (*models.Project, error) {
	ctx, span := observability.StartSpan(ctx, "Coordinator.GetProject")
	defer span.End()

	return c.fetchOwned(ctx, who, projectID)
}

// GetStatus is the polling view of a project.
func (c *Coordinator) GetStatus(ctx context.Context, who models.Identity, projectID uuid.UUID) (*models.StatusResponse, error) {
	ctx, span := observability.StartSpan(ctx, "Coordinator.GetStatus")
	defer span.End()

	project, err := c.fetchOwned(ctx, who, projectID)
	if err != nil {
		return nil, err
	}
	return &models.StatusResponse{
		ProjectID:      project.ID.String(),
		Status:         string(project.Status),
		PaymentStatus:  string(project.PaymentStatus),
		OutputImageURL: project.OutputImageURL,
		UpdatedAt:      project.UpdatedAt,
	}, nil
}

func (c *Coordinator) Quote() models.PricingResponse {
	return models.PricingResponse{
		Amount:   c.pricing.Amount(),
		Currency: c.pricing.Currency,
		Model:    c.model,
	}
}

// CreatePaymentSession opens a hosted checkout for the project. The session is
// tagged with the project and owner so the notification can be correlated later.
func (c *Coordinator) CreatePaymentSession(ctx context.Context, who models.Identity, projectID uuid.UUID) (*payments.Session, error) {
	ctx, span := observability.StartSpan(ctx, "Coordinator.CreatePaymentSession")
	defer span.End()

	project, err := c.fetchOwned(ctx, who, projectID)
	if err != nil {
		return nil, err
	}
	if project.PaymentStatus == models.PaymentStatusPaid {
		return nil, ErrAlreadyPaid
	}

	session, err := c.payments.CreateSession(ctx, payments.SessionRequest{
		AmountCents: c.pricing.AmountCents,
		Currency:    c.pricing.Currency,
		ProductName: c.pricing.ProductName,
		Description: project.Prompt,
		Metadata: map[string]string{
			"project_id": project.ID.String(),
			"user_id":    who.UserID.String(),
		},
		ClientReference: who.UserID.String(),
	})
	if err != nil {
		c.logger.Error("failed to create payment session",
			zap.String("project_id", project.ID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: could not create payment session", ErrPaymentFailed)
	}

	patch := models.ProjectPatch{StripeCheckoutSessionID: &session.ID}
	if project.PaymentStatus == models.PaymentStatusCancelled {
		pending := models.PaymentStatusPending
		patch.PaymentStatus = &pending
	}
	// Ownership was checked above; the write itself goes through the service
	// handle so user tokens never need update rights on the table.
	updated, err := records.AsService(c.records).Update(ctx, patch, records.Filter{
		records.Eq(models.ColumnID, project.ID.String()),
		records.Eq(models.ColumnUserID, who.UserID.String()),
		records.Neq(models.ColumnPaymentStatus, string(models.PaymentStatusPaid)),
	})
	if err == nil && len(updated) == 0 {
		// paid by a notification since the fetch, or deleted
		if current, getErr := records.AsService(c.records).Get(ctx, project.ID); getErr == nil && current.PaymentStatus == models.PaymentStatusPaid {
			return nil, ErrAlreadyPaid
		}
		err = records.ErrNotFound
	}
	if err != nil {
		// The session stays open at the gateway; a retry issues a fresh one.
		c.logger.Error("failed to persist payment session",
			zap.String("project_id", project.ID.String()),
			zap.String("session_id", session.ID),
			zap.Error(err))
		if errors.Is(err, records.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to save payment session", ErrStorageFailed)
	}

	observability.PaymentSessionsCreatedTotal.Inc()
	c.logger.Info("payment session created",
		zap.String("project_id", project.ID.String()),
		zap.String("session_id", session.ID))
	c.publish(ctx, events.New(events.PaymentSessionCreated, project.ID, who.UserID,
		events.PaymentPayload(string(models.PaymentStatusPending), session.ID)))

	return session, nil
}

// HandlePaymentNotification verifies a raw gateway callback and reconciles it.
// Nothing in the payload is looked at before the signature checks out.
func (c *Coordinator) HandlePaymentNotification(ctx context.Context, payload []byte, signature string) error {
	event, err := c.payments.VerifyAndParse(payload, signature)
	if err != nil {
		observability.PaymentNotificationsTotal.WithLabelValues("unknown", "rejected").Inc()
		c.logger.Warn("rejected payment notification", zap.Error(err))
		if errors.Is(err, payments.ErrInvalidSignature) {
			return ErrInvalidSignature
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return c.ReconcilePaymentNotification(ctx, event)
}

// ReconcilePaymentNotification applies a verified gateway event with service
// privileges. Every write assigns absolute values, so redelivery is harmless.
func (c *Coordinator) ReconcilePaymentNotification(ctx context.Context, event *payments.Event) error {
	ctx, span := observability.StartSpan(ctx, "Coordinator.ReconcilePaymentNotification")
	defer span.End()

	kind := string(event.Kind)
	logger := c.logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	if c.ledger != nil && event.ID != "" {
		seen, err := c.ledger.IsProcessed(ctx, event.ID)
		if err != nil {
			logger.Warn("event ledger unavailable", zap.Error(err))
		} else if seen {
			observability.PaymentNotificationsTotal.WithLabelValues(kind, "duplicate").Inc()
			logger.Info("payment notification already processed")
			return nil
		}
	}

	var err error
	switch event.Kind {
	case payments.EventPaymentSucceeded:
		err = c.markPaid(ctx, logger, event)
	case payments.EventSessionExpired:
		err = c.markCancelled(ctx, logger, event)
	case payments.EventPaymentFailed:
		logger.Warn("payment failed", zap.String("payment_reference", event.PaymentReference))
		observability.PaymentNotificationsTotal.WithLabelValues(kind, "logged").Inc()
	default:
		logger.Debug("ignoring payment notification")
		observability.PaymentNotificationsTotal.WithLabelValues(string(payments.EventIgnored), "ignored").Inc()
	}
	if err != nil {
		return err
	}

	if c.ledger != nil && event.ID != "" {
		if _, err := c.ledger.MarkProcessed(ctx, event.ID); err != nil {
			logger.Warn("failed to record processed event", zap.Error(err))
		}
	}
	return nil
}

func (c *Coordinator) markPaid(ctx context.Context, logger *zap.Logger, event *payments.Event) error {
	kind := string(event.Kind)
	projectID, err := uuid.Parse(event.ProjectID)
	if err != nil {
		observability.PaymentNotificationsTotal.WithLabelValues(kind, "invalid").Inc()
		logger.Error("payment notification without project metadata", zap.String("session_id", event.SessionID))
		return fmt.Errorf("%w: missing project metadata", ErrInvalidInput)
	}

	paid := models.PaymentStatusPaid
	patch := models.ProjectPatch{PaymentStatus: &paid}
	if event.SessionID != "" {
		patch.StripeCheckoutSessionID = &event.SessionID
	}
	if event.PaymentReference != "" {
		patch.StripePaymentIntentID = &event.PaymentReference
	}

	rows, err := records.AsService(c.records).Update(ctx, patch, records.Filter{
		records.Eq(models.ColumnID, projectID.String()),
	})
	if err != nil {
		observability.PaymentNotificationsTotal.WithLabelValues(kind, "error").Inc()
		logger.Error("failed to mark project paid", zap.String("project_id", projectID.String()), zap.Error(err))
		return fmt.Errorf("%w: failed to update payment status", ErrStorageFailed)
	}
	if len(rows) == 0 {
		observability.PaymentNotificationsTotal.WithLabelValues(kind, "no_match").Inc()
		logger.Warn("payment notification for unknown project", zap.String("project_id", projectID.String()))
		return nil
	}

	observability.PaymentNotificationsTotal.WithLabelValues(kind, "applied").Inc()
	logger.Info("project paid", zap.String("project_id", projectID.String()))
	c.publish(ctx, events.New(events.PaymentPaid, projectID, rows[0].UserID,
		events.PaymentPayload(string(paid), event.SessionID)))
	return nil
}

// markCancelled never downgrades a paid project; a late expiry for a session that
// was superseded by a paid one matches no row.
func (c *Coordinator) markCancelled(ctx context.Context, logger *zap.Logger, event *payments.Event) error {
	kind := string(event.Kind)
	projectID, err := uuid.Parse(event.ProjectID)
	if err != nil {
		observability.PaymentNotificationsTotal.WithLabelValues(kind, "no_match").Inc()
		logger.Warn("expired session without project metadata", zap.String("session_id", event.SessionID))
		return nil
	}

	cancelled := models.PaymentStatusCancelled
	rows, err := records.AsService(c.records).Update(ctx, models.ProjectPatch{PaymentStatus: &cancelled}, records.Filter{
		records.Eq(models.ColumnID, projectID.String()),
		records.Neq(models.ColumnPaymentStatus, string(models.PaymentStatusPaid)),
	})
	if err != nil {
		observability.PaymentNotificationsTotal.WithLabelValues(kind, "error").Inc()
		logger.Error("failed to mark project cancelled", zap.String("project_id", projectID.String()), zap.Error(err))
		return fmt.Errorf("%w: failed to update payment status", ErrStorageFailed)
	}
	if len(rows) == 0 {
		observability.PaymentNotificationsTotal.WithLabelValues(kind, "no_match").Inc()
		return nil
	}

	observability.PaymentNotificationsTotal.WithLabelValues(kind, "applied").Inc()
	logger.Info("payment cancelled", zap.String("project_id", projectID.String()))
	c.publish(ctx, events.New(events.PaymentCancelled, projectID, rows[0].UserID,
		events.PaymentPayload(string(cancelled), event.SessionID)))
	return nil
}

// GenerateOutput runs the paid transformation once. The claim is a conditional
// update, so of several concurrent callers exactly one proceeds. A failure after
// the claim leaves the project in processing without output.
func (c *Coordinator) GenerateOutput(ctx context.Context, who models.Identity, projectID uuid.UUID) (string, error) {
	ctx, span := observability.StartSpan(ctx, "Coordinator.GenerateOutput")
	defer span.End()

	project, err := c.fetchOwned(ctx, who, projectID)
	if err != nil {
		return "", err
	}
	if project.PaymentStatus != models.PaymentStatusPaid {
		return "", ErrPaymentRequired
	}
	if project.Status != models.ProjectStatusPending || project.HasOutput() {
		return "", ErrAlreadyGenerated
	}

	logger := c.logger.With(zap.String("project_id", project.ID.String()), zap.String("user_id", who.UserID.String()))
	svc := records.AsService(c.records)

	processing := models.ProjectStatusProcessing
	claimed, err := svc.Update(ctx, models.ProjectPatch{Status: &processing}, records.Filter{
		records.Eq(models.ColumnID, project.ID.String()),
		records.Eq(models.ColumnPaymentStatus, string(models.PaymentStatusPaid)),
		records.Neq(models.ColumnStatus, string(models.ProjectStatusProcessing)),
		records.Neq(models.ColumnStatus, string(models.ProjectStatusCompleted)),
	})
	if err != nil {
		logger.Error("failed to claim project for generation", zap.Error(err))
		return "", fmt.Errorf("%w: failed to update project status", ErrStorageFailed)
	}
	if len(claimed) == 0 {
		observability.GenerationsTotal.WithLabelValues("conflict").Inc()
		logger.Info("generation already claimed")
		return "", ErrAlreadyGenerated
	}

	// Past the claim the project is ours to finish; the caller may go away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.generationTimeout)
	defer cancel()

	logger.Info("generation started", zap.String("model", c.model))
	c.publish(ctx, events.New(events.GenerationStarted, project.ID, who.UserID,
		events.StatusPayload(string(processing))))

	started := c.now()
	output, err := c.generator.Invoke(ctx, c.model, project.Prompt, project.InputImageURL)
	observability.GenerationDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		return "", c.generationFailed(ctx, logger, project, "invoke", err, ErrGenerationFailed)
	}

	key := outputKey(c.now().UTC(), output)
	location, err := c.blobs.Upload(ctx, c.buckets.Output, key, output, detectContentType("", output))
	if err != nil {
		return "", c.generationFailed(ctx, logger, project, "upload", err, ErrStorageFailed)
	}

	completed := models.ProjectStatusCompleted
	done, err := svc.Update(ctx, models.ProjectPatch{Status: &completed, OutputImageURL: &location}, records.Filter{
		records.Eq(models.ColumnID, project.ID.String()),
		records.Eq(models.ColumnStatus, string(models.ProjectStatusProcessing)),
	})
	if err == nil && len(done) == 0 {
		err = records.ErrNotFound
	}
	if err != nil {
		return "", c.generationFailed(ctx, logger, project, "finalize", err, ErrStorageFailed)
	}

	elapsed := c.now().Sub(started)
	observability.GenerationsTotal.WithLabelValues("completed").Inc()
	logger.Info("generation completed", zap.String("output_image_url", location), zap.Duration("elapsed", elapsed))
	c.publish(ctx, events.New(events.GenerationCompleted, project.ID, who.UserID,
		events.GenerationCompletedPayload(location, elapsed)))

	return location, nil
}

func (c *Coordinator) generationFailed(ctx context.Context, logger *zap.Logger, project *models.Project, stage string, cause, kind error) error {
	observability.GenerationsTotal.WithLabelValues("failed_" + stage).Inc()
	logger.Error("generation failed; project left in processing", zap.String("stage", stage), zap.Error(cause))
	c.publish(ctx, events.New(events.GenerationFailed, project.ID, project.UserID,
		events.GenerationFailedPayload(stage, cause)))
	return fmt.Errorf("%w: %s stage failed", kind, stage)
}

// DeleteProject removes the project and, best effort, its stored images.
func (c *Coordinator) DeleteProject(ctx context.Context, who models.Identity, projectID uuid.UUID) error {
	ctx, span := observability.StartSpan(ctx, "Coordinator.DeleteProject")
	defer span.End()

	project, err := c.fetchOwned(ctx, who, projectID)
	if err != nil {
		return err
	}

	c.removeBlob(ctx, c.buckets.Input, project.InputImageURL)
	if project.OutputImageURL != nil {
		c.removeBlob(ctx, c.buckets.Output, *project.OutputImageURL)
	}

	if err := records.ForUser(c.records, who).Delete(ctx, project.ID); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return ErrNotFound
		}
		c.logger.Error("failed to delete project", zap.String("project_id", project.ID.String()), zap.Error(err))
		return fmt.Errorf("%w: failed to delete project", ErrStorageFailed)
	}

	observability.ProjectsDeletedTotal.Inc()
	c.logger.Info("project deleted", zap.String("project_id", project.ID.String()))
	c.publish(ctx, events.New(events.ProjectDeleted, project.ID, who.UserID, nil))
	return nil
}

func (c *Coordinator) removeBlob(ctx context.Context, bucket, location string) {
	key := keyFromURL(location)
	if key == "" || key == "." || key == "/" {
		return
	}
	if err := c.blobs.Remove(ctx, bucket, []string{key}); err != nil {
		c.logger.Warn("failed to remove blob",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err))
	}
}

func (c *Coordinator) fetchOwned(ctx context.Context, who models.Identity, projectID uuid.UUID) (*models.Project, error) {
	if who.UserID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	project, err := records.ForUser(c.records, who).Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return nil, ErrNotFound
		}
		c.logger.Error("failed to load project", zap.String("project_id", projectID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to load project", ErrStorageFailed)
	}
	return project, nil
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish event", zap.String("event_type", event.Type), zap.Error(err))
	}
}
