package engine

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gorm-forestadmin/internal/instrument"
	"gorm-forestadmin/internal/metadata"
	"gorm-forestadmin/internal/schema"
	"gorm-forestadmin/internal/store"
)

type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	schema   *schema.Introspection
	perms    Authorizer
	metrics  *instrument.Metrics
	logger   *zap.Logger
}

func NewHandler(s *store.Store, reg *metadata.Registry, sch *schema.Introspection, perms Authorizer, metrics *instrument.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:    s,
		registry: reg,
		schema:   sch,
		perms:    perms,
		metrics:  metrics,
		logger:   logger,
	}
}

// Alive handles GET /forest
func (h *Handler) Alive(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// Chart handles POST /forest/stats/:collection
func (h *Handler) Chart(c *fiber.Ctx) error {
	coll, err := h.resolveCollection(c)
	if err != nil {
		return err
	}
	req, err := ParseChartRequest(c.Body())
	if err != nil {
		return err
	}
	// Permissions are checked against the collection the chart runs on.
	req.Collection = coll.Name
	if err := req.Validate(); err != nil {
		return err
	}

	ctx := c.UserContext()
	if err := h.authorize(ctx, CurrentUser(c), req); err != nil {
		return err
	}

	value, err := NewChartRepository(h.store, h.registry, h.schema, coll).Get(ctx, req)
	h.record(req, false, err)
	if err != nil {
		h.logger.Warn("chart failed",
			zap.String("collection", coll.Name), zap.String("type", req.Type), zap.Error(err))
		return err
	}
	return c.JSON(Serialize(value))
}

// LiveQuery handles POST /forest/stats
func (h *Handler) LiveQuery(c *fiber.Ctx) error {
	req, err := ParseChartRequest(c.Body())
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx := c.UserContext()
	if err := h.authorize(ctx, CurrentUser(c), req); err != nil {
		return err
	}

	value, err := LiveQuery(ctx, h.store, req)
	h.record(req, true, err)
	if err != nil {
		h.logger.Warn("live query failed",
			zap.String("type", req.Type), zap.String("query", LiveQueryLabel(req.Query)), zap.Error(err))
		return err
	}
	return c.JSON(Serialize(value))
}

func (h *Handler) authorize(ctx context.Context, user *metadata.UserContext, req *ChartRequest) error {
	err := CheckChartPermission(ctx, h.perms, user, req)
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status == fiber.StatusForbidden {
		h.metrics.ChartExecuted(req.Type, req.IsLiveQuery(), instrument.OutcomeForbidden)
		h.logger.Info("chart denied",
			zap.String("user_id", user.ID), zap.Int64("rendering_id", user.RenderingID),
			zap.String("collection", req.Collection), zap.String("type", req.Type))
	}
	return err
}

func (h *Handler) record(req *ChartRequest, live bool, err error) {
	outcome := instrument.OutcomeOK
	if err != nil {
		outcome = instrument.OutcomeError
	}
	h.metrics.ChartExecuted(req.Type, live, outcome)
}

func (h *Handler) resolveCollection(c *fiber.Ctx) (*metadata.Collection, error) {
	name := c.Params("collection")
	coll := h.registry.GetCollection(name)
	if coll == nil {
		return nil, UnknownCollectionError(name)
	}
	return coll, nil
}

// Serialize wraps a chart result in the stats envelope.
func Serialize(value any) fiber.Map {
	return fiber.Map{
		"data": fiber.Map{
			"type": "stats",
			"id":   uuid.NewString(),
			"attributes": fiber.Map{
				"value": value,
			},
		},
	}
}

const userKey = "user"

// SetUser stores the authenticated Forest user on the request.
func SetUser(c *fiber.Ctx, user *metadata.UserContext) {
	c.Locals(userKey, user)
}

// CurrentUser returns the user stored by SetUser, nil when the request is
// not authenticated.
func CurrentUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals(userKey).(*metadata.UserContext)
	return user
}
