package httpapi

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/balloon-tracker/internal/log"
	"github.com/i474232898/balloon-tracker/internal/metrics"
	"github.com/i474232898/balloon-tracker/internal/tracker"
	"github.com/i474232898/balloon-tracker/internal/upstream"
)

const (
	msgMissingFile    = "Missing `file` parameter"
	msgInvalidFile    = "Invalid `file` parameter"
	msgUpstreamFailed = "Failed to fetch upstream"
	msgInternal       = "Internal Server Error"
)

var validate = validator.New()

// Forwarder relays a snapshot file request to the gateway.
type Forwarder interface {
	Forward(ctx context.Context, fileID string) (upstream.Response, error)
}

// ErrorHandler renders every handler error as {"error": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := msgInternal

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		msg = e.Message
	} else {
		log.Errorw("unhandled request error", "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. collector may
// be nil, in which case no metrics are recorded or exposed.
func RegisterRoutes(app *fiber.App, gateway Forwarder, service *tracker.Service, collector *metrics.Collector) {
	p := &proxy{gateway: gateway, collector: collector}
	app.Get("/api/windborne", p.byQuery)
	app.Get("/api/windborne/:id", p.byPath)

	if collector != nil {
		app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/arcs", func(c *fiber.Ctx) error {
		state := service.State()
		return c.JSON(fiber.Map{
			"cycleId":     state.CycleID,
			"refreshedAt": state.RefreshedAt,
			"arcs":        state.Arcs,
		})
	})

	v1.Get("/balloons", func(c *fiber.Ctx) error {
		state := service.State()
		return c.JSON(fiber.Map{
			"cycleId":     state.CycleID,
			"refreshedAt": state.RefreshedAt,
			"balloons":    state.Balloons,
		})
	})

	v1.Get("/report", func(c *fiber.Ctx) error {
		state := service.State()
		if state.CycleID == "" {
			return fiber.NewError(fiber.StatusNotFound, "no refresh cycle has completed yet")
		}
		return c.JSON(state.Report)
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		report, shared := service.Refresh(c.UserContext())
		return c.JSON(fiber.Map{
			"report": report,
			"shared": shared,
		})
	})

	v1.Post("/arcs/:balloon/:seq/weather", func(c *fiber.Ctx) error {
		var req arcParams
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		arc, err := service.EnrichArc(c.UserContext(), tracker.ArcKey{BalloonIndex: req.Balloon, Seq: req.Seq})
		if errors.Is(err, tracker.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "arc not found")
		}
		return c.JSON(enrichResponse(err, "arc", arc))
	})

	v1.Post("/balloons/:index/weather", func(c *fiber.Ctx) error {
		var req balloonParams
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		balloon, err := service.EnrichBalloon(c.UserContext(), req.Index)
		if errors.Is(err, tracker.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "balloon not found")
		}
		return c.JSON(enrichResponse(err, "balloon", balloon))
	})
}

// enrichResponse reports a failed enrichment as a no-op rather than an
// error: the entity comes back unchanged with enriched=false.
func enrichResponse(err error, field string, entity interface{}) fiber.Map {
	resp := fiber.Map{
		"enriched": err == nil,
		field:      entity,
	}
	switch {
	case err == nil:
	case errors.Is(err, tracker.ErrStale):
		resp["reason"] = "state refreshed during enrichment"
	default:
		resp["reason"] = err.Error()
	}
	return resp
}

type proxy struct {
	gateway   Forwarder
	collector *metrics.Collector
}

func (p *proxy) byQuery(c *fiber.Ctx) error {
	id := c.Query("file")
	if id == "" {
		p.collector.ProxyOutcome("bad_request")
		return fiber.NewError(fiber.StatusBadRequest, msgMissingFile)
	}
	return p.forward(c, id)
}

func (p *proxy) byPath(c *fiber.Ctx) error {
	return p.forward(c, strings.TrimSuffix(c.Params("id"), ".json"))
}

// forward relays the gateway response without parsing it; the feed is
// sometimes malformed and consumers deal with that.
func (p *proxy) forward(c *fiber.Ctx, id string) error {
	if err := validate.Var(id, "len=2,number"); err != nil {
		p.collector.ProxyOutcome("bad_request")
		return fiber.NewError(fiber.StatusBadRequest, msgInvalidFile)
	}

	resp, err := p.gateway.Forward(c.UserContext(), id)
	if err != nil {
		log.Errorw("proxy request failed", "file", id, "error", err)
		p.collector.ProxyOutcome("internal_error")
		return fiber.NewError(fiber.StatusInternalServerError, msgInternal)
	}

	if !resp.OK() {
		log.Warnw("gateway returned non-success", "file", id, "status", resp.StatusCode)
		p.collector.ProxyOutcome("upstream_error")
		return c.Status(resp.StatusCode).JSON(fiber.Map{"error": msgUpstreamFailed})
	}

	p.collector.ProxyOutcome("ok")
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(resp.Body)
}

type arcParams struct {
	Balloon int `validate:"gte=0"`
	Seq     int `validate:"gte=1"`
}

func (a *arcParams) bind(c *fiber.Ctx) error {
	balloon, err := c.ParamsInt("balloon")
	if err != nil {
		return errors.New("balloon must be an integer")
	}
	seq, err := c.ParamsInt("seq")
	if err != nil {
		return errors.New("seq must be an integer")
	}
	a.Balloon = balloon
	a.Seq = seq
	return validate.Struct(a)
}

type balloonParams struct {
	Index int `validate:"gte=0"`
}

func (b *balloonParams) bind(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return errors.New("index must be an integer")
	}
	b.Index = index
	return validate.Struct(b)
}
