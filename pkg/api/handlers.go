package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/TFMV/regions/pkg/features"
	"github.com/TFMV/regions/pkg/metrics"
	"github.com/TFMV/regions/pkg/provider"
	"github.com/TFMV/regions/pkg/regions"
)

// ViewInfo describes the region set of one view
type ViewInfo struct {
	View             string `json:"view"`
	Describer        string `json:"describer"`
	Regions          int    `json:"regions"`
	Descriptors      int    `json:"descriptors"`
	TypeID           string `json:"type_id"`
	DescriptorLength int    `json:"descriptor_length"`
	Binary           bool   `json:"binary"`
}

// DistanceResponse is returned by the distance endpoint
type DistanceResponse struct {
	A        string  `json:"a"`
	I        int     `json:"i"`
	B        string  `json:"b"`
	J        int     `json:"j"`
	Distance float64 `json:"distance"`
}

// statusFor maps provider and region errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, provider.ErrUnknownView):
		return fiber.StatusNotFound
	case errors.Is(err, regions.ErrIndexOutOfRange):
		return fiber.StatusBadRequest
	case errors.Is(err, regions.ErrTypeMismatch):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

// listViewsHandler returns the loaded view ids
func listViewsHandler(p *provider.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"describer": p.Describer(),
			"views":     p.Views(),
		})
	}
}

// describeViewHandler returns the shape of one view's region set
func describeViewHandler(p *provider.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view := c.Params("view")
		r, err := p.Get(view)
		if err != nil {
			return errorJSON(c, statusFor(err), err.Error())
		}
		return c.JSON(ViewInfo{
			View:             view,
			Describer:        p.Describer(),
			Regions:          r.RegionCount(),
			Descriptors:      r.DescriptorCount(),
			TypeID:           r.TypeID(),
			DescriptorLength: r.DescriptorLength(),
			Binary:           r.IsBinary(),
		})
	}
}

// positionsHandler returns the 2D positions of one view's regions
func positionsHandler(p *provider.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := p.Get(c.Params("view"))
		if err != nil {
			return errorJSON(c, statusFor(err), err.Error())
		}
		positions := r.RegionsPositions()
		if positions == nil {
			positions = []features.PointFeature{}
		}
		return c.JSON(fiber.Map{
			"positions": positions,
		})
	}
}

// distanceHandler returns the squared descriptor distance of two regions
func distanceHandler(p *provider.Provider, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, b := c.Query("a"), c.Query("b")
		if a == "" || b == "" {
			return errorJSON(c, fiber.StatusBadRequest, "Views a and b are required")
		}
		i, err := strconv.Atoi(c.Query("i"))
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid region index i")
		}
		j, err := strconv.Atoi(c.Query("j"))
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid region index j")
		}

		d, err := p.Distance(a, i, b, j)
		if err != nil {
			log.Debug("Distance failed",
				zap.String("a", a), zap.Int("i", i),
				zap.String("b", b), zap.Int("j", j),
				zap.Error(err))
			return errorJSON(c, statusFor(err), err.Error())
		}
		return c.JSON(DistanceResponse{A: a, I: i, B: b, J: j, Distance: d})
	}
}

// metricsHandler exposes the collector registry in the Prometheus format
func metricsHandler(collector *metrics.Collector) fiber.Handler {
	if collector == nil || collector.GetRegistry() == nil {
		return func(c *fiber.Ctx) error {
			return errorJSON(c, fiber.StatusNotFound, "Metrics are disabled")
		}
	}
	handler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(collector.GetRegistry(), promhttp.HandlerOpts{}),
	)
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
