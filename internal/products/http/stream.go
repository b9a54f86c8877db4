package http

import (
	"context"
	"io"
	"net/http"

	"expiry-tracker/internal/products"

	"github.com/gin-gonic/gin"
)

const (
	sseEventProducts = "products"
	contentTypeICS   = "text/calendar; charset=utf-8"
)

// StreamProducts godoc
// @Summary      Live product list
// @Description  Server-Sent Events stream. Each "products" event carries the full list sorted by expiry date; the first is sent immediately.
// @Tags         products
// @Produce      text/event-stream
// @Success      200  {array}   products.View
// @Failure      503  {object}  errorResponse
// @Router       /products/stream [get]
func (h *Handler) StreamProducts(c *gin.Context) {
	ctx := c.Request.Context()

	sub, err := h.service.Subscribe(ctx)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "live updates unavailable"})
		return
	}
	defer sub.Cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snapshot, ok := <-sub.Updates():
			if !ok {
				return false
			}
			c.SSEvent(sseEventProducts, products.DescribeAll(snapshot, h.service.Today()))
			return true
		}
	})
}

// CalendarFeed serves the mirrored reminders as an iCalendar document.
type CalendarFeed interface {
	Feed(ctx context.Context) ([]byte, error)
}

// CalendarHandler godoc
// @Summary      Reminder calendar feed
// @Description  iCalendar feed of expiry reminders for calendar subscriptions.
// @Tags         calendar
// @Produce      text/calendar
// @Success      200
// @Failure      503  {object}  errorResponse
// @Router       /calendar.ics [get]
func CalendarHandler(feed CalendarFeed) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := feed.Feed(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "calendar unavailable"})
			return
		}
		c.Data(http.StatusOK, contentTypeICS, body)
	}
}
