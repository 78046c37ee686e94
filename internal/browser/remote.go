package browser

import (
	"context"
	"fmt"
	"net/http"

	"dropwatch/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

// RemoteHost drives a driver sidecar over its local HTTP API. The
// sidecar owns the actual browser; the core only holds surface ids.
type RemoteHost struct {
	client   *resty.Client
	headless func() bool
}

func NewRemoteHost(baseURL string) *RemoteHost {
	client := resty.New().
		SetBaseURL(baseURL)
	return &RemoteHost{client: client}
}

// SetHeadlessProvider installs the source of the headless preference.
// It is consulted on every open, so a live toggle applies to the next
// surface rather than requiring a restart.
func (h *RemoteHost) SetHeadlessProvider(headless func() bool) {
	h.headless = headless
}

func (h *RemoteHost) headlessNow() bool {
	if h.headless == nil {
		return true
	}
	return h.headless()
}

// SetInstrumentOutput enables HTTP exchange dumps of the driver API
// traffic for debugging.
func (h *RemoteHost) SetInstrumentOutput(out restyutil.InstrumentOutput) {
	restyutil.InstrumentClient(h.client, otel.Tracer("dropwatch.browser"), out)
}

type surfaceRef struct {
	Id string `json:"id"`
}

func (h *RemoteHost) NewSurface(ctx context.Context) (Surface, error) {
	var ref surfaceRef
	res, err := h.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"headless": h.headlessNow()}).
		SetResult(&ref).
		Post("/surfaces")
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("driver: new surface: %s", res.Status())
	}
	return &remoteSurface{host: h, id: ref.Id}, nil
}

func (h *RemoteHost) OpenStream(ctx context.Context, urlOrLookupKey string) (Surface, error) {
	var ref surfaceRef
	res, err := h.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"target":   urlOrLookupKey,
			"headless": h.headlessNow(),
		}).
		SetResult(&ref).
		Post("/streams")
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("driver: open stream %q: %s", urlOrLookupKey, res.Status())
	}
	return &remoteSurface{host: h, id: ref.Id}, nil
}

type remoteSurface struct {
	host *RemoteHost
	id   string
}

// The sidecar answers 410 Gone once a page or the whole browser context
// has been torn down.
func (s *remoteSurface) mapStatus(res *resty.Response, op string) error {
	if res.StatusCode() == http.StatusGone {
		return fmt.Errorf("%s surface %s: %w", op, s.id, ErrSurfaceClosed)
	}
	if res.IsError() {
		return fmt.Errorf("driver: %s surface %s: %s", op, s.id, res.Status())
	}
	return nil
}

func (s *remoteSurface) Navigate(ctx context.Context, url string) error {
	res, err := s.host.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"url": url}).
		Post(fmt.Sprintf("/surfaces/%s/navigate", s.id))
	if err != nil {
		return err
	}
	return s.mapStatus(res, "navigate")
}

func (s *remoteSurface) HTML(ctx context.Context) (string, error) {
	res, err := s.host.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/surfaces/%s/html", s.id))
	if err != nil {
		return "", err
	}
	err = s.mapStatus(res, "snapshot")
	if err != nil {
		return "", err
	}
	return string(res.Body()), nil
}

type clickResult struct {
	Matched int `json:"matched"`
}

func (s *remoteSurface) Click(ctx context.Context, selector string) (int, error) {
	var out clickResult
	res, err := s.host.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"selector": selector}).
		SetResult(&out).
		Post(fmt.Sprintf("/surfaces/%s/click", s.id))
	if err != nil {
		return 0, err
	}
	err = s.mapStatus(res, "click")
	if err != nil {
		return 0, err
	}
	return out.Matched, nil
}

func (s *remoteSurface) Close(ctx context.Context) error {
	res, err := s.host.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/surfaces/%s", s.id))
	if err != nil {
		return err
	}
	if res.StatusCode() == http.StatusGone {
		// already gone, closing is idempotent
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("driver: close surface %s: %s", s.id, res.Status())
	}
	return nil
}
