// Package browser defines the boundary to the browser-automation
// driver. The core only ever asks the driver for DOM facts (the current
// page HTML) or UI actions (navigate, click); everything else about the
// driver (fingerprinting, playback control, screenshots) lives on the
// other side of this boundary.
package browser

import (
	"context"
	"errors"
)

// ErrSurfaceClosed reports that the page/context behind a surface is
// gone. This error kind is fatal: callers must not retry against the
// same surface, and the workflow loop treats it as a signal to stop the
// whole run rather than reselect.
var ErrSurfaceClosed = errors.New("automation surface closed")

// Surface is one page of the automation driver.
type Surface interface {
	// Navigate loads the given url and waits for the DOM to settle.
	Navigate(ctx context.Context, url string) error
	// HTML returns a snapshot of the current document.
	HTML(ctx context.Context) (string, error)
	// Click activates the nth=0 element matching selector and returns
	// how many elements matched. Zero matches is not an error.
	Click(ctx context.Context, selector string) (int, error)
	Close(ctx context.Context) error
}

// Host creates surfaces. OpenStream accepts either a streamer lookup
// key (the driver resolves it through the campaign detail page) or a
// direct stream url; the driver is responsible for starting playback
// and dropping the stream to its lowest-bandwidth quality before
// returning.
type Host interface {
	NewSurface(ctx context.Context) (Surface, error)
	OpenStream(ctx context.Context, urlOrLookupKey string) (Surface, error)
}
