package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

const didiHost = "b.didi-food.com"

// CaptureType names the DiDi console response a capture came from.
func CaptureType(url string) string {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "dailyorders"):
		return "dailyOrders"
	case strings.Contains(u, "getshops"):
		return "getShops"
	case strings.Contains(u, "neworders"):
		return "newOrders"
	default:
		return ""
	}
}

// CaptureSink receives every captured DiDi console response.
type CaptureSink func(ctx context.Context, captureType string, data json.RawMessage) error

// NewCapturePoster sends captures to the backend /didi/capture endpoint.
func NewCapturePoster(endpoint string) CaptureSink {
	client := resty.New().SetTimeout(10 * time.Second)

	return func(ctx context.Context, captureType string, data json.RawMessage) error {
		resp, err := client.R().
			SetContext(ctx).
			SetBody(map[string]interface{}{"type": captureType, "data": data}).
			Post(endpoint)
		if err != nil {
			return fmt.Errorf("CapturePoster: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("CapturePoster: %s: error %d", captureType, resp.StatusCode())
		}

		return nil
	}
}

// CaptureDidi opens the DiDi merchant console in a visible Chromium window and forwards
// shop and order responses to sink until ctx is done.
func CaptureDidi(ctx context.Context, opts Options, consoleURL string, sink CaptureSink) error {
	opts.Headless = false
	opts.Timeout = 0

	ctx, cancel := newBrowserContext(ctx, opts)
	defer cancel()

	pending := make(map[network.RequestID]string)
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			url := e.Response.URL
			if !strings.Contains(strings.ToLower(url), didiHost) {
				return
			}
			if t := CaptureType(url); t != "" {
				pending[e.RequestID] = t
			}
		case *network.EventLoadingFinished:
			t, ok := pending[e.RequestID]
			if !ok {
				return
			}
			delete(pending, e.RequestID)
			go forwardCapture(ctx, e.RequestID, t, sink)
		}
	})

	if err := chromedp.Run(ctx, network.Enable(), chromedp.Navigate(consoleURL)); err != nil {
		return fmt.Errorf("CaptureDidi: failed to open %s: %w", consoleURL, err)
	}
	log.Info("Didi abierto. Usa la ventana del navegador.")

	<-ctx.Done()
	log.Info("Navegador cerrado.")

	return nil
}

func forwardCapture(ctx context.Context, requestID network.RequestID, captureType string, sink CaptureSink) {
	c := chromedp.FromContext(ctx)
	body, err := network.GetResponseBody(requestID).Do(cdp.WithExecutor(ctx, c.Target))
	if err != nil {
		log.Debugf("CaptureDidi: %s: %v", captureType, err)
		return
	}
	if !json.Valid(body) {
		return
	}

	if err := sink(ctx, captureType, body); err != nil {
		log.Errorf("%s: %v", captureType, err)
		return
	}

	log.Infof("%s enviado OK", captureType)
}
