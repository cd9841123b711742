package browser

import (
	"context"
	"time"

	"salchimonster/restaurant-reports/models"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Options configure the Chromium instance used for scripted sessions.
type Options struct {
	UserAgent string
	Headless  bool
	Timeout   time.Duration
}

func newBrowserContext(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("ignore-certificate-errors", true),
	)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("start-maximized", true))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)

	cancel := func() {
		cancelTask()
		cancelAlloc()
	}
	if opts.Timeout <= 0 {
		return taskCtx, cancel
	}

	timeoutCtx, cancelTimeout := context.WithTimeout(taskCtx, opts.Timeout)
	return timeoutCtx, func() {
		cancelTimeout()
		cancel()
	}
}

func setCookies(cookies []models.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if len(cookies) == 0 {
			return nil
		}

		params := make([]*network.CookieParam, 0, len(cookies))
		for _, c := range cookies {
			params = append(params, &network.CookieParam{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HTTPOnly: c.HttpOnly,
			})
		}

		return network.SetCookies(params).Do(ctx)
	})
}

func readCookies(out *[]models.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}

		for _, c := range cookies {
			cookie := models.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				HttpOnly: c.HTTPOnly,
				Secure:   c.Secure,
			}
			if c.Expires > 0 {
				cookie.Expires = time.Unix(int64(c.Expires), 0)
			}
			*out = append(*out, cookie)
		}

		return nil
	})
}
