package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/carga-pendencia/cnpj-queue/internal/domain/cnpj"
)

// Selectors for the consultation portal. The form takes the formatted
// identifier; the result panel appears after submission.
const (
	selectorForm      = `#formConsulta`
	selectorCNPJInput = `#formConsulta input[name="cnpj"]`
	selectorSubmit    = `#formConsulta button[type="submit"]`
	selectorResult    = `#painelResultado`
)

// PortalConfig controls the behavior of the portal collector.
type PortalConfig struct {
	// URL is the consultation portal entry page.
	URL string
	// UserAgent overrides the browser user agent when non-empty.
	UserAgent string
	// Headless disables the browser UI. On by default in production.
	Headless bool
	// MaxParallel bounds concurrent browser tabs. Zero means unlimited.
	MaxParallel int
}

// PortalCollector implements Collector using chromedp and headless Chrome.
// One exec allocator is shared across consultations; each Collect runs in
// its own browser context.
type PortalCollector struct {
	cfg         PortalConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

var _ Collector = (*PortalCollector)(nil)

// NewPortalCollector creates a collector backed by chromedp.
func NewPortalCollector(cfg PortalConfig) (*PortalCollector, error) {
	if cfg.URL == "" {
		return nil, errors.New("portal url is required")
	}
	if cfg.MaxParallel < 0 {
		return nil, errors.New("max parallel must be >= 0")
	}

	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &PortalCollector{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, shutting down the browser.
func (c *PortalCollector) Close() {
	c.allocCancel()
}

// Collect drives the portal form for one identifier and extracts the result.
func (c *PortalCollector) Collect(ctx context.Context, req Request) (*Result, error) {
	if len(req.CNPJ) != cnpj.Length {
		return nil, fmt.Errorf("cnpj must be normalized to %d digits", cnpj.Length)
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	taskCtx, taskCancel := chromedp.NewContext(c.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, c.interactionTimeout(req.Budgets.Total()))
	defer cancel()

	// Propagate cancellation from the caller into the browser context.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	html, err := c.runConsultation(taskCtx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	result, err := ExtractResult(html)
	if err != nil {
		// The page was captured even though extraction failed; hand it
		// back so the job record keeps what the portal rendered.
		return &Result{RawPayload: html}, fmt.Errorf("extract result: %w", err)
	}
	result.RawPayload = html
	return result, nil
}

func (c *PortalCollector) runConsultation(ctx context.Context, req Request) (string, error) {
	formatted := cnpj.Format(req.CNPJ)
	b := req.Budgets

	var html string
	actions := []chromedp.Action{
		chromedp.Navigate(c.cfg.URL),
		waitVisibleWithin(ctx, selectorForm, b.PageLoad),
		chromedp.Click(selectorCNPJInput, chromedp.ByQuery),
		chromedp.SendKeys(selectorCNPJInput, formatted, chromedp.ByQuery),
		chromedp.Sleep(settleFraction(b.FormFill)),
		chromedp.Click(selectorSubmit, chromedp.ByQuery),
		chromedp.Sleep(settleFraction(b.AfterAction)),
		waitVisibleWithin(ctx, selectorResult, b.ElementWait),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

// waitVisibleWithin bounds a WaitVisible with its own budget so a missing
// element fails with the element budget rather than the whole interaction
// timeout.
func waitVisibleWithin(parent context.Context, selector string, budget time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, budget)
		defer cancel()
		if err := chromedp.WaitVisible(selector, chromedp.ByQuery).Do(waitCtx); err != nil {
			if parent.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("element %s not visible within %s: %w", selector, budget, err)
			}
			return err
		}
		return nil
	})
}

// settleFraction converts a budget into a short settle pause. Full budgets
// are upper bounds for waiting, not mandatory sleeps.
func settleFraction(budget time.Duration) time.Duration {
	settle := budget / 10
	if settle < time.Second {
		return time.Second
	}
	if settle > 5*time.Second {
		return 5 * time.Second
	}
	return settle
}

func (c *PortalCollector) interactionTimeout(total time.Duration) time.Duration {
	if total <= 0 {
		return 3 * time.Minute
	}
	return total
}

func (c *PortalCollector) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (c *PortalCollector) release() {
	if c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}
