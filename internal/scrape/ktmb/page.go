// Package ktmb implements the scrape.Page actuation boundary against
// the live KTMB Shuttle booking site using a headless Chrome session.
package ktmb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/shuttlewatch/shuttlewatch/internal/scrape"
	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// DefaultBaseURL is the shuttle booking form.
const DefaultBaseURL = "https://shuttleonline.ktmb.com.my/Home/Shuttle"

// Site selectors. These form half of the remote-site contract; the
// other half lives in scrape's parser selectors.
const (
	selSwapIcon        = `i[class*="swap"], i[class*="exchange"], .swap-direction`
	selOriginStation   = `.station-from, #FromStationName, select[name="Direction"] option:checked`
	selPassengerSelect = `#PassengerCount, select[name="Pax"]`
	selSearchButton    = `button[type="submit"], input[type="submit"]`
	selResultsTable    = `#tblTrainList`
	selBanner          = `.validation-summary-errors, .alert-danger, .field-validation-error, #OnwardDate-error`
	selDatePicker      = `#ui-datepicker-div, .datepicker.dropdown-menu`
)

// PageConfig holds configuration for a browser page.
type PageConfig struct {
	// BaseURL is the booking form URL (defaults to DefaultBaseURL).
	BaseURL string

	// Headless runs Chrome without a display (default in production;
	// set false when debugging selectors).
	Headless bool

	// WaitBudget bounds each individual page interaction
	// (default: 10s).
	WaitBudget time.Duration

	// UserAgent overrides the browser user agent.
	UserAgent string

	// Logger for page operations.
	Logger zerolog.Logger
}

// Page is a chromedp-backed scrape.Page. One Page wraps one browser
// tab with one mutable form state; never share it between drivers.
type Page struct {
	baseURL    string
	waitBudget time.Duration
	logger     zerolog.Logger

	browserCtx context.Context
	cancel     []context.CancelFunc
}

var _ scrape.Page = (*Page)(nil)

// New launches a browser session. Close must be called to release it.
func New(ctx context.Context, cfg PageConfig) (*Page, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	waitBudget := cfg.WaitBudget
	if waitBudget == 0 {
		waitBudget = 10 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 720),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a broken environment fails at
	// construction, not mid-search.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Page{
		baseURL:    baseURL,
		waitBudget: waitBudget,
		logger:     cfg.Logger,
		browserCtx: browserCtx,
		cancel:     []context.CancelFunc{cancelBrowser, cancelAlloc},
	}, nil
}

// Close releases the browser session.
func (p *Page) Close() {
	for _, cancel := range p.cancel {
		cancel()
	}
}

// run executes chromedp actions under the page's wait budget, honoring
// the caller's context.
func (p *Page) run(ctx context.Context, budget time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.browserCtx, budget)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate loads the booking form fresh, discarding prior form state.
func (p *Page) Navigate(ctx context.Context) error {
	p.logger.Debug().Str("url", p.baseURL).Msg("loading booking form")
	return p.run(ctx, p.waitBudget,
		chromedp.Navigate(p.baseURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Direction reads which station the form currently shows as origin.
// The form loads with JB Sentral as origin.
func (p *Page) Direction(ctx context.Context) (shuttle.Direction, error) {
	var origin string
	script := fmt.Sprintf(
		`(document.querySelector(%q) || {}).textContent || ''`, selOriginStation)
	if err := p.run(ctx, p.waitBudget, chromedp.Evaluate(script, &origin)); err != nil {
		return "", fmt.Errorf("read origin station: %w", err)
	}

	if strings.Contains(strings.ToLower(origin), "woodlands") {
		return shuttle.SGToJB, nil
	}
	return shuttle.JBToSG, nil
}

// ToggleDirection clicks the swap icon once.
func (p *Page) ToggleDirection(ctx context.Context) error {
	return p.run(ctx, p.waitBudget,
		chromedp.Click(selSwapIcon, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
	)
}

// FillDateField assigns a date input directly and fires a change event,
// which is what the form's own scripts listen for. The read-back in the
// driver catches fields that discard the assignment.
func (p *Page) FillDateField(ctx context.Context, field scrape.DateField, value string) error {
	var ok bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector('input[name=%q]');
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, string(field), value)

	if err := p.run(ctx, p.waitBudget, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("assign %s: %w", field, err)
	}
	if !ok {
		return fmt.Errorf("date input %s not found", field)
	}
	return nil
}

// ReadDateField returns a date input's current value.
func (p *Page) ReadDateField(ctx context.Context, field scrape.DateField) (string, error) {
	var value string
	script := fmt.Sprintf(
		`(document.querySelector('input[name=%q]') || {}).value || ''`, string(field))
	if err := p.run(ctx, p.waitBudget, chromedp.Evaluate(script, &value)); err != nil {
		return "", fmt.Errorf("read %s: %w", field, err)
	}
	return value, nil
}

// PickDate opens the date-picker overlay and navigates its month/year
// dropdowns and day grid.
func (p *Page) PickDate(ctx context.Context, field scrape.DateField, date time.Time) error {
	openPicker := []chromedp.Action{
		chromedp.Click(fmt.Sprintf(`input[name=%q]`, string(field)), chromedp.ByQuery),
		chromedp.WaitVisible(selDatePicker, chromedp.ByQuery),
	}
	if err := p.run(ctx, p.waitBudget, openPicker...); err != nil {
		return fmt.Errorf("open date picker for %s: %w", field, err)
	}

	// Month dropdowns are zero-based in both picker widgets the site
	// has shipped with.
	var ok bool
	script := fmt.Sprintf(`(() => {
		const setSelect = (sel, value) => {
			const el = document.querySelector(sel);
			if (!el) return false;
			el.value = String(value);
			el.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		};
		if (!setSelect('.ui-datepicker-year, .datepicker select.year', %d)) return false;
		if (!setSelect('.ui-datepicker-month, .datepicker select.month', %d)) return false;
		const cells = document.querySelectorAll(
			'#ui-datepicker-div td a, .datepicker td.day:not(.old):not(.new)');
		for (const cell of cells) {
			if (cell.textContent.trim() === %q) { cell.click(); return true; }
		}
		return false;
	})()`, date.Year(), int(date.Month())-1, fmt.Sprint(date.Day()))

	if err := p.run(ctx, p.waitBudget, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("navigate date picker: %w", err)
	}
	if !ok {
		return fmt.Errorf("date %s not reachable in picker", date.Format(scrape.DateLayout))
	}
	return nil
}

// SelectPassengers picks the "<n> Pax" option.
func (p *Page) SelectPassengers(ctx context.Context, pax int) error {
	var ok bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		for (const opt of el.options) {
			if (opt.textContent.trim().startsWith('%d ')) {
				el.value = opt.value;
				el.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	})()`, selPassengerSelect, pax)

	if err := p.run(ctx, p.waitBudget, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("select passengers: %w", err)
	}
	if !ok {
		return fmt.Errorf("passenger option %d Pax not found", pax)
	}
	return nil
}

// Submit clicks the search control.
func (p *Page) Submit(ctx context.Context) error {
	return p.run(ctx, p.waitBudget,
		chromedp.Click(selSearchButton, chromedp.ByQuery),
	)
}

// AwaitOutcome polls for whichever appears first: the results table or
// a validation banner. OutcomeNone with nil error means the deadline
// passed with neither.
func (p *Page) AwaitOutcome(ctx context.Context, deadline time.Duration) (scrape.Outcome, error) {
	const pollEvery = 250 * time.Millisecond

	script := fmt.Sprintf(`(() => {
		const visible = sel => {
			const el = document.querySelector(sel);
			return el !== null && el.offsetParent !== null;
		};
		if (visible(%q)) return 'results';
		if (visible(%q)) return 'validation';
		return '';
	})()`, selResultsTable, selBanner)

	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		var state string
		if err := p.run(waitCtx, pollEvery*2, chromedp.Evaluate(script, &state)); err != nil {
			if waitCtx.Err() != nil {
				return scrape.OutcomeNone, nil
			}
			return scrape.OutcomeNone, err
		}

		switch state {
		case "results":
			return scrape.OutcomeResults, nil
		case "validation":
			return scrape.OutcomeValidation, nil
		}

		select {
		case <-waitCtx.Done():
			return scrape.OutcomeNone, nil
		case <-ticker.C:
		}
	}
}

// BannerText returns the visible validation banner's text.
func (p *Page) BannerText(ctx context.Context) (string, error) {
	var text string
	script := fmt.Sprintf(
		`((document.querySelector(%q) || {}).textContent || '').trim()`, selBanner)
	if err := p.run(ctx, p.waitBudget, chromedp.Evaluate(script, &text)); err != nil {
		return "", fmt.Errorf("read banner: %w", err)
	}
	return text, nil
}

// Content returns the rendered HTML of the current page.
func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.waitBudget, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}
