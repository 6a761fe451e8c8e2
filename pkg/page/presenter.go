package page

import (
	"strings"

	"github.com/entrhq/tiptranslate/pkg/logging"
	"github.com/entrhq/tiptranslate/pkg/types"
)

// Sender forwards translate requests to the coordinator.
type Sender interface {
	Send(req types.TranslationRequest) bool
}

// Presenter owns the single tooltip of a page. It is not safe for concurrent
// use; a Session calls it from its event loop only.
type Presenter struct {
	doc      Document
	sender   Sender
	logger   *logging.Logger
	dispatch func(func())

	tooltip        *Tooltip
	removeListener func()
}

// PresenterOption configures a Presenter.
type PresenterOption func(*Presenter)

// WithPresenterLogger sets the logger.
func WithPresenterLogger(logger *logging.Logger) PresenterOption {
	return func(p *Presenter) {
		p.logger = logger
	}
}

// WithDispatch sets how document events reach the presenter. By default the
// document listener calls the presenter directly.
func WithDispatch(dispatch func(func())) PresenterOption {
	return func(p *Presenter) {
		if dispatch != nil {
			p.dispatch = dispatch
		}
	}
}

// NewPresenter creates a presenter drawing on doc and sending through sender.
func NewPresenter(doc Document, sender Sender, opts ...PresenterOption) *Presenter {
	p := &Presenter{
		doc:      doc,
		sender:   sender,
		logger:   logging.Discard("page/presenter"),
		dispatch: func(fn func()) { fn() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tooltip returns the open tooltip, or nil.
func (p *Presenter) Tooltip() *Tooltip {
	return p.tooltip
}

// IsOpen reports whether a tooltip is shown.
func (p *Presenter) IsOpen() bool {
	return p.tooltip != nil
}

// OnSelection opens a tooltip for the selected text at the pointer position.
// Blank selections, and selections made while a tooltip is open, are ignored.
func (p *Presenter) OnSelection(text string, x, y int) {
	text = strings.TrimSpace(text)
	if text == "" || p.tooltip != nil {
		return
	}

	p.tooltip = newTooltip(text, x, y)
	p.doc.Mount(p.tooltip)
	p.removeListener = p.doc.AddListener(EventMouseDown, func(ptr Pointer) {
		p.dispatch(func() { p.OnMouseDown(ptr) })
	})
}

// OnTranslateTriggered sends the tooltip's text for translation. The tooltip
// waits for the result only if the request reached the transport.
func (p *Presenter) OnTranslateTriggered() {
	if p.tooltip == nil || p.tooltip.State != TooltipReady {
		return
	}

	p.logger.Infof("Attempting to translate text: %s", p.tooltip.Source)
	p.tooltip.State = TooltipPending
	p.doc.Update(p.tooltip)

	// A dropped request leaves the translate control in place so the
	// user can press it again once the port is back.
	if !p.sender.Send(types.TranslationRequest{Text: p.tooltip.Source}) {
		p.tooltip.State = TooltipReady
		p.doc.Update(p.tooltip)
	}
}

// OnResult shows a successful result in the open tooltip. Anything else is
// discarded.
func (p *Presenter) OnResult(result types.TranslationResult) {
	if p.tooltip == nil {
		p.logger.Debugf("No tooltip open, discarding result")
		return
	}
	if !result.Success {
		p.logger.Debugf("Discarding failed result: %s", result.Message)
		return
	}

	p.tooltip.Translation = result.Translation
	p.tooltip.State = TooltipTranslated
	p.doc.Update(p.tooltip)
}

// OnMouseDown closes the tooltip when the press lands outside it.
func (p *Presenter) OnMouseDown(ptr Pointer) {
	if p.tooltip == nil || p.tooltip.Contains(ptr) {
		return
	}
	p.Close()
}

// Close removes the tooltip and its document listener.
func (p *Presenter) Close() {
	if p.tooltip == nil {
		return
	}

	p.doc.Unmount(p.tooltip)
	p.tooltip = nil
	if p.removeListener != nil {
		p.removeListener()
		p.removeListener = nil
	}
}
