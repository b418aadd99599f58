package connect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Paths through the send flow, recorded on the Outcome.
const (
	PathAlreadyConnected = "already_connected"
	PathProfileButton    = "profile_button"
	PathMoreMenu         = "more_menu"
	PathDirectInvite     = "direct_invite"
	PathModalFallback    = "modal_then_direct_invite"
)

// Failure reasons.
const (
	ReasonNoAction    = "connect button not found"
	ReasonNoSend      = "send control not found"
	ReasonNotVerified = "send not verified"
)

// Outcome is the result of one send attempt. A failed outcome carries the
// reason as text; the flow never returns an error or panics to its caller.
type Outcome struct {
	Sent             bool   `json:"sent"`
	AlreadyConnected bool   `json:"already_connected"`
	Reason           string `json:"reason,omitempty"`
	Path             string `json:"path,omitempty"`
}

// Flow drives one connect request: locate the action, act on it, verify.
type Flow struct {
	pauser Pauser
	jitter *Jitter
	logger *zap.Logger
}

// NewFlow builds a Flow. The pauser and jitter shape the human-like dwell
// times between steps.
func NewFlow(pauser Pauser, jitter *Jitter, logger *zap.Logger) *Flow {
	if jitter == nil {
		jitter = NewJitter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{pauser: pauser, jitter: jitter, logger: logger.Named("sendflow")}
}

// Send runs the flow against d. Driver errors and panics become a failed
// Outcome whose Reason is the error text.
func (f *Flow) Send(ctx context.Context, d Driver, profileURL, note string) (out Outcome) {
	log := f.logger.With(zap.String("profile", profileURL))
	defer func() {
		if r := recover(); r != nil {
			log.Error("send flow panicked", zap.Any("panic", r))
			out = Outcome{Reason: fmt.Sprintf("panic: %v", r), Path: out.Path}
		}
	}()
	out, err := f.run(ctx, d, profileURL, note, log)
	if err != nil {
		log.Warn("send flow failed", zap.Error(err), zap.String("path", out.Path))
		d.Capture(ctx, "connect_fail_error")
		return Outcome{Reason: err.Error(), Path: out.Path}
	}
	return out
}

func (f *Flow) run(ctx context.Context, d Driver, profileURL, note string, log *zap.Logger) (Outcome, error) {
	if err := d.Navigate(ctx, profileURL); err != nil {
		return Outcome{}, fmt.Errorf("open profile: %w", err)
	}
	if err := f.human(ctx, 3, 5); err != nil {
		return Outcome{}, err
	}
	if err := f.readProfile(ctx, d); err != nil {
		return Outcome{}, err
	}
	d.Capture(ctx, "connect_1_loaded")

	if f.anyVisible(ctx, d, pendingLocators) {
		log.Info("already connected or pending")
		return Outcome{Sent: true, AlreadyConnected: true, Path: PathAlreadyConnected}, nil
	}
	if err := f.human(ctx, 3, 8); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Path: PathProfileButton}
	btn, found := f.findConnect(ctx, d)
	if !found {
		out.Path = PathMoreMenu
		var err error
		if btn, found, err = f.tryMoreMenu(ctx, d); err != nil {
			return out, err
		}
	}

	usedDirect := false
	if !found {
		invite := DirectInviteURL(profileURL)
		if invite == "" {
			d.Capture(ctx, "connect_fail_no_button")
			return Outcome{Reason: ReasonNoAction}, nil
		}
		log.Info("connect action not found, using direct invite", zap.String("invite", invite))
		out.Path = PathDirectInvite
		usedDirect = true
		if err := d.Navigate(ctx, invite); err != nil {
			return out, fmt.Errorf("open invite page: %w", err)
		}
		if err := f.human(ctx, 2, 4); err != nil {
			return out, err
		}
	} else {
		if err := f.act(ctx, d, btn); err != nil {
			return out, err
		}
	}
	d.Capture(ctx, "connect_2_after_click")

	current, err := d.CurrentURL(ctx)
	if err != nil {
		return out, fmt.Errorf("read location: %w", err)
	}
	var sent bool
	if IsInvitePage(current) {
		sent, err = f.handleInvitePage(ctx, d, note)
	} else {
		sent, err = f.handleModal(ctx, d, note)
		if err == nil && !sent && !usedDirect {
			if invite := DirectInviteURL(profileURL); invite != "" {
				log.Info("modal path failed, retrying via direct invite", zap.String("invite", invite))
				out.Path = PathModalFallback
				if err = d.Navigate(ctx, invite); err != nil {
					return out, fmt.Errorf("open invite page: %w", err)
				}
				if err = f.human(ctx, 1.5, 3); err != nil {
					return out, err
				}
				sent, err = f.handleInvitePage(ctx, d, note)
			}
		}
	}
	if err != nil {
		return out, err
	}
	if !sent {
		d.Capture(ctx, "connect_fail_send")
		out.Reason = ReasonNoSend
		return out, nil
	}

	if err := f.human(ctx, 1.5, 3); err != nil {
		return out, err
	}
	d.Capture(ctx, "connect_3_after_send")
	verified, err := f.verify(ctx, d, profileURL)
	if err != nil {
		return out, err
	}
	if !verified {
		d.Capture(ctx, "connect_fail_verify")
		out.Reason = ReasonNotVerified
		return out, nil
	}
	out.Sent = true
	return out, nil
}

// readProfile scrolls the way a reader skims a profile.
func (f *Flow) readProfile(ctx context.Context, d Driver) error {
	steps := []struct {
		y         int
		low, high float64
	}{
		{300, 2, 4},
		{600, 1.5, 3},
		{0, 1, 2},
	}
	for _, s := range steps {
		if err := d.ScrollTo(ctx, s.y); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := f.human(ctx, s.low, s.high); err != nil {
			return err
		}
	}
	return nil
}

// act follows the element's href when it has one, otherwise clicks it.
func (f *Flow) act(ctx context.Context, d Driver, btn Element) error {
	if err := f.human(ctx, 0.5, 1.5); err != nil {
		return err
	}
	if btn.Href != "" {
		if err := d.Navigate(ctx, AbsoluteURL(btn.Href)); err != nil {
			return fmt.Errorf("open invite link: %w", err)
		}
	} else if err := d.Click(ctx, btn); err != nil {
		return fmt.Errorf("click connect: %w", err)
	}
	return f.human(ctx, 2, 4)
}

func (f *Flow) findConnect(ctx context.Context, d Driver) (Element, bool) {
	for _, loc := range connectLocators {
		el, ok := f.find(ctx, d, loc)
		if !ok {
			continue
		}
		if LooksLikeConnectAction(el.AriaLabel, el.Text, el.Href) {
			f.logger.Debug("connect action located", zap.String("css", loc.CSS), zap.String("aria", el.AriaLabel))
			return el, true
		}
	}
	return Element{}, false
}

func (f *Flow) tryMoreMenu(ctx context.Context, d Driver) (Element, bool, error) {
	for _, loc := range moreMenuLocators {
		more, ok := f.find(ctx, d, loc)
		if !ok {
			continue
		}
		if err := d.Click(ctx, more); err != nil {
			f.logger.Debug("more menu click failed", zap.Error(err))
			continue
		}
		if err := f.pause(ctx, 800*time.Millisecond); err != nil {
			return Element{}, false, err
		}
		for _, item := range dropdownLocators {
			el, ok := f.find(ctx, d, item)
			if ok && LooksLikeConnectAction(el.AriaLabel, el.Text, el.Href) {
				return el, true, nil
			}
		}
	}
	return Element{}, false, nil
}

func (f *Flow) handleInvitePage(ctx context.Context, d Driver, note string) (bool, error) {
	if err := f.human(ctx, 1.5, 3); err != nil {
		return false, err
	}
	if note != "" {
		if ta, ok := f.find(ctx, d, Locator{CSS: "textarea"}); ok {
			if err := d.Fill(ctx, ta, note); err != nil {
				f.logger.Debug("note fill failed", zap.Error(err))
			} else if err := f.human(ctx, 0.5, 1.5); err != nil {
				return false, err
			}
		}
	}
	if err := f.human(ctx, 0.5, 1.5); err != nil {
		return false, err
	}
	return f.clickFirst(ctx, d, inviteSendLocators, 2, 4, "connect_fail_invite_page")
}

func (f *Flow) handleModal(ctx context.Context, d Driver, note string) (bool, error) {
	scope := ""
	for _, css := range modalLocators {
		if _, ok := f.find(ctx, d, Locator{CSS: css}); ok {
			scope = css
			break
		}
	}
	if scope == "" {
		f.logger.Info("no connect modal appeared")
		return false, nil
	}
	if err := f.human(ctx, 1, 2.5); err != nil {
		return false, err
	}
	if note != "" {
		if err := f.addModalNote(ctx, d, scope, note); err != nil {
			return false, err
		}
	}
	if err := f.human(ctx, 0.5, 1.5); err != nil {
		return false, err
	}
	return f.clickFirst(ctx, d, modalSendLocators(scope), 1.5, 3, "")
}

func (f *Flow) addModalNote(ctx context.Context, d Driver, scope, note string) error {
	add, ok := f.find(ctx, d, Locator{Scope: scope, CSS: "button", Text: "Add a note"})
	if !ok {
		return nil
	}
	if err := d.Click(ctx, add); err != nil {
		f.logger.Debug("add note click failed, sending without note", zap.Error(err))
		return nil
	}
	if err := f.human(ctx, 1, 2); err != nil {
		return err
	}
	ta, ok := f.find(ctx, d, Locator{Scope: scope, CSS: "textarea"})
	if !ok {
		return nil
	}
	if err := d.Fill(ctx, ta, note); err != nil {
		f.logger.Debug("note fill failed, sending without note", zap.Error(err))
		return nil
	}
	return f.human(ctx, 0.5, 1.5)
}

// clickFirst clicks the first visible match and dwells afterwards. It
// reports false when nothing matched.
func (f *Flow) clickFirst(ctx context.Context, d Driver, locs []Locator, low, high float64, failCapture string) (bool, error) {
	for _, loc := range locs {
		el, ok := f.find(ctx, d, loc)
		if !ok {
			continue
		}
		if err := d.Click(ctx, el); err != nil {
			f.logger.Debug("send click failed", zap.String("css", loc.CSS), zap.Error(err))
			continue
		}
		return true, f.human(ctx, low, high)
	}
	if failCapture != "" {
		d.Capture(ctx, failCapture)
	}
	return false, nil
}

// verify confirms the request landed: off the invite page that means a
// pending badge or a vanished connect action; on it, a success message,
// vanished send controls, or a pending badge after reloading the profile.
func (f *Flow) verify(ctx context.Context, d Driver, profileURL string) (bool, error) {
	current, err := d.CurrentURL(ctx)
	if err != nil {
		return false, fmt.Errorf("read location: %w", err)
	}
	if !IsInvitePage(current) {
		if f.anyVisible(ctx, d, pendingLocators) {
			return true, nil
		}
		_, still := f.findConnect(ctx, d)
		return !still, nil
	}
	for i := 0; i < 3; i++ {
		if err := f.human(ctx, 0.5, 1); err != nil {
			return false, err
		}
		if f.anyVisible(ctx, d, successLocators) {
			return true, nil
		}
	}
	if !f.anyVisible(ctx, d, pendingSendLocators) {
		f.logger.Info("invite send controls disappeared, treating as sent")
		return true, nil
	}
	if err := d.Navigate(ctx, profileURL); err != nil {
		return false, fmt.Errorf("reload profile: %w", err)
	}
	if err := f.human(ctx, 1, 2); err != nil {
		return false, err
	}
	if f.anyVisible(ctx, d, pendingLocators) {
		return true, nil
	}
	_, still := f.findConnect(ctx, d)
	return !still, nil
}

func (f *Flow) anyVisible(ctx context.Context, d Driver, locs []Locator) bool {
	for _, loc := range locs {
		if _, ok := f.find(ctx, d, loc); ok {
			return true
		}
	}
	return false
}

// find swallows lookup errors; a selector the page cannot evaluate simply
// does not match.
func (f *Flow) find(ctx context.Context, d Driver, loc Locator) (Element, bool) {
	el, ok, err := d.Find(ctx, loc)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			f.logger.Debug("locator failed", zap.String("css", loc.CSS), zap.Error(err))
		}
		return Element{}, false
	}
	return el, ok
}

func (f *Flow) human(ctx context.Context, low, high float64) error {
	return f.pause(ctx, f.jitter.Between(seconds(low), seconds(high)))
}

func (f *Flow) pause(ctx context.Context, d time.Duration) error {
	if f.pauser == nil {
		return nil
	}
	if err := f.pauser.Pause(ctx, d); err != nil {
		return fmt.Errorf("dwell: %w", err)
	}
	return nil
}
