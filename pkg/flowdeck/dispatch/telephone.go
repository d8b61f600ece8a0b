package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/notify"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/observability"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/voice"
)

// startCall places a call for the user. A user has at most one live call.
func (d *Dispatcher) startCall(ctx context.Context, in Input, cfg flowdeck.TelephoneConfig) (string, error) {
	if d.caller == nil {
		return "", fmt.Errorf("%w: %s", ErrCollaboratorMissing, collaboratorVoice)
	}

	release, err := d.sessions.Reserve(in.User.ID)
	if err != nil {
		return "", err
	}
	defer release()

	var call voice.Call
	_, err = d.callCollaborator(ctx, collaboratorVoice, func(ctx context.Context) (string, error) {
		var err error
		call, err = d.caller.Start(ctx, voice.NewSessionConfig(cfg))
		if err == nil && call.ID == "" {
			err = &fderrors.ServiceError{Service: collaboratorVoice, Message: "provider returned no call id"}
		}
		return call.ID, err
	})
	if err != nil {
		return "", err
	}

	session := voice.NewSession(call, in.User.ID, in.FlowID)
	d.sessions.Add(session)
	d.notifyCall(ctx, session, voice.StateStarting)
	return call.ID, nil
}

// HandleVoiceEvent applies a provider event to the call it belongs to.
// Every state change is notified; call-end releases the user's call slot.
func (d *Dispatcher) HandleVoiceEvent(ctx context.Context, callID string, evt voice.EventType) (voice.Transition, error) {
	session, ok := d.sessions.ByCall(callID)
	if !ok {
		return voice.Transition{}, fderrors.NotFound("call", callID)
	}

	tr, err := session.Handle(evt)
	if err != nil {
		return tr, err
	}
	if tr.Changed() {
		observability.LogVoiceTransition(d.logger, callID, string(tr.From), string(tr.To))
		d.notifyCall(ctx, session, tr.To)
	}
	if tr.To == voice.StateEnded {
		d.sessions.Remove(session)
	}
	return tr, nil
}

// Hangup stops the user's live call.
func (d *Dispatcher) Hangup(ctx context.Context, userID string) error {
	session, ok := d.sessions.Active(userID)
	if !ok {
		return voice.ErrNoActiveCall
	}
	if d.caller != nil {
		if _, err := d.callCollaborator(ctx, collaboratorVoice, func(ctx context.Context) (string, error) {
			return "", d.caller.Stop(ctx, session.CallID)
		}); err != nil {
			d.notifyError(ctx, userID, "", err)
			return err
		}
	}
	_, err := d.HandleVoiceEvent(ctx, session.CallID, voice.EventCallEnd)
	var nfErr *fderrors.NotFoundError
	if errors.As(err, &nfErr) || errors.Is(err, voice.ErrSessionEnded) {
		// The provider's call-end arrived first.
		return nil
	}
	return err
}

// ActiveCall returns the user's live call.
func (d *Dispatcher) ActiveCall(userID string) (*voice.Session, bool) {
	return d.sessions.Active(userID)
}

func (d *Dispatcher) notifyCall(ctx context.Context, s *voice.Session, state voice.State) {
	d.notifier.Notify(ctx, notify.Notification{
		Level:   notify.LevelSuccess,
		Title:   "Call Status",
		Message: state.Description(),
		UserID:  s.UserID,
		At:      time.Now(),
	})
}

// ErrCallInProgress is returned when the user already has a live call.
var ErrCallInProgress = voice.ErrCallInProgress
