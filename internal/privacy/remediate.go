package privacy

import (
	"context"
	"errors"
	"log"

	"github.com/privacycheck/privacycheck/internal/host"
)

const (
	msgApplied       = "Setting updated successfully"
	msgUnknownAction = "Unknown setting type"
)

// Remediator applies remediation actions through a host SettingWriter.
type Remediator struct {
	writer host.SettingWriter
	logger *log.Logger
}

// NewRemediator creates a Remediator. A nil logger uses log.Default().
func NewRemediator(writer host.SettingWriter, logger *log.Logger) *Remediator {
	if logger == nil {
		logger = log.Default()
	}
	return &Remediator{writer: writer, logger: logger}
}

// Actions lists every remediation the policy table offers, in table order.
func Actions() []Action {
	actions := make([]Action, 0, len(Settings))
	for _, d := range Settings {
		if d.Action != "" {
			actions = append(actions, d.Action)
		}
	}
	return actions
}

func descriptorForAction(action Action) (Descriptor, bool) {
	for _, d := range Settings {
		if d.Action == action && action != "" {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Apply writes the recommended value for the setting behind action. Failures
// come back as a Result with Success=false; Apply never returns an error.
func (r *Remediator) Apply(ctx context.Context, action Action) Result {
	d, ok := descriptorForAction(action)
	if !ok {
		r.logger.Printf("remediate: unknown action %q", action)
		return Result{Action: action, Message: msgUnknownAction}
	}

	r.logger.Printf("remediate: setting %s=%t", d.ID, d.Desired)
	if err := r.writer.SetSetting(ctx, d.ID, d.Desired); err != nil {
		reason := err.Error()
		var hostErr *host.Error
		if errors.As(err, &hostErr) {
			reason = hostErr.Reason
		}
		r.logger.Printf("remediate: %s failed: %s", action, reason)
		return Result{Action: action, Message: reason}
	}

	r.logger.Printf("remediate: %s succeeded", action)
	return Result{Action: action, Success: true, Message: msgApplied}
}
