package risk

// Signals derives the pure, deterministic list of risk signals for a
// request given the session's bound device id and its last-observed
// context. prev is nil on a session's first evaluated request, in which
// case the IP, user-agent and geo signals cannot fire (there is nothing yet
// to differ from); DEVICE_MISMATCH and AUTOMATION_HEADER do not depend on
// prev.
// req.Posture, when present, is not itself scored into a signal — it
// enriches DEVICE_MISMATCH's evidence field so an auditor reviewing the
// event can see the mismatched device's security state, not just that a
// mismatch occurred.
func Signals(req Request, boundDeviceID string, prev *Observed) []Signal {
	var signals []Signal

	if boundDeviceID != "" && req.DeviceID != boundDeviceID {
		signals = append(signals, Signal{
			Type:     SignalDeviceMismatch,
			Severity: SeverityDeviceMismatch,
			Evidence: req.Posture.Summary(),
		})
	}

	if req.Automation {
		signals = append(signals, Signal{Type: SignalAutomationHeader, Severity: SeverityAutomation})
	}

	if prev == nil {
		return signals
	}

	if prev.IP != "" && req.IP != "" && req.IP != prev.IP {
		signals = append(signals, Signal{Type: SignalIPAnomaly, Severity: SeverityIPAnomaly})
	}

	if prev.UserAgent != "" && req.UserAgent != "" && req.UserAgent != prev.UserAgent {
		signals = append(signals, Signal{Type: SignalUserAgentChange, Severity: SeverityUserAgentChange})
	}

	if prev.Geo != "" && req.Geo != "" && req.Geo != prev.Geo {
		signals = append(signals, Signal{Type: SignalGeoDiscontinuity, Severity: SeverityGeoDiscontinuity})
	}

	return signals
}
