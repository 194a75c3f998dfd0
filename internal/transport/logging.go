// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"

	applog "sampler/internal/log"
)

// LoggingTransport logs a one-line summary of each outbound message at debug
// level. It is used when no presentation client is configured.
type LoggingTransport struct{}

func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

func (lt *LoggingTransport) Send(data any) error {
	if applog.Enabled(applog.LevelDebug) {
		applog.Debugf("Transport: %s", Summary(data))
	}
	return nil
}

func (lt *LoggingTransport) Close() error { return nil }

// Summary describes a message without its bulk payload.
func Summary(data any) string {
	switch m := data.(type) {
	case SelectionMessage:
		return fmt.Sprintf("selection [%d, %d) of %d (%s)", m.Start, m.End, m.Length, m.State)
	case OverviewMessage:
		return fmt.Sprintf("overview gen %d, %d columns", m.Generation, len(m.Peaks))
	case SpectrumMessage:
		return fmt.Sprintf("spectrum at %d, %d bins", m.Position, len(m.Magnitudes))
	case ParamMessage:
		return fmt.Sprintf("param %s = %g", m.Name, m.Value)
	case ErrorMessage:
		return "error: " + m.Message
	default:
		return fmt.Sprintf("%T", data)
	}
}

var _ Transport = (*LoggingTransport)(nil)
