package client

import "github.com/sirupsen/logrus"

// LogReporter forwards program progress to a logger at debug level.
type LogReporter struct {
	Log logrus.FieldLogger
}

func (r LogReporter) Report(msg string) {
	r.Log.Debug(msg)
}

type discardReporter struct{}

func (discardReporter) Report(string) {}

// Discard is a Reporter that drops every message.
var Discard Reporter = discardReporter{}
