// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package log is restuned's structured-logging facade. It exists so the
// rest of the tree depends on a narrow interface instead of logrus
// directly, the same separation the agent keeps between pkg/util/log and
// its seelog backend.
package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.RWMutex
	backend = logrus.New()
)

// Fields is a structured field set attached to a log line.
type Fields = logrus.Fields

// SetLevel adjusts the minimum emitted level ("debug", "info", "warn",
// "error").
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	backend.SetLevel(lvl)
	return nil
}

// SetOutputForTest swaps the backend, used by tests that want to assert
// on emitted lines.
func SetOutputForTest(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()
	backend = l
}

func entry() *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	return logrus.NewEntry(backend)
}

func Debugf(format string, args ...interface{}) { entry().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { entry().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { entry().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { entry().Errorf(format, args...) }

// Criticalf logs at error level tagged "critical" — restuned has no
// fatal-log helper that calls os.Exit; fatal-init errors propagate as
// errors to the supervisor instead (see pkg/errors.KindFatalInit).
func Criticalf(format string, args ...interface{}) {
	entry().WithField("severity", "critical").Errorf(format, args...)
}

// WithFields returns a logger scoped to the given structured fields, for
// call sites that want to tag every line in a block (e.g. a request
// handle, a resource code).
func WithFields(fields Fields) *logrus.Entry {
	return entry().WithFields(fields)
}
