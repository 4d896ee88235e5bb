// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

package classifier

import (
	"strings"

	"github.com/DataDog/restuned/pkg/log"
	"github.com/DataDog/restuned/pkg/types"
)

// TextClassifier maps a cleaned token stream to a WorkloadClass.
// Inference failure is the caller's to treat as ClassApp (spec.md §4.3
// "Failure"), never this interface's concern.
type TextClassifier interface {
	Classify(tokens []string) (types.WorkloadClass, error)
}

// DefaultClassifier always returns ClassApp. This is the classifier
// restuned runs with when no model is configured (spec.md §4.3: "The
// default classifier returns app").
type DefaultClassifier struct{}

func (DefaultClassifier) Classify([]string) (types.WorkloadClass, error) {
	return types.ClassApp, nil
}

// FastTextPredictor is the narrow surface a loaded fastText-family model
// exposes: top-1 label prediction over already-joined text.
type FastTextPredictor interface {
	Predict(text string) (label string, err error)
}

// ModelClassifier adapts a FastTextPredictor into a TextClassifier,
// stripping the conventional "__label__" prefix fastText predictions
// carry and mapping the remainder onto the four workload classes
// (spec.md §4.3 "Classifier algorithm"). An unrecognized label maps to
// ClassApp rather than erroring, mirroring the "unknown -> app" rule.
type ModelClassifier struct {
	Predictor FastTextPredictor
}

func NewModelClassifier(predictor FastTextPredictor) *ModelClassifier {
	return &ModelClassifier{Predictor: predictor}
}

func (m *ModelClassifier) Classify(tokens []string) (types.WorkloadClass, error) {
	text := strings.Join(tokens, " ")
	label, err := m.Predictor.Predict(text)
	if err != nil {
		log.Warnf("classifier: inference failed, defaulting to app: %v", err)
		return types.ClassApp, nil
	}
	label = strings.TrimPrefix(label, "__label__")
	switch label {
	case "app":
		return types.ClassApp, nil
	case "browser":
		return types.ClassBrowser, nil
	case "game":
		return types.ClassGame, nil
	case "media":
		return types.ClassMedia, nil
	default:
		return types.ClassApp, nil
	}
}
