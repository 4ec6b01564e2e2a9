// SPDX-License-Identifier: GPL-3.0-or-later

package obs

import "github.com/bassosimone/browsercore/obs/errclass"

// ErrClassifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g., "etimedout",
// "econnreset") that facilitate systematic analysis of subsystem failures
// and feed the taxonomy of §7 (transient network / protocol / resource
// exhaustion errors all carry a classification alongside their typed kind).
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
//
// This allows using simple functions as classifiers:
//
//	op.ErrClassifier = ErrClassifierFunc(errclass.Classify)
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier is a no-op classifier that returns an empty string.
//
// This is the zero-configuration default, matching the library convention
// of not classifying errors unless a caller opts in.
var DefaultErrClassifier = ErrClassifierFunc(func(error) string { return "" })

// OSErrClassifier is an [ErrClassifier] backed by [errclass.Classify]: it
// recognizes platform errno values (ECONNREFUSED, ETIMEDOUT, ...) and a
// handful of well-known stdlib sentinel errors.
var OSErrClassifier = ErrClassifierFunc(errclass.Classify)
