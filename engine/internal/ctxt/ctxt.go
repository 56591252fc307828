// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package ctxt finds and opens the GPU driver used in the
// engine.
package ctxt

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/gviegas/vkb/driver"
)

// ErrNoDriver means that no registered driver matched
// the requested name, or that every match failed to open.
var ErrNoDriver = errors.New("ctxt: driver not found")

// Load attempts to open any registered driver whose name
// contains the name string. It is case insensitive.
// If name is the empty string, then all registered
// drivers are considered, in registration order.
// The error of the last failed Open is wrapped in the
// returned error, if any.
func Load(name string) (driver.Driver, driver.GPU, error) {
	name = strings.ToLower(name)
	var last error
	for _, d := range driver.Drivers() {
		if !strings.Contains(strings.ToLower(d.Name()), name) {
			continue
		}
		gpu, err := d.Open()
		if err != nil {
			driver.Logger().Debug("driver failed to open", "name", d.Name(), "err", err)
			last = err
			continue
		}
		return d, gpu, nil
	}
	if last != nil {
		return nil, nil, errors.Wrapf(ErrNoDriver, "%q: %v", name, last)
	}
	return nil, nil, errors.Wrapf(ErrNoDriver, "%q", name)
}
