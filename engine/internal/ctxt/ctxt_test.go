// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package ctxt

import (
	"errors"
	"testing"

	"github.com/gviegas/vkb/driver/drivertest"
)

func TestLoad(t *testing.T) {
	for _, name := range []string{"drivertest", "DriverTest", "test"} {
		drv, gpu, err := Load(name)
		if err != nil {
			t.Fatalf("Load(%q): unexpected error %v", name, err)
		}
		if drv.Name() != drivertest.Name {
			t.Fatalf("Load(%q).Name:\nhave %s\nwant %s", name, drv.Name(), drivertest.Name)
		}
		if gpu == nil || gpu.Driver() != drv {
			t.Fatalf("Load(%q): GPU does not belong to the driver", name)
		}
	}
}

func TestLoadMissing(t *testing.T) {
	drv, gpu, err := Load("no such driver")
	if !errors.Is(err, ErrNoDriver) {
		t.Fatalf("Load: unexpected error\nhave %v\nwant %v", err, ErrNoDriver)
	}
	if drv != nil || gpu != nil {
		t.Fatal("Load: expected nil results on failure")
	}
}
