// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresAfter(t *testing.T) {
	t.Parallel()

	fake := NewFake()
	ch := fake.After(10 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(fake.Now()) {
			t.Errorf("fired at %v, want %v", fired, fake.Now())
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	t.Parallel()

	fake := NewFake()
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeSet(t *testing.T) {
	t.Parallel()

	fake := NewFake()
	want := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	fake.Set(want)
	if !fake.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", fake.Now(), want)
	}
}
