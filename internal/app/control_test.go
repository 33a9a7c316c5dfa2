package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/sandwichbot/internal/config"
	"github.com/alanyoungcy/sandwichbot/internal/coordinator"
	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	tests := []struct {
		opts domain.ListOpts
		want []int
	}{
		{domain.ListOpts{}, []int{1, 2, 3, 4, 5}},
		{domain.ListOpts{Limit: 2}, []int{1, 2}},
		{domain.ListOpts{Limit: 2, Offset: 4}, []int{5}},
		{domain.ListOpts{Offset: 9}, nil},
	}
	for _, tt := range tests {
		got := page(items, tt.opts)
		if len(got) != len(tt.want) {
			t.Errorf("page(%+v) = %v, want %v", tt.opts, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("page(%+v) = %v, want %v", tt.opts, got, tt.want)
				break
			}
		}
	}
}

func TestPauseSwitchLocal(t *testing.T) {
	coord := coordinator.New(coordinator.DefaultConfig(), coordinator.Deps{}, quietLogger())
	p := pauseSwitch{coord: coord}

	if err := p.SetPaused(context.Background(), true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !coord.Paused() {
		t.Fatal("coordinator not paused")
	}
	st, _ := localStatus{c: coord}.Status(context.Background())
	if !st.Paused {
		t.Fatal("status does not report pause")
	}
	if err := p.SetPaused(context.Background(), false); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if coord.Paused() {
		t.Fatal("coordinator still paused")
	}
}

func TestPauseSwitchWithoutTargets(t *testing.T) {
	err := pauseSwitch{}.SetPaused(context.Background(), true)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if _, err := (unavailableStatus{}).Status(context.Background()); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("status err = %v", err)
	}
}

func TestMemoryReadersOnIdleCoordinator(t *testing.T) {
	coord := coordinator.New(coordinator.DefaultConfig(), coordinator.Deps{}, quietLogger())

	opps, err := memoryOpportunities{c: coord}.ListRecent(context.Background(), domain.ListOpts{Limit: 10})
	if err != nil || len(opps) != 0 {
		t.Fatalf("opps = %v, err = %v", opps, err)
	}
	if _, err := (memoryAttempts{c: coord}).GetByID(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID err = %v", err)
	}
}

func TestDispatchesOnlyInLiveRunMode(t *testing.T) {
	cfg := testConfig("run", false)
	if !dispatches(cfg) {
		t.Error("run mode should dispatch")
	}
	cfg.Coordinator.DryRun = true
	if dispatches(cfg) {
		t.Error("dry run should not dispatch")
	}
	if dispatches(testConfig("observe", false)) {
		t.Error("observe mode should not dispatch")
	}
	if needsChain("api") || !needsChain("observe") {
		t.Error("needsChain mismatch")
	}
}

func testConfig(mode string, dryRun bool) *config.Config {
	cfg := config.Defaults()
	cfg.Mode = mode
	cfg.Coordinator.DryRun = dryRun
	return &cfg
}
