package tabs

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/lotas/flowtabs/internal/types"
)

// TestRandomOperationsKeepInvariants drives the manager through random
// sequences of every mutation and checks the registries after each step.
func TestRandomOperationsKeepInvariants(t *testing.T) {
	modes := []types.Mode{types.ModeNormal, types.ModeSplit, types.ModeGlance}
	places := []types.WindowSpace{{WindowID: 1, SpaceID: "s1"}, {WindowID: 1, SpaceID: "s2"}, {WindowID: 2, SpaceID: "s2"}}

	for seed := range uint64(20) {
		m, _ := newTestManager(t)
		rng := rand.New(rand.NewPCG(seed, 99))

		// subscribers must never observe a half-applied change
		var broken error
		m.Subscribe(func(e Event) {
			if broken != nil || m.Destroyed() {
				return
			}
			if err := m.CheckInvariants(); err != nil {
				broken = fmt.Errorf("at %v event: %w", e.Kind, err)
			}
		})

		pickTab := func() *Tab {
			tabs := m.Tabs()
			if len(tabs) == 0 {
				return nil
			}
			return tabs[rng.IntN(len(tabs))]
		}
		pickGroup := func() *TabGroup {
			groups := m.Groups()
			if len(groups) == 0 {
				return nil
			}
			return groups[rng.IntN(len(groups))]
		}

		for step := range 300 {
			switch op := rng.IntN(9); {
			case op < 2 || m.TabCount() < 2:
				p := places[rng.IntN(len(places))]
				if _, err := m.CreateTab(context.Background(), CreateTabOptions{
					WindowID: p.WindowID, SpaceID: p.SpaceID, Activate: rng.IntN(2) == 0,
				}); err != nil {
					t.Fatalf("seed %d step %d: CreateTab: %v", seed, step, err)
				}
			case op == 2:
				pickTab().Destroy()
			case op == 3:
				var ids []int
				for range 1 + rng.IntN(3) {
					ids = append(ids, pickTab().ID())
				}
				m.CreateTabGroup(modes[rng.IntN(len(modes))], ids)
			case op == 4 && rng.IntN(8) == 0:
				m.CreateTabGroup(types.Mode("bogus"), []int{pickTab().ID()})
			case op == 4:
				if g := pickGroup(); g != nil {
					m.DestroyTabGroup(g.ID())
				}
			case op == 5:
				if g := pickGroup(); g != nil {
					g.AddTab(pickTab().ID())
				}
			case op == 6:
				if g := pickGroup(); g != nil && g.Len() > 0 {
					g.RemoveTab(g.TabIDs()[rng.IntN(g.Len())])
				}
			case op == 7:
				if rng.IntN(2) == 0 {
					m.SetActiveTab(pickTab())
				} else if g := pickGroup(); g != nil {
					m.SetActiveTab(g)
				}
			default:
				p := places[rng.IntN(len(places))]
				m.MoveTab(pickTab().ID(), p.WindowID, p.SpaceID)
			}
			if broken != nil {
				t.Fatalf("seed %d step %d: %v", seed, step, broken)
			}
			if err := m.CheckInvariants(); err != nil {
				t.Fatalf("seed %d step %d: %v", seed, step, err)
			}
		}

		m.Destroy()
		if m.TabCount() != 0 || len(m.Groups()) != 0 {
			t.Fatalf("seed %d: teardown left state", seed)
		}
	}
}
