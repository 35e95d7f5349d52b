package grid

import "fmt"

// Validate checks the tile invariants and returns the first violation found.
func (g *Grid) Validate() error {
	targets, fires := 0, 0
	for i, t := range g.tiles {
		c := g.CellAt(i)
		if t.Floor && t.Locked {
			return fmt.Errorf("grid: %s is both floor and locked", c)
		}
		if t.Locked && t.Counter <= 0 {
			return fmt.Errorf("grid: locked wall %s has counter %d", c, t.Counter)
		}
		if !t.Locked && t.Counter != 0 {
			return fmt.Errorf("grid: %s carries counter %d without lock", c, t.Counter)
		}
		if t.Target {
			targets++
			if !t.Floor {
				return fmt.Errorf("grid: target %s is not floor", c)
			}
			if c != g.target {
				return fmt.Errorf("grid: stray target flag at %s", c)
			}
		}
		if t.Fire {
			fires++
			if !g.hasFire || c != g.fire {
				return fmt.Errorf("grid: stray fire flag at %s", c)
			}
		}
	}
	if targets != 1 {
		return fmt.Errorf("grid: %d targets", targets)
	}
	if g.hasFire && fires != 1 {
		return fmt.Errorf("grid: %d fire tiles", fires)
	}
	return nil
}
