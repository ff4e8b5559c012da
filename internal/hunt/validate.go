package hunt

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// Normalize trims the text fields of the scenario and checks that it can be
// played. The returned error wraps ErrInvalidScenario.
func (sc *Scenario) Normalize() error {
	sc.ID = strings.TrimSpace(sc.ID)
	sc.Name = strings.TrimSpace(sc.Name)
	sc.City = strings.TrimSpace(sc.City)
	sc.Description = strings.TrimSpace(sc.Description)
	if sc.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScenario)
	}
	if len(sc.Locations) == 0 {
		return fmt.Errorf("%w: at least one location is required", ErrInvalidScenario)
	}
	for i := range sc.Locations {
		loc := &sc.Locations[i]
		loc.Name = strings.TrimSpace(loc.Name)
		loc.Address = strings.TrimSpace(loc.Address)
		loc.Title = strings.TrimSpace(loc.Title)
		loc.Description = strings.TrimSpace(loc.Description)
		if loc.Name == "" {
			return fmt.Errorf("%w: location %d must have a name", ErrInvalidScenario, i+1)
		}
		if loc.Lat < -90 || loc.Lat > 90 {
			return fmt.Errorf("%w: location %d latitude %v out of range", ErrInvalidScenario, i+1, loc.Lat)
		}
		if loc.Lng < -180 || loc.Lng > 180 {
			return fmt.Errorf("%w: location %d longitude %v out of range", ErrInvalidScenario, i+1, loc.Lng)
		}
	}
	return nil
}
