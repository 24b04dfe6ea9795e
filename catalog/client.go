package catalog

import (
	"context"
	"errors"
	"log"

	"moduleinstaller/logger"
)

// InstalledLookup reports the local installation of a unit, if any.
type InstalledLookup interface {
	Installed(codeName string) (*InstalledVersion, error)
}

// Client aggregates catalog sources into one snapshot of units.
type Client struct {
	sources   []Source
	installed InstalledLookup
	events    *logger.Emitter
}

// NewClient creates a catalog client. installed may be nil, in which case
// every unit reports no local installation.
func NewClient(sources []Source, installed InstalledLookup, events *logger.Emitter) *Client {
	return &Client{
		sources:   sources,
		installed: installed,
		events:    events.Component("catalog"),
	}
}

// RefreshAll refreshes every source independently. A failing source is
// logged and skipped; the joined errors are returned for information only.
func (c *Client) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, source := range c.sources {
		if err := source.Refresh(ctx); err != nil {
			c.events.Severe("catalog.refresh_failed", "Failed to refresh catalog source", logger.Fields{
				"source": source.Name(),
				"error":  err.Error(),
			})
			errs = append(errs, err)
			continue
		}
		c.events.Debugf("Refreshed catalog source %s (%d units)", source.Name(), len(source.Units()))
	}
	return errors.Join(errs...)
}

// Units returns the merged snapshot. When two sources publish the same code
// name the first source wins.
func (c *Client) Units() []Unit {
	seen := make(map[string]bool)
	var units []Unit

	for _, source := range c.sources {
		for _, u := range source.Units() {
			if seen[u.CodeName] {
				log.Printf("[catalog] Ignoring duplicate unit %s from %s", u.CodeName, source.Name())
				continue
			}
			seen[u.CodeName] = true
			c.attachInstalled(&u)
			units = append(units, u)
		}
	}

	return units
}

// FindUnit scans the snapshot for codeName.
func (c *Client) FindUnit(codeName string) (*Unit, bool) {
	for _, source := range c.sources {
		for _, u := range source.Units() {
			if u.CodeName == codeName {
				c.attachInstalled(&u)
				return &u, true
			}
		}
	}
	return nil, false
}

func (c *Client) attachInstalled(u *Unit) {
	if c.installed == nil {
		return
	}
	installed, err := c.installed.Installed(u.CodeName)
	if err != nil {
		log.Printf("[catalog] Failed to read local installation of %s: %v", u.CodeName, err)
		return
	}
	u.Installed = installed
}
