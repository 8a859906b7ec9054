package engine

// controllerSlots is the number of interpolation slots tracked per
// (interface, channel) pair: 128 controller numbers plus three reserved
// slots for pitch-wheel, aftertouch and channel-pressure.
const (
	slotPitchWheel      = 128
	slotAftertouch      = 129
	slotChannelPressure = 130
	controllerSlots     = 131
)

// controllerCache remembers, per (interface, channel, slot), the last
// value written for a continuous controller — the origin every
// sub-line-tick interpolation starts from (spec.md §4.E).
type controllerCache struct {
	rows map[[2]int][]int // key: {interface, channel}
}

func newControllerCache() *controllerCache {
	return &controllerCache{rows: make(map[[2]int][]int)}
}

func (c *controllerCache) row(iface, channel int) []int {
	key := [2]int{iface, channel}
	row, ok := c.rows[key]
	if !ok {
		row = make([]int, controllerSlots)
		c.rows[key] = row
	}
	return row
}

// Get returns the cached value for a slot, defaulting to 0 the first time
// it's read (an unset controller behaves as if it were last set to 0).
func (c *controllerCache) Get(iface, channel, slot int) int {
	return c.row(iface, channel)[slot]
}

// Set records the last-known value for a slot.
func (c *controllerCache) Set(iface, channel, slot, value int) {
	c.row(iface, channel)[slot] = value
}

// Resize drops any cached rows for interfaces >= n, mirroring spec.md
// §4.I "resizes the controller cache" on remap_midi_outputs.
func (c *controllerCache) Resize(n int) {
	for key := range c.rows {
		if key[0] >= n {
			delete(c.rows, key)
		}
	}
}
