// FILE: pkg/locations/locationmodels.go

package locations

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Position is a latitude/longitude pair in degrees.
// It serializes as a two-element JSON array: [latitude, longitude].
type Position struct {
	Latitude  float64
	Longitude float64
}

// MarshalJSON encodes the position as [latitude, longitude].
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64{p.Latitude, p.Longitude})
}

// UnmarshalJSON decodes a [latitude, longitude] array, validating both values.
func (p *Position) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return &ValidationError{Field: "position", Value: string(data), Msg: msgPosition}
	}
	pos, err := positionFromPair(pair)
	if err != nil {
		return err
	}
	*p = pos
	return nil
}

// Validate checks latitude and then longitude.
func (p Position) Validate() error {
	return validatePosition(p)
}

func (p Position) String() string {
	return "[" + formatDegrees(p.Latitude) + "," + formatDegrees(p.Longitude) + "]"
}

// UpdateFunc receives the new position after every accepted update.
type UpdateFunc func(Position)

// Coordinate holds a validated position and notifies observers when it changes.
// A Coordinate is safe for concurrent use.
type Coordinate struct {
	mu        sync.RWMutex
	position  Position
	observers []observer
	nextID    int
}

type observer struct {
	id int
	fn UpdateFunc
}

// New creates a Coordinate, validating latitude and then longitude.
func New(latitude, longitude float64) (*Coordinate, error) {
	c := &Coordinate{}
	if err := c.SetPosition(Position{Latitude: latitude, Longitude: longitude}); err != nil {
		return nil, err
	}
	return c, nil
}

// FromPair creates a Coordinate from a [latitude, longitude] slice.
func FromPair(pair []float64) (*Coordinate, error) {
	if len(pair) != 2 {
		return nil, &ValidationError{Field: "pair", Value: pair, Msg: msgPair}
	}
	return New(pair[0], pair[1])
}

// Latitude returns the current latitude in degrees.
func (c *Coordinate) Latitude() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position.Latitude
}

// Longitude returns the current longitude in degrees.
func (c *Coordinate) Longitude() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position.Longitude
}

// Position returns a snapshot of the current position.
func (c *Coordinate) Position() Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

// SetLatitude stores a new latitude and emits one update.
func (c *Coordinate) SetLatitude(v float64) error {
	if err := validateLatitude(v); err != nil {
		return err
	}
	c.mu.Lock()
	c.position.Latitude = v
	pos := c.position
	c.mu.Unlock()

	c.notify(pos)
	return nil
}

// SetLongitude stores a new longitude and emits one update.
func (c *Coordinate) SetLongitude(v float64) error {
	if err := validateLongitude(v); err != nil {
		return err
	}
	c.mu.Lock()
	c.position.Longitude = v
	pos := c.position
	c.mu.Unlock()

	c.notify(pos)
	return nil
}

// SetPosition validates and stores both values together. Observers see a
// single update, not one per field.
func (c *Coordinate) SetPosition(p Position) error {
	if err := validatePosition(p); err != nil {
		return err
	}
	c.write(p)
	c.notify(p)
	return nil
}

// SetPair is SetPosition for an untyped [latitude, longitude] slice.
func (c *Coordinate) SetPair(pair []float64) error {
	p, err := positionFromPair(pair)
	if err != nil {
		return err
	}
	c.write(p)
	c.notify(p)
	return nil
}

// write stores an already-validated position without notifying.
func (c *Coordinate) write(p Position) {
	c.mu.Lock()
	c.position = p
	c.mu.Unlock()
}

// Subscribe registers fn to run after every update. The returned function
// removes the registration.
func (c *Coordinate) Subscribe(fn UpdateFunc) (cancel func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.observers = append(c.observers, observer{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, o := range c.observers {
				if o.id == id {
					c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// notify runs observers outside the lock so they may read or write the coordinate.
func (c *Coordinate) notify(p Position) {
	c.mu.RLock()
	observers := make([]observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.RUnlock()

	for _, o := range observers {
		o.fn(p)
	}
}

// String renders the coordinate as "[lat,lon]".
func (c *Coordinate) String() string {
	return c.Position().String()
}

// Pair returns the serializable [latitude, longitude] form.
func (c *Coordinate) Pair() []float64 {
	p := c.Position()
	return []float64{p.Latitude, p.Longitude}
}

// MarshalJSON encodes the coordinate as [latitude, longitude].
func (c *Coordinate) MarshalJSON() ([]byte, error) {
	return c.Position().MarshalJSON()
}

// UnmarshalJSON replaces the coordinate's position from a [latitude, longitude] array.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var p Position
	if err := p.UnmarshalJSON(data); err != nil {
		return err
	}
	c.write(p)
	c.notify(p)
	return nil
}

// DistanceTo returns the great-circle distance in kilometres to other.
func (c *Coordinate) DistanceTo(other *Coordinate) (float64, error) {
	return DistanceBetween(c, other)
}

// Record is the registry entry for a named coordinate. Only the last-known
// position is kept.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Position  Position  `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// formatDegrees renders v with the shortest round-trip digits. Magnitudes
// below 1e-6 use exponent form ("1e-7") and negative zero prints as "0".
func formatDegrees(v float64) string {
	if v == 0 {
		return "0"
	}
	if math.Abs(v) >= 1e-6 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	// FormatFloat pads the exponent to two digits ("1e-07").
	s := strconv.FormatFloat(v, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	n, _ := strconv.Atoi(exp)
	return mantissa + "e" + strconv.Itoa(n)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
