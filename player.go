package main

const (
	FieldWidth   = 800.0
	FieldHeight  = 600.0
	PlayerSpeed  = 220.0 // pixels/s
	PlayerRadius = 18.0
	SpawnMargin  = 50.0 // distance from field edges for random spawns
)

// Player is one connected participant in a room. Identity is the
// connection ID; the entity lives exactly as long as its membership.
type Player struct {
	ID       string
	Username string
	X, Y     float64
	VX, VY   float64
	Radius   float64
	Color    string
}

// NewPlayer spawns a player at a random position inside the safety
// margin, stationary, with a random cosmetic color.
func NewPlayer(connID, username string) *Player {
	return &Player{
		ID:       connID,
		Username: username,
		X:        RandomSpawn(FieldWidth, SpawnMargin),
		Y:        RandomSpawn(FieldHeight, SpawnMargin),
		Radius:   PlayerRadius,
		Color:    RandomColor(),
	}
}

// SetDirection updates velocity from a raw intent direction. The
// direction is normalized here; integration never touches velocity.
func (p *Player) SetDirection(dx, dy float64) {
	nx, ny := Normalize(dx, dy)
	p.VX = nx * PlayerSpeed
	p.VY = ny * PlayerSpeed
}

// Integrate advances position one tick and clamps it to the field
func (p *Player) Integrate(dt float64) {
	p.X += p.VX * dt
	p.Y += p.VY * dt
	p.X = Clamp(p.X, p.Radius, FieldWidth-p.Radius)
	p.Y = Clamp(p.Y, p.Radius, FieldHeight-p.Radius)
}

// ToState converts to the wire representation
func (p *Player) ToState() PlayerState {
	return PlayerState{
		ID:       p.ID,
		Username: p.Username,
		X:        p.X,
		Y:        p.Y,
		VX:       p.VX,
		VY:       p.VY,
		R:        p.Radius,
		Color:    p.Color,
	}
}
