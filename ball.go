package main

const (
	BallRadius = 12.0
	// Fresh rooms start with the ball drifting so there is something
	// to chase before the first touch.
	BallStartVX = 120.0
	BallStartVY = 90.0
	// A moving player kicks the ball at an amplified copy of their own
	// velocity component on each axis.
	KickMultiplier = 1.5
)

// Ball is the single shared ball of a room
type Ball struct {
	X, Y   float64
	VX, VY float64
	Radius float64
}

// NewBall places a ball at field center with the default drift
func NewBall() *Ball {
	return &Ball{
		X:      FieldWidth / 2,
		Y:      FieldHeight / 2,
		VX:     BallStartVX,
		VY:     BallStartVY,
		Radius: BallRadius,
	}
}

// Integrate advances the ball one tick
func (b *Ball) Integrate(dt float64) {
	b.X += b.VX * dt
	b.Y += b.VY * dt
}

// Reset recenters the ball and kills its velocity, used after a goal
func (b *Ball) Reset() {
	b.X = FieldWidth / 2
	b.Y = FieldHeight / 2
	b.VX = 0
	b.VY = 0
}

// Touches reports whether the ball overlaps the player. Strictly
// less-than: resting exactly at the boundary distance does not collide.
func (b *Ball) Touches(p *Player) bool {
	return Distance(b.X, b.Y, p.X, p.Y) < b.Radius+p.Radius
}

// ToState converts to the wire representation
func (b *Ball) ToState() BallState {
	return BallState{X: b.X, Y: b.Y, VX: b.VX, VY: b.VY, R: b.Radius}
}
