package engine

// BarIndex is where color's captured stones wait to re-enter.
func BarIndex(c Color) int {
	if c == White {
		return 25
	}
	return 0
}

// OutIndex is where color's borne-off stones are counted.
func OutIndex(c Color) int {
	if c == White {
		return 0
	}
	return 25
}

func direction(c Color) int {
	if c == White {
		return -1
	}
	return 1
}

// Destination returns where a stone on from lands using die, clamped to the
// color's out index when the move runs past the board edge.
func Destination(c Color, from, die int) int {
	to := from + direction(c)*die
	if to < 0 {
		return 0
	}
	if to > Points-1 {
		return Points - 1
	}
	return to
}

// distanceOut is how many pips separate from and the color's out index.
func distanceOut(c Color, from int) int {
	d := OutIndex(c) - from
	if d < 0 {
		return -d
	}
	return d
}

// AllHome reports whether every stone of c still in play sits in its home quadrant.
func AllHome(c Color, p Position) bool {
	lo, hi := 7, Points-1
	if c == Black {
		lo, hi = 0, 18
	}
	for i := lo; i <= hi; i++ {
		if p[i] > 0 {
			return false
		}
	}
	return true
}

// homePoints returns the six home quadrant points of c.
func homePoints(c Color) (int, int) {
	if c == White {
		return 1, 6
	}
	return 19, 24
}

// farthestFromOut returns the occupied on-board point farthest from c's out index, or -1.
func farthestFromOut(c Color, p Position) int {
	if c == White {
		for i := Points - 1; i > 0; i-- {
			if p[i] > 0 {
				return i
			}
		}
		return -1
	}
	for i := 0; i < Points-1; i++ {
		if p[i] > 0 {
			return i
		}
	}
	return -1
}

// bearOffWith reports whether die may carry a stone from from off the board.
// The die must match the distance exactly, or exceed it when no stone sits
// farther out.
func bearOffWith(c Color, p Position, from, die int) bool {
	dist := distanceOut(c, from)
	if die == dist {
		return true
	}
	return die > dist && from == farthestFromOut(c, p)
}

func (g *Game) player(c Color) *Player {
	switch c {
	case White:
		return &g.White
	case Black:
		return &g.Black
	}
	return nil
}

// Player returns the slot for c, or nil for an unknown color.
func (g *Game) Player(c Color) *Player {
	return g.player(c)
}

// IsValidMove reports whether the side to move may take a stone from from to to.
// Dice only matter when to is the out index; callers that consume a specific
// die also check that the die lands on to.
func IsValidMove(from, to int, g *Game) bool {
	c := g.Turn
	me, opp := g.player(c), g.player(c.Opponent())
	if me == nil || opp == nil {
		return false
	}
	if from < 0 || from >= Points || to < 0 || to >= Points {
		return false
	}
	out := OutIndex(c)
	if from == out {
		return false
	}
	if me.Position[BarIndex(c)] > 0 && from != BarIndex(c) {
		return false
	}
	if me.Position[from] == 0 {
		return false
	}
	if (to-from)*direction(c) <= 0 {
		return false
	}

	if to == out {
		if !AllHome(c, me.Position) {
			return false
		}
		dist := distanceOut(c, from)
		maxDie := 0
		for _, d := range g.Dice {
			if d == dist {
				return true
			}
			if d > maxDie {
				maxDie = d
			}
		}
		return from == farthestFromOut(c, me.Position) && maxDie >= dist
	}

	return opp.Position[to] < 2
}

// legalWithDie resolves the destination for die and reports whether the move is legal.
func (g *Game) legalWithDie(from, die int) (int, bool) {
	to := Destination(g.Turn, from, die)
	if !IsValidMove(from, to, g) {
		return to, false
	}
	if to == OutIndex(g.Turn) && !bearOffWith(g.Turn, g.player(g.Turn).Position, from, die) {
		return to, false
	}
	return to, true
}

// ComputeValidMoves marks every index from which the side to move has at least
// one legal move with a remaining die.
func ComputeValidMoves(g *Game) [Points]bool {
	var mask [Points]bool
	me := g.player(g.Turn)
	if me == nil {
		return mask
	}
	for i := 0; i < Points; i++ {
		if me.Position[i] == 0 {
			continue
		}
		for _, d := range g.Dice {
			if _, ok := g.legalWithDie(i, d); ok {
				mask[i] = true
				break
			}
		}
	}
	return mask
}

// HasValidMove reports whether any remaining die can be played.
func HasValidMove(g *Game) bool {
	for _, ok := range ComputeValidMoves(g) {
		if ok {
			return true
		}
	}
	return false
}

// IsWinner reports whether the side to move has borne off all its stones.
func IsWinner(g *Game) bool {
	me := g.player(g.Turn)
	if me == nil {
		return false
	}
	out := OutIndex(g.Turn)
	for i, n := range me.Position {
		if i != out && n > 0 {
			return false
		}
	}
	return true
}

// BlocksOpponent reports whether the side to move holds every home point with
// two or more stones while the opponent has a stone on the bar.
func BlocksOpponent(g *Game) bool {
	c := g.Turn
	me, opp := g.player(c), g.player(c.Opponent())
	if me == nil || opp == nil {
		return false
	}
	if opp.Position[BarIndex(c.Opponent())] == 0 {
		return false
	}
	lo, hi := homePoints(c)
	for i := lo; i <= hi; i++ {
		if me.Position[i] < 2 {
			return false
		}
	}
	return true
}
