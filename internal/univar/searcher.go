package univar

// Searcher chains GlobalMax and BrentMax into the line-maximizer contract the
// optimizer consumes.
type Searcher struct {
	Points int     // Grid points for the bracketing pass
	ItMax  int     // Brent refinement iterations
	Eps    float64 // Absolute convergence floor
	Tol    float64 // Relative convergence tolerance
}

// NewSearcher returns a searcher with the canonical settings: a seven-point
// bracket followed by five refinement iterations.
func NewSearcher() *Searcher {
	return &Searcher{
		Points: 7,
		ItMax:  5,
		Eps:    1e-8,
		Tol:    1e-4,
	}
}

// Maximize brackets the maximum of f on [low, high], polishes it, and returns
// the refined abscissa.
func (s *Searcher) Maximize(f func(float64) float64, low, high float64) float64 {
	x1, _, x2, y2, x3, _ := GlobalMax(f, low, high, s.Points)
	x, _ := BrentMax(f, x1, x2, x3, y2, s.ItMax, s.Eps, s.Tol)
	return x
}
