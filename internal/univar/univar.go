// Package univar provides the generic univariate maximization primitives
// consumed by the optimizer's hill-climbing refiner: a coarse global
// bracketing search followed by Brent-style local refinement.
package univar

import "math"

// maxExtend caps how many times GlobalMax may push past an interval end when
// the function is still rising there.
const maxExtend = 50

// GlobalMax scans npts equally spaced points on [low, high] and returns a
// bracketing triple (x1 < x2 < x3 with y2 the largest value found) around the
// best point. When the best point lands on an interval end the search marches
// outward with doubling steps while the function keeps improving, so callers
// whose objective penalizes out-of-range probes get a tight stop.
func GlobalMax(f func(float64) float64, low, high float64, npts int) (x1, y1, x2, y2, x3, y3 float64) {
	if npts < 3 {
		npts = 3
	}
	if low > high {
		low, high = high, low
	}

	xs := make([]float64, npts)
	ys := make([]float64, npts)
	ibest := 0
	for i := 0; i < npts; i++ {
		xs[i] = low + float64(i)*(high-low)/float64(npts-1)
		ys[i] = f(xs[i])
		if ys[i] > ys[ibest] {
			ibest = i
		}
	}

	step := (high - low) / float64(npts-1)
	x2, y2 = xs[ibest], ys[ibest]

	switch {
	case ibest == 0:
		x3, y3 = xs[1], ys[1]
		x1 = x2 - step
		y1 = f(x1)
		for n := 0; y1 > y2 && n < maxExtend; n++ {
			x3, y3 = x2, y2
			x2, y2 = x1, y1
			step *= 2
			x1 = x2 - step
			y1 = f(x1)
		}
	case ibest == npts-1:
		x1, y1 = xs[npts-2], ys[npts-2]
		x3 = x2 + step
		y3 = f(x3)
		for n := 0; y3 > y2 && n < maxExtend; n++ {
			x1, y1 = x2, y2
			x2, y2 = x3, y3
			step *= 2
			x3 = x2 + step
			y3 = f(x3)
		}
	default:
		x1, y1 = xs[ibest-1], ys[ibest-1]
		x3, y3 = xs[ibest+1], ys[ibest+1]
	}

	return x1, y1, x2, y2, x3, y3
}

// BrentMax refines a bracketing triple (xa, xb, xc) with known yb = f(xb) to
// a local maximum of f, using parabolic interpolation with golden-section
// fallback for at most itmax iterations. Returns the best abscissa and value.
func BrentMax(f func(float64) float64, xa, xb, xc, yb float64, itmax int, eps, tol float64) (float64, float64) {
	neg := func(t float64) float64 { return -f(t) }
	x, fx := brentMin(neg, xa, xb, xc, -yb, itmax, eps, tol)
	return x, -fx
}

// cgold is the golden-section step fraction.
const cgold = 0.3819660112501051

func brentMin(f func(float64) float64, xa, xb, xc, yb float64, itmax int, eps, tol float64) (float64, float64) {
	a, b := xa, xc
	if a > b {
		a, b = b, a
	}

	x, w, v := xb, xb, xb
	fx, fw, fv := yb, yb, yb
	var d, e float64

	for iter := 0; iter < itmax; iter++ {
		xm := 0.5 * (a + b)
		tol1 := tol*math.Abs(x) + eps
		tol2 := 2 * tol1

		if math.Abs(x-xm) <= tol2-0.5*(b-a) {
			break
		}

		golden := true
		if math.Abs(e) > tol1 {
			// Parabola through x, w, v.
			r := (x - w) * (fx - fv)
			q := (x - v) * (fx - fw)
			p := (x-v)*q - (x-w)*r
			q = 2 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			etemp := e
			e = d
			if math.Abs(p) < math.Abs(0.5*q*etemp) && p > q*(a-x) && p < q*(b-x) {
				d = p / q
				u := x + d
				if u-a < tol2 || b-u < tol2 {
					d = math.Copysign(tol1, xm-x)
				}
				golden = false
			}
		}
		if golden {
			if x >= xm {
				e = a - x
			} else {
				e = b - x
			}
			d = cgold * e
		}

		var u float64
		if math.Abs(d) >= tol1 {
			u = x + d
		} else {
			u = x + math.Copysign(tol1, d)
		}
		fu := f(u)

		if fu <= fx {
			if u >= x {
				a = x
			} else {
				b = x
			}
			v, w, x = w, x, u
			fv, fw, fx = fw, fx, fu
		} else {
			if u < x {
				a = u
			} else {
				b = u
			}
			if fu <= fw || w == x {
				v, w = w, u
				fv, fw = fw, fu
			} else if fu <= fv || v == x || v == w {
				v, fv = u, fu
			}
		}
	}

	return x, fx
}
