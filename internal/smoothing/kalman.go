package smoothing

import "github.com/ayusman/gestureboard/internal/board"

type mat4 [4][4]float64

func identity4() mat4 {
	var m mat4
	for i := 0; i < 4; i++ {
		m[i][i] = 1
	}
	return m
}

func (a mat4) mul(b mat4) mat4 {
	var out mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += a[i][k] * b[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

func (a mat4) transpose() mat4 {
	var out mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = a[j][i]
		}
	}
	return out
}

// Kalman is a constant-velocity filter over (x, y, vx, vy) with a unit time
// step. Only x and y are observed.
type Kalman struct {
	x [4]float64
	p mat4
	f mat4
	q float64
	r float64
}

// NewKalman seeds a filter at pos with zero velocity.
func NewKalman(pos board.Point, processNoise, measurementNoise float64) *Kalman {
	k := &Kalman{
		x: [4]float64{pos.X, pos.Y, 0, 0},
		f: identity4(),
		q: processNoise,
		r: measurementNoise,
	}
	k.f[0][2] = 1
	k.f[1][3] = 1

	k.p[0][0] = measurementNoise
	k.p[1][1] = measurementNoise
	k.p[2][2] = 100
	k.p[3][3] = 100
	return k
}

// Correct folds a position measurement into the state.
func (k *Kalman) Correct(z board.Point) {
	// S = H P Hᵀ + R is the top-left 2×2 block of P plus r·I.
	s00 := k.p[0][0] + k.r
	s01 := k.p[0][1]
	s10 := k.p[1][0]
	s11 := k.p[1][1] + k.r
	det := s00*s11 - s01*s10
	if det == 0 {
		return
	}
	i00, i01 := s11/det, -s01/det
	i10, i11 := -s10/det, s00/det

	// K = P Hᵀ S⁻¹, a 4×2 matrix.
	var gain [4][2]float64
	for i := 0; i < 4; i++ {
		gain[i][0] = k.p[i][0]*i00 + k.p[i][1]*i10
		gain[i][1] = k.p[i][0]*i01 + k.p[i][1]*i11
	}

	y0 := z.X - k.x[0]
	y1 := z.Y - k.x[1]
	for i := 0; i < 4; i++ {
		k.x[i] += gain[i][0]*y0 + gain[i][1]*y1
	}

	// P = (I - K H) P
	var np mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			np[i][j] = k.p[i][j] - gain[i][0]*k.p[0][j] - gain[i][1]*k.p[1][j]
		}
	}
	k.p = np
}

// Predict advances the state one step and returns the predicted position.
func (k *Kalman) Predict() board.Point {
	var nx [4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			nx[i] += k.f[i][j] * k.x[j]
		}
	}
	k.x = nx

	k.p = k.f.mul(k.p).mul(k.f.transpose())
	for i := 0; i < 4; i++ {
		k.p[i][i] += k.q
	}
	return board.Point{X: k.x[0], Y: k.x[1]}
}

// Position returns the current position estimate.
func (k *Kalman) Position() board.Point {
	return board.Point{X: k.x[0], Y: k.x[1]}
}

// Velocity returns the current velocity estimate in pixels per step.
func (k *Kalman) Velocity() board.Point {
	return board.Point{X: k.x[2], Y: k.x[3]}
}
