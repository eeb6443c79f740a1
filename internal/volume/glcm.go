package volume

import "math"

// GLCMLevels is the number of grey levels planes are quantised to.
const GLCMLevels = 16

// GLCMFeatures are texture descriptors derived from grey-level
// co-occurrence matrices.
type GLCMFeatures struct {
	Dissimilarity float64 `json:"dissimilarity"`
	Correlation   float64 `json:"correlation"`
	ASM           float64 `json:"asm"`
}

// GLCM computes co-occurrence features on the three central orthogonal
// planes of v (offset 1 at 0, 45, 90 and 135 degrees, symmetric, normalised)
// and averages them over angles and planes.
func GLCM(v *Volume) GLCMFeatures {
	planes := [][][]float64{
		planeAtX(v, v.X/2),
		planeAtY(v, v.Y/2),
		v.Slice(v.Z / 2),
	}
	var sum GLCMFeatures
	for _, p := range planes {
		f := planeGLCM(p)
		sum.Dissimilarity += f.Dissimilarity
		sum.Correlation += f.Correlation
		sum.ASM += f.ASM
	}
	n := float64(len(planes))
	return GLCMFeatures{
		Dissimilarity: sum.Dissimilarity / n,
		Correlation:   sum.Correlation / n,
		ASM:           sum.ASM / n,
	}
}

func planeAtX(v *Volume, x int) [][]float64 {
	out := make([][]float64, v.Y)
	for y := 0; y < v.Y; y++ {
		out[y] = make([]float64, v.Z)
		for z := 0; z < v.Z; z++ {
			out[y][z] = v.At(x, y, z)
		}
	}
	return out
}

func planeAtY(v *Volume, y int) [][]float64 {
	out := make([][]float64, v.X)
	for x := 0; x < v.X; x++ {
		out[x] = make([]float64, v.Z)
		for z := 0; z < v.Z; z++ {
			out[x][z] = v.At(x, y, z)
		}
	}
	return out
}

// quantize maps a plane onto GLCMLevels integer levels.
func quantize(plane [][]float64) [][]int {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range plane {
		for _, v := range row {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	out := make([][]int, len(plane))
	for r, row := range plane {
		out[r] = make([]int, len(row))
		if hi == lo {
			continue
		}
		for c, v := range row {
			out[r][c] = int(math.RoundToEven((v - lo) / (hi - lo) * (GLCMLevels - 1)))
		}
	}
	return out
}

// planeGLCM averages the features of the four angle matrices of one plane.
func planeGLCM(plane [][]float64) GLCMFeatures {
	q := quantize(plane)
	offsets := [][2]int{{0, 1}, {-1, 1}, {-1, 0}, {-1, -1}}
	var sum GLCMFeatures
	for _, off := range offsets {
		p := cooccurrence(q, off[0], off[1])
		f := glcmProps(p)
		sum.Dissimilarity += f.Dissimilarity
		sum.Correlation += f.Correlation
		sum.ASM += f.ASM
	}
	n := float64(len(offsets))
	return GLCMFeatures{
		Dissimilarity: sum.Dissimilarity / n,
		Correlation:   sum.Correlation / n,
		ASM:           sum.ASM / n,
	}
}

// cooccurrence builds the symmetric, normalised co-occurrence matrix for
// the pixel offset (dr, dc).
func cooccurrence(q [][]int, dr, dc int) [GLCMLevels][GLCMLevels]float64 {
	var p [GLCMLevels][GLCMLevels]float64
	var total float64
	for r := range q {
		for c := range q[r] {
			r2, c2 := r+dr, c+dc
			if r2 < 0 || r2 >= len(q) || c2 < 0 || c2 >= len(q[r2]) {
				continue
			}
			i, j := q[r][c], q[r2][c2]
			p[i][j]++
			p[j][i]++
			total += 2
		}
	}
	if total == 0 {
		return p
	}
	for i := range p {
		for j := range p[i] {
			p[i][j] /= total
		}
	}
	return p
}

func glcmProps(p [GLCMLevels][GLCMLevels]float64) GLCMFeatures {
	var f GLCMFeatures
	var meanI, meanJ float64
	for i := range p {
		for j := range p[i] {
			f.Dissimilarity += p[i][j] * math.Abs(float64(i-j))
			f.ASM += p[i][j] * p[i][j]
			meanI += float64(i) * p[i][j]
			meanJ += float64(j) * p[i][j]
		}
	}
	var varI, varJ, cov float64
	for i := range p {
		for j := range p[i] {
			di, dj := float64(i)-meanI, float64(j)-meanJ
			varI += p[i][j] * di * di
			varJ += p[i][j] * dj * dj
			cov += p[i][j] * di * dj
		}
	}
	stdI, stdJ := math.Sqrt(varI), math.Sqrt(varJ)
	if stdI < 1e-15 || stdJ < 1e-15 {
		// A flat plane is perfectly correlated with itself.
		f.Correlation = 1
	} else {
		f.Correlation = cov / (stdI * stdJ)
	}
	return f
}
