package ocr

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// Preprocess converts a raw photo into a binarized image favorable to OCR.
// Stage order is deliberate: deskewing runs on the denoised grayscale signal
// before any binarization, and CLAHE runs before the final local threshold so
// shadowed regions still separate from the paper.
func Preprocess(path string) (*image.NRGBA, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrImageRead, path, err)
	}
	return preprocessImage(src), nil
}

// preprocessImage runs the transform chain on an already-decoded image.
func preprocessImage(src image.Image) *image.NRGBA {
	g := newGrayBuf(imaging.Grayscale(src))
	g = medianDenoise(g)
	thr := otsuThreshold(g)
	if angle := skewAngle(g, thr); math.Abs(angle) > 0.05 {
		g = rotateBicubic(g, angle)
	}
	g = clahe(g, 8, 3.0)
	return adaptiveGaussianThreshold(g, 31, 15)
}

// grayBuf is a flat luminance buffer used by the pixel-loop stages.
type grayBuf struct {
	pix  []uint8
	w, h int
}

func newGrayBuf(img *image.NRGBA) *grayBuf {
	b := img.Bounds()
	g := &grayBuf{pix: make([]uint8, b.Dx()*b.Dy()), w: b.Dx(), h: b.Dy()}
	for y := 0; y < g.h; y++ {
		row := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < g.w; x++ {
			// grayscale input: R == G == B
			g.pix[y*g.w+x] = img.Pix[row+x*4]
		}
	}
	return g
}

// at samples with edge replication.
func (g *grayBuf) at(x, y int) uint8 {
	if x < 0 {
		x = 0
	} else if x >= g.w {
		x = g.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.h {
		y = g.h - 1
	}
	return g.pix[y*g.w+x]
}

// medianDenoise applies a 3x3 median filter to knock out sensor speckle.
func medianDenoise(g *grayBuf) *grayBuf {
	out := &grayBuf{pix: make([]uint8, len(g.pix)), w: g.w, h: g.h}
	var win [9]uint8
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			k := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					win[k] = g.at(x+dx, y+dy)
					k++
				}
			}
			// insertion sort on 9 elements
			for i := 1; i < 9; i++ {
				v := win[i]
				j := i - 1
				for j >= 0 && win[j] > v {
					win[j+1] = win[j]
					j--
				}
				win[j+1] = v
			}
			out.pix[y*g.w+x] = win[4]
		}
	}
	return out
}

// otsuThreshold picks the global threshold maximizing between-class variance.
func otsuThreshold(g *grayBuf) uint8 {
	var hist [256]int
	for _, v := range g.pix {
		hist[v]++
	}
	total := len(g.pix)
	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}
	var sumB, wB float64
	var best float64
	var thr uint8
	for i := 0; i < 256; i++ {
		wB += float64(hist[i])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(hist[i])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			thr = uint8(i)
		}
	}
	return thr
}

type point struct{ x, y int }

// skewAngle estimates the page skew from the minimum-area bounding rectangle
// of foreground (dark) pixels and returns the correction angle in degrees.
func skewAngle(g *grayBuf, thr uint8) float64 {
	// subsample on large images; the hull only needs the outline shape
	stride := 1
	for (g.w/stride)*(g.h/stride) > 250000 {
		stride++
	}
	var pts []point
	for y := 0; y < g.h; y += stride {
		for x := 0; x < g.w; x += stride {
			if g.pix[y*g.w+x] <= thr {
				pts = append(pts, point{x, y})
			}
		}
	}
	if len(pts) < 3 {
		return 0
	}
	hull := convexHull(pts)
	if len(hull) < 3 {
		return 0
	}
	raw := minAreaRectAngle(hull)
	return normalizeSkewAngle(raw)
}

// normalizeSkewAngle maps a min-area-rect angle (degrees in [-90,0)) into a
// correction in [-45,45]. Angles below -45 are closer to a 90-degree flip, so
// they are corrected by adding 90 and negating.
func normalizeSkewAngle(angle float64) float64 {
	if angle < -45 {
		return -(90 + angle)
	}
	return -angle
}

// convexHull is the Andrew monotone chain algorithm.
func convexHull(pts []point) []point {
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].x != pts[j].x {
			return pts[i].x < pts[j].x
		}
		return pts[i].y < pts[j].y
	})
	n := len(pts)
	if n < 3 {
		return pts
	}
	cross := func(o, a, b point) int {
		return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
	}
	hull := make([]point, 0, 2*n)
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// minAreaRectAngle runs rotating calipers over the hull edges and returns the
// orientation of the minimum-area enclosing rectangle in degrees, in [-90,0).
func minAreaRectAngle(hull []point) float64 {
	bestArea := math.Inf(1)
	bestTheta := 0.0
	for i := 0; i < len(hull); i++ {
		p0 := hull[i]
		p1 := hull[(i+1)%len(hull)]
		theta := math.Atan2(float64(p1.y-p0.y), float64(p1.x-p0.x))
		cosT, sinT := math.Cos(theta), math.Sin(theta)
		minX, maxX := math.Inf(1), math.Inf(-1)
		minY, maxY := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			rx := cosT*float64(p.x) + sinT*float64(p.y)
			ry := -sinT*float64(p.x) + cosT*float64(p.y)
			minX = math.Min(minX, rx)
			maxX = math.Max(maxX, rx)
			minY = math.Min(minY, ry)
			maxY = math.Max(maxY, ry)
		}
		area := (maxX - minX) * (maxY - minY)
		if area < bestArea {
			bestArea = area
			bestTheta = theta
		}
	}
	deg := bestTheta * 180 / math.Pi
	for deg >= 0 {
		deg -= 90
	}
	for deg < -90 {
		deg += 90
	}
	return deg
}

// rotateBicubic rotates the grayscale buffer about its center using Catmull-Rom
// cubic interpolation. Out-of-range samples replicate the nearest edge pixel,
// which avoids the black-border artifacts that confuse OCR.
func rotateBicubic(g *grayBuf, deg float64) *grayBuf {
	rad := deg * math.Pi / 180
	sinA, cosA := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(g.w-1)/2, float64(g.h-1)/2
	out := &grayBuf{pix: make([]uint8, len(g.pix)), w: g.w, h: g.h}
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			// inverse mapping back into the source image
			dx := float64(x) - cx
			dy := float64(y) - cy
			sx := cosA*dx + sinA*dy + cx
			sy := -sinA*dx + cosA*dy + cy
			out.pix[y*g.w+x] = g.sampleCubic(sx, sy)
		}
	}
	return out
}

func cubicWeight(t float64) float64 {
	// Catmull-Rom kernel (a = -0.5)
	t = math.Abs(t)
	switch {
	case t <= 1:
		return 1.5*t*t*t - 2.5*t*t + 1
	case t < 2:
		return -0.5*t*t*t + 2.5*t*t - 4*t + 2
	}
	return 0
}

func (g *grayBuf) sampleCubic(fx, fy float64) uint8 {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	var acc, wsum float64
	for j := -1; j <= 2; j++ {
		wy := cubicWeight(fy - float64(y0+j))
		if wy == 0 {
			continue
		}
		for i := -1; i <= 2; i++ {
			wx := cubicWeight(fx - float64(x0+i))
			if wx == 0 {
				continue
			}
			w := wx * wy
			acc += w * float64(g.at(x0+i, y0+j))
			wsum += w
		}
	}
	if wsum == 0 {
		return g.at(x0, y0)
	}
	v := acc / wsum
	if v < 0 {
		v = 0
	} else if v > 255 {
		v = 255
	}
	return uint8(v + 0.5)
}

// clahe performs contrast-limited adaptive histogram equalization over a grid
// of tiles, interpolating between neighboring tile mappings per pixel.
func clahe(g *grayBuf, tiles int, clipLimit float64) *grayBuf {
	if tiles < 2 {
		tiles = 2
	}
	tw := (g.w + tiles - 1) / tiles
	th := (g.h + tiles - 1) / tiles
	if tw == 0 || th == 0 {
		return g
	}
	tilesX := (g.w + tw - 1) / tw
	tilesY := (g.h + th - 1) / th

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tw, ty*th
			x1, y1 := x0+tw, y0+th
			if x1 > g.w {
				x1 = g.w
			}
			if y1 > g.h {
				y1 = g.h
			}
			var hist [256]float64
			count := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[g.pix[y*g.w+x]]++
					count++
				}
			}
			if count == 0 {
				continue
			}
			// clip the histogram and redistribute the excess uniformly
			limit := clipLimit * float64(count) / 256
			var excess float64
			for i := range hist {
				if hist[i] > limit {
					excess += hist[i] - limit
					hist[i] = limit
				}
			}
			bonus := excess / 256
			var cdf float64
			for i := range hist {
				cdf += hist[i] + bonus
				v := cdf * 255 / float64(count)
				if v > 255 {
					v = 255
				}
				luts[ty*tilesX+tx][i] = uint8(v)
			}
		}
	}

	out := &grayBuf{pix: make([]uint8, len(g.pix)), w: g.w, h: g.h}
	for y := 0; y < g.h; y++ {
		fy := (float64(y)-float64(th)/2 + 0.5) / float64(th)
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := ty0 + 1
		if ty0 < 0 {
			ty0, ty1, wy = 0, 0, 0
		}
		if ty1 >= tilesY {
			ty1 = tilesY - 1
			if ty0 >= tilesY {
				ty0 = tilesY - 1
			}
		}
		for x := 0; x < g.w; x++ {
			fx := (float64(x)-float64(tw)/2 + 0.5) / float64(tw)
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := tx0 + 1
			if tx0 < 0 {
				tx0, tx1, wx = 0, 0, 0
			}
			if tx1 >= tilesX {
				tx1 = tilesX - 1
				if tx0 >= tilesX {
					tx0 = tilesX - 1
				}
			}
			v := g.pix[y*g.w+x]
			top := (1-wx)*float64(luts[ty0*tilesX+tx0][v]) + wx*float64(luts[ty0*tilesX+tx1][v])
			bot := (1-wx)*float64(luts[ty1*tilesX+tx0][v]) + wx*float64(luts[ty1*tilesX+tx1][v])
			out.pix[y*g.w+x] = uint8((1-wy)*top + wy*bot + 0.5)
		}
	}
	return out
}

// adaptiveGaussianThreshold binarizes against a Gaussian-weighted local mean,
// tolerating illumination gradients a single global threshold would not.
func adaptiveGaussianThreshold(g *grayBuf, block, bias int) *image.NRGBA {
	if block < 3 {
		block = 3
	}
	if block%2 == 0 {
		block++
	}
	half := block / 2
	// OpenCV's sigma-for-kernel-size rule keeps the weights comparable
	sigma := 0.3*(float64(block-1)*0.5-1) + 0.8
	kernel := make([]float64, block)
	var ksum float64
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		ksum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= ksum
	}

	// separable blur: horizontal, then vertical
	tmp := make([]float64, len(g.pix))
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			var acc float64
			for i := -half; i <= half; i++ {
				acc += kernel[i+half] * float64(g.at(x+i, y))
			}
			tmp[y*g.w+x] = acc
		}
	}
	out := imaging.New(g.w, g.h, color.NRGBA{255, 255, 255, 255})
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			var mean float64
			for i := -half; i <= half; i++ {
				yy := y + i
				if yy < 0 {
					yy = 0
				} else if yy >= g.h {
					yy = g.h - 1
				}
				mean += kernel[i+half] * tmp[yy*g.w+x]
			}
			if float64(g.pix[y*g.w+x]) < mean-float64(bias) {
				out.Set(x, y, color.NRGBA{0, 0, 0, 255})
			}
		}
	}
	return out
}
