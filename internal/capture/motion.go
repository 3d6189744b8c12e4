package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// motionBlurSize is the Gaussian kernel used to suppress sensor noise.
	motionBlurSize = 21
	// motionPixelDelta is the grey-level change that counts a pixel as moved.
	motionPixelDelta = 25
)

// Motion is the result of comparing a frame with the previous one.
type Motion struct {
	Moved bool
	// ChangePercent is the share of pixels that changed, 0..100.
	ChangePercent float64
}

// MotionGate decides whether a frame differs enough from the previous one to
// be worth sending to the landmark detector.
type MotionGate struct {
	mu        sync.Mutex
	threshold float64
	prev      gocv.Mat
	primed    bool
}

// NewMotionGate creates a gate that opens when more than thresholdPercent of
// the pixels change between frames.
func NewMotionGate(thresholdPercent float64) *MotionGate {
	return &MotionGate{
		threshold: thresholdPercent,
		prev:      gocv.NewMat(),
	}
}

// Check compares frame with the previous frame and keeps it as the new
// baseline. The first frame after construction or Reset always counts as moved.
func (g *MotionGate) Check(frame *gocv.Mat) Motion {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return Motion{}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: motionBlurSize, Y: motionBlurSize}, 0, 0, gocv.BorderDefault)

	if !g.primed || g.prev.Rows() != blurred.Rows() || g.prev.Cols() != blurred.Cols() {
		blurred.CopyTo(&g.prev)
		g.primed = true
		return Motion{Moved: true, ChangePercent: 100}
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, g.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, motionPixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100.0
	blurred.CopyTo(&g.prev)

	return Motion{Moved: changed > g.threshold, ChangePercent: changed}
}

// Threshold returns the current threshold in percent.
func (g *MotionGate) Threshold() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.threshold
}

// SetThreshold changes the threshold. Non-positive values are ignored.
func (g *MotionGate) SetThreshold(thresholdPercent float64) {
	if thresholdPercent <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threshold = thresholdPercent
}

// Reset drops the baseline so the next frame primes the gate again.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release()
}

// Close releases the baseline Mat. The gate may still be used afterwards.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release()
}

func (g *MotionGate) release() {
	if !g.prev.Empty() {
		g.prev.Close()
		g.prev = gocv.NewMat()
	}
	g.primed = false
}
