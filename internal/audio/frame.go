package audio

// Processor meters and resamples capture frames. It keeps no state besides
// the level history, so it is safe to drive from a single capture loop only.
type Processor struct {
	meter      *LevelMeter
	sourceRate int
	targetRate int
}

// NewProcessor converts frames captured at sourceRate to targetRate.
func NewProcessor(sourceRate, targetRate int) *Processor {
	return &Processor{meter: NewLevelMeter(), sourceRate: sourceRate, targetRate: targetRate}
}

// Process returns the level reading for frame and the frame resampled to the
// target rate as PCM16LE bytes.
func (p *Processor) Process(frame []int16) (float64, []byte) {
	level := p.meter.Observe(RMS(frame))
	return level, EncodePCM16LE(ResampleLinear(frame, p.sourceRate, p.targetRate))
}

// SourceRate returns the capture rate.
func (p *Processor) SourceRate() int { return p.sourceRate }

// TargetRate returns the output rate.
func (p *Processor) TargetRate() int { return p.targetRate }
