//go:build portaudio

package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// System captures from the host's audio devices through PortAudio.
type System struct{}

// NewSystemBackend initializes PortAudio. Close terminates it.
func NewSystemBackend() (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &System{}, nil
}

func (s *System) Devices() ([]DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	out := make([]DeviceInfo, 0, len(devs))
	for i, d := range devs {
		out = append(out, DeviceInfo{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	return out, nil
}

func (s *System) Open(index int, cfg StreamConfig) (Stream, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(devs) {
		return nil, fmt.Errorf("%w: index %d", ErrNoDevice, index)
	}
	dev := devs[index]
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = int(dev.DefaultSampleRate)
	}
	if rate <= 0 {
		rate = 16000
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	buf := make([]int16, cfg.FramesPerBuffer*channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}
	st, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, err
	}
	if err := st.Start(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return &paStream{st: st, buf: buf, channels: channels, rate: rate}, nil
}

func (s *System) Close() error {
	return portaudio.Terminate()
}

type paStream struct {
	st       *portaudio.Stream
	buf      []int16
	channels int
	rate     int

	once     sync.Once
	closeErr error
}

func (p *paStream) Read(out []int16) (int, error) {
	if err := p.st.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return 0, err
	}
	if p.channels == 1 {
		return copy(out, p.buf), nil
	}
	// keep the first channel
	n := 0
	for i := 0; i < len(p.buf) && n < len(out); i += p.channels {
		out[n] = p.buf[i]
		n++
	}
	return n, nil
}

func (p *paStream) SampleRate() int { return p.rate }

func (p *paStream) Close() error {
	p.once.Do(func() {
		p.closeErr = errors.Join(p.st.Abort(), p.st.Close())
	})
	return p.closeErr
}
