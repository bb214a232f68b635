// Package capture reads audio from an input device and publishes level
// readings and resampled chunks.
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNoDevice means no input device could be opened.
	ErrNoDevice = errors.New("no input device")
	// ErrClosed is returned by Read after Close.
	ErrClosed = errors.New("stream closed")
)

// DeviceInfo describes one audio device.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
}

// CanCapture reports whether the device has any input channel.
func (d DeviceInfo) CanCapture() bool { return d.MaxInputChannels > 0 }

func (d DeviceInfo) String() string { return fmt.Sprintf("%s (#%d)", d.Name, d.Index) }

// StreamConfig is the requested stream shape. A zero SampleRate opens the
// device at its default rate.
type StreamConfig struct {
	Channels        int
	SampleRate      int
	FramesPerBuffer int
}

// Stream is an open capture stream delivering signed 16-bit mono samples.
type Stream interface {
	// Read blocks until buf is filled or the stream fails, and returns the
	// number of samples written. It returns io.EOF when a finite source ends.
	Read(buf []int16) (int, error)
	// SampleRate is the rate the stream actually runs at.
	SampleRate() int
	// Close stops the stream. It is safe to call more than once and from
	// another goroutine while Read is blocked.
	Close() error
}

// Backend enumerates and opens devices.
type Backend interface {
	Devices() ([]DeviceInfo, error)
	Open(index int, cfg StreamConfig) (Stream, error)
	Close() error
}

// Selector picks a device: Auto, or an explicit index.
type Selector struct {
	Auto  bool
	Index int
}

// ParseSelector accepts "auto" (or empty) or a device index.
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "auto" {
		return Selector{Auto: true}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Selector{}, fmt.Errorf("invalid device selector %q (want auto or an index)", s)
	}
	return Selector{Index: n}, nil
}

func (s Selector) String() string {
	if s.Auto {
		return "auto"
	}
	return strconv.Itoa(s.Index)
}

// LoopbackKeywords mark devices that capture what the machine is playing.
var LoopbackKeywords = []string{
	"stereo mix", "立体声", "what u hear", "wave out", "loopback",
	"monitor", "speakers", "扬声器", "realtek",
}

// trialConfig is what a device must accept to be auto-selected.
var trialConfig = StreamConfig{Channels: 1, SampleRate: 16000, FramesPerBuffer: 1024}

// Resolve turns a selector into a concrete device.
func Resolve(b Backend, sel Selector) (DeviceInfo, error) {
	if sel.Auto {
		return AutoSelect(b)
	}
	devs, err := b.Devices()
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devs {
		if d.Index == sel.Index {
			if !d.CanCapture() {
				return DeviceInfo{}, fmt.Errorf("device %s has no input channels", d)
			}
			return d, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: index %d", ErrNoDevice, sel.Index)
}

// AutoSelect prefers input devices whose name matches a loopback keyword,
// then falls back to the first input device that opens a trial stream.
func AutoSelect(b Backend) (DeviceInfo, error) {
	devs, err := b.Devices()
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devs {
		if d.CanCapture() && isLoopback(d.Name) && trialOpen(b, d) {
			log.Info().Str("device", d.String()).Msg("capture: auto-selected loopback device")
			return d, nil
		}
	}
	for _, d := range devs {
		if d.CanCapture() && trialOpen(b, d) {
			log.Info().Str("device", d.String()).Msg("capture: auto-selected input device")
			return d, nil
		}
	}
	return DeviceInfo{}, ErrNoDevice
}

func isLoopback(name string) bool {
	name = strings.ToLower(name)
	for _, k := range LoopbackKeywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

func trialOpen(b Backend, d DeviceInfo) bool {
	s, err := b.Open(d.Index, trialConfig)
	if err != nil {
		log.Debug().Err(err).Str("device", d.String()).Msg("capture: trial open failed")
		return false
	}
	_ = s.Close()
	return true
}
