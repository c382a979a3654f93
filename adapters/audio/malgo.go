package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/studyhall/voxley/domain/repositories"
)

// MicSource captures microphone audio through miniaudio and delivers it
// as fixed-size float32 frames. One Start per source; Stop tears down the
// device and closes the frame channel.
type MicSource struct {
	cfg        repositories.AudioConfig
	deviceName string
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	actx    *malgo.AllocatedContext
	device  *malgo.Device
	frames  chan []float32
}

var _ repositories.AudioSource = (*MicSource)(nil)

// NewMicSource creates a microphone source. An empty deviceName selects
// the default capture device; otherwise the first device whose name
// contains deviceName is used.
func NewMicSource(cfg repositories.AudioConfig, deviceName string, logger *zap.Logger) *MicSource {
	return &MicSource{cfg: cfg, deviceName: deviceName, logger: logger}
}

func (m *MicSource) Start(ctx context.Context) (<-chan []float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil, fmt.Errorf("microphone capture already running")
	}

	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		m.logger.Debug("miniaudio", zap.String("message", message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(m.cfg.Channels)
	deviceConfig.SampleRate = uint32(m.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if m.deviceName != "" {
		infos, err := actx.Devices(malgo.Capture)
		if err != nil {
			actx.Uninit()
			actx.Free()
			return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
		}
		found := false
		for i := range infos {
			if strings.Contains(infos[i].Name(), m.deviceName) {
				deviceConfig.Capture.DeviceID = infos[i].ID.Pointer()
				m.logger.Info("Selected capture device", zap.String("name", infos[i].Name()))
				found = true
				break
			}
		}
		if !found {
			m.logger.Warn("Capture device not found, using default",
				zap.String("requested", m.deviceName))
		}
	}

	frames := make(chan []float32, 8)
	pending := make([]float32, 0, m.cfg.FrameSize)

	onRecvFrames := func(_, input []byte, frameCount uint32) {
		samples := int(frameCount) * m.cfg.Channels
		for i := 0; i < samples && i*4+4 <= len(input); i++ {
			bits := binary.LittleEndian.Uint32(input[i*4:])
			pending = append(pending, math.Float32frombits(bits))
			if len(pending) == m.cfg.FrameSize {
				frame := make([]float32, m.cfg.FrameSize)
				copy(frame, pending)
				pending = pending[:0]
				select {
				case frames <- frame:
				default:
					// Consumer stalled; drop rather than block the
					// audio thread.
				}
			}
		}
	}

	device, err := malgo.InitDevice(actx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		actx.Uninit()
		actx.Free()
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		actx.Uninit()
		actx.Free()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	m.logger.Info("Microphone capture started",
		zap.Int("sample_rate", m.cfg.SampleRate),
		zap.Int("channels", m.cfg.Channels),
		zap.Int("frame_size", m.cfg.FrameSize))

	m.running = true
	m.actx = actx
	m.device = device
	m.frames = frames

	go func() {
		<-ctx.Done()
		m.Stop()
	}()

	return frames, nil
}

func (m *MicSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	m.device.Uninit()
	m.actx.Uninit()
	m.actx.Free()
	close(m.frames)

	m.logger.Info("Microphone capture stopped")
	return nil
}
