package camera

import (
	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // Регистрируем драйвер камеры

	"camera-streamer/internal/application"
	"camera-streamer/internal/domain"
)

// Manager реализация application.CameraManager: список устройств берется
// из mediadevices, захват идет напрямую через V4L2.
type Manager struct {
	logger application.Logger
	open   func(path string) (device, error)
}

// NewManager создает новый менеджер камер
func NewManager(logger application.Logger) *Manager {
	return &Manager{
		logger: logger,
		open:   openWebcam,
	}
}

// ListDevices возвращает список доступных устройств захвата видео
func (m *Manager) ListDevices() ([]domain.VideoDevice, error) {
	devices := mediadevices.EnumerateDevices()
	result := make([]domain.VideoDevice, 0, len(devices))

	for _, device := range devices {
		if device.Kind != mediadevices.VideoInput {
			continue
		}
		result = append(result, domain.VideoDevice{
			ID:    device.DeviceID,
			Label: device.Label,
			Kind:  string(device.DeviceType),
		})
	}

	return result, nil
}

// OpenCamera открывает камеру с заданными параметрами
func (m *Manager) OpenCamera(config domain.StreamConfig) (application.FrameSource, error) {
	m.logger.Info("Открытие камеры %s: %s, %d fps", config.Device, config.InputResolution, config.FrameRate)

	source, err := openV4L2(m.open, config, m.logger)
	if err != nil {
		m.logger.Error("Ошибка открытия камеры: %v", err)
		return nil, err
	}
	return source, nil
}
