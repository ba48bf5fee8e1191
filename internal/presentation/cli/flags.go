package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"camera-streamer/internal/domain"
	"camera-streamer/internal/infrastructure/logger"
)

// DefaultEndpoint адрес сервера по умолчанию
const DefaultEndpoint = "ws://rover.team1157.org:11572/stream"

// Переменные окружения, задающие значения по умолчанию
const (
	EnvEndpoint  = "CAMERA_STREAMER_ENDPOINT"
	EnvDevice    = "CAMERA_STREAMER_DEVICE"
	EnvDebug     = "CAMERA_STREAMER_DEBUG"
	EnvLogFormat = "CAMERA_STREAMER_LOG_FORMAT"
)

// Config представляет конфигурацию CLI
type Config struct {
	Stream      domain.StreamConfig
	LogFormat   string
	ListDevices bool
}

// resolutionFlags флаги, принимающие два значения: <w> <h>
var resolutionFlags = map[string]bool{
	"i": true, "input-resolution": true,
	"r": true, "output-resolution": true,
}

// resolutionValue flag.Value для разрешения в виде WxH или W,H
type resolutionValue struct {
	res *domain.Resolution
}

func (v resolutionValue) String() string {
	if v.res == nil {
		return ""
	}
	return v.res.String()
}

func (v resolutionValue) Set(s string) error {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == 'x' || r == 'X' || r == ',' || r == ' '
	})
	if len(parts) != 2 {
		return fmt.Errorf("ожидается <ширина> <высота>, получено %q", s)
	}
	w, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return fmt.Errorf("ширина %q: %w", parts[0], err)
	}
	h, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return fmt.Errorf("высота %q: %w", parts[1], err)
	}
	*v.res = domain.Resolution{Width: uint32(w), Height: uint32(h)}
	return nil
}

// ParseArgs разбирает аргументы командной строки. getenv задает значения по
// умолчанию, флаги их перекрывают. Позиционный аргумент (устройство) может
// стоять в любом месте.
func ParseArgs(args []string, getenv func(string) string, output io.Writer) (*Config, error) {
	config := &Config{
		Stream: domain.StreamConfig{
			Device:           getenv(EnvDevice),
			InputResolution:  domain.Resolution{Width: 640, Height: 480},
			OutputResolution: domain.Resolution{Width: 256, Height: 144},
			OutputQuality:    50,
			Endpoint:         DefaultEndpoint,
			PixelFormat:      domain.FormatMJPEG,
			ConnectTimeout:   10 * time.Second,
			SendTimeout:      10 * time.Second,
			Reconnect: domain.ReconnectPolicy{
				InitialDelay: 250 * time.Millisecond,
				MaxDelay:     10 * time.Second,
				Jitter:       0.2,
			},
		},
		LogFormat: logger.FormatText,
	}
	if v := getenv(EnvEndpoint); v != "" {
		config.Stream.Endpoint = v
	}
	if v := getenv(EnvLogFormat); v != "" {
		config.LogFormat = v
	}
	if v := getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvDebug, err)
		}
		config.Stream.Debug = debug
	}

	framerate := uint(10)
	stream := &config.Stream

	fs := flag.NewFlagSet("camera-streamer", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Использование: camera-streamer [флаги] <устройство>\n\n")
		fs.PrintDefaults()
	}

	fs.UintVar(&framerate, "framerate", framerate, "частота кадров")
	fs.UintVar(&framerate, "f", framerate, "частота кадров (кратко)")
	fs.Var(resolutionValue{&stream.InputResolution}, "input-resolution", "разрешение захвата <w> <h>")
	fs.Var(resolutionValue{&stream.InputResolution}, "i", "разрешение захвата (кратко)")
	fs.Var(resolutionValue{&stream.OutputResolution}, "output-resolution", "разрешение после перекодирования <w> <h>")
	fs.Var(resolutionValue{&stream.OutputResolution}, "r", "разрешение после перекодирования (кратко)")
	fs.IntVar(&stream.OutputQuality, "output-quality", stream.OutputQuality, "качество JPEG 0-100")
	fs.IntVar(&stream.OutputQuality, "q", stream.OutputQuality, "качество JPEG (кратко)")
	fs.BoolVar(&stream.Reencode, "reencode", false, "перекодировать кадры перед отправкой")
	fs.BoolVar(&stream.Reencode, "e", false, "перекодировать кадры (кратко)")
	fs.BoolVar(&stream.Debug, "debug", stream.Debug, "включить отладочные сообщения")
	fs.BoolVar(&stream.Debug, "d", stream.Debug, "включить отладочные сообщения (кратко)")

	fs.StringVar(&stream.Endpoint, "endpoint", stream.Endpoint, "адрес сервера (ws:// или wss://)")
	fs.DurationVar(&stream.ConnectTimeout, "connect-timeout", stream.ConnectTimeout, "таймаут подключения, 0 - без ограничения")
	fs.DurationVar(&stream.SendTimeout, "send-timeout", stream.SendTimeout, "таймаут отправки кадра, 0 - без ограничения")
	fs.DurationVar(&stream.CaptureTimeout, "capture-timeout", stream.CaptureTimeout, "таймаут захвата кадра, 0 - без ограничения")
	fs.DurationVar(&stream.Reconnect.InitialDelay, "reconnect-delay", stream.Reconnect.InitialDelay, "начальная задержка переподключения, 0 - сразу")
	fs.DurationVar(&stream.Reconnect.MaxDelay, "reconnect-max-delay", stream.Reconnect.MaxDelay, "максимальная задержка переподключения")
	fs.Float64Var(&stream.Reconnect.Jitter, "reconnect-jitter", stream.Reconnect.Jitter, "случайный разброс задержки 0..1")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "формат логов: text или json")
	fs.BoolVar(&config.ListDevices, "list-devices", false, "показать список доступных камер и выйти")

	positionals, err := parseInterspersed(fs, normalizeArgs(args))
	if err != nil {
		return nil, err
	}

	switch len(positionals) {
	case 0:
	case 1:
		stream.Device = positionals[0]
	default:
		return nil, fmt.Errorf("лишние аргументы: %s", strings.Join(positionals[1:], " "))
	}

	if framerate > math.MaxUint32 {
		return nil, fmt.Errorf("частота кадров %d слишком велика", framerate)
	}
	stream.FrameRate = uint32(framerate)

	if config.LogFormat != logger.FormatText && config.LogFormat != logger.FormatJSON {
		return nil, fmt.Errorf("неизвестный формат логов %q", config.LogFormat)
	}
	if config.ListDevices {
		return config, nil
	}
	if stream.Device == "" {
		return nil, errors.New("не указано устройство захвата")
	}
	if err := stream.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// parseInterspersed разбирает флаги вперемешку с позиционными аргументами
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positionals []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positionals, nil
		}
		positionals = append(positionals, args[0])
		args = args[1:]
	}
}

// normalizeArgs склеивает "--input-resolution 640 480" в "--input-resolution=640x480",
// чтобы стандартный flag мог принять два значения одного флага.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name := strings.TrimLeft(arg, "-")
		if strings.HasPrefix(arg, "-") && !strings.Contains(name, "=") && resolutionFlags[name] &&
			i+2 < len(args) && isUint(args[i+1]) && isUint(args[i+2]) {
			out = append(out, fmt.Sprintf("%s=%sx%s", arg, args[i+1], args[i+2]))
			i += 2
			continue
		}
		out = append(out, arg)
	}
	return out
}

func isUint(s string) bool {
	_, err := strconv.ParseUint(s, 10, 32)
	return err == nil
}
