package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"tilt_control/internal/logger"
	"tilt_control/internal/sample"
)

// Defaults for the IoTtalk v1 device API.
const (
	DefaultIoTtalkURL     = "https://class.iottalk.tw"
	DefaultDeviceModel    = "Dummy_Device"
	DefaultFeature        = "Dummy_Control"
	DefaultIoTtalkTimeout = 10 * time.Second
	DefaultRegisterRetry  = 1 * time.Second
)

// passwordHeader carries the key handed out at registration.
const passwordHeader = "password-key"

var errNotRegistered = errors.New("device not registered")

// IoTtalkConfig describes the device registered on the IoTtalk server.
type IoTtalkConfig struct {
	URL         string
	DeviceAddr  string // empty: a random address is generated
	DeviceName  string // empty: derived from the address and the model
	DeviceModel string
	Feature     string // output device feature to pull from
	Timeout     time.Duration
	// RegisterRetry is the wait between registration attempts.
	RegisterRetry time.Duration

	HTTPClient *http.Client
	Clock      clock.Clock
	Logger     *logger.Logger
}

// IoTtalk pulls samples for one output feature through the IoTtalk v1 HTTP
// device API. It hands out each sample once: a pull whose newest timestamp
// was already seen yields no sample.
type IoTtalk struct {
	cfg    IoTtalkConfig
	client *http.Client
	clock  clock.Clock
	log    *logger.Logger

	mu        sync.Mutex
	password  string
	lastStamp string
}

// NewIoTtalk validates cfg and fills in the defaults.
func NewIoTtalk(cfg IoTtalkConfig) (*IoTtalk, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultIoTtalkURL
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("iottalk url %q: %w", cfg.URL, err)
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.DeviceModel == "" {
		cfg.DeviceModel = DefaultDeviceModel
	}
	if cfg.Feature == "" {
		cfg.Feature = DefaultFeature
	}
	if cfg.DeviceAddr == "" {
		cfg.DeviceAddr = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = cfg.DeviceAddr[len(cfg.DeviceAddr)-4:] + "." + cfg.DeviceModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultIoTtalkTimeout
	}
	if cfg.RegisterRetry <= 0 {
		cfg.RegisterRetry = DefaultRegisterRetry
	}

	c := &IoTtalk{
		cfg:    cfg,
		client: cfg.HTTPClient,
		clock:  cfg.Clock,
		log:    cfg.Logger,
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: cfg.Timeout}
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	return c, nil
}

// DeviceAddr is the address the device registers under.
func (c *IoTtalk) DeviceAddr() string { return c.cfg.DeviceAddr }

// DeviceName is the name shown on the IoTtalk canvas.
func (c *IoTtalk) DeviceName() string { return c.cfg.DeviceName }

type profile struct {
	DeviceName  string   `json:"d_name"`
	DeviceModel string   `json:"dm_name"`
	IsSim       bool     `json:"is_sim"`
	Features    []string `json:"df_list"`
}

type registerRequest struct {
	Profile profile `json:"profile"`
}

type registerResponse struct {
	Password string `json:"password"`
}

// Register announces the device, retrying every RegisterRetry until the
// server accepts it or ctx ends.
func (c *IoTtalk) Register(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := c.register(ctx)
		if err == nil {
			c.log.Infow("iottalk_registered", "server", c.cfg.URL, "device", c.cfg.DeviceName, "addr", c.cfg.DeviceAddr)
			return nil
		}
		c.log.Warnw("iottalk_register_failed", "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.cfg.RegisterRetry):
		}
	}
}

func (c *IoTtalk) register(ctx context.Context) error {
	body, err := json.Marshal(registerRequest{Profile: profile{
		DeviceName:  c.cfg.DeviceName,
		DeviceModel: c.cfg.DeviceModel,
		IsSim:       false,
		Features:    []string{c.cfg.Feature},
	}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.deviceURL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req)
	if err != nil {
		return err
	}
	var resp registerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%w: register response: %v", ErrTransport, err)
	}

	c.mu.Lock()
	c.password = resp.Password
	c.lastStamp = ""
	c.mu.Unlock()
	return nil
}

type pullResponse struct {
	Samples []json.RawMessage `json:"samples"`
}

// Fetch pulls the newest sample of the configured feature.
func (c *IoTtalk) Fetch(ctx context.Context) (sample.Value, error) {
	c.mu.Lock()
	password := c.password
	c.mu.Unlock()
	if password == "" {
		return sample.None(), fmt.Errorf("%w: %v", ErrTransport, errNotRegistered)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.deviceURL()+"/"+url.PathEscape(c.cfg.Feature), nil)
	if err != nil {
		return sample.None(), fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set(passwordHeader, password)

	raw, err := c.do(req)
	if err != nil {
		return sample.None(), err
	}
	var resp pullResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return sample.None(), fmt.Errorf("%w: pull response: %v", ErrTransport, err)
	}
	if len(resp.Samples) == 0 {
		return sample.None(), nil
	}

	// each entry is [timestamp, data]; the newest comes first
	var entry []json.RawMessage
	if err := json.Unmarshal(resp.Samples[0], &entry); err != nil || len(entry) != 2 {
		return sample.None(), fmt.Errorf("%w: malformed sample entry %s", ErrTransport, resp.Samples[0])
	}
	stamp := string(entry[0])

	c.mu.Lock()
	seen := stamp == c.lastStamp
	c.lastStamp = stamp
	c.mu.Unlock()
	if seen {
		return sample.None(), nil
	}

	v, err := sample.DecodeJSON(entry[1])
	if err != nil {
		return sample.None(), err
	}
	if v.Kind == sample.Vector && len(v.Items) == 0 {
		return sample.None(), nil
	}
	return v, nil
}

// Close deregisters the device. It is best effort and bounded by the
// client timeout.
func (c *IoTtalk) Close() error {
	c.mu.Lock()
	registered := c.password != ""
	c.password = ""
	c.mu.Unlock()
	if !registered {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.deviceURL(), nil)
	if err != nil {
		return err
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("deregister %s: %w", c.cfg.DeviceAddr, err)
	}
	c.log.Infow("iottalk_deregistered", "addr", c.cfg.DeviceAddr)
	return nil
}

func (c *IoTtalk) deviceURL() string {
	return c.cfg.URL + "/" + url.PathEscape(c.cfg.DeviceAddr)
}

// do sends req and returns the body of a 200 response. Every failure wraps
// ErrTransport.
func (c *IoTtalk) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s %s: status %d: %s",
			ErrTransport, req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
