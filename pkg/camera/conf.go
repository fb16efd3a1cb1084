package camera

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bluenviron/rtspcam/pkg/base"
)

// TalkbackConf contains the talkback settings.
type TalkbackConf struct {
	// send the audio of the viewer to the speaker of the camera.
	Enable bool `yaml:"enable"`

	// gain applied to the audio of the viewer. It defaults to 1.
	Gain float64 `yaml:"gain"`
}

// Conf is the configuration of a camera.
type Conf struct {
	// URL of the stream, i.e. rtsp://192.168.1.20/live
	URL string `yaml:"url"`

	// credentials. They override the ones in the URL.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// RTSP client settings. Zero values mean defaults.
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	KeepalivePeriod time.Duration `yaml:"keepalive_period"`
	RetryPeriod     time.Duration `yaml:"retry_period"`

	Talkback TalkbackConf `yaml:"talkback"`
}

// LoadConf reads and validates a YAML configuration file.
func LoadConf(path string) (*Conf, error) {
	byts, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var conf Conf
	err = yaml.Unmarshal(byts, &conf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	err = conf.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &conf, nil
}

// Validate checks the configuration and fills default values.
func (c *Conf) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is missing")
	}

	_, err := base.ParseURL(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if c.Talkback.Gain < 0 {
		return fmt.Errorf("invalid talkback gain: %v", c.Talkback.Gain)
	}
	if c.Talkback.Gain == 0 {
		c.Talkback.Gain = 1
	}

	return nil
}

// StreamURL returns the URL of the stream, with credentials.
func (c *Conf) StreamURL() (*base.URL, error) {
	u, err := base.ParseURL(c.URL)
	if err != nil {
		return nil, err
	}

	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}

	return u, nil
}
