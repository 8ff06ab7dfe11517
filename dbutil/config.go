package dbutil

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

const DefaultPort = 1433

type MSSQLConfig struct {
	Host                   string `yaml:"host" validate:"required"`
	Port                   int    `yaml:"port" validate:"min=1,max=65535"`
	Username               string `yaml:"username" validate:"required"`
	Password               string `yaml:"password" validate:"required"`
	Instance               string `yaml:"instance"`
	Database               string `yaml:"database"`
	TrustServerCertificate bool   `yaml:"trust_server_certificate"`
}

// LoadConfig reads the YAML file at path. An empty path yields the defaults.
func LoadConfig(path string) (MSSQLConfig, error) {
	c := MSSQLConfig{Port: DefaultPort}
	if path == "" {
		return c, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(buf, &c); err != nil {
		return c, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	return c, nil
}

// Validate checks that everything needed to open a session is present.
func (c MSSQLConfig) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("missing %s information", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("invalid %s: %v", fe.Field(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// String hides the password, the config ends up in logs.
func (c MSSQLConfig) String() string {
	return fmt.Sprintf("%s@%s", c.Username, c.address())
}

func (c MSSQLConfig) address() string {
	if c.Instance != "" {
		return c.Host + "/" + c.Instance
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
