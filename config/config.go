package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DefaultTimezoneOffset is the wall-clock offset all test windows are
// interpreted under when TIMEZONE_OFFSET is not configured.
const DefaultTimezoneOffset = "+03:00"

type Config struct {
	Server   Server
	Database Database
	Detector Detector
	Upload   Upload

	JWTSecret      string
	TimezoneOffset string

	location *time.Location
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type Detector struct {
	// Script is the path to the external bubble-detection executable.
	Script string
	// Timeout bounds a single per-student detection run.
	Timeout time.Duration
}

type Upload struct {
	// Dir is the root directory for uploaded sheets and detector output.
	Dir string
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.SetDefault("TIMEZONE_OFFSET", DefaultTimezoneOffset)
	viper.SetDefault("DETECTOR_TIMEOUT_SECONDS", 120)
	viper.SetDefault("UPLOAD_DIR", "uploads")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.JWTSecret = viper.GetString("JWT_SECRET")
	config.TimezoneOffset = viper.GetString("TIMEZONE_OFFSET")
	config.Detector.Script = viper.GetString("DETECTOR_SCRIPT")
	config.Detector.Timeout = time.Duration(viper.GetInt("DETECTOR_TIMEOUT_SECONDS")) * time.Second
	config.Upload.Dir = viper.GetString("UPLOAD_DIR")

	loc, err := ParseFixedOffset(config.TimezoneOffset)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE_OFFSET %q: %w", config.TimezoneOffset, err)
	}
	config.location = loc

	log.Info().
		Str("port", config.Server.Port).
		Str("timezone_offset", config.TimezoneOffset).
		Str("detector_script", config.Detector.Script).
		Msg("Config loaded")
	return &config, nil
}

// Location returns the fixed-offset zone every stored wall-clock timestamp
// is interpreted in. Test windows are persisted without an embedded offset,
// so a single process-wide zone is part of the contract.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// ParseFixedOffset turns an offset of the form "+03:00" into a fixed zone.
func ParseFixedOffset(offset string) (*time.Location, error) {
	var sign int
	switch {
	case len(offset) == 6 && offset[0] == '+':
		sign = 1
	case len(offset) == 6 && offset[0] == '-':
		sign = -1
	default:
		return nil, fmt.Errorf("offset must look like +03:00 or -05:00")
	}

	var hh, mm int
	if _, err := fmt.Sscanf(offset[1:], "%02d:%02d", &hh, &mm); err != nil {
		return nil, err
	}
	if hh > 14 || mm > 59 {
		return nil, fmt.Errorf("offset out of range")
	}
	return time.FixedZone("UTC"+offset, sign*(hh*3600+mm*60)), nil
}
