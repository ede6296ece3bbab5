package config

import (
	"encoding/json"
	"fmt"
	"mediavault/file_io"
	L "mediavault/logger"
	"os"
	"path/filepath"
)

type Webdav struct {
	Url          string `json:"url"`
	PresignedUrl string `json:"presigned_url"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	SecretKey    string `json:"secret_key"`
	VerifySsl    bool   `json:"verify_ssl"`
}

type S3 struct {
	Endpoint   string `json:"endpoint,omitempty"`
	AccessKey  string `json:"access_key"`
	SecretKey  string `json:"secret_key"`
	Region     string `json:"region"`
	BucketName string `json:"bucket_name"`
}

type Store struct {
	Provider Provider `json:"provider"`
	Webdav   *Webdav  `json:"webdav,omitempty"`
	S3       *S3      `json:"s3,omitempty"`
}

type Thumbnail struct {
	WidthPixels        int `json:"width_pixels"`
	MaxConcurrentTasks int `json:"max_concurrent_tasks"`
	TaskTimeoutSeconds int `json:"task_timeout_seconds"`
}

type Server struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type Config struct {
	DatabasePath         string    `json:"database_path"`
	DataStore            Store     `json:"data_store"`
	CacheStore           Store     `json:"cache_store"`
	ChunkByteSize        int64     `json:"chunk_byte_size"`
	PresignExpirySeconds int64     `json:"presign_expiry_seconds"`
	Thumbnail            Thumbnail `json:"thumbnail"`
	Server               Server    `json:"server"`
	LogLevel             string    `json:"log_level,omitempty"`
	LogColorMode         string    `json:"log_color_mode,omitempty"`
}

const (
	DefaultChunkByteSize        int64 = 10 * 1024 * 1024
	DefaultPresignExpirySeconds int64 = 60 * 60 * 7
	DefaultThumbnailWidth             = 400
	DefaultMaxConcurrentTasks         = 5
	DefaultTaskTimeoutSeconds         = 30
	DefaultServerPort                 = 8000
)

var config Config
var configPath string

func Parse(configPathArg string) error {
	file, err := os.Open(configPathArg)
	if err != nil {
		return fmt.Errorf("config: could not open config file for reading")
	}
	defer file.Close()
	decoder := json.NewDecoder(file)
	err = decoder.Decode(&config)
	if err != nil {
		return fmt.Errorf("config: malformed config %s: %w", configPathArg, err)
	}
	applyDefaults(&config)
	err = validate(&config)
	if err != nil {
		return fmt.Errorf("config: could not validate config: %w", err)
	}

	configPath, err = filepath.Abs(configPathArg)
	if err != nil {
		return err
	}
	return nil
}

func Get() *Config {
	return &config
}

func GetDefaultConfigDir() (string, error) {
	configDir, configDirError := os.UserConfigDir()
	homeDir, homeDirError := os.UserHomeDir()
	if configDirError != nil && homeDirError != nil {
		return "", fmt.Errorf("config: cannot find config dir: Config: %w, Home: %w", configDirError, homeDirError)
	}
	var dir string
	if configDirError == nil {
		dir = configDir
	} else {
		dir = homeDir
	}
	dir, err := filepath.Abs(filepath.Join(dir, "mediavault"))
	if err != nil {
		return "", err
	}
	L.Debug(fmt.Sprintf("Using config directory: %s", dir))
	err = os.MkdirAll(dir, os.ModePerm)
	if err != nil {
		return "", err
	}
	return dir, nil
}

func GetDefaultConfigPath() (string, error) {
	configDir, err := GetDefaultConfigDir()
	if err != nil {
		return "", err
	}
	configFilePath := filepath.Join(configDir, "config.json")
	if !file_io.Exists(configFilePath) {
		_, err = file_io.WriteToFile(configFilePath, []byte(DumpDefaultConfig()), file_io.WRITE_OVERWRITE)
	}
	if err != nil {
		return "", err
	}
	return configFilePath, err
}

func GetConfigPath() string {
	return configPath
}

func (c *Config) ToJson() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DumpDefaultConfig() string {
	defaultConfig := Config{
		DatabasePath: "mediavault.db",
		DataStore: Store{
			Provider: PROVIDER_WEBDAV,
			Webdav: &Webdav{
				Url:          "https://localhost:8443/dav/media",
				PresignedUrl: "https://localhost:8443/secure/media",
				Username:     "mediavault",
				Password:     "password",
				SecretKey:    "secure-link-secret",
				VerifySsl:    false,
			},
		},
		CacheStore: Store{
			Provider: PROVIDER_WEBDAV,
			Webdav: &Webdav{
				Url:          "https://localhost:8443/dav/cache",
				PresignedUrl: "https://localhost:8443/secure/cache",
				Username:     "mediavault",
				Password:     "password",
				SecretKey:    "secure-link-secret",
				VerifySsl:    false,
			},
		},
		ChunkByteSize:        DefaultChunkByteSize,
		PresignExpirySeconds: DefaultPresignExpirySeconds,
		Thumbnail: Thumbnail{
			WidthPixels:        DefaultThumbnailWidth,
			MaxConcurrentTasks: DefaultMaxConcurrentTasks,
			TaskTimeoutSeconds: DefaultTaskTimeoutSeconds,
		},
		Server: Server{
			Host: "127.0.0.1",
			Port: DefaultServerPort,
		},
		LogLevel:     "info",
		LogColorMode: "auto",
	}
	configStr, err := defaultConfig.ToJson()
	if err != nil {
		return ""
	}
	return configStr
}

func applyDefaults(c *Config) {
	if c.ChunkByteSize == 0 {
		c.ChunkByteSize = DefaultChunkByteSize
	}
	if c.PresignExpirySeconds == 0 {
		c.PresignExpirySeconds = DefaultPresignExpirySeconds
	}
	if c.Thumbnail.WidthPixels == 0 {
		c.Thumbnail.WidthPixels = DefaultThumbnailWidth
	}
	if c.Thumbnail.MaxConcurrentTasks == 0 {
		c.Thumbnail.MaxConcurrentTasks = DefaultMaxConcurrentTasks
	}
	if c.Thumbnail.TaskTimeoutSeconds == 0 {
		c.Thumbnail.TaskTimeoutSeconds = DefaultTaskTimeoutSeconds
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

func validateStore(name string, s *Store) error {
	switch s.Provider {
	case PROVIDER_WEBDAV:
		if s.Webdav == nil {
			return fmt.Errorf("%s: webdav provider needs a webdav section", name)
		}
		if s.Webdav.Url == "" {
			return fmt.Errorf("%s: webdav url is required", name)
		}
		if s.Webdav.PresignedUrl == "" {
			return fmt.Errorf("%s: webdav presigned_url is required", name)
		}
		if s.Webdav.SecretKey == "" {
			return fmt.Errorf("%s: webdav secret_key is required", name)
		}
	case PROVIDER_S3:
		if s.S3 == nil {
			return fmt.Errorf("%s: s3 provider needs an s3 section", name)
		}
		if s.S3.AccessKey == "" || s.S3.SecretKey == "" {
			return fmt.Errorf("%s: s3 access_key and secret_key are required", name)
		}
		if s.S3.Region == "" {
			return fmt.Errorf("%s: s3 region is required", name)
		}
		if s.S3.BucketName == "" {
			return fmt.Errorf("%s: s3 bucket_name is required", name)
		}
	case PROVIDER_MEMORY:
		// nothing to check, dev/test only
	default:
		return fmt.Errorf("%s: unknown provider", name)
	}
	return nil
}

func validate(c *Config) error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if err := validateStore("data_store", &c.DataStore); err != nil {
		return err
	}
	if err := validateStore("cache_store", &c.CacheStore); err != nil {
		return err
	}
	if c.ChunkByteSize < 0 {
		return fmt.Errorf("chunk_byte_size cannot be negative")
	}
	if c.Thumbnail.MaxConcurrentTasks < 1 {
		return fmt.Errorf("thumbnail max_concurrent_tasks must be at least 1")
	}
	return nil
}
